package audio

import (
	"encoding/binary"
	"math"
)

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// FloatToPCM16 converts normalized float samples to int16, clipping anything
// outside [-1, 1]. Non-finite samples become 0.
func FloatToPCM16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		v *= 32767
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		out[i] = int16(v)
	}
	return out
}

// Resample converts float samples between sample rates by linear
// interpolation.
func Resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || fromRate <= 0 || toRate <= 0 || len(samples) == 0 {
		return samples
	}

	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(samples)) / ratio)
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(idx))
		out[i] = samples[idx] + frac*(samples[idx+1]-samples[idx])
	}
	return out
}

// Framer re-cuts a continuous stream of samples into fixed-size frames,
// carrying any remainder over to the next Push.
type Framer struct {
	size    int
	pending []int16
}

// NewFramer returns a framer emitting frames of size samples.
func NewFramer(size int) *Framer {
	return &Framer{size: size}
}

// Push appends samples and returns every complete frame now available.
func (f *Framer) Push(samples []int16) [][]int16 {
	if f.size <= 0 {
		return nil
	}
	f.pending = append(f.pending, samples...)
	var frames [][]int16
	for len(f.pending) >= f.size {
		frame := make([]int16, f.size)
		copy(frame, f.pending[:f.size])
		frames = append(frames, frame)
		f.pending = f.pending[f.size:]
	}
	// Compact so the backing array doesn't grow without bound.
	f.pending = append([]int16(nil), f.pending...)
	return frames
}

// Pending returns how many samples are waiting for a full frame.
func (f *Framer) Pending() int {
	return len(f.pending)
}
