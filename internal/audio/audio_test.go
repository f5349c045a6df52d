package audio

import (
	"math"
	"math/rand"
	"testing"
	"time"
)

func sine(n, sampleRate int, freq, amp float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
	}
	return out
}

func noise(n int, amp float64, seed int64) []float32 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * (2*rng.Float64() - 1))
	}
	return out
}

// --- Constants ---

func TestStreamConstants(t *testing.T) {
	// 48kHz * 20ms = 960 samples
	if got := StreamSampleRate * int(StreamFrameDuration/time.Millisecond) / 1000; got != StreamFrameSize {
		t.Errorf("StreamFrameSize mismatch: want %d, got %d", got, StreamFrameSize)
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{Samples: make([]float32, 4410)}
	if got := f.Duration(44100); got != 100*time.Millisecond {
		t.Errorf("Duration = %v, want 100ms", got)
	}
	if got := f.Duration(0); got != 0 {
		t.Errorf("Duration with zero rate = %v, want 0", got)
	}
}

// --- RMS ---

func TestRMS(t *testing.T) {
	tests := []struct {
		name    string
		samples []float32
		want    float64
	}{
		{"empty", nil, 0},
		{"silence", make([]float32, 64), 0},
		{"constant", []float32{0.5, -0.5, 0.5, -0.5}, 0.5},
		{"single", []float32{-0.25}, 0.25},
	}
	for _, tt := range tests {
		if got := RMS(tt.samples); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("RMS(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// --- Extractor ---

func TestExtractEmptyFrameIsInvalid(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	got := e.Extract(nil)
	if got.Valid || got.Amplitude != 0 || got.SpectralWidth != 0 {
		t.Errorf("Extract(nil) = %+v, want zero invalid scores", got)
	}
}

func TestExtractNonFiniteFrameIsInvalid(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	for _, bad := range []float32{float32(math.NaN()), float32(math.Inf(1)), float32(math.Inf(-1))} {
		frame := sine(1024, DefaultSampleRate, 440, 0.5)
		frame[100] = bad
		got := e.Extract(frame)
		if got.Valid || got.Amplitude != 0 || got.SpectralWidth != 0 {
			t.Errorf("Extract with %v = %+v, want zero invalid scores", bad, got)
		}
	}
}

func TestExtractSilence(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	got := e.Extract(make([]float32, DefaultFrameSize))
	if !got.Valid {
		t.Error("silent frame should still be valid")
	}
	if got.Amplitude != 0 || got.SpectralWidth != 0 {
		t.Errorf("silence scores = %+v, want zeros", got)
	}
}

func TestExtractPureToneIsNarrow(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	// Bin-centred so a rectangular window doesn't leak.
	freq := 20 * float64(DefaultSampleRate) / float64(DefaultFrameSize)
	got := e.Extract(sine(DefaultFrameSize, DefaultSampleRate, freq, 0.5))

	wantAmp := 0.5 / math.Sqrt2
	if math.Abs(got.Amplitude-wantAmp) > 1e-3 {
		t.Errorf("Amplitude = %v, want ~%v", got.Amplitude, wantAmp)
	}
	// float32 rounding leaves a small floor in every bin; a tone stays far
	// below the 1000Hz start threshold all the same.
	if got.SpectralWidth > 50 {
		t.Errorf("SpectralWidth of pure tone = %v Hz, want under 50", got.SpectralWidth)
	}
}

func TestExtractNoiseIsWide(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	got := e.Extract(noise(DefaultFrameSize, 0.3, 1))
	if got.SpectralWidth < 3000 {
		t.Errorf("SpectralWidth of white noise = %v Hz, want broadband (>3000)", got.SpectralWidth)
	}
	if got.Amplitude <= 0.1 {
		t.Errorf("Amplitude of noise = %v, want >0.1", got.Amplitude)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	frame := noise(DefaultFrameSize, 0.2, 42)
	a := e.Extract(frame)
	b := e.Extract(frame)
	if a != b {
		t.Errorf("Extract not deterministic: %+v vs %+v", a, b)
	}
}

func TestExtractHandlesChangingFrameSize(t *testing.T) {
	e := NewExtractor(DefaultSampleRate)
	small := e.Extract(noise(1000, 0.2, 3))
	large := e.Extract(noise(DefaultFrameSize, 0.2, 3))
	if !small.Valid || !large.Valid {
		t.Fatalf("expected valid scores, got %+v and %+v", small, large)
	}
	if small.SpectralWidth == 0 || large.SpectralWidth == 0 {
		t.Errorf("expected non-zero widths, got %v and %v", small.SpectralWidth, large.SpectralWidth)
	}
}

// --- PCM helpers ---

func TestFloatToPCM16Clips(t *testing.T) {
	got := FloatToPCM16([]float32{0, 1, -1, 2, -2, float32(math.NaN())})
	want := []int16{0, 32767, -32767, 32767, -32768, 0}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestSamplesToBytes(t *testing.T) {
	buf := SamplesToBytes([]int16{0, 256})
	if len(buf) != 4 {
		t.Fatalf("length = %d, want 4", len(buf))
	}
	// 256 = 0x0100 -> bytes [0x00, 0x01]
	if buf[2] != 0x00 || buf[3] != 0x01 {
		t.Errorf("256 encoded as [%02x, %02x], want [00, 01]", buf[2], buf[3])
	}
}

func TestResampleLength(t *testing.T) {
	in := make([]float32, 44100)
	out := Resample(in, 44100, 48000)
	if len(out) != 48000 {
		t.Errorf("len = %d, want 48000", len(out))
	}
	same := Resample(in, 44100, 44100)
	if len(same) != len(in) {
		t.Errorf("same-rate len = %d, want %d", len(same), len(in))
	}
}

func TestResampleInterpolates(t *testing.T) {
	out := Resample([]float32{0, 1}, 1, 2)
	if len(out) != 4 {
		t.Fatalf("len = %d, want 4", len(out))
	}
	if out[1] != 0.5 {
		t.Errorf("out[1] = %v, want 0.5", out[1])
	}
}

func TestFramerCarriesRemainder(t *testing.T) {
	f := NewFramer(4)
	if frames := f.Push([]int16{1, 2, 3}); len(frames) != 0 {
		t.Errorf("got %d frames from 3 samples, want 0", len(frames))
	}
	frames := f.Push([]int16{4, 5, 6, 7, 8, 9})
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if frames[0][0] != 1 || frames[1][3] != 8 {
		t.Errorf("frames = %v, want [[1 2 3 4] [5 6 7 8]]", frames)
	}
	if f.Pending() != 1 {
		t.Errorf("Pending = %d, want 1", f.Pending())
	}
}
