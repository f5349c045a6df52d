package stream

import "github.com/satindergrewal/needledrop/internal/audio"

// Feed turns captured frames into 20ms listen-in frames for a Broadcaster.
// It is driven from the control loop and is not safe for concurrent use.
type Feed struct {
	b          *Broadcaster
	sampleRate int
	framer     *audio.Framer
}

// NewFeed returns a feed for audio captured at sampleRate.
func NewFeed(b *Broadcaster, sampleRate int) *Feed {
	return &Feed{
		b:          b,
		sampleRate: sampleRate,
		framer:     audio.NewFramer(audio.StreamFrameSize),
	}
}

// Push converts frame to stream format and publishes every complete 20ms
// frame. Nothing is converted while no one is listening.
func (f *Feed) Push(frame audio.Frame) {
	if f.b.ListenerCount() == 0 {
		if f.framer.Pending() > 0 {
			f.framer = audio.NewFramer(audio.StreamFrameSize)
		}
		return
	}
	samples := audio.Resample(frame.Samples, f.sampleRate, audio.StreamSampleRate)
	for _, out := range f.framer.Push(audio.FloatToPCM16(samples)) {
		f.b.Publish(out)
	}
}
