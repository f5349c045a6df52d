// Package input turns keystrokes and remote commands into control events
// for the monitor loop.
package input

import (
	"bufio"
	"context"
	"errors"
	"io"
	"unicode"
)

// Kind identifies a control event.
type Kind int

const (
	// Edit reports that the pending album-ID buffer changed.
	Edit Kind = iota
	// Submit asks for the album in Value to be loaded.
	Submit
	// NextSide moves to the following side.
	NextSide
	// PrevSide moves to the preceding side.
	PrevSide
)

func (k Kind) String() string {
	switch k {
	case Edit:
		return "edit"
	case Submit:
		return "submit"
	case NextSide:
		return "next_side"
	case PrevSide:
		return "prev_side"
	default:
		return "unknown"
	}
}

// Event is one control action. For Edit, Value is the current buffer; for
// Submit it is the album ID to load.
type Event struct {
	Kind  Kind
	Value string
}

// KeyBuffer accumulates typed digits into an album ID.
//
//	0-9        append a digit
//	Enter      submit the buffer (ignored when empty)
//	d / a      next / previous side
//	Backspace  delete one digit
//	Escape     clear the buffer
type KeyBuffer struct {
	buf []rune
}

// String returns the pending digits.
func (b *KeyBuffer) String() string {
	return string(b.buf)
}

// Feed applies one key and returns the resulting event, if any.
func (b *KeyBuffer) Feed(r rune) (Event, bool) {
	switch {
	case r == '\n' || r == '\r':
		if len(b.buf) == 0 {
			return Event{}, false
		}
		id := string(b.buf)
		b.buf = b.buf[:0]
		return Event{Kind: Submit, Value: id}, true
	case r == 'd' || r == 'D':
		return Event{Kind: NextSide}, true
	case r == 'a' || r == 'A':
		return Event{Kind: PrevSide}, true
	case r >= '0' && r <= '9':
		b.buf = append(b.buf, r)
	case r == 0x7f || r == '\b':
		if len(b.buf) == 0 {
			return Event{}, false
		}
		b.buf = b.buf[:len(b.buf)-1]
	case r == 0x1b:
		if len(b.buf) == 0 {
			return Event{}, false
		}
		b.buf = b.buf[:0]
	default:
		return Event{}, false
	}
	return Event{Kind: Edit, Value: string(b.buf)}, true
}

// Reader decodes keys from a stream (normally stdin) on its own goroutine
// and delivers events on a channel the control loop can poll.
type Reader struct {
	src    *bufio.Reader
	keys   KeyBuffer
	events chan Event
}

// NewReader returns a reader with a small event queue.
func NewReader(r io.Reader, queue int) *Reader {
	if queue <= 0 {
		queue = 16
	}
	return &Reader{src: bufio.NewReader(r), events: make(chan Event, queue)}
}

// Events returns the channel events are delivered on.
func (r *Reader) Events() chan Event {
	return r.events
}

// Run reads until the stream ends or ctx is cancelled. Events are dropped
// when the queue is full rather than stalling input.
func (r *Reader) Run(ctx context.Context) error {
	for {
		ch, _, err := r.src.ReadRune()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if unicode.IsSpace(ch) && ch != '\n' && ch != '\r' {
			continue
		}
		ev, ok := r.keys.Feed(ch)
		if !ok {
			continue
		}
		Send(r.events, ev)
	}
}

// Send queues ev without blocking and reports whether it was accepted.
func Send(ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	default:
		return false
	}
}

// Poll returns a pending event without blocking.
func Poll(ch <-chan Event) (Event, bool) {
	select {
	case ev := <-ch:
		return ev, true
	default:
		return Event{}, false
	}
}
