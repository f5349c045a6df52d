package stream

import "sync"

// listenerBuffer holds ~3 seconds of 20ms frames.
const listenerBuffer = 150

// Broadcaster fans out listen-in PCM frames to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // buffered channel of 20ms mono PCM frames
	done chan struct{}
}

// Done is closed once the listener has been unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates a new broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, listenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and signals it to stop. Calling it twice is
// harmless.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	_, ok := b.listeners[l]
	delete(b.listeners, l)
	b.mu.Unlock()
	if ok {
		close(l.done)
	}
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands frame to every listener and never blocks: a listener whose
// buffer is full misses the frame. It returns how many listeners took it.
func (b *Broadcaster) Publish(frame []int16) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for l := range b.listeners {
		select {
		case l.C <- frame:
			n++
		default:
		}
	}
	return n
}
