package stream

import (
	"sync"
	"testing"
	"time"
)

func TestNewBroadcaster(t *testing.T) {
	b := NewBroadcaster()
	if b == nil {
		t.Fatal("NewBroadcaster returned nil")
	}
	if b.ListenerCount() != 0 {
		t.Errorf("Initial ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroadcaster()

	l1 := b.Subscribe()
	if b.ListenerCount() != 1 {
		t.Errorf("After 1 subscribe: ListenerCount = %d, want 1", b.ListenerCount())
	}

	l2 := b.Subscribe()
	if b.ListenerCount() != 2 {
		t.Errorf("After 2 subscribes: ListenerCount = %d, want 2", b.ListenerCount())
	}

	b.Unsubscribe(l1)
	if b.ListenerCount() != 1 {
		t.Errorf("After 1 unsubscribe: ListenerCount = %d, want 1", b.ListenerCount())
	}

	b.Unsubscribe(l2)
	if b.ListenerCount() != 0 {
		t.Errorf("After all unsubscribed: ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestPublishDelivers(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	frame := []int16{100, 200, 300, 400}
	if n := b.Publish(frame); n != 1 {
		t.Errorf("Publish delivered to %d listeners, want 1", n)
	}

	select {
	case got := <-l.C:
		if len(got) != len(frame) {
			t.Errorf("Received frame length %d, want %d", len(got), len(frame))
		}
		for i, v := range got {
			if v != frame[i] {
				t.Errorf("Frame[%d] = %d, want %d", i, v, frame[i])
			}
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for frame")
	}
}

func TestPublishMultipleListeners(t *testing.T) {
	b := NewBroadcaster()
	listeners := make([]*Listener, 5)
	for i := range listeners {
		listeners[i] = b.Subscribe()
	}

	b.Publish([]int16{42, -42})

	for i, l := range listeners {
		select {
		case got := <-l.C:
			if got[0] != 42 {
				t.Errorf("Listener %d got frame[0]=%d, want 42", i, got[0])
			}
		default:
			t.Errorf("Listener %d has no frame", i)
		}
	}

	for _, l := range listeners {
		b.Unsubscribe(l)
	}
}

func TestPublishDropsSlowListener(t *testing.T) {
	b := NewBroadcaster()
	slow := b.Subscribe()
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)
	defer b.Unsubscribe(fast)

	fastCount := 0
	for i := 0; i < 200; i++ {
		b.Publish([]int16{int16(i)})
		select {
		case <-fast.C:
			fastCount++
		default:
		}
	}

	if len(slow.C) != listenerBuffer {
		t.Errorf("Slow listener holds %d frames, want %d", len(slow.C), listenerBuffer)
	}
	if fastCount != 200 {
		t.Errorf("Fast listener got %d frames, want 200", fastCount)
	}
}

func TestPublishWithoutListeners(t *testing.T) {
	b := NewBroadcaster()
	if n := b.Publish([]int16{1}); n != 0 {
		t.Errorf("Publish with no listeners = %d, want 0", n)
	}
}

func TestPublishConcurrentSubscribe(t *testing.T) {
	b := NewBroadcaster()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := b.Subscribe()
			b.Publish([]int16{1})
			b.Unsubscribe(l)
		}()
	}
	wg.Wait()
	if b.ListenerCount() != 0 {
		t.Errorf("ListenerCount = %d, want 0", b.ListenerCount())
	}
}

func TestListenerDoneChannel(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()

	b.Unsubscribe(l)
	b.Unsubscribe(l)

	select {
	case <-l.Done():
	default:
		t.Error("Listener done channel not closed after unsubscribe")
	}
}
