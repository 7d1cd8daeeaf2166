package eventbus

import (
	"testing"
	"time"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	b := NewTyped[int]()
	defer b.Close()
	a := b.Subscribe()
	c := b.Subscribe()

	b.Publish(42)
	for _, sub := range []<-chan int{a, c} {
		select {
		case v := <-sub:
			if v != 42 {
				t.Errorf("got %d", v)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber missed event")
		}
	}
}

func TestPublishNeverBlocksOnFullSubscriber(t *testing.T) {
	b := NewTyped[int]()
	defer b.Close()
	slow := b.Subscribe()
	// Fill the buffer and then some; Publish must return regardless.
	for i := 0; i < 64; i++ {
		b.Publish(i)
	}
	if len(slow) != cap(slow) {
		t.Errorf("buffer holds %d, want full at %d", len(slow), cap(slow))
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := NewTyped[int]()
	defer b.Close()
	sub := b.Subscribe()
	b.Unsubscribe(sub)
	if _, open := <-sub; open {
		t.Error("channel open after unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	b.Publish(1)
}

func TestCloseIsIdempotent(t *testing.T) {
	b := NewTyped[int]()
	sub := b.Subscribe()
	b.Close()
	b.Close()
	if _, open := <-sub; open {
		t.Error("channel open after close")
	}
	if late := b.Subscribe(); late == nil {
		t.Error("subscribe after close returned nil")
	} else if _, open := <-late; open {
		t.Error("late subscriber channel not closed")
	}
	b.Publish(1)
}
