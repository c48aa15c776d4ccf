package api

import (
	"testing"
	"time"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	pid := "p1"
	ch := b.Subscribe(pid)
	defer func() { recover() }() // ignore close panic if already closed

	evt := SSEEvent{Type: "plan.computed", Data: map[string]any{"planId": pid}}
	b.Publish(pid, evt)

	select {
	case got := <-ch:
		if got.Type != evt.Type {
			t.Fatalf("got type %s, want %s", got.Type, evt.Type)
		}
		if got.Data["planId"].(string) != pid {
			t.Fatalf("bad payload: %+v", got.Data)
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for event")
	}

	b.Unsubscribe(pid, ch)
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("channel should be closed after unsubscribe")
		}
	case <-time.After(50 * time.Millisecond):
		// acceptable if already drained and closed
	}
}

func TestBrokerDropsWhenSubscriberSlow(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("p2")
	// fill the buffer without a reader; extra events are dropped, not blocked
	for i := 0; i < 20; i++ {
		b.Publish("p2", SSEEvent{Type: "plan.computed", Data: map[string]any{"i": i}})
	}
	n := 0
	for {
		select {
		case <-ch:
			n++
		default:
			if n == 0 || n > 8 {
				t.Fatalf("expected 1..8 buffered events, got %d", n)
			}
			b.Unsubscribe("p2", ch)
			return
		}
	}
}
