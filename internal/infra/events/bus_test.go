package events

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
)

func newTestBus() *Bus {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return NewBus(l)
}

func TestEmitReachesSubscriber(t *testing.T) {
	bus := newTestBus()
	ch, cancel := bus.Subscribe(7)
	defer cancel()

	if err := bus.Emit(7, "notification", "hello"); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	select {
	case env := <-ch:
		if env.Event != "notification" || env.Payload != "hello" {
			t.Errorf("got %+v", env)
		}
	default:
		t.Fatal("no event delivered")
	}
}

func TestEmitIsScopedToRecipient(t *testing.T) {
	bus := newTestBus()
	mine, cancelMine := bus.Subscribe(1)
	defer cancelMine()
	theirs, cancelTheirs := bus.Subscribe(2)
	defer cancelTheirs()

	if err := bus.Emit(1, "notification", nil); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}

	if len(mine) != 1 {
		t.Errorf("recipient 1 got %d events, want 1", len(mine))
	}
	if len(theirs) != 0 {
		t.Errorf("recipient 2 got %d events, want 0", len(theirs))
	}
}

func TestEmitDropsOnFullBuffer(t *testing.T) {
	bus := newTestBus()
	ch, cancel := bus.Subscribe(1)
	defer cancel()

	for i := 0; i < cap(ch)+5; i++ {
		if err := bus.Emit(1, "notification", i); err != nil {
			t.Fatalf("Emit failed: %v", err)
		}
	}
	if len(ch) != cap(ch) {
		t.Errorf("buffer holds %d, want full at %d", len(ch), cap(ch))
	}
}

func TestCancelRemovesSubscriber(t *testing.T) {
	bus := newTestBus()
	ch, cancel := bus.Subscribe(1)
	cancel()

	if err := bus.Emit(1, "notification", nil); err != nil {
		t.Fatalf("Emit failed: %v", err)
	}
	if len(ch) != 0 {
		t.Error("cancelled subscriber still received an event")
	}
}
