package notification

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/giftree/giftree/pkg/observability"
)

type capturingPublisher struct {
	mu  sync.Mutex
	got []Event
}

func (p *capturingPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, ev)
	return nil
}

func (p *capturingPublisher) events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.got...)
}

func TestEmitter_PublishesQueuedEvents(t *testing.T) {
	pub := &capturingPublisher{}
	e := NewEmitter(pub, observability.NewLogger("test"), 2, 16)

	for i := 0; i < 5; i++ {
		e.Emit(Event{FCMToken: "tok", Title: "t", Body: "b", UserID: i})
	}
	e.Close()

	if got := pub.events(); len(got) != 5 {
		t.Fatalf("expected 5 published events, got %d", len(got))
	}
}

func TestEmitter_InlineDispatchWhenSaturated(t *testing.T) {
	started := make(chan struct{})
	gate := make(chan struct{})

	pub := &capturingPublisher{}
	blocking := &MockPublisher{PublishFunc: func(ctx context.Context, ev Event) error {
		if ev.Title == "first" {
			close(started)
			<-gate
		}
		return pub.Publish(ctx, ev)
	}}

	e := NewEmitter(blocking, observability.NewLogger("test"), 1, 1)

	// The single worker blocks on the first event, the second fills the
	// backlog, so the third must run inline on the calling goroutine.
	e.Emit(Event{Title: "first"})
	<-started
	e.Emit(Event{Title: "second"})
	e.Emit(Event{Title: "third"})

	found := false
	for _, ev := range pub.events() {
		if ev.Title == "third" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected the overflow event to be dispatched inline")
	}

	close(gate)
	e.Close()
	if got := pub.events(); len(got) != 3 {
		t.Fatalf("expected all 3 events published after drain, got %d", len(got))
	}
}

func TestEmitter_PublishFailureDoesNotStopWorkers(t *testing.T) {
	pub := &capturingPublisher{}
	flaky := &MockPublisher{PublishFunc: func(ctx context.Context, ev Event) error {
		if ev.Title == "bad" {
			return errors.New("broker unavailable")
		}
		return pub.Publish(ctx, ev)
	}}

	e := NewEmitter(flaky, observability.NewLogger("test"), 1, 4)
	e.Emit(Event{Title: "bad"})
	e.Emit(Event{Title: "good"})
	e.Close()

	got := pub.events()
	if len(got) != 1 || got[0].Title != "good" {
		t.Fatalf("expected the event after the failure to be published, got %+v", got)
	}
}

func TestEmitter_EmitAfterCloseDispatchesInline(t *testing.T) {
	pub := &capturingPublisher{}
	e := NewEmitter(pub, observability.NewLogger("test"), 1, 1)
	e.Close()

	e.Emit(Event{Title: "late"})
	if got := pub.events(); len(got) != 1 || got[0].Title != "late" {
		t.Fatalf("expected inline dispatch after close, got %+v", got)
	}
}
