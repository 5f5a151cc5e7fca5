package notification

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/giftree/giftree/pkg/observability"
)

// Publisher hands a serialized event to the broker.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Emitter dispatches notification events on a dedicated bounded worker pool.
// It is meant to be driven from Tx.AfterCommit hooks: by the time Emit runs
// the originating transaction has committed, so a publish failure is logged
// and counted but never surfaced back to the caller.
//
// Publishing is I/O bound, so the pool is sized as a small multiple of the
// available cores. When the backlog is full, Emit degrades to synchronous
// dispatch on the calling goroutine rather than dropping the event.
type Emitter struct {
	publisher Publisher
	logger    *observability.Logger
	timeout   time.Duration

	tasks  chan Event
	wg     sync.WaitGroup
	closed atomic.Bool
}

func NewEmitter(publisher Publisher, logger *observability.Logger, workers, backlog int) *Emitter {
	if workers <= 0 {
		workers = 3 * runtime.GOMAXPROCS(0)
	}
	if backlog <= 0 {
		backlog = 100
	}

	e := &Emitter{
		publisher: publisher,
		logger:    logger,
		timeout:   10 * time.Second,
		tasks:     make(chan Event, backlog),
	}

	e.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer e.wg.Done()
			for ev := range e.tasks {
				e.dispatch(ev)
			}
		}()
	}
	return e
}

// Emit queues the event for asynchronous publishing. Never blocks the commit
// path for long: a saturated backlog runs the dispatch inline.
func (e *Emitter) Emit(ev Event) {
	if e.closed.Load() {
		e.dispatch(ev)
		return
	}
	select {
	case e.tasks <- ev:
	default:
		EmitterInlineDispatches.Inc()
		e.dispatch(ev)
	}
}

func (e *Emitter) dispatch(ev Event) {
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	if err := e.publisher.Publish(ctx, ev); err != nil {
		EventPublishFailures.Inc()
		e.logger.Error("failed to publish notification event",
			"type", ev.TypeCode, "user_id", ev.UserID, "error", err)
		return
	}
	EventsPublished.Inc()
}

// Close drains the backlog and stops the workers. Emit calls racing Close
// fall back to inline dispatch.
func (e *Emitter) Close() {
	if e.closed.Swap(true) {
		return
	}
	close(e.tasks)
	e.wg.Wait()
}
