package notify

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	obsmetrics "github.com/smallbiznis/cliprail/internal/observability/metrics"
	"go.uber.org/zap"
)

type delivery struct {
	userID  snowflake.ID
	event   Event
	payload map[string]any
}

// Async queues events for a single background worker so request and cycle
// paths never wait on delivery.
type Async struct {
	sender  Sender
	log     *zap.Logger
	metrics *obsmetrics.Metrics
	timeout time.Duration

	queue chan delivery
	done  chan struct{}
	wg    sync.WaitGroup

	mu      sync.RWMutex
	stopped bool
}

func NewAsync(sender Sender, log *zap.Logger, queueSize int, timeout time.Duration, metrics *obsmetrics.Metrics) *Async {
	if queueSize <= 0 {
		queueSize = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Async{
		sender:  sender,
		log:     log.Named("notify"),
		metrics: metrics,
		timeout: timeout,
		queue:   make(chan delivery, queueSize),
		done:    make(chan struct{}),
	}
}

func (a *Async) Start() {
	a.wg.Add(1)
	go a.run()
}

// Stop drains queued events and waits for the worker, bounded by ctx.
func (a *Async) Stop(ctx context.Context) error {
	a.mu.Lock()
	if a.stopped {
		a.mu.Unlock()
		return nil
	}
	a.stopped = true
	close(a.done)
	a.mu.Unlock()

	finished := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Async) Notify(ctx context.Context, userID snowflake.ID, event Event, payload map[string]any) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.stopped {
		a.log.Warn("notification dropped after shutdown", zap.String("event_type", string(event)))
		return
	}
	select {
	case a.queue <- delivery{userID: userID, event: event, payload: payload}:
	default:
		a.metrics.RecordNotification(ctx, string(event), "dropped")
		a.log.Warn("notification queue full, dropping event",
			zap.String("event_type", string(event)),
			zap.String("user_id", userID.String()),
		)
	}
}

func (a *Async) run() {
	defer a.wg.Done()
	for {
		select {
		case d := <-a.queue:
			a.deliver(d)
		case <-a.done:
			for {
				select {
				case d := <-a.queue:
					a.deliver(d)
				default:
					return
				}
			}
		}
	}
}

func (a *Async) deliver(d delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	if err := a.sender.Send(ctx, d.userID, d.event, d.payload); err != nil {
		a.metrics.RecordNotification(ctx, string(d.event), "error")
		a.log.Warn("notification delivery failed",
			zap.String("sender", a.sender.Name()),
			zap.String("event_type", string(d.event)),
			zap.String("user_id", d.userID.String()),
			zap.Error(err),
		)
		return
	}
	a.metrics.RecordNotification(ctx, string(d.event), "sent")
}
