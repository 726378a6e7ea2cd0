// AngelaMos | 2026
// dispatcher.go

package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BfdCampos/workplay/internal/identity"
)

const (
	defaultQueueSize = 64
	defaultTimeout   = 5 * time.Second
)

// Dispatcher queues account-linked events for a single background worker.
// Emitting never blocks: when the queue is full the event is dropped.
type Dispatcher struct {
	sink    Sink
	timeout time.Duration
	logger  *slog.Logger

	queue chan identity.AccountLinkedEvent
	done  chan struct{}

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

func NewDispatcher(sink Sink, queueSize int, timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		sink:    sink,
		timeout: timeout,
		logger:  logger,
		queue:   make(chan identity.AccountLinkedEvent, queueSize),
		done:    make(chan struct{}),
	}

	go d.run()

	return d
}

func (d *Dispatcher) EmitAccountLinked(_ context.Context, event identity.AccountLinkedEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("notification dropped after shutdown",
			"provider_account_id", event.ProviderAccountID)
		return
	}

	select {
	case d.queue <- event:
	default:
		d.logger.Warn("notification queue full, dropping event",
			"provider_account_id", event.ProviderAccountID,
			"user_id", event.UserID,
		)
	}
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for event := range d.queue {
		d.deliver(event)
	}
}

func (d *Dispatcher) deliver(event identity.AccountLinkedEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.sink.Notify(ctx, event); err != nil {
		d.logger.Error("newcomer notification failed",
			"provider_account_id", event.ProviderAccountID,
			"user_id", event.UserID,
			"error", err,
		)
	}
}

// Close stops intake and waits for queued events to be delivered, or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ identity.EventEmitter = (*Dispatcher)(nil)
