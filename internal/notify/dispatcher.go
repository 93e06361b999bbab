package notify

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultQueueSize = 256
	sendTimeout      = 30 * time.Second
)

// Dispatcher delivers notifications off the request path. Callers enqueue
// after their transaction commits; a failed or dropped send is logged and
// never surfaces to the caller.
type Dispatcher struct {
	notifier Notifier
	queue    chan func(context.Context) error

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewDispatcher starts a background worker draining the send queue.
func NewDispatcher(notifier Notifier) *Dispatcher {
	d := &Dispatcher{
		notifier: notifier,
		queue:    make(chan func(context.Context) error, defaultQueueSize),
		stopCh:   make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

// Notifier returns the underlying transport, for sends that must run
// synchronously.
func (d *Dispatcher) Notifier() Notifier {
	return d.notifier
}

// Enqueue schedules a send. If the queue is full the notification is
// dropped with a log line rather than blocking the caller.
func (d *Dispatcher) Enqueue(send func(context.Context) error) {
	select {
	case d.queue <- send:
	default:
		log.Warn().Msg("Notification queue full, dropping message")
	}
}

// Stop drains the queue and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}

func (d *Dispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case send := <-d.queue:
			d.deliver(send)

		case <-d.stopCh:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case send := <-d.queue:
					d.deliver(send)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) deliver(send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	if err := send(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to send notification")
	}
}
