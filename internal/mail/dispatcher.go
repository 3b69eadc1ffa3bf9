package mail

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/snippetshare/internal/metrics"
)

const defaultSendTimeout = 30 * time.Second

// Dispatcher sends mail from a fixed set of background workers fed by a
// bounded queue.
//
// WORKER POOL:
// The queue is a buffered channel. Enqueue never blocks: when the buffer is
// full the message is dropped with a warning, so a slow mail server can
// never stall an HTTP request. Stop closes the channel; the workers finish
// what is already queued and exit.
type Dispatcher struct {
	sender      Sender
	logger      *slog.Logger
	metrics     *metrics.Metrics
	queue       chan Message
	workers     int
	sendTimeout time.Duration

	mu        sync.RWMutex // guards closed against concurrent Enqueue/Stop
	closed    bool
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

func NewDispatcher(sender Sender, logger *slog.Logger, m *metrics.Metrics, workers, queueSize int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	return &Dispatcher{
		sender:      sender,
		logger:      logger,
		metrics:     m,
		queue:       make(chan Message, queueSize),
		workers:     workers,
		sendTimeout: defaultSendTimeout,
	}
}

// Start launches the workers. Calling it more than once has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		d.logger.Info("starting mail dispatcher",
			slog.Int("workers", d.workers),
			slog.Int("queueSize", cap(d.queue)),
		)
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.worker()
		}
	})
}

// Enqueue schedules msg for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.Warn("mail dispatcher stopped, dropping email", slog.String("subject", msg.Subject))
		d.metrics.Email("dropped")
		return false
	}

	select {
	case d.queue <- msg:
		d.metrics.SetMailQueueLength(len(d.queue))
		return true
	default:
		d.logger.Warn("mail queue full, dropping email",
			slog.String("subject", msg.Subject),
			slog.String("to", strings.Join(msg.To, ", ")),
		)
		d.metrics.Email("dropped")
		return false
	}
}

// Stop stops accepting mail and waits for the queue to drain or ctx to end.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("mail dispatcher stopped")
		return nil
	case <-ctx.Done():
		d.logger.Warn("mail dispatcher stop timed out", slog.Int("pending", len(d.queue)))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	// range ends once Stop closes the channel and the buffer is empty.
	for msg := range d.queue {
		d.metrics.SetMailQueueLength(len(d.queue))
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
	defer cancel()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.logger.Error("failed to send email",
			slog.String("subject", msg.Subject),
			slog.String("to", strings.Join(msg.To, ", ")),
			slog.String("error", err.Error()),
		)
		d.metrics.Email("failed")
		return
	}
	d.metrics.Email("sent")
}
