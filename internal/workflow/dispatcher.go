package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/reseich/reseich-api/internal/logger"
)

// Dispatch outcomes reported to the Recorder.
const (
	OutcomeSent    = "sent"
	OutcomeFailed  = "failed"
	OutcomeDropped = "dropped"
	OutcomeSkipped = "skipped"
)

var ErrQueueFull = errors.New("workflow queue is full")
var ErrShuttingDown = errors.New("workflow dispatcher shutting down")

// Recorder observes dispatch outcomes, e.g. for metrics.
type Recorder interface {
	ObserveDispatch(form FormID, outcome string)
}

type DispatcherConfig struct {
	Workers    int
	BufferSize int
	Timeout    time.Duration
}

// Dispatcher delivers payloads on a bounded worker pool so request handlers never
// wait on the workflow engine.
type Dispatcher struct {
	sender   Sender
	recorder Recorder
	logger   *logger.Logger
	timeout  time.Duration

	jobs       chan job
	workerPool sync.WaitGroup
	shutdown   chan struct{}
	dropped    atomic.Int64

	// mu orders enqueues against Shutdown: no job lands after the workers drain.
	mu     sync.RWMutex
	closed bool
}

type job struct {
	ctx     context.Context
	payload Payload
}

func NewDispatcher(sender Sender, cfg DispatcherConfig, recorder Recorder, logger *logger.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize < 0 {
		cfg.BufferSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	d := &Dispatcher{
		sender:   sender,
		recorder: recorder,
		logger:   logger,
		timeout:  cfg.Timeout,
		jobs:     make(chan job, cfg.BufferSize),
		shutdown: make(chan struct{}),
	}

	for i := 0; i < cfg.Workers; i++ {
		d.workerPool.Add(1)
		go d.worker()
	}

	return d
}

// Dispatch queues payload for delivery. It never blocks: a full queue drops the
// payload and returns ErrQueueFull.
func (d *Dispatcher) Dispatch(ctx context.Context, payload Payload) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.logger.WithContext(ctx).Warn("workflow dispatcher is shutting down, dropping payload",
			slog.String("form_id", string(payload.Form())))
		d.observe(payload.Form(), OutcomeDropped)
		return ErrShuttingDown
	}

	// The request context is cancelled once the handler returns; keep its values only.
	j := job{ctx: context.WithoutCancel(ctx), payload: payload}

	select {
	case d.jobs <- j:
		return nil
	default:
		dropped := d.dropped.Add(1)
		d.logger.WithContext(ctx).Error("workflow queue FULL - payload DROPPED",
			slog.String("form_id", string(payload.Form())),
			slog.Int64("total_dropped", dropped),
			slog.Int("queue_size", cap(d.jobs)))
		d.observe(payload.Form(), OutcomeDropped)
		return ErrQueueFull
	}
}

// Dropped returns how many payloads were dropped because the queue was full.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Shutdown stops accepting payloads and waits until the queue is drained.
func (d *Dispatcher) Shutdown() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	d.mu.Unlock()

	close(d.shutdown)
	d.workerPool.Wait()
}

func (d *Dispatcher) worker() {
	defer d.workerPool.Done()

	for {
		select {
		case j := <-d.jobs:
			d.handle(j)
		case <-d.shutdown:
			// Deliver whatever is still queued before exiting.
			for {
				select {
				case j := <-d.jobs:
					d.handle(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) handle(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.timeout)
	defer cancel()

	form := j.payload.Form()
	log := d.logger.WithContext(ctx)

	err := d.sender.Send(ctx, j.payload)
	switch {
	case err == nil:
		log.Debug("workflow payload delivered", slog.String("form_id", string(form)))
		d.observe(form, OutcomeSent)
	case errors.Is(err, ErrNotConfigured):
		log.Warn("workflow webhook not configured, payload skipped", slog.String("form_id", string(form)))
		d.observe(form, OutcomeSkipped)
	default:
		log.Error("workflow payload delivery failed",
			slog.String("form_id", string(form)),
			slog.String("error", err.Error()))
		d.observe(form, OutcomeFailed)
	}
}

func (d *Dispatcher) observe(form FormID, outcome string) {
	if d.recorder != nil {
		d.recorder.ObserveDispatch(form, outcome)
	}
}
