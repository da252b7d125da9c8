package alarm

import (
	"context"
	"fmt"
	"sync"

	apperrors "github.com/gmsas95/medremind/internal/errors"
	"go.uber.org/zap"
)

// Dispatcher is the single UI-affinity context: every alarm presentation
// runs on its one goroutine, in submission order, never concurrently.
type Dispatcher struct {
	logger *zap.Logger
	jobs   chan func(context.Context)

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewDispatcher creates a dispatcher with a bounded queue
func NewDispatcher(queueSize int, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 16
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		logger: logger,
		jobs:   make(chan func(context.Context), queueSize),
	}
}

// Start launches the dispatch loop; a second Start is a no-op
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}
	ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.running = true
	go d.loop(ctx, d.done)
}

// Stop ends the loop. Queued jobs that have not started are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	cancel, done := d.cancel, d.done
	d.mu.Unlock()

	cancel()
	<-done

	if n := d.drain(); n > 0 {
		d.logger.Warn("Dropped queued alarms on stop", zap.Int("count", n))
	}
}

// drain empties the queue so a later Start does not present stale alarms
func (d *Dispatcher) drain() int {
	n := 0
	for {
		select {
		case <-d.jobs:
			n++
		default:
			return n
		}
	}
}

// Submit queues a job without blocking the caller
func (d *Dispatcher) Submit(job func(context.Context)) error {
	select {
	case d.jobs <- job:
		return nil
	default:
		return apperrors.ErrAlarmQueueFull
	}
}

func (d *Dispatcher) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.jobs:
			if ctx.Err() != nil {
				return
			}
			d.run(ctx, job)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, job func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Panic in alarm presentation", zap.String("recover", fmt.Sprint(r)))
		}
	}()
	job(ctx)
}
