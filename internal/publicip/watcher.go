package publicip

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"nodectl/internal/logger"
	"nodectl/internal/storage/models"
)

// Recorder persists lookups.
type Recorder interface {
	RecordIPLookup(ctx context.Context, lookup *models.IPLookup) error
}

// ChangeFunc is called when the resolved address differs from the previous one.
type ChangeFunc func(previous, current string)

// Watcher re-resolves the public IP on a fixed interval
type Watcher struct {
	scheduler gocron.Scheduler
	resolver  *Resolver
	recorder  Recorder
	interval  time.Duration
	onChange  ChangeFunc

	mu      sync.Mutex
	last    string
	running bool
}

// NewWatcher creates a new public IP watcher. recorder may be nil.
func NewWatcher(resolver *Resolver, recorder Recorder, interval time.Duration, onChange ChangeFunc) (*Watcher, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("watch interval must be positive, got %s", interval)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Watcher{
		scheduler: scheduler,
		resolver:  resolver,
		recorder:  recorder,
		interval:  interval,
		onChange:  onChange,
	}, nil
}

// Start schedules the periodic lookup and runs one immediately.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher is already running")
	}

	_, err := w.scheduler.NewJob(
		gocron.DurationJob(w.interval),
		gocron.NewTask(func() {
			w.Check(ctx)
		}),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to create lookup job: %w", err)
	}

	w.scheduler.Start()
	w.running = true
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return fmt.Errorf("watcher is not running")
	}

	if err := w.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	w.running = false
	return nil
}

// Last returns the most recently resolved address.
func (w *Watcher) Last() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Check resolves once, records the lookup and reports a change.
func (w *Watcher) Check(ctx context.Context) *models.IPLookup {
	started := time.Now()
	answer, err := w.resolver.ResolveDetailed(ctx)
	if err != nil {
		logger.Warn("public ip lookup failed: %v", err)
	}
	lookup := NewLookup(answer, err, started)

	// Record to database (best-effort)
	if w.recorder != nil {
		if err := w.recorder.RecordIPLookup(ctx, lookup); err != nil {
			logger.Warn("failed to record ip lookup: %v", err)
		}
	}

	if !lookup.Success {
		return lookup
	}

	w.mu.Lock()
	previous := w.last
	w.last = lookup.Address
	w.mu.Unlock()

	if previous != lookup.Address {
		logger.With(map[string]any{"service": lookup.Service}).
			Infof("public ip changed: %q -> %q", previous, lookup.Address)
		if w.onChange != nil {
			w.onChange(previous, lookup.Address)
		}
	} else {
		logger.Debug("public ip unchanged: %s", lookup.Address)
	}
	return lookup
}

// NewLookup converts the outcome of a resolution started at into a record.
func NewLookup(answer *Answer, err error, at time.Time) *models.IPLookup {
	lookup := &models.IPLookup{ResolvedAt: at}
	if err != nil || answer == nil {
		if err != nil {
			lookup.ErrorMessage = err.Error()
		}
		return lookup
	}
	lookup.Success = true
	lookup.Address = answer.IP
	lookup.Service = answer.Service
	lookup.ElapsedMS = answer.Elapsed.Milliseconds()
	return lookup
}
