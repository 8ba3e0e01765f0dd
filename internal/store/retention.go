package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/divviup/divviup-console/internal/logging"
)

// DefaultPruneInterval is how often a Pruner runs when no interval is given.
const DefaultPruneInterval = time.Hour

// Pruner periodically forgets notified jobs older than the retention
// period. A job that is still failed when it is forgotten is reported
// again.
type Pruner struct {
	store     Store
	retention time.Duration
	interval  time.Duration
	logger    *logging.Logger
	now       func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// PrunerOptions contains optional Pruner configuration.
type PrunerOptions struct {
	Interval time.Duration
	Logger   *logging.Logger
}

// NewPruner creates a pruner for s. retention must be positive.
func NewPruner(s Store, retention time.Duration, opts *PrunerOptions) *Pruner {
	p := &Pruner{
		store:     s,
		retention: retention,
		interval:  DefaultPruneInterval,
		logger:    logging.Nop(),
		now:       time.Now,
	}
	if opts != nil {
		if opts.Interval > 0 {
			p.interval = opts.Interval
		}
		if opts.Logger != nil {
			p.logger = opts.Logger
		}
	}
	return p
}

// Start prunes once and then every interval until ctx is done or the
// pruner is shut down.
func (p *Pruner) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return fmt.Errorf("pruner is already running")
	}
	if p.retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	p.running = true

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	return nil
}

func (p *Pruner) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if _, err := p.PruneOnce(); err != nil {
			p.logger.Warn("failed to prune notified jobs", "error", err.Error())
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// PruneOnce forgets jobs notified more than the retention period ago.
func (p *Pruner) PruneOnce() (int64, error) {
	start := p.now()
	n, err := p.store.PruneNotified(start.Add(-p.retention))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("pruned notified jobs",
			"deleted", n,
			"retention", p.retention.String(),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return n, nil
}

// Shutdown stops the pruner and waits for a running prune, or for ctx.
func (p *Pruner) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.cancel()
	done := p.done
	p.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("timeout waiting for pruner to stop: %w", ctx.Err())
	}
}
