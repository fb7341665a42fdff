package service

import (
	"context"
	"log"
	"time"
)

// FalsePositiveReporter periodically runs the guard's analysis over the
// observation log and logs the tuning recommendation.  It runs as a
// background goroutine and is safe to stop via its context or the Stop
// method.
//
// An interval of 0 disables reporting entirely.
type FalsePositiveReporter struct {
	reconciler *Reconciler
	interval   time.Duration
	logger     *log.Logger
	cancel     context.CancelFunc
	done       chan struct{}
}

// ReporterConfig holds the parameters for NewFalsePositiveReporter.
type ReporterConfig struct {
	// IntervalHours is how often the analysis runs.  0 disables the
	// reporter.
	IntervalHours int
}

// NewFalsePositiveReporter creates a reporter but does not start it.
// Call Start to begin the background loop.
func NewFalsePositiveReporter(r *Reconciler, cfg ReporterConfig, logger *log.Logger) *FalsePositiveReporter {
	return &FalsePositiveReporter{
		reconciler: r,
		interval:   time.Duration(cfg.IntervalHours) * time.Hour,
		logger:     logger,
		done:       make(chan struct{}),
	}
}

// Start begins the background reporting loop.  It runs an immediate report
// on startup, then repeats on the configured interval.  The loop exits when
// ctx is cancelled or Stop is called.
func (p *FalsePositiveReporter) Start(ctx context.Context) {
	if p.interval <= 0 {
		p.logger.Printf("false-positive reporter disabled (interval=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)

	go p.loop(ctx)

	p.logger.Printf("false-positive reporter started (interval=%dh)", int(p.interval.Hours()))
}

// Stop signals the reporter to exit and waits for it to finish.
func (p *FalsePositiveReporter) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *FalsePositiveReporter) loop(ctx context.Context) {
	defer close(p.done)

	// Report immediately on startup so a restart doesn't hide a problem
	// for a whole interval.
	p.report(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.report(ctx)
		}
	}
}

func (p *FalsePositiveReporter) report(ctx context.Context) {
	stats, err := p.reconciler.FalsePositiveStats(ctx)
	if err != nil {
		p.logger.Printf("false-positive report error: %v", err)
		return
	}

	p.logger.Printf("false-positive report: total=%d epochs=%d problematic=%v — %s",
		stats.Total, len(stats.ByEpoch), stats.ProblematicEpochs, stats.Recommendation)
}
