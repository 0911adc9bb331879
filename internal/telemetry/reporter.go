package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// StatsFunc produces a point-in-time stats event.
type StatsFunc func() Event

// Reporter periodically snapshots manager statistics into the sink.
type Reporter struct {
	interval time.Duration
	statsFn  StatsFunc
	sink     Sink
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewReporter creates a Reporter.
func NewReporter(interval time.Duration, statsFn StatsFunc, sink Sink, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{
		interval: interval,
		statsFn:  statsFn,
		sink:     sink,
		logger:   logger,
	}
}

// Start begins the reporting loop.
func (r *Reporter) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("stats reporter started", "interval", r.interval)
	return nil
}

// Stop halts the reporting loop.
func (r *Reporter) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Reporter) run() {
	defer r.wg.Done()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			ev := r.statsFn()
			ev.Kind = KindStats
			r.sink.Record(stamp(ev))
		}
	}
}
