package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StoreConfig holds batching settings for the Postgres event store.
type StoreConfig struct {
	BatchSize     int
	FlushInterval time.Duration
	BufferSize    int
	InstanceID    string
}

// DefaultStoreConfig returns sensible defaults.
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		BufferSize:    1000,
	}
}

// Store persists lifecycle events to the realtime_events table in batches.
type Store struct {
	cfg    StoreConfig
	db     *pgxpool.Pool
	logger *slog.Logger

	input chan Event

	batchMu sync.Mutex
	batch   []Event

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	dropped int64
	written int64
	statsMu sync.Mutex
}

// NewStore creates a Store over a database pool.
func NewStore(cfg StoreConfig, db *pgxpool.Pool, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = DefaultStoreConfig().BatchSize
	}
	if cfg.FlushInterval == 0 {
		cfg.FlushInterval = DefaultStoreConfig().FlushInterval
	}
	if cfg.BufferSize == 0 {
		cfg.BufferSize = DefaultStoreConfig().BufferSize
	}
	return &Store{
		cfg:    cfg,
		db:     db,
		logger: logger,
		input:  make(chan Event, cfg.BufferSize),
		batch:  make([]Event, 0, cfg.BatchSize),
	}
}

// Record enqueues an event. A full buffer drops the event silently; the
// sink must never apply backpressure to the connection layer.
func (s *Store) Record(ev Event) {
	select {
	case s.input <- stamp(ev):
	default:
		s.statsMu.Lock()
		s.dropped++
		s.statsMu.Unlock()
	}
}

// Start begins consuming events and writing batches.
func (s *Store) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.consumeLoop()

	s.logger.Info("telemetry store started",
		"batch_size", s.cfg.BatchSize,
		"flush_interval", s.cfg.FlushInterval,
	)
	return nil
}

// Stop drains and flushes any buffered events.
func (s *Store) Stop(ctx context.Context) error {
	s.logger.Info("stopping telemetry store")

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("telemetry store stopped")
	case <-ctx.Done():
		s.logger.Warn("telemetry store stop timed out")
	}

	s.flush()
	return nil
}

// Written returns the count of events persisted so far.
func (s *Store) Written() int64 {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.written
}

// Dropped returns the count of events lost to a full buffer.
func (s *Store) Dropped() int64 {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	return s.dropped
}

func (s *Store) consumeLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case ev := <-s.input:
			s.batchMu.Lock()
			s.batch = append(s.batch, ev)
			full := len(s.batch) >= s.cfg.BatchSize
			s.batchMu.Unlock()

			if full {
				s.flush()
			}

		case <-ticker.C:
			s.flush()
		}
	}
}

// flush writes the current batch in a single round trip.
func (s *Store) flush() {
	s.batchMu.Lock()
	if len(s.batch) == 0 {
		s.batchMu.Unlock()
		return
	}
	rows := s.batch
	s.batch = make([]Event, 0, s.cfg.BatchSize)
	s.batchMu.Unlock()

	batch := &pgx.Batch{}
	for _, ev := range rows {
		batch.Queue(
			`INSERT INTO realtime_events (instance_id, recorded_at, kind, state, detail, code, attempt, delay_ms)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			s.cfg.InstanceID, ev.At, string(ev.Kind), ev.State, ev.Detail, ev.Code, ev.Attempt, ev.DelayMs,
		)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	br := s.db.SendBatch(ctx, batch)
	defer br.Close()

	for range rows {
		if _, err := br.Exec(); err != nil {
			s.logger.Warn("telemetry batch insert failed", "error", err, "batch_size", len(rows))
			return
		}
	}

	s.statsMu.Lock()
	s.written += int64(len(rows))
	s.statsMu.Unlock()

	s.logger.Debug("telemetry batch written", "rows", len(rows))
}
