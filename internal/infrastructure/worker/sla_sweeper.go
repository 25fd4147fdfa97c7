package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SlaChecker is the engine operation the sweeper pulls
type SlaChecker interface {
	SweepSla(ctx context.Context, limit int) (int, error)
}

// SlaSweeperConfig holds configuration for the SLA sweeper
type SlaSweeperConfig struct {
	Interval  time.Duration
	BatchSize int
}

// SlaSweeper periodically asks the approval engine to check every in-review workflow.
// Escalations happen inside the engine; the sweeper only supplies the pulse.
type SlaSweeper struct {
	config  SlaSweeperConfig
	checker SlaChecker
	logger  *zap.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	sweeps   int
	lastErr  error
	lastSeen int
}

// NewSlaSweeper creates a new sweeper
func NewSlaSweeper(config SlaSweeperConfig, checker SlaChecker, logger *zap.Logger) *SlaSweeper {
	if config.Interval <= 0 {
		config.Interval = 5 * time.Minute
	}
	return &SlaSweeper{config: config, checker: checker, logger: logger}
}

// Name returns the worker name
func (s *SlaSweeper) Name() string {
	return "SlaSweeper"
}

// Start launches the sweep loop. The first sweep runs immediately.
func (s *SlaSweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("sla sweeper already running")
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.running = true

	s.logger.Info("SlaSweeper started",
		zap.Duration("interval", s.config.Interval),
		zap.Int("batch_size", s.config.BatchSize))

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the loop and waits for an in-flight sweep to finish
func (s *SlaSweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()

	<-done
	s.logger.Info("SlaSweeper stopped", zap.Int("sweeps", s.Sweeps()))
	return nil
}

// Sweeps returns how many sweeps have completed
func (s *SlaSweeper) Sweeps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sweeps
}

// LastResult returns the overdue count and error of the latest sweep
func (s *SlaSweeper) LastResult() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen, s.lastErr
}

func (s *SlaSweeper) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		s.sweep(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *SlaSweeper) sweep(ctx context.Context) {
	overdue, err := s.checker.SweepSla(ctx, s.config.BatchSize)

	s.mu.Lock()
	s.sweeps++
	s.lastSeen, s.lastErr = overdue, err
	s.mu.Unlock()

	if err != nil && ctx.Err() == nil {
		s.logger.Error("SLA sweep failed", zap.Error(err))
		return
	}
	if overdue > 0 {
		s.logger.Warn("Overdue approval steps found", zap.Int("overdue", overdue))
	}
}
