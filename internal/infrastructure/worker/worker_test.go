package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeChecker struct {
	calls   atomic.Int32
	overdue int
	err     error
}

func (f *fakeChecker) SweepSla(ctx context.Context, limit int) (int, error) {
	f.calls.Add(1)
	return f.overdue, f.err
}

func TestSlaSweeper_SweepsImmediatelyAndPeriodically(t *testing.T) {
	checker := &fakeChecker{overdue: 2}
	s := NewSlaSweeper(SlaSweeperConfig{Interval: 10 * time.Millisecond, BatchSize: 50}, checker, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool { return s.Sweeps() >= 3 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	calls := checker.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, checker.calls.Load(), "no sweeps after Stop")

	overdue, err := s.LastResult()
	assert.Equal(t, 2, overdue)
	assert.NoError(t, err)
	assert.NoError(t, s.Stop())
}

func TestSlaSweeper_RecordsErrors(t *testing.T) {
	boom := errors.New("database is locked")
	s := NewSlaSweeper(SlaSweeperConfig{Interval: time.Hour}, &fakeChecker{err: boom}, zap.NewNop())

	require.NoError(t, s.Start(context.Background()))
	assert.Eventually(t, func() bool { return s.Sweeps() == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, s.Stop())

	_, err := s.LastResult()
	assert.ErrorIs(t, err, boom)
}

type fakeWorker struct {
	name     string
	startErr error
	stopErr  error
	started  bool
	stopped  bool
}

func (f *fakeWorker) Start(ctx context.Context) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = true
	return nil
}

func (f *fakeWorker) Stop() error {
	f.stopped = true
	return f.stopErr
}

func (f *fakeWorker) Name() string { return f.name }

func TestManager_Lifecycle(t *testing.T) {
	m := NewManager(zap.NewNop())
	ok := &fakeWorker{name: "ok"}
	broken := &fakeWorker{name: "broken", startErr: errors.New("no config")}
	m.Register(ok)
	m.Register(broken)
	assert.Equal(t, 2, m.Count())

	require.NoError(t, m.StartAll(context.Background()))
	assert.True(t, m.IsRunning())
	assert.True(t, ok.started)
	assert.Error(t, m.StartAll(context.Background()))

	require.NoError(t, m.StopAll())
	assert.False(t, m.IsRunning())
	assert.True(t, ok.stopped)
	assert.False(t, broken.stopped, "workers that never started are not stopped")

	assert.NoError(t, m.StopAll())
}

func TestManager_StopErrors(t *testing.T) {
	m := NewManager(zap.NewNop())
	boom := errors.New("stuck")
	m.Register(&fakeWorker{name: "a", stopErr: boom})
	m.Register(&fakeWorker{name: "b"})

	require.NoError(t, m.StartAll(context.Background()))
	err := m.StopAll()
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "a: stuck")
}
