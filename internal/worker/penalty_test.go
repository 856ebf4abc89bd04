package worker

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kikoba/kikoba/pkg/service/penalty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, now time.Time) (*penalty.Result, error) {
	args := m.Called(ctx, now)
	res, _ := args.Get(0).(*penalty.Result)
	return res, args.Error(1)
}

type countingRunner struct {
	calls atomic.Int32
}

func (r *countingRunner) Run(context.Context, time.Time) (*penalty.Result, error) {
	r.calls.Add(1)
	return &penalty.Result{RunID: uuid.New()}, nil
}

func TestNewPenaltyWorker_InvalidSchedule(t *testing.T) {
	_, err := NewPenaltyWorker(&mockRunner{}, "every now and then", nil)
	assert.ErrorContains(t, err, "invalid penalty schedule")
}

func TestRunOnce_PassesClockAndLogs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	fixed := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	runner := &mockRunner{}
	want := &penalty.Result{RunID: uuid.New(), Candidates: 2, Applied: 1, Skipped: 1}
	runner.On("Run", mock.Anything, fixed).Return(want, nil).Once()

	w, err := NewPenaltyWorker(runner, "@every 1h", logger)
	require.NoError(t, err)
	w.now = func() time.Time { return fixed }

	assert.Equal(t, want, w.RunOnce(context.Background()))
	runner.AssertExpectations(t)
	assert.Contains(t, buf.String(), "penalty run complete")
	assert.Contains(t, buf.String(), "applied=1")
}

func TestRunOnce_LogsFailure(t *testing.T) {
	var buf bytes.Buffer
	runner := &mockRunner{}
	runner.On("Run", mock.Anything, mock.Anything).Return(nil, errors.New("store down")).Once()

	w, err := NewPenaltyWorker(runner, "0 * * * *", slog.New(slog.NewTextHandler(&buf, nil)))
	require.NoError(t, err)

	assert.Nil(t, w.RunOnce(context.Background()))
	assert.Contains(t, buf.String(), "store down")
}

func TestStartStop_RunsOnSchedule(t *testing.T) {
	runner := &countingRunner{}
	w, err := NewPenaltyWorker(runner, "@every 1s", slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	require.NoError(t, err)

	w.Start()
	require.Eventually(t, func() bool { return runner.calls.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, w.Stop(ctx))
}
