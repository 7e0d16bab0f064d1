package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/discipline-engine/discipline"
)

func newStubScheduler(fn ThresholdEvaluatorFunc) *ThresholdScheduler {
	return &ThresholdScheduler{
		Evaluate:      fn,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		CheckInterval: time.Hour,
		Enabled:       true,
	}
}

func TestThresholdScheduler_RunsOnStart(t *testing.T) {
	// GIVEN: A scheduler with a long interval
	// WHEN: Started and stopped
	// THEN: It evaluated exactly once, immediately

	var calls atomic.Int32
	ran := make(chan struct{}, 1)
	s := newStubScheduler(func(context.Context) ([]discipline.Incident, error) {
		calls.Add(1)
		ran <- struct{}{}
		return nil, nil
	})

	s.Start()
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not run on start")
	}
	s.Stop()

	assert.Equal(t, int32(1), calls.Load())
	assert.False(t, s.LastRun().IsZero())

	// Stop is idempotent.
	s.Stop()
}

func TestThresholdScheduler_StopDuringEvaluation(t *testing.T) {
	// GIVEN: A scheduler whose first evaluation is still running
	// WHEN: Stop is called mid-run
	// THEN: Stop waits for the run to finish and returns cleanly

	started := make(chan struct{})
	release := make(chan struct{})
	var finished atomic.Bool
	s := newStubScheduler(func(context.Context) ([]discipline.Incident, error) {
		close(started)
		<-release
		finished.Store(true)
		return nil, nil
	})

	s.Start()
	<-started

	stopped := make(chan struct{})
	go func() {
		s.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight evaluation finished")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
	assert.True(t, finished.Load())
}

func TestThresholdScheduler_RestartAfterStop(t *testing.T) {
	var calls atomic.Int32
	s := newStubScheduler(func(context.Context) ([]discipline.Incident, error) {
		calls.Add(1)
		return nil, nil
	})

	s.Start()
	s.Stop()
	s.Start()
	s.Stop()

	assert.Equal(t, int32(2), calls.Load())
}

func TestThresholdScheduler_Disabled(t *testing.T) {
	var calls atomic.Int32
	s := newStubScheduler(func(context.Context) ([]discipline.Incident, error) {
		calls.Add(1)
		return nil, nil
	})
	s.Enabled = false

	s.Start()
	s.Stop()
	assert.Zero(t, calls.Load())
	assert.True(t, s.LastRun().IsZero())
}

func TestThresholdScheduler_RunNow(t *testing.T) {
	want := errors.New("config x: configuration error")
	s := newStubScheduler(func(context.Context) ([]discipline.Incident, error) {
		return []discipline.Incident{{ID: "inc-1"}}, want
	})

	raised, err := s.RunNow(context.Background())
	require.ErrorIs(t, err, want)
	assert.Len(t, raised, 1, "partial results survive a failing config")
}

func TestThresholdScheduler_AgainstEngine(t *testing.T) {
	ts := newTestServer(t)
	ts.loadScenario(t, "department-incidents")

	s := NewThresholdScheduler(ts.handler.Engine, ts.handler.Logger)
	raised, err := s.RunNow(context.Background())
	require.NoError(t, err)
	assert.Empty(t, raised, "the period already has its incident")
}
