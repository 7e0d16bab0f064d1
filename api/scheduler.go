/*
scheduler.go - Automated threshold evaluation scheduler

PURPOSE:
  Periodically evaluates every active incident config so threshold
  breaches are raised without anyone calling the evaluate endpoint.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Evaluates once immediately on start
  - Incidents are unique per (config, period), so overlapping runs and
    manual evaluations never raise duplicates

CONFIGURATION:
  - CheckInterval: How often to evaluate (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewThresholdScheduler(engine, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: EvaluateThresholds endpoint (manual evaluation)
  - discipline/threshold.go: ThresholdEvaluator
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/warp/discipline-engine/discipline"
)

// ThresholdEvaluatorFunc runs one evaluation pass.
type ThresholdEvaluatorFunc func(ctx context.Context) ([]discipline.Incident, error)

// ThresholdScheduler handles periodic threshold evaluation.
type ThresholdScheduler struct {
	Evaluate      ThresholdEvaluatorFunc
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker  *time.Ticker
	stop    chan struct{}
	running bool
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewThresholdScheduler creates a new scheduler around engine.
func NewThresholdScheduler(engine *discipline.Engine, logger *slog.Logger) *ThresholdScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ThresholdScheduler{
		Evaluate:      engine.EvaluateThresholds,
		Logger:        logger.With(slog.String("component", "scheduler")),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (ts *ThresholdScheduler) Start() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if !ts.Enabled {
		ts.Logger.Info("disabled, not starting")
		return
	}
	if ts.running {
		return
	}

	ts.running = true
	ts.ticker = time.NewTicker(ts.CheckInterval)
	ts.stop = make(chan struct{})
	ts.wg.Add(1)

	go ts.run(ts.ticker.C, ts.stop)

	ts.Logger.Info("started", slog.Duration("interval", ts.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight run.
func (ts *ThresholdScheduler) Stop() {
	ts.mu.Lock()
	if !ts.running {
		ts.mu.Unlock()
		return
	}
	ts.running = false
	ts.ticker.Stop()
	close(ts.stop)
	ts.mu.Unlock()

	ts.wg.Wait()
	ts.Logger.Info("stopped")
}

// RunNow evaluates immediately on the caller's goroutine.
func (ts *ThresholdScheduler) RunNow(ctx context.Context) ([]discipline.Incident, error) {
	return ts.evaluate(ctx)
}

// LastRun reports when the last evaluation started. Zero before the first run.
func (ts *ThresholdScheduler) LastRun() time.Time {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.lastRun
}

// run owns tick and stop for its lifetime; Stop never mutates them.
func (ts *ThresholdScheduler) run(tick <-chan time.Time, stop <-chan struct{}) {
	defer ts.wg.Done()

	// Run immediately on start
	ts.checkAndProcess()

	for {
		select {
		case <-tick:
			ts.checkAndProcess()
		case <-stop:
			return
		}
	}
}

func (ts *ThresholdScheduler) checkAndProcess() {
	ctx, cancel := context.WithTimeout(context.Background(), ts.CheckInterval)
	defer cancel()

	raised, err := ts.evaluate(ctx)
	if err != nil {
		// Other configs were still evaluated; err joins the failures.
		ts.Logger.Error("threshold evaluation failed", slog.Any("error", err), slog.Int("raised", len(raised)))
		return
	}
	if len(raised) > 0 {
		ts.Logger.Info("threshold evaluation completed", slog.Int("raised", len(raised)))
	}
}

func (ts *ThresholdScheduler) evaluate(ctx context.Context) ([]discipline.Incident, error) {
	ts.mu.Lock()
	ts.lastRun = time.Now()
	ts.mu.Unlock()
	return ts.Evaluate(ctx)
}
