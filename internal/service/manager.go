package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"crowdcounter/internal/dto"
	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/model"
	"crowdcounter/internal/service/ai"
	"crowdcounter/internal/service/history"
)

// CycleRunner produces one CycleResult from the current frames.
type CycleRunner interface {
	RunCycle(ctx context.Context, source ai.FrameSource, queue ai.JobQueue) (model.CycleResult, error)
}

// SaveQueue is the save pool as seen by the manager.
type SaveQueue interface {
	ai.JobQueue
	Wait()
}

// Recorder persists a finished cycle.
type Recorder interface {
	RecordPrediction(areaID int64, perCamera map[string]int, total int, ts time.Time) (int64, error)
}

// Broadcaster pushes a message to live viewers.
type Broadcaster interface {
	Broadcast(message []byte) bool
}

// Dependencies are the collaborators a Manager drives each cycle. History
// and Hub are optional.
type Dependencies struct {
	Orchestrator CycleRunner
	Source       ai.FrameSource
	Pool         SaveQueue
	Recorder     Recorder
	History      *history.Ring
	Hub          Broadcaster
}

// Manager runs capture/infer cycles at a fixed cadence.
type Manager struct {
	deps     Dependencies
	areaID   int64
	interval time.Duration
	logger   *logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewManager(deps Dependencies, areaID int64, interval time.Duration, logger *logger.Logger, metrics *metrics.Metrics) *Manager {
	return &Manager{
		deps:     deps,
		areaID:   areaID,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
		now:      time.Now,
	}
}

// SleepDuration is the wait before the next cycle so cycles start every
// interval; it is zero when the cycle overran.
func SleepDuration(interval, elapsed time.Duration) time.Duration {
	if elapsed >= interval {
		return 0
	}
	return interval - elapsed
}

// Run loops until ctx is cancelled. Cycle errors are logged and the loop
// carries on.
func (m *Manager) Run(ctx context.Context) {
	m.logger.Info("🎬 Manager started - one cycle every %s", m.interval)

	for {
		if ctx.Err() != nil {
			break
		}

		start := m.now()
		m.logger.Info("Capturing and predicting...")
		if _, err := m.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("Cycle failed: %v", err)
		}
		elapsed := m.now().Sub(start)

		wait := SleepDuration(m.interval, elapsed)
		if wait == 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
	}

	m.logger.Info("🛑 Manager stopped")
}

// RunOnce runs a single cycle: predict, record, wait for this cycle's save
// jobs, publish. A failed record is logged and the result is still published.
func (m *Manager) RunOnce(ctx context.Context) (model.CycleResult, error) {
	start := m.now()

	result, err := m.deps.Orchestrator.RunCycle(ctx, m.deps.Source, m.deps.Pool)
	if err != nil {
		// a cycle cut short by shutdown is not a failure
		if m.metrics != nil && !errors.Is(err, context.Canceled) {
			m.metrics.CycleErrors.Add(1)
		}
		return model.CycleResult{}, err
	}

	id, err := m.deps.Recorder.RecordPrediction(m.areaID, result.PerCamera, result.Total, result.Timestamp)
	if err != nil {
		m.logger.Error("Error saving predictions to database: %v", err)
		if m.metrics != nil {
			m.metrics.RecordErrors.Add(1)
		}
	} else {
		result.PredictionID = id
	}

	m.deps.Pool.Wait()

	elapsed := m.now().Sub(start)
	m.publish(result, elapsed)

	m.logger.Info("Prediction took %.2f seconds. Total %d across %d cameras", elapsed.Seconds(), result.Total, len(result.PerCamera))
	return result, nil
}

func (m *Manager) publish(result model.CycleResult, elapsed time.Duration) {
	if m.deps.History != nil {
		m.deps.History.Push(result)
	}

	if m.metrics != nil {
		m.metrics.ObserveCycle(result.PerCamera, result.Total, elapsed)
	}

	if m.deps.Hub != nil {
		msg, err := json.Marshal(dto.NewCycleMessage(result))
		if err != nil {
			m.logger.Error("Failed to encode cycle %s: %v", result.ID, err)
			return
		}
		m.deps.Hub.Broadcast(msg)
	}
}

// Interval returns the cycle cadence.
func (m *Manager) Interval() time.Duration {
	return m.interval
}
