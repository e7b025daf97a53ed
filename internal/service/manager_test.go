package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/model"
	"crowdcounter/internal/service/ai"
	"crowdcounter/internal/service/history"
	"crowdcounter/internal/service/storage"
)

type stubOrchestrator struct {
	perCamera map[string]int
	err       error
	calls     atomic.Int64
	delay     time.Duration
}

func (o *stubOrchestrator) RunCycle(ctx context.Context, source ai.FrameSource, queue ai.JobQueue) (model.CycleResult, error) {
	o.calls.Add(1)
	if o.delay > 0 {
		time.Sleep(o.delay)
	}
	if o.err != nil {
		return model.CycleResult{}, o.err
	}
	return model.NewCycleResult("cycle-1", time.Now(), o.perCamera), nil
}

type stubPool struct {
	waits atomic.Int64
}

func (p *stubPool) Enqueue(job storage.SaveJob) error {
	job.Release()
	return nil
}

func (p *stubPool) Wait() { p.waits.Add(1) }

type stubRecorder struct {
	mu     sync.Mutex
	err    error
	totals []int
}

func (r *stubRecorder) RecordPrediction(areaID int64, perCamera map[string]int, total int, ts time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.totals = append(r.totals, total)
	return int64(len(r.totals)), nil
}

type stubHub struct {
	mu       sync.Mutex
	messages [][]byte
}

func (h *stubHub) Broadcast(message []byte) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, message)
	return true
}

func newTestManager(orch *stubOrchestrator, rec *stubRecorder, hub *stubHub, interval time.Duration) (*Manager, *stubPool, *history.Ring, *metrics.Metrics) {
	pool := &stubPool{}
	ring := history.NewRing(10)
	m := metrics.New()
	deps := Dependencies{
		Orchestrator: orch,
		Pool:         pool,
		Recorder:     rec,
		History:      ring,
		Hub:          hub,
	}
	return NewManager(deps, 1, interval, logger.Discard(), m), pool, ring, m
}

// ========================================
// Scheduling tests
// ========================================

func TestSleepDuration(t *testing.T) {
	tests := []struct {
		interval, elapsed, expected time.Duration
	}{
		{120 * time.Second, 30 * time.Second, 90 * time.Second},
		{120 * time.Second, 120 * time.Second, 0},
		{120 * time.Second, 150 * time.Second, 0},
		{time.Second, 0, time.Second},
	}

	for _, tt := range tests {
		if got := SleepDuration(tt.interval, tt.elapsed); got != tt.expected {
			t.Errorf("SleepDuration(%v, %v) = %v, expected %v", tt.interval, tt.elapsed, got, tt.expected)
		}
	}
}

// ========================================
// Cycle tests
// ========================================

func TestRunOnce_RecordsAndPublishes(t *testing.T) {
	orch := &stubOrchestrator{perCamera: map[string]int{"camA": 5, "camB": 12}}
	rec := &stubRecorder{}
	hub := &stubHub{}
	mgr, pool, ring, m := newTestManager(orch, rec, hub, time.Minute)

	result, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}

	if result.Total != 17 {
		t.Errorf("Expected total 17, got %d", result.Total)
	}
	if result.PredictionID != 1 {
		t.Errorf("Expected prediction ID 1, got %d", result.PredictionID)
	}
	if len(rec.totals) != 1 || rec.totals[0] != 17 {
		t.Errorf("Expected recorded total 17, got %v", rec.totals)
	}
	if pool.waits.Load() != 1 {
		t.Errorf("Expected one pool flush, got %d", pool.waits.Load())
	}
	if ring.Len() != 1 {
		t.Errorf("Expected result in history, got %d", ring.Len())
	}
	if m.LastTotal.Load() != 17 {
		t.Errorf("Expected last total metric 17, got %d", m.LastTotal.Load())
	}

	if len(hub.messages) != 1 {
		t.Fatalf("Expected one broadcast, got %d", len(hub.messages))
	}
	var msg map[string]interface{}
	if err := json.Unmarshal(hub.messages[0], &msg); err != nil {
		t.Fatalf("Broadcast is not JSON: %v", err)
	}
	if msg["total"].(float64) != 17 {
		t.Errorf("Expected total 17 in message, got %v", msg["total"])
	}
}

func TestRunOnce_RecordFailureStillPublishes(t *testing.T) {
	orch := &stubOrchestrator{perCamera: map[string]int{"cam": 3}}
	rec := &stubRecorder{err: errors.New("database locked")}
	hub := &stubHub{}
	mgr, pool, ring, m := newTestManager(orch, rec, hub, time.Minute)

	result, err := mgr.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce failed: %v", err)
	}
	if result.PredictionID != 0 {
		t.Errorf("Expected no prediction ID, got %d", result.PredictionID)
	}
	if m.RecordErrors.Load() != 1 {
		t.Errorf("Expected record error metric 1, got %d", m.RecordErrors.Load())
	}
	if pool.waits.Load() != 1 || ring.Len() != 1 || len(hub.messages) != 1 {
		t.Error("Expected cycle to be flushed and published despite the record failure")
	}
}

func TestRunOnce_CycleError(t *testing.T) {
	orch := &stubOrchestrator{err: ai.ErrBatchMismatch}
	rec := &stubRecorder{}
	mgr, _, ring, m := newTestManager(orch, rec, &stubHub{}, time.Minute)

	if _, err := mgr.RunOnce(context.Background()); !errors.Is(err, ai.ErrBatchMismatch) {
		t.Errorf("Expected ErrBatchMismatch, got %v", err)
	}
	if len(rec.totals) != 0 {
		t.Error("Expected nothing recorded")
	}
	if ring.Len() != 0 {
		t.Error("Expected nothing published")
	}
	if m.CycleErrors.Load() != 1 {
		t.Errorf("Expected cycle error metric 1, got %d", m.CycleErrors.Load())
	}
}

func TestRunOnce_CancelledCycleIsNotAnError(t *testing.T) {
	orch := &stubOrchestrator{err: fmt.Errorf("prediction interrupted: %w", context.Canceled)}
	rec := &stubRecorder{}
	mgr, pool, ring, m := newTestManager(orch, rec, &stubHub{}, time.Minute)

	if _, err := mgr.RunOnce(context.Background()); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if m.CycleErrors.Load() != 0 {
		t.Errorf("Expected no cycle error for a cancelled cycle, got %d", m.CycleErrors.Load())
	}
	if len(rec.totals) != 0 || pool.waits.Load() != 0 || ring.Len() != 0 {
		t.Error("Expected a cancelled cycle to be neither recorded nor published")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	orch := &stubOrchestrator{perCamera: map[string]int{"cam": 1}}
	mgr, _, _, _ := newTestManager(orch, &stubRecorder{}, &stubHub{}, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		mgr.Run(ctx)
		close(done)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for orch.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected Run to stop during the inter-cycle sleep")
	}
	if orch.calls.Load() != 1 {
		t.Errorf("Expected a single cycle, got %d", orch.calls.Load())
	}
}

func TestRun_FixedCadence(t *testing.T) {
	orch := &stubOrchestrator{perCamera: map[string]int{"cam": 1}, delay: 10 * time.Millisecond}
	mgr, _, _, _ := newTestManager(orch, &stubRecorder{}, &stubHub{}, 50*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 230*time.Millisecond)
	defer cancel()
	mgr.Run(ctx)

	calls := orch.calls.Load()
	if calls < 3 || calls > 6 {
		t.Errorf("Expected about 5 cycles in 230ms at 50ms cadence, got %d", calls)
	}
}
