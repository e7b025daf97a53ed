package model

import "time"

// CycleResult holds the counts produced by one capture/infer cycle.
type CycleResult struct {
	ID           string
	Timestamp    time.Time
	PerCamera    map[string]int
	Total        int
	PredictionID int64
}

// NewCycleResult builds a result whose Total is the sum of perCamera.
func NewCycleResult(id string, ts time.Time, perCamera map[string]int) CycleResult {
	if perCamera == nil {
		perCamera = make(map[string]int)
	}
	result := CycleResult{
		ID:        id,
		Timestamp: ts,
		PerCamera: perCamera,
	}
	result.Recompute()
	return result
}

// Recompute sets Total from the current PerCamera entries.
func (r *CycleResult) Recompute() {
	total := 0
	for _, count := range r.PerCamera {
		total += count
	}
	r.Total = total
}
