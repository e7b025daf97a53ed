package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"crowdcounter/internal/dto"
	"crowdcounter/internal/logger"
	"crowdcounter/internal/model"
	"crowdcounter/internal/repository"
)

const (
	// DefaultPredictionLimit is the page size when no limit is requested.
	DefaultPredictionLimit = 20
	// MaxPredictionLimit caps the limit query parameter.
	MaxPredictionLimit = 500
)

// CycleHistory is the in-memory record of recent cycles.
type CycleHistory interface {
	Recent(n int) []model.CycleResult
	Latest() (model.CycleResult, bool)
}

// RecentPredictionsHandler returns the most recent cycles held in memory, newest first.
func RecentPredictionsHandler(history CycleHistory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := limitParam(r)

		recent := history.Recent(limit)
		cycles := make([]dto.CycleMessage, len(recent))
		for i, result := range recent {
			cycles[i] = dto.NewCycleMessage(result)
		}

		writeJSON(w, logger, dto.CyclesData{Cycles: cycles, Length: len(cycles), Limit: limit})
	}
}

// LatestPredictionHandler returns the newest cycle, or 404 before the first one.
func LatestPredictionHandler(history CycleHistory, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		latest, ok := history.Latest()
		if !ok {
			http.Error(w, "No predictions yet", http.StatusNotFound)
			return
		}
		writeJSON(w, logger, dto.NewCycleMessage(latest))
	}
}

// GetPredictionsFromDBHandler returns stored predictions with their per-camera
// details. With ?id= it returns that single prediction.
func GetPredictionsFromDBHandler(predictions repository.PredictionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if idParam := r.URL.Query().Get("id"); idParam != "" {
			id, err := strconv.ParseInt(idParam, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "Invalid id", http.StatusBadRequest)
				return
			}
			p, err := predictions.GetByID(id)
			if err != nil {
				logger.Warning("Prediction %d not found: %v", id, err)
				http.Error(w, "Prediction not found", http.StatusNotFound)
				return
			}
			writeJSON(w, logger, p)
			return
		}

		limit := limitParam(r)
		list, err := predictions.GetRecent(limit)
		if err != nil {
			logger.Error("Error querying predictions from database: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if list == nil {
			list = []model.Prediction{}
		}

		writeJSON(w, logger, dto.PredictionsData{Predictions: list, Length: len(list), Limit: limit, Source: "database"})
	}
}

func limitParam(r *http.Request) int {
	limit := atoiDefault(r.URL.Query().Get("limit"), DefaultPredictionLimit)
	if limit > MaxPredictionLimit {
		limit = MaxPredictionLimit
	}
	return limit
}

func writeJSON(w http.ResponseWriter, logger *logger.Logger, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Error encoding JSON: %v", err)
	}
}

// atoiDefault converts s to a positive int or returns def.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}
