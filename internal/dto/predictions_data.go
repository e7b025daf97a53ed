// PredictionsData is the response payload for prediction listings.
package dto

import "crowdcounter/internal/model"

type PredictionsData struct {
	Predictions []model.Prediction `json:"predictions"`
	Length      int                `json:"length"`
	Limit       int                `json:"limit"`
	Source      string             `json:"source"`
}

// CyclesData lists cycle results held in memory, newest first.
type CyclesData struct {
	Cycles []CycleMessage `json:"cycles"`
	Length int            `json:"length"`
	Limit  int            `json:"limit"`
}
