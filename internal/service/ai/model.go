package ai

import (
	"errors"
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

var (
	// ErrEmptyFrame is returned when a frame has no pixels.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrBatchMismatch is returned when a batched model call returns a different
	// number of densities than inputs.
	ErrBatchMismatch = errors.New("batch size mismatch")
)

// BatchInputSize is the fixed model input (width x height) used for batched inference.
var BatchInputSize = image.Pt(448, 488)

var (
	normMean = [3]float32{0.485, 0.456, 0.406}
	normStd  = [3]float32{0.229, 0.224, 0.225}
)

// Model is the density estimation network. Inputs are normalized RGB CV_32FC3
// Mats; outputs are raw densities at the network's own resolution.
type Model interface {
	Predict(input gocv.Mat) (DensityMap, error)
	PredictBatch(inputs []gocv.Mat) ([]DensityMap, error)
	Close() error
}

// Normalize converts a BGR 8-bit frame to RGB float32 scaled to [0,1] and
// standardized per channel with the ImageNet mean/std. The result is owned by
// the caller.
func Normalize(frame gocv.Mat) (gocv.Mat, error) {
	if frame.Empty() {
		return gocv.Mat{}, ErrEmptyFrame
	}
	if frame.Channels() != 3 {
		return gocv.Mat{}, fmt.Errorf("expected 3 channel frame, got %d", frame.Channels())
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	if err := gocv.CvtColor(frame, &rgb, gocv.ColorBGRToRGB); err != nil {
		return gocv.Mat{}, fmt.Errorf("failed to convert frame to RGB: %w", err)
	}

	scaled := gocv.NewMat()
	defer scaled.Close()
	rgb.ConvertToWithParams(&scaled, gocv.MatTypeCV32FC3, 1.0/255.0, 0)

	channels := gocv.Split(scaled)
	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()
	for i := range channels {
		channels[i].SubtractFloat(normMean[i])
		channels[i].DivideFloat(normStd[i])
	}

	normalized := gocv.NewMat()
	gocv.Merge(channels, &normalized)
	return normalized, nil
}
