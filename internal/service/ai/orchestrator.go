package ai

import (
	"context"
	"fmt"
	"time"

	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/model"
	"crowdcounter/internal/service/storage"

	"github.com/google/uuid"
	"gocv.io/x/gocv"
)

// PredictionResult is the estimate for one frame. Density has the frame's size.
type PredictionResult struct {
	Camera  string
	Count   int
	Density DensityMap
}

// Options are fixed when the Orchestrator is built.
type Options struct {
	Batch           bool
	PersistOriginal bool
	PersistOverlay  bool
	OutputDir       string
	JPEGQuality     int
}

// FrameSource yields one masked, cropped snapshot per camera with a frame.
type FrameSource interface {
	Snapshot() []model.FrameSnapshot
}

// JobQueue accepts save jobs.
type JobQueue interface {
	Enqueue(job storage.SaveJob) error
}

// Orchestrator turns frame snapshots into counts and save jobs.
type Orchestrator struct {
	model   Model
	opts    Options
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewOrchestrator builds an Orchestrator around m.
func NewOrchestrator(m Model, opts Options, logger *logger.Logger, metrics *metrics.Metrics) *Orchestrator {
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 70
	}
	return &Orchestrator{
		model:   m,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		now:     time.Now,
	}
}

// Options returns the construction options.
func (o *Orchestrator) Options() Options {
	return o.opts
}

// PredictOne estimates the density of a single frame at its own resolution.
func (o *Orchestrator) PredictOne(frame gocv.Mat) (PredictionResult, error) {
	if frame.Empty() {
		return PredictionResult{}, ErrEmptyFrame
	}

	input, err := Normalize(frame)
	if err != nil {
		return PredictionResult{}, err
	}
	defer input.Close()

	raw, err := o.model.Predict(input)
	if err != nil {
		return PredictionResult{}, fmt.Errorf("model prediction failed: %w", err)
	}

	return toFrameSize(raw, frame)
}

// PredictBatch resizes every frame to BatchInputSize, runs one model call and
// maps each density back to its own frame. Output order matches frames.
func (o *Orchestrator) PredictBatch(frames []gocv.Mat) ([]PredictionResult, error) {
	if len(frames) == 0 {
		return nil, nil
	}

	inputs := make([]gocv.Mat, 0, len(frames))
	defer func() {
		for _, in := range inputs {
			in.Close()
		}
	}()

	for i, frame := range frames {
		if frame.Empty() {
			return nil, fmt.Errorf("batch frame %d: %w", i, ErrEmptyFrame)
		}

		resized := gocv.NewMat()
		gocv.Resize(frame, &resized, BatchInputSize, 0, 0, gocv.InterpolationLanczos4)
		input, err := Normalize(resized)
		resized.Close()
		if err != nil {
			return nil, fmt.Errorf("batch frame %d: %w", i, err)
		}
		inputs = append(inputs, input)
	}

	raws, err := o.model.PredictBatch(inputs)
	if err != nil {
		return nil, fmt.Errorf("batched model prediction failed: %w", err)
	}
	if len(raws) != len(frames) {
		return nil, fmt.Errorf("%w: %d frames, %d densities", ErrBatchMismatch, len(frames), len(raws))
	}

	results := make([]PredictionResult, len(frames))
	for i, raw := range raws {
		result, err := toFrameSize(raw, frames[i])
		if err != nil {
			return nil, fmt.Errorf("batch frame %d: %w", i, err)
		}
		results[i] = result
	}
	return results, nil
}

func toFrameSize(raw DensityMap, frame gocv.Mat) (PredictionResult, error) {
	if err := raw.Validate(); err != nil {
		return PredictionResult{}, err
	}
	density, err := raw.ResizeSumPreserving(frame.Cols(), frame.Rows())
	if err != nil {
		return PredictionResult{}, err
	}
	return PredictionResult{Count: density.Count(), Density: density}, nil
}

// RunCycle snapshots source, predicts every camera and enqueues the save jobs
// enabled in Options. A camera whose single-frame prediction fails is left out
// of the result. A failed batch call fails the cycle.
func (o *Orchestrator) RunCycle(ctx context.Context, source FrameSource, queue JobQueue) (model.CycleResult, error) {
	snapshots := source.Snapshot()
	defer func() {
		for i := range snapshots {
			snapshots[i].Close()
		}
	}()

	if err := ctx.Err(); err != nil {
		return model.CycleResult{}, err
	}

	ts := o.now()
	results := make(map[string]PredictionResult, len(snapshots))

	if o.opts.Batch && len(snapshots) > 0 {
		frames := make([]gocv.Mat, len(snapshots))
		for i, s := range snapshots {
			frames[i] = s.Frame
		}
		batch, err := o.PredictBatch(frames)
		if err != nil {
			return model.CycleResult{}, err
		}
		for i, s := range snapshots {
			batch[i].Camera = s.Camera
			results[s.Camera] = batch[i]
		}
	} else {
		for _, s := range snapshots {
			if err := ctx.Err(); err != nil {
				return model.CycleResult{}, err
			}
			result, err := o.PredictOne(s.Frame)
			if err != nil {
				o.logger.Error("Prediction failed for camera %s: %v", s.Camera, err)
				if o.metrics != nil {
					o.metrics.FramesSkipped.Add(1)
				}
				continue
			}
			result.Camera = s.Camera
			results[s.Camera] = result
		}
	}

	perCamera := make(map[string]int, len(results))
	for _, s := range snapshots {
		result, ok := results[s.Camera]
		if !ok {
			continue
		}
		perCamera[s.Camera] = result.Count
		o.logger.Info("📷 Camera %s: estimated count %d", s.Camera, result.Count)
		o.enqueueSaves(queue, s, result, ts)
	}

	return model.NewCycleResult(uuid.NewString(), ts, perCamera), nil
}

func (o *Orchestrator) enqueueSaves(queue JobQueue, s model.FrameSnapshot, result PredictionResult, ts time.Time) {
	if queue == nil {
		return
	}

	if o.opts.PersistOriginal {
		path := storage.OriginalImagePath(o.opts.OutputDir, s.Camera, ts, result.Count)
		job := storage.NewOriginalImage(s.Frame.Clone(), path, o.opts.JPEGQuality)
		if err := queue.Enqueue(job); err != nil {
			o.logger.Error("Failed to enqueue original image for %s: %v", s.Camera, err)
		}
	}

	if o.opts.PersistOverlay {
		densityMat, err := result.Density.ToMat()
		if err != nil {
			o.logger.Error("Failed to build density overlay for %s: %v", s.Camera, err)
			return
		}
		path := storage.DensityMapPath(o.opts.OutputDir, s.Camera, ts, result.Count)
		job := storage.NewDensityOverlay(s.Frame.Clone(), densityMat, path)
		if err := queue.Enqueue(job); err != nil {
			o.logger.Error("Failed to enqueue density map for %s: %v", s.Camera, err)
		}
	}
}
