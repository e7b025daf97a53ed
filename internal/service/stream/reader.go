package stream

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/model"
	"crowdcounter/internal/service/geometry"

	"gocv.io/x/gocv"
)

// State is the lifecycle position of a Reader.
type State int32

const (
	StateConnecting State = iota
	StateRunning
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateRunning:
		return "running"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// DefaultRetryDelay is used when ReaderOptions.RetryDelay is not set.
const DefaultRetryDelay = 2 * time.Second

// ReaderOptions control reconnection. A nil Opener means OpenVideoCapture.
// MaxRetries bounds the reopens allowed between two successfully read frames;
// zero stops the reader on the first read failure. RetryDelay separates
// consecutive reopens.
type ReaderOptions struct {
	MaxRetries int
	RetryDelay time.Duration
	Opener     Opener
}

// Reader keeps the most recent decoded frame of one camera. A single
// goroutine reads the stream; consumers take clones of the latest frame.
type Reader struct {
	cfg     model.CameraConfig
	uri     string
	opts    ReaderOptions
	logger  *logger.Logger
	metrics *metrics.Metrics

	// source and consecutiveFailures are owned by the acquisition goroutine,
	// and source by Release once that goroutine has exited.
	source              Source
	consecutiveFailures int

	mu         sync.Mutex
	latest     *gocv.Mat
	capturedAt time.Time

	state      atomic.Int32
	reconnects atomic.Uint64

	stop        chan struct{}
	done        chan struct{}
	releaseOnce sync.Once
}

// NewReader opens the camera stream and starts reading it. A failed first
// open returns an error wrapping ErrConnection and is not retried.
func NewReader(cfg model.CameraConfig, opts ReaderOptions, logger *logger.Logger, metrics *metrics.Metrics) (*Reader, error) {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.Opener == nil {
		opts.Opener = OpenVideoCapture
	}

	r := &Reader{
		cfg:     cfg,
		uri:     AuthURI(cfg.SourceURI, cfg.User, cfg.Password),
		opts:    opts,
		logger:  logger,
		metrics: metrics,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	r.state.Store(int32(StateConnecting))

	source, err := opts.Opener(r.uri)
	if err != nil {
		r.state.Store(int32(StateStopped))
		return nil, fmt.Errorf("%w: camera %s at %s: %v", ErrConnection, cfg.Name, redact(r.uri), err)
	}
	r.source = source
	r.state.Store(int32(StateRunning))

	go r.run()

	r.logger.Info("🎥 Camera %s connected", cfg.Name)
	return r, nil
}

// Name returns the camera name.
func (r *Reader) Name() string {
	return r.cfg.Name
}

// State returns the current lifecycle state.
func (r *Reader) State() State {
	return State(r.state.Load())
}

// Reconnects returns how many times the stream was reopened.
func (r *Reader) Reconnects() uint64 {
	return r.reconnects.Load()
}

func (r *Reader) run() {
	defer close(r.done)

	for {
		select {
		case <-r.stop:
			return
		default:
		}

		frame := gocv.NewMat()
		if r.source.Read(&frame) && !frame.Empty() {
			r.consecutiveFailures = 0
			r.store(&frame)
			if r.metrics != nil {
				r.metrics.FramesRead.Add(1)
			}
			continue
		}
		frame.Close()

		if r.metrics != nil {
			r.metrics.ReadErrors.Add(1)
		}
		r.logger.Warning("Camera %s: failed to read frame", r.cfg.Name)

		if !r.reconnect() {
			r.markStopped()
			return
		}
	}
}

func (r *Reader) store(frame *gocv.Mat) {
	r.mu.Lock()
	previous := r.latest
	r.latest = frame
	r.capturedAt = time.Now()
	r.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// reconnect reopens the stream. Every reopen counts as a consecutive failure
// until a frame is read again, so a source that opens but never delivers
// frames stops too. It returns false once MaxRetries reopens have failed to
// produce a frame or the reader is being released.
func (r *Reader) reconnect() bool {
	r.state.Store(int32(StateReconnecting))
	if r.source != nil {
		r.source.Close()
		r.source = nil
	}

	for r.consecutiveFailures < r.opts.MaxRetries {
		if r.consecutiveFailures > 0 {
			select {
			case <-r.stop:
				return false
			case <-time.After(r.opts.RetryDelay):
			}
		} else {
			select {
			case <-r.stop:
				return false
			default:
			}
		}

		r.consecutiveFailures++
		attempt := r.consecutiveFailures
		r.logger.Info("Camera %s: reconnect attempt %d/%d", r.cfg.Name, attempt, r.opts.MaxRetries)
		source, err := r.opts.Opener(r.uri)
		if err == nil {
			r.source = source
			r.state.Store(int32(StateRunning))
			r.reconnects.Add(1)
			if r.metrics != nil {
				r.metrics.Reconnects.Add(1)
			}
			r.logger.Info("🔄 Camera %s reconnected", r.cfg.Name)
			return true
		}
		r.logger.Warning("Camera %s: reconnect attempt %d/%d failed: %v", r.cfg.Name, attempt, r.opts.MaxRetries, err)
	}

	select {
	case <-r.stop:
	default:
		r.logger.Error("Camera %s: giving up after %d reconnect attempts", r.cfg.Name, r.opts.MaxRetries)
		if r.metrics != nil {
			r.metrics.ReadersStopped.Add(1)
		}
	}
	return false
}

func (r *Reader) markStopped() {
	r.state.Store(int32(StateStopped))
	r.mu.Lock()
	previous := r.latest
	r.latest = nil
	r.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
}

// Snapshot returns the latest frame masked to the camera's polygon and
// cropped to its bounding box. ok is false when there is no frame yet, the
// reader has stopped, or the mask is empty.
func (r *Reader) Snapshot() (model.FrameSnapshot, bool) {
	r.mu.Lock()
	if r.latest == nil {
		r.mu.Unlock()
		return model.FrameSnapshot{}, false
	}
	frame := r.latest.Clone()
	capturedAt := r.capturedAt
	r.mu.Unlock()
	defer frame.Close()

	cropped, ok := geometry.MaskAndCrop(frame, r.cfg.Polygon())
	if !ok {
		return model.FrameSnapshot{}, false
	}
	return model.FrameSnapshot{Camera: r.cfg.Name, Frame: cropped, CapturedAt: capturedAt}, true
}

// GetFrame returns the masked, cropped latest frame. The caller owns it.
func (r *Reader) GetFrame() (gocv.Mat, bool) {
	snapshot, ok := r.Snapshot()
	if !ok {
		return gocv.Mat{}, false
	}
	return snapshot.Frame, true
}

// Release stops the acquisition goroutine, waits for it to exit and closes
// the stream. Safe to call more than once.
func (r *Reader) Release() {
	r.releaseOnce.Do(func() {
		close(r.stop)
		<-r.done

		if r.source != nil {
			r.source.Close()
			r.source = nil
		}
		r.markStopped()
		r.logger.Info("Camera %s released", r.cfg.Name)
	})
}
