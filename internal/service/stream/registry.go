package stream

import (
	"fmt"
	"sync"

	"crowdcounter/internal/logger"
	"crowdcounter/internal/metrics"
	"crowdcounter/internal/model"
)

// FrameProvider is a camera that can hand out masked frame snapshots.
type FrameProvider interface {
	Name() string
	Snapshot() (model.FrameSnapshot, bool)
	Release()
}

// Registry holds the active camera readers in registration order.
type Registry struct {
	providers []FrameProvider
	byName    map[string]FrameProvider
	mutex     sync.RWMutex
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *logger.Logger, metrics *metrics.Metrics) *Registry {
	return &Registry{
		byName:  make(map[string]FrameProvider),
		logger:  logger,
		metrics: metrics,
	}
}

// OpenAll starts a Reader per camera. Cameras that cannot be opened are
// logged and left out; an error is returned only when none could be opened.
func OpenAll(cameras []model.CameraConfig, opts ReaderOptions, logger *logger.Logger, metrics *metrics.Metrics) (*Registry, error) {
	registry := NewRegistry(logger, metrics)
	for _, cam := range cameras {
		reader, err := NewReader(cam, opts, logger, metrics)
		if err != nil {
			logger.Error("Error adding camera %s: %v", cam.Name, err)
			continue
		}
		if err := registry.Add(reader); err != nil {
			reader.Release()
			logger.Error("Error adding camera %s: %v", cam.Name, err)
		}
	}

	if registry.Len() == 0 {
		return nil, fmt.Errorf("%w: no camera stream could be opened", ErrConnection)
	}
	return registry, nil
}

// Add registers a provider. Names must be unique.
func (r *Registry) Add(p FrameProvider) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if _, exists := r.byName[p.Name()]; exists {
		return fmt.Errorf("camera %s already registered", p.Name())
	}
	r.byName[p.Name()] = p
	r.providers = append(r.providers, p)
	return nil
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return len(r.providers)
}

// Names returns the registered camera names in registration order.
func (r *Registry) Names() []string {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	names := make([]string, len(r.providers))
	for i, p := range r.providers {
		names[i] = p.Name()
	}
	return names
}

// CameraStatus describes one registered camera.
type CameraStatus struct {
	Name       string `json:"name"`
	State      string `json:"state"`
	Reconnects uint64 `json:"reconnects"`
}

type stateful interface {
	State() State
	Reconnects() uint64
}

// Statuses reports every camera in registration order.
func (r *Registry) Statuses() []CameraStatus {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	statuses := make([]CameraStatus, 0, len(r.providers))
	for _, p := range r.providers {
		status := CameraStatus{Name: p.Name(), State: "unknown"}
		if s, ok := p.(stateful); ok {
			status.State = s.State().String()
			status.Reconnects = s.Reconnects()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// Snapshot takes one frame from every provider. Providers with no usable
// frame are omitted with a warning. The caller owns the returned frames.
func (r *Registry) Snapshot() []model.FrameSnapshot {
	r.mutex.RLock()
	providers := append([]FrameProvider(nil), r.providers...)
	r.mutex.RUnlock()

	snapshots := make([]model.FrameSnapshot, 0, len(providers))
	for _, p := range providers {
		snapshot, ok := p.Snapshot()
		if !ok {
			r.logger.Warning("⚠️  Camera %s: no frame available", p.Name())
			if r.metrics != nil {
				r.metrics.FramesSkipped.Add(1)
			}
			continue
		}
		snapshots = append(snapshots, snapshot)
	}
	return snapshots
}

// ReleaseAll releases every provider and empties the registry.
func (r *Registry) ReleaseAll() {
	r.mutex.Lock()
	providers := r.providers
	r.providers = nil
	r.byName = make(map[string]FrameProvider)
	r.mutex.Unlock()

	var wg sync.WaitGroup
	for _, p := range providers {
		wg.Add(1)
		go func(p FrameProvider) {
			defer wg.Done()
			p.Release()
		}(p)
	}
	wg.Wait()

	r.logger.Info("🛑 Released %d camera streams", len(providers))
}
