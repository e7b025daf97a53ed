package ai

import (
	"fmt"
	"image"
	"os"
	"sync"

	"crowdcounter/internal/logger"

	"gocv.io/x/gocv"
)

// NetModel runs a density estimation network through the OpenCV DNN module.
type NetModel struct {
	net        gocv.Net
	modelPath  string
	configPath string
	device     string
	logger     *logger.Logger
	mu         sync.Mutex
}

// NewNetModel loads the network and selects the compute device. A "cuda"
// device falls back to the CPU when the CUDA backend cannot be selected.
func NewNetModel(modelPath, configPath, device string, logger *logger.Logger) (*NetModel, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("model config file not found: %s", configPath)
		}
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	m := &NetModel{
		net:        net,
		modelPath:  modelPath,
		configPath: configPath,
		logger:     logger,
	}
	m.device = m.selectDevice(device)

	m.logger.Info("Density network %s initialized on %s", modelPath, m.device)
	return m, nil
}

func (m *NetModel) selectDevice(device string) string {
	if device == "cuda" {
		errBackend := m.net.SetPreferableBackend(gocv.NetBackendCUDA)
		errTarget := m.net.SetPreferableTarget(gocv.NetTargetCUDA)
		if errBackend == nil && errTarget == nil {
			return "cuda"
		}
		m.logger.Warning("CUDA is not available, using CPU instead")
	}

	errBackend := m.net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := m.net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		m.logger.Warning("Failed to set CPU backend or target: %v %v", errBackend, errTarget)
	}
	return "cpu"
}

// Device reports the compute device in use.
func (m *NetModel) Device() string {
	return m.device
}

// Predict runs the network on one normalized image of any size.
func (m *NetModel) Predict(input gocv.Mat) (DensityMap, error) {
	if input.Empty() {
		return DensityMap{}, ErrEmptyFrame
	}

	blob := gocv.BlobFromImage(input, 1.0, image.Pt(input.Cols(), input.Rows()), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	densities, err := m.forward(blob)
	if err != nil {
		return DensityMap{}, err
	}
	if len(densities) != 1 {
		return DensityMap{}, fmt.Errorf("%w: expected 1 density, got %d", ErrBatchMismatch, len(densities))
	}
	return densities[0], nil
}

// PredictBatch runs the network once over inputs that all share BatchInputSize.
func (m *NetModel) PredictBatch(inputs []gocv.Mat) ([]DensityMap, error) {
	if len(inputs) == 0 {
		return nil, nil
	}

	blob := gocv.NewMat()
	defer blob.Close()
	gocv.BlobFromImages(inputs, &blob, 1.0, BatchInputSize, gocv.NewScalar(0, 0, 0, 0), false, false, gocv.MatTypeCV32F)

	densities, err := m.forward(blob)
	if err != nil {
		return nil, err
	}
	if len(densities) != len(inputs) {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", ErrBatchMismatch, len(inputs), len(densities))
	}
	return densities, nil
}

// forward runs the network and splits an N x 1 x H x W output into N grids.
func (m *NetModel) forward(blob gocv.Mat) ([]DensityMap, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.net.SetInput(blob, "")
	output := m.net.Forward("")
	defer output.Close()

	dims := output.Size()
	if len(dims) < 3 {
		return nil, fmt.Errorf("unexpected network output shape %v", dims)
	}
	n, h, w := dims[0], dims[len(dims)-2], dims[len(dims)-1]
	if n <= 0 || h <= 0 || w <= 0 || output.Total() != n*h*w {
		return nil, fmt.Errorf("unexpected network output shape %v", dims)
	}

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("failed to read network output: %w", err)
	}

	densities := make([]DensityMap, n)
	per := h * w
	for i := 0; i < n; i++ {
		d := NewDensityMap(w, h)
		copy(d.Data, data[i*per:(i+1)*per])
		densities[i] = d
	}
	return densities, nil
}

// Close releases the network.
func (m *NetModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.net.Close()
}
