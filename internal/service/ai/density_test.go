package ai

import (
	"errors"
	"math"
	"math/rand"
	"testing"
)

// ========================================
// Density map tests
// ========================================

func TestDensityMap_Count(t *testing.T) {
	tests := []struct {
		name     string
		data     []float32
		expected int
	}{
		{"zero", []float32{0, 0, 0, 0}, 0},
		{"rounds down", []float32{0.1, 0.1, 0.1, 0.1}, 0},
		{"rounds up", []float32{0.5, 0.5, 0.3, 0.3}, 2},
		{"negative clamps to zero", []float32{-1, -2, 0, 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DensityMap{Width: 2, Height: 2, Data: tt.data}
			if got := d.Count(); got != tt.expected {
				t.Errorf("Expected count %d, got %d", tt.expected, got)
			}
		})
	}
}

func TestDensityMap_Validate(t *testing.T) {
	d := DensityMap{Width: 3, Height: 2, Data: make([]float32, 5)}
	if err := d.Validate(); !errors.Is(err, ErrInvalidDensity) {
		t.Errorf("Expected ErrInvalidDensity, got %v", err)
	}

	if err := NewDensityMap(3, 2).Validate(); err != nil {
		t.Errorf("Expected valid map, got %v", err)
	}
}

func TestDensityMap_MatRoundTrip(t *testing.T) {
	d := NewDensityMap(4, 3)
	for i := range d.Data {
		d.Data[i] = float32(i) * 0.25
	}

	mat, err := d.ToMat()
	if err != nil {
		t.Fatalf("ToMat failed: %v", err)
	}
	defer mat.Close()

	if mat.Cols() != 4 || mat.Rows() != 3 {
		t.Fatalf("Expected 4x3 mat, got %dx%d", mat.Cols(), mat.Rows())
	}

	back, err := DensityFromMat(mat)
	if err != nil {
		t.Fatalf("DensityFromMat failed: %v", err)
	}
	if back.At(3, 2) != d.At(3, 2) {
		t.Errorf("Expected %f at (3,2), got %f", d.At(3, 2), back.At(3, 2))
	}
}

// ========================================
// Sum-preserving resize tests
// ========================================

func TestResizeSumPreserving_KeepsSum(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 200; i++ {
		d := NewDensityMap(1+rng.Intn(40), 1+rng.Intn(40))
		for j := range d.Data {
			if rng.Intn(3) == 0 {
				d.Data[j] = rng.Float32() * 2
			}
		}
		w, h := 1+rng.Intn(300), 1+rng.Intn(300)

		resized, err := d.ResizeSumPreserving(w, h)
		if err != nil {
			t.Fatalf("Resize failed: %v", err)
		}
		if resized.Width != w || resized.Height != h {
			t.Fatalf("Expected %dx%d, got %dx%d", w, h, resized.Width, resized.Height)
		}

		original := d.Sum()
		got := resized.Sum()
		if math.Abs(got-original) > 1e-3*math.Max(1, original) {
			if got != 0 {
				t.Errorf("Case %d: expected sum %f, got %f", i, original, got)
			}
		}
	}
}

func TestResizeSumPreserving_ZeroMap(t *testing.T) {
	resized, err := NewDensityMap(8, 8).ResizeSumPreserving(100, 50)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	for i, v := range resized.Data {
		if v != 0 || math.IsNaN(float64(v)) {
			t.Fatalf("Expected zero at %d, got %f", i, v)
		}
	}
}

func TestResizeSumPreserving_UnsampledMassIsDropped(t *testing.T) {
	// Downsampling 8x8 to 2x2 samples pixels 1,2 and 5,6 of each axis.
	d := NewDensityMap(8, 8)
	d.Data[0] = 3

	resized, err := d.ResizeSumPreserving(2, 2)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	if resized.Sum() != 0 {
		t.Errorf("Expected all-zero grid, got sum %f", resized.Sum())
	}
	if resized.Count() != 0 {
		t.Errorf("Expected count 0, got %d", resized.Count())
	}
}

func TestResizeSumPreserving_SameSizeCopies(t *testing.T) {
	d := NewDensityMap(2, 2)
	d.Data[0] = 1

	resized, err := d.ResizeSumPreserving(2, 2)
	if err != nil {
		t.Fatalf("Resize failed: %v", err)
	}
	resized.Data[0] = 5
	if d.Data[0] != 1 {
		t.Error("Expected resize to return an independent copy")
	}
}

func TestResizeSumPreserving_InvalidTarget(t *testing.T) {
	if _, err := NewDensityMap(2, 2).ResizeSumPreserving(0, 10); !errors.Is(err, ErrInvalidDensity) {
		t.Errorf("Expected ErrInvalidDensity, got %v", err)
	}
}

func TestRescaleFactor(t *testing.T) {
	tests := []struct {
		original, interpolated, expected float64
	}{
		{10, 5, 2},
		{0, 0, 0},
		{3, 0, 0},
		{math.Inf(1), 1, 0},
	}

	for _, tt := range tests {
		if got := rescaleFactor(tt.original, tt.interpolated); got != tt.expected {
			t.Errorf("rescaleFactor(%v, %v): expected %v, got %v", tt.original, tt.interpolated, tt.expected, got)
		}
	}
}
