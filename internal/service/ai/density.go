package ai

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gocv.io/x/gocv"
)

// ErrInvalidDensity is returned for a density grid whose data does not match its size.
var ErrInvalidDensity = errors.New("invalid density map")

// DensityMap is a row-major grid of non-negative densities. Summed over a
// region it estimates the number of people in that region.
type DensityMap struct {
	Width  int
	Height int
	Data   []float32
}

// NewDensityMap allocates a zeroed density grid.
func NewDensityMap(width, height int) DensityMap {
	return DensityMap{Width: width, Height: height, Data: make([]float32, width*height)}
}

// Validate checks that Data matches Width*Height.
func (d DensityMap) Validate() error {
	if d.Width <= 0 || d.Height <= 0 || len(d.Data) != d.Width*d.Height {
		return fmt.Errorf("%w: %dx%d with %d values", ErrInvalidDensity, d.Width, d.Height, len(d.Data))
	}
	return nil
}

// At returns the density at (x, y).
func (d DensityMap) At(x, y int) float32 {
	return d.Data[y*d.Width+x]
}

// Sum returns the total density, accumulated in float64.
func (d DensityMap) Sum() float64 {
	var sum float64
	for _, v := range d.Data {
		sum += float64(v)
	}
	return sum
}

// Max returns the largest density value, or 0 for an empty map.
func (d DensityMap) Max() float32 {
	var max float32
	for _, v := range d.Data {
		if v > max {
			max = v
		}
	}
	return max
}

// Count is the rounded density sum, never negative.
func (d DensityMap) Count() int {
	count := int(math.Round(d.Sum()))
	if count < 0 {
		return 0
	}
	return count
}

// ToMat copies the grid into a single channel CV_32F Mat owned by the caller.
func (d DensityMap) ToMat() (gocv.Mat, error) {
	if err := d.Validate(); err != nil {
		return gocv.Mat{}, err
	}

	mat := gocv.NewMatWithSize(d.Height, d.Width, gocv.MatTypeCV32F)
	data, err := mat.DataPtrFloat32()
	if err != nil {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("failed to access density mat: %w", err)
	}
	copy(data, d.Data)
	return mat, nil
}

// DensityFromMat copies a single channel CV_32F Mat into a DensityMap.
func DensityFromMat(mat gocv.Mat) (DensityMap, error) {
	if mat.Empty() || mat.Channels() != 1 {
		return DensityMap{}, fmt.Errorf("%w: expected single channel mat", ErrInvalidDensity)
	}

	src := mat
	if mat.Type() != gocv.MatTypeCV32F {
		converted := gocv.NewMat()
		defer converted.Close()
		mat.ConvertTo(&converted, gocv.MatTypeCV32F)
		src = converted
	}

	data, err := src.DataPtrFloat32()
	if err != nil {
		return DensityMap{}, fmt.Errorf("failed to read density mat: %w", err)
	}

	out := NewDensityMap(src.Cols(), src.Rows())
	copy(out.Data, data)
	return out, nil
}

// ResizeSumPreserving bilinearly resizes the grid to width x height and then
// rescales it so the total equals the sum before the resize. A zero
// interpolated sum yields an all-zero grid instead of NaN/Inf.
//
// That includes a non-zero grid whose mass sits only on pixels the bilinear
// downsample never samples: the result is all zero and its count drops to 0.
// Upsampling never loses mass this way.
func (d DensityMap) ResizeSumPreserving(width, height int) (DensityMap, error) {
	if width <= 0 || height <= 0 {
		return DensityMap{}, fmt.Errorf("%w: target size %dx%d", ErrInvalidDensity, width, height)
	}

	originalSum := d.Sum()

	var resized DensityMap
	if width == d.Width && height == d.Height {
		resized = DensityMap{Width: width, Height: height, Data: append([]float32(nil), d.Data...)}
	} else {
		src, err := d.ToMat()
		if err != nil {
			return DensityMap{}, err
		}
		defer src.Close()

		dst := gocv.NewMat()
		defer dst.Close()
		gocv.Resize(src, &dst, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)

		resized, err = DensityFromMat(dst)
		if err != nil {
			return DensityMap{}, err
		}
	}

	scale := rescaleFactor(originalSum, resized.Sum())
	for i, v := range resized.Data {
		resized.Data[i] = float32(float64(v) * scale)
	}
	return resized, nil
}

func rescaleFactor(originalSum, interpolatedSum float64) float64 {
	if interpolatedSum == 0 {
		return 0
	}
	scale := originalSum / interpolatedSum
	if math.IsNaN(scale) || math.IsInf(scale, 0) {
		return 0
	}
	return scale
}
