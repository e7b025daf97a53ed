package storage

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"crowdcounter/internal/model"

	"gocv.io/x/gocv"
)

const (
	// OriginalImagesDir holds the masked frames fed to the model.
	OriginalImagesDir = "original_images"
	// DensityMapsDir holds the colorized density overlays.
	DensityMapsDir = "density_maps"

	dayLayout       = "20060102"
	timestampLayout = "20060102T150405"
)

// ErrEmptyFrame is returned when a job holds no pixels to write.
var ErrEmptyFrame = errors.New("empty frame")

// SaveJob is one unit of disk work. Jobs are immutable once enqueued; the
// pool calls Release exactly once after Execute returns.
type SaveJob interface {
	Path() string
	Execute() error
	Release()
}

// OriginalImagePath builds <dir>/original_images/YYYYMMDD/<cam>_<ts>_count_<n>.jpg.
func OriginalImagePath(dir, camera string, ts time.Time, count int) string {
	return artifactPath(dir, OriginalImagesDir, camera, ts, count, ".jpg")
}

// DensityMapPath builds <dir>/density_maps/YYYYMMDD/<cam>_<ts>_count_<n>.png.
func DensityMapPath(dir, camera string, ts time.Time, count int) string {
	return artifactPath(dir, DensityMapsDir, camera, ts, count, ".png")
}

func artifactPath(dir, kind, camera string, ts time.Time, count int, ext string) string {
	name := fmt.Sprintf("%s_%s_count_%d%s", model.FileName(camera), ts.Format(timestampLayout), count, ext)
	return filepath.Join(dir, kind, ts.Format(dayLayout), name)
}

// OriginalImage writes the frame as a JPEG.
type OriginalImage struct {
	Frame   gocv.Mat
	Target  string
	Quality int
}

// NewOriginalImage takes ownership of frame.
func NewOriginalImage(frame gocv.Mat, path string, quality int) *OriginalImage {
	return &OriginalImage{Frame: frame, Target: path, Quality: quality}
}

func (j *OriginalImage) Path() string { return j.Target }

func (j *OriginalImage) Execute() error {
	if j.Frame.Empty() {
		return fmt.Errorf("original image %s: %w", j.Target, ErrEmptyFrame)
	}
	if err := os.MkdirAll(filepath.Dir(j.Target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", j.Target, err)
	}
	if ok := gocv.IMWriteWithParams(j.Target, j.Frame, []int{gocv.IMWriteJpegQuality, j.Quality}); !ok {
		return fmt.Errorf("failed to write image %s", j.Target)
	}
	return nil
}

func (j *OriginalImage) Release() { j.Frame.Close() }

// DensityOverlay blends a jet-colored density map over the frame and writes a
// PNG. Density is a single channel CV_32F Mat.
type DensityOverlay struct {
	Frame   gocv.Mat
	Density gocv.Mat
	Target  string
}

// NewDensityOverlay takes ownership of frame and density.
func NewDensityOverlay(frame, density gocv.Mat, path string) *DensityOverlay {
	return &DensityOverlay{Frame: frame, Density: density, Target: path}
}

func (j *DensityOverlay) Path() string { return j.Target }

func (j *DensityOverlay) Execute() error {
	if j.Frame.Empty() {
		return fmt.Errorf("density overlay %s: %w", j.Target, ErrEmptyFrame)
	}

	overlay, err := RenderOverlay(j.Frame, j.Density)
	if err != nil {
		return fmt.Errorf("density overlay %s: %w", j.Target, err)
	}
	defer overlay.Close()

	if err := os.MkdirAll(filepath.Dir(j.Target), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", j.Target, err)
	}
	if ok := gocv.IMWrite(j.Target, overlay); !ok {
		return fmt.Errorf("failed to write density map %s", j.Target)
	}
	return nil
}

func (j *DensityOverlay) Release() {
	j.Frame.Close()
	j.Density.Close()
}

// RenderOverlay colorizes density with the jet colormap, scales it to the
// frame and blends the two at equal weight. Values at or above half the peak
// saturate.
func RenderOverlay(frame, density gocv.Mat) (gocv.Mat, error) {
	if density.Empty() || density.Channels() != 1 {
		return gocv.Mat{}, fmt.Errorf("expected single channel density, got %d channels", density.Channels())
	}

	_, peak, _, _ := gocv.MinMaxLoc(density)
	vmax := float64(peak) * 0.5
	scale := 0.0
	if vmax > 0 {
		scale = 255 / vmax
	}

	gray := gocv.NewMat()
	defer gray.Close()
	density.ConvertToWithParams(&gray, gocv.MatTypeCV8U, float32(scale), 0)

	colored := gocv.NewMat()
	defer colored.Close()
	gocv.ApplyColorMap(gray, &colored, gocv.ColormapJet)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(colored, &resized, image.Pt(frame.Cols(), frame.Rows()), 0, 0, gocv.InterpolationLinear)

	blended := gocv.NewMat()
	gocv.AddWeighted(frame, 0.5, resized, 0.5, 0, &blended)
	return blended, nil
}
