package geometry

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// ToPixelCoords converts percentage points to pixel coordinates. Fractions are
// truncated, not rounded, and results are clamped to [0,width] x [0,height].
func ToPixelCoords(polygon [][2]float64, width, height int) []image.Point {
	points := make([]image.Point, 0, len(polygon))
	for _, p := range polygon {
		x := int(p[0] * float64(width) / 100)
		y := int(p[1] * float64(height) / 100)
		points = append(points, image.Pt(clamp(x, 0, width), clamp(y, 0, height)))
	}
	return points
}

// PolygonMask returns a single channel mask of size width x height with 255
// inside the polygon. Self-intersecting outlines are filled with OpenCV's
// scanline FillPoly, which follows the even-odd rule. Fewer than three points
// produce an all-zero mask.
func PolygonMask(width, height int, points []image.Point) gocv.Mat {
	mask := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), height, width, gocv.MatTypeCV8UC1)
	if len(points) < 3 {
		return mask
	}

	pv := gocv.NewPointsVectorFromPoints([][]image.Point{points})
	defer pv.Close()

	gocv.FillPoly(&mask, pv, color.RGBA{R: 255, G: 255, B: 255, A: 255})
	return mask
}

// ApplyMask returns a copy of frame where pixels outside mask are replaced by fill.
func ApplyMask(frame, mask gocv.Mat, fill color.RGBA) gocv.Mat {
	fillScalar := gocv.NewScalar(float64(fill.B), float64(fill.G), float64(fill.R), float64(fill.A))
	masked := gocv.NewMatWithSizeFromScalar(fillScalar, frame.Rows(), frame.Cols(), frame.Type())
	frame.CopyToWithMask(&masked, mask)
	return masked
}

// BoundingBox returns the tight rectangle around non-zero mask pixels.
// ok is false when the mask is entirely zero.
func BoundingBox(mask gocv.Mat) (rect image.Rectangle, ok bool) {
	rows, cols := mask.Rows(), mask.Cols()
	data := mask.ToBytes()
	if len(data) < rows*cols {
		return image.Rectangle{}, false
	}

	minX, minY := cols, rows
	maxX, maxY := -1, -1
	for y := 0; y < rows; y++ {
		row := data[y*cols : (y+1)*cols]
		for x, v := range row {
			if v == 0 {
				continue
			}
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
	}

	if maxX < 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(minX, minY, maxX+1, maxY+1), true
}

// CropToMask crops masked to the bounding box of mask. The returned Mat is an
// owned copy. ok is false for an empty mask, in which case nothing is allocated.
func CropToMask(masked, mask gocv.Mat) (gocv.Mat, bool) {
	rect, ok := BoundingBox(mask)
	if !ok {
		return gocv.Mat{}, false
	}

	region := masked.Region(rect)
	defer region.Close()
	return region.Clone(), true
}

// MaskAndCrop blacks out everything outside polygon and crops frame to the
// polygon's bounding box, using the frame's own dimensions.
func MaskAndCrop(frame gocv.Mat, polygon [][2]float64) (gocv.Mat, bool) {
	if frame.Empty() {
		return gocv.Mat{}, false
	}

	points := ToPixelCoords(polygon, frame.Cols(), frame.Rows())
	mask := PolygonMask(frame.Cols(), frame.Rows(), points)
	defer mask.Close()

	masked := ApplyMask(frame, mask, color.RGBA{A: 255})
	defer masked.Close()

	return CropToMask(masked, mask)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
