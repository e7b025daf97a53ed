package model

import "strings"

// DefaultCropPolygon covers the whole frame. The repeated top-right vertex is
// intentional and yields a zero-length edge the mask must tolerate.
var DefaultCropPolygon = [][2]float64{
	{0, 100},
	{0, 0},
	{100, 0},
	{100, 0},
	{100, 100},
}

// CameraConfig identifies one network camera and its region of interest.
// CropPolygon points are percentages of frame width/height in [0,100].
type CameraConfig struct {
	Name        string
	SourceURI   string
	User        string
	Password    string
	CropPolygon [][2]float64
}

// Polygon returns the configured crop polygon or the default one.
func (c CameraConfig) Polygon() [][2]float64 {
	if len(c.CropPolygon) == 0 {
		return DefaultCropPolygon
	}
	return c.CropPolygon
}

// FileName is the camera name as used in artifact file names: lower case with
// spaces replaced by underscores. Distinct cameras must not share one.
func FileName(name string) string {
	return strings.ReplaceAll(strings.ToLower(name), " ", "_")
}
