package model

import (
	"time"

	"gocv.io/x/gocv"
)

// FrameSnapshot is a point-in-time copy of a camera's latest frame, already
// masked and cropped. The holder owns Frame and must Close it.
type FrameSnapshot struct {
	Camera     string
	Frame      gocv.Mat
	CapturedAt time.Time
}

// Close releases the frame memory.
func (s *FrameSnapshot) Close() {
	s.Frame.Close()
}
