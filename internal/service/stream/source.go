package stream

import (
	"errors"
	"fmt"
	"net/url"

	"gocv.io/x/gocv"
)

// ErrConnection is returned when a camera stream cannot be opened.
var ErrConnection = errors.New("camera connection failed")

// Source is an open video stream. *gocv.VideoCapture satisfies it.
type Source interface {
	Read(m *gocv.Mat) bool
	Close() error
}

// Opener opens the stream at uri.
type Opener func(uri string) (Source, error)

// OpenVideoCapture opens uri through OpenCV's VideoCapture.
func OpenVideoCapture(uri string) (Source, error) {
	capture, err := gocv.OpenVideoCapture(uri)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, ErrConnection
	}
	return capture, nil
}

// AuthURI adds user and password as URL userinfo. The URI is returned as is
// when user is empty or the URI does not parse.
func AuthURI(uri, user, password string) string {
	if user == "" {
		return uri
	}
	u, err := url.Parse(uri)
	if err != nil || u.Host == "" {
		return uri
	}
	u.User = url.UserPassword(user, password)
	return u.String()
}

// redact hides credentials for logging.
func redact(uri string) string {
	u, err := url.Parse(uri)
	if err != nil || u.User == nil {
		return uri
	}
	return u.Redacted()
}
