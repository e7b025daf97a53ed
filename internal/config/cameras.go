package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"crowdcounter/internal/model"

	"gopkg.in/yaml.v3"
)

var (
	// ErrNoCameras is returned when the definitions file lists no cameras.
	ErrNoCameras = errors.New("no cameras defined")
	// ErrInvalidCamera is returned for a camera entry that fails validation.
	ErrInvalidCamera = errors.New("invalid camera definition")
)

// CameraDefinition is one entry of the camera definitions file.
type CameraDefinition struct {
	Name        string       `json:"name" yaml:"name"`
	RTSPURL     string       `json:"rtsp_url" yaml:"rtsp_url"`
	CropPolygon [][2]float64 `json:"crop_polygon,omitempty" yaml:"crop_polygon,omitempty"`
}

// CameraDefinitions is the top level of the camera definitions file.
type CameraDefinitions struct {
	Cameras []CameraDefinition `json:"cameras" yaml:"cameras"`
}

// LoadCameras reads a JSON or YAML camera definitions file and returns validated
// camera configs carrying the shared credentials.
func LoadCameras(path, user, password string) ([]model.CameraConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read camera definitions %s: %w", path, err)
	}

	defs, err := ParseCameraDefinitions(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("failed to parse camera definitions %s: %w", path, err)
	}

	return defs.CameraConfigs(user, password)
}

// ParseCameraDefinitions decodes definitions; ext selects YAML (.yaml/.yml) or JSON.
func ParseCameraDefinitions(data []byte, ext string) (*CameraDefinitions, error) {
	var defs CameraDefinitions

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &defs); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &defs); err != nil {
			return nil, err
		}
	}

	return &defs, nil
}

// CameraConfigs validates the definitions and converts them to camera configs.
func (d *CameraDefinitions) CameraConfigs(user, password string) ([]model.CameraConfig, error) {
	if len(d.Cameras) == 0 {
		return nil, ErrNoCameras
	}

	seen := make(map[string]bool, len(d.Cameras))
	fileNames := make(map[string]string, len(d.Cameras))
	cameras := make([]model.CameraConfig, 0, len(d.Cameras))

	for i, def := range d.Cameras {
		if def.Name == "" {
			return nil, fmt.Errorf("%w: entry %d has no name", ErrInvalidCamera, i)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("%w: duplicate name %q", ErrInvalidCamera, def.Name)
		}
		seen[def.Name] = true

		// Artifacts are named after the file name, so two cameras sharing one
		// would write the same files.
		fileName := model.FileName(def.Name)
		if other, ok := fileNames[fileName]; ok {
			return nil, fmt.Errorf("%w: names %q and %q both map to file name %q", ErrInvalidCamera, other, def.Name, fileName)
		}
		fileNames[fileName] = def.Name

		if def.RTSPURL == "" {
			return nil, fmt.Errorf("%w: camera %q has no rtsp_url", ErrInvalidCamera, def.Name)
		}
		for _, p := range def.CropPolygon {
			if p[0] < 0 || p[0] > 100 || p[1] < 0 || p[1] > 100 {
				return nil, fmt.Errorf("%w: camera %q polygon point %v outside [0,100]", ErrInvalidCamera, def.Name, p)
			}
		}

		cameras = append(cameras, model.CameraConfig{
			Name:        def.Name,
			SourceURI:   def.RTSPURL,
			User:        user,
			Password:    password,
			CropPolygon: def.CropPolygon,
		})
	}

	return cameras, nil
}
