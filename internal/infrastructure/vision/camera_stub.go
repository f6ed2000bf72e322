//go:build !gocv
// +build !gocv

package vision

import (
	"context"
	"errors"

	"human-guard/internal/domain/port"
)

// ErrCameraUnsupported сборка без OpenCV
var ErrCameraUnsupported = errors.New("gocv build tag is not enabled")

// GoCVCamera камера-заглушка (без OpenCV).
type GoCVCamera struct {
	Device string
	Width  int
	Height int
}

// NewGoCVCamera создаёт камеру-заглушку.
func NewGoCVCamera(device string) *GoCVCamera {
	return &GoCVCamera{
		Device: device,
		Width:  1280,
		Height: 720,
	}
}

// Open возвращает ошибку, если сборка без тега gocv.
func (c *GoCVCamera) Open(ctx context.Context) (port.CameraStream, error) {
	_ = ctx
	return nil, ErrCameraUnsupported
}

var _ port.Camera = (*GoCVCamera)(nil)
