package device

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/disintegration/imaging"

	"sitepresence/internal/domain/capture"
	"sitepresence/internal/errs"
	"sitepresence/internal/ports"
)

// FileCamera serves frames from an image file, re-reading it on every frame.
// It stands in for a kiosk camera that drops snapshots to disk.
type FileCamera struct {
	path string
}

var _ ports.Camera = (*FileCamera)(nil)

func NewFileCamera(path string) *FileCamera {
	return &FileCamera{path: strings.TrimSpace(path)}
}

func (c *FileCamera) Start(ctx context.Context) (ports.CameraStream, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}
	if c.path == "" {
		return nil, fmt.Errorf("%w: no camera source configured", capture.ErrDeviceUnavailable)
	}

	f, err := os.Open(c.path)
	if err != nil {
		return nil, mapOpenError(err)
	}
	_ = f.Close()

	return &fileStream{path: c.path}, nil
}

type fileStream struct {
	path   string
	mu     sync.Mutex
	closed bool
}

func (s *fileStream) Frame(ctx context.Context) (image.Image, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, capture.ErrNoActiveStream
	}

	img, err := imaging.Open(s.path, imaging.AutoOrientation(true))
	if err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return nil, mapOpenError(err)
		}
		return nil, fmt.Errorf("%w: decode frame: %v", capture.ErrDeviceUnavailable, err)
	}
	return img, nil
}

func (s *fileStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func mapOpenError(err error) error {
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %v", capture.ErrPermissionDenied, err)
	default:
		return fmt.Errorf("%w: %v", capture.ErrDeviceUnavailable, err)
	}
}
