package camera

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/oshokin/smart-office/internal/logger"
)

// Stream yields frames until closed.
type Stream interface {
	Frame(ctx context.Context) (image.Image, error)
	Close() error
}

// Source opens streams.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

const (
	// DefaultWidth is the width frames are scaled down to.
	DefaultWidth = 640
	// DefaultJPEGQuality is the encoder quality.
	DefaultJPEGQuality = 80
)

// ErrEmptyFrame is returned when a stream yields no image.
var ErrEmptyFrame = errors.New("empty frame")

// Option configures a Capturer.
type Option func(*Capturer)

// WithWidth sets the maximum frame width.
func WithWidth(width int) Option {
	return func(c *Capturer) {
		if width > 0 {
			c.width = width
		}
	}
}

// WithJPEGQuality sets the encoder quality in [1,100].
func WithJPEGQuality(quality int) Option {
	return func(c *Capturer) {
		if quality >= 1 && quality <= 100 {
			c.quality = quality
		}
	}
}

// Capturer takes one normalized still from a Source.
type Capturer struct {
	source  Source
	width   int
	quality int
}

// NewCapturer creates a capturer over source.
func NewCapturer(source Source, opts ...Option) *Capturer {
	c := &Capturer{
		source:  source,
		width:   DefaultWidth,
		quality: DefaultJPEGQuality,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Capture opens a stream, reads one frame and returns it as JPEG.
// The stream is closed on every path.
func (c *Capturer) Capture(ctx context.Context) (_ []byte, err error) {
	stream, err := c.source.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("open camera: %w", err)
	}

	defer func() {
		if closeErr := stream.Close(); closeErr != nil {
			logger.WarnKV(ctx, "Camera stream not closed cleanly", "error", closeErr)
		}
	}()

	frame, err := stream.Frame(ctx)
	if err != nil {
		return nil, fmt.Errorf("read frame: %w", err)
	}

	if frame == nil || frame.Bounds().Empty() {
		return nil, ErrEmptyFrame
	}

	return c.normalize(frame)
}

func (c *Capturer) normalize(frame image.Image) ([]byte, error) {
	if frame.Bounds().Dx() > c.width {
		frame = imaging.Resize(frame, c.width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, frame, imaging.JPEG, imaging.JPEGQuality(c.quality)); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}

	return buf.Bytes(), nil
}
