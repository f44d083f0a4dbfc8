package camera

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"net/http"

	"github.com/disintegration/imaging"
)

// FileSource reads frames from an image file on disk.
type FileSource struct {
	Path string
}

// Open implements Source.
func (s FileSource) Open(context.Context) (Stream, error) {
	return &fileStream{path: s.Path}, nil
}

type fileStream struct {
	path string
}

func (s *fileStream) Frame(context.Context) (image.Image, error) {
	img, err := imaging.Open(s.path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}

	return img, nil
}

func (s *fileStream) Close() error {
	return nil
}

// BytesSource decodes frames from an already captured image.
type BytesSource struct {
	Data []byte
}

// Open implements Source.
func (s BytesSource) Open(context.Context) (Stream, error) {
	return &readerStream{body: io.NopCloser(bytes.NewReader(s.Data))}, nil
}

// SnapshotSource fetches frames from an HTTP snapshot endpoint such as an IP camera.
type SnapshotSource struct {
	URL    string
	Client *http.Client
}

// Open implements Source. The snapshot is requested once per stream.
func (s SnapshotSource) Open(ctx context.Context) (Stream, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, fmt.Errorf("fetch snapshot: status %d", resp.StatusCode)
	}

	return &readerStream{body: resp.Body}, nil
}

// readerStream decodes a single frame from a body.
type readerStream struct {
	body io.ReadCloser
}

func (s *readerStream) Frame(context.Context) (image.Image, error) {
	img, err := imaging.Decode(s.body, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	return img, nil
}

func (s *readerStream) Close() error {
	return s.body.Close()
}
