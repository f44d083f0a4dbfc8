package dashboard

import (
	"bytes"
	"context"
	"image/color"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/faceauth"
	"github.com/oshokin/smart-office/internal/repository/readings"
)

// fakeFaces answers every verification with the same result.
type fakeFaces struct {
	mu      sync.Mutex
	result  office.AuthResult
	err     error
	images  int
	users   []faceauth.User
	deleted []string
}

func (f *fakeFaces) Authenticate(_ context.Context, image []byte) (office.AuthResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(image) > 0 {
		f.images++
	}

	return f.result, f.err
}

func (f *fakeFaces) Users(context.Context) ([]faceauth.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.users, nil
}

func (f *fakeFaces) Register(_ context.Context, username string, image []byte) (faceauth.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.users = append(f.users, faceauth.User{Username: username, Image: image})

	return faceauth.Registration{ID: "id-" + username, Username: username}, nil
}

func (f *fakeFaces) DeleteUser(_ context.Context, username string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.deleted = append(f.deleted, username)

	return nil
}

func (f *fakeFaces) verified() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.images
}

// fakeRepo collects inserted batches.
type fakeRepo struct {
	mu      sync.Mutex
	batches [][]readings.Reading
	err     error
}

func (f *fakeRepo) InsertMany(_ context.Context, batch []readings.Reading) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, append([]readings.Reading(nil), batch...))

	return f.err
}

func (f *fakeRepo) Close(context.Context) error {
	return nil
}

func (f *fakeRepo) sizes() []int {
	f.mu.Lock()
	defer f.mu.Unlock()

	sizes := make([]int, 0, len(f.batches))
	for _, batch := range f.batches {
		sizes = append(sizes, len(batch))
	}

	return sizes
}

// jpegFrame encodes a solid frame of the given width.
func jpegFrame(t *testing.T, width int) []byte {
	t.Helper()

	var buf bytes.Buffer
	frame := imaging.New(width, width/2, color.NRGBA{R: 200, G: 120, B: 80, A: 255})
	require.NoError(t, imaging.Encode(&buf, frame, imaging.JPEG))

	return buf.Bytes()
}
