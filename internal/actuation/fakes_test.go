package actuation

import (
	"context"
	"sync"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/notify"
)

// published is one captured remote write.
type published struct {
	key   office.Key
	value bool
}

// fakePublisher records writes instead of sending them.
type fakePublisher struct {
	mu     sync.Mutex
	writes []published
	err    error
}

func (f *fakePublisher) Publish(_ context.Context, key office.Key, value *structpb.Value) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err != nil {
		return &office.NetworkError{Op: "publish", Key: key, Err: f.err}
	}

	f.writes = append(f.writes, published{key: key, value: value.GetBoolValue()})

	return nil
}

func (f *fakePublisher) all() []published {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]published(nil), f.writes...)
}

// fixedState is a mirror that never receives the echo.
type fixedState struct {
	state office.SensorState
}

func (f fixedState) Snapshot() office.SensorState {
	return f.state
}

// note is one captured notification.
type note struct {
	message  string
	severity notify.Severity
}

// fakeNotifier records notifications.
type fakeNotifier struct {
	mu    sync.Mutex
	notes []note
}

func (f *fakeNotifier) Notify(_ context.Context, message string, severity notify.Severity) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.notes = append(f.notes, note{message: message, severity: severity})
}

func (f *fakeNotifier) all() []note {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]note(nil), f.notes...)
}
