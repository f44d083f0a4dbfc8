package memory

import (
	"context"
	"errors"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
)

var (
	// ErrClosed is returned once the store is closed.
	ErrClosed = errors.New("memory store closed")
	// ErrDisconnected ends the watches cut by Disconnect.
	ErrDisconnected = errors.New("memory store disconnected")
)

// Store keeps values in a map and fans changes out to watchers.
type Store struct {
	mu       sync.Mutex
	values   map[office.Key]*structpb.Value
	watchers map[office.Key]map[*watcher]struct{}
	closed   bool
	// failSet, when set, is returned by every Set.
	failSet error
}

// watcher is an unbounded queue drained by one Watch call.
type watcher struct {
	mu      sync.Mutex
	pending []*structpb.Value
	signal  chan struct{}
	cut     chan error
}

func newWatcher() *watcher {
	return &watcher{
		signal: make(chan struct{}, 1),
		cut:    make(chan error, 1),
	}
}

func (w *watcher) push(v *structpb.Value) {
	w.mu.Lock()
	w.pending = append(w.pending, v)
	w.mu.Unlock()

	select {
	case w.signal <- struct{}{}:
	default:
	}
}

func (w *watcher) drain() []*structpb.Value {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := w.pending
	w.pending = nil

	return out
}

// New creates an empty store.
func New() *Store {
	return &Store{
		values:   make(map[office.Key]*structpb.Value),
		watchers: make(map[office.Key]map[*watcher]struct{}),
	}
}

// Get returns a copy of the stored value, nil when unset.
func (s *Store) Get(_ context.Context, key office.Key) (*structpb.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrClosed
	}

	return clone(s.values[key]), nil
}

// Set stores value and queues it for every watcher of key.
func (s *Store) Set(_ context.Context, key office.Key, value *structpb.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	if s.failSet != nil {
		return s.failSet
	}

	s.values[key] = clone(value)

	for w := range s.watchers[key] {
		w.push(clone(value))
	}

	return nil
}

// FailWrites makes every following Set return err. A nil err restores writes.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failSet = err
}

// Watch implements remote.Backend.
func (s *Store) Watch(ctx context.Context, key office.Key, deliver func(*structpb.Value)) error {
	w := newWatcher()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()

		return ErrClosed
	}

	if s.watchers[key] == nil {
		s.watchers[key] = make(map[*watcher]struct{})
	}

	s.watchers[key][w] = struct{}{}
	w.push(clone(s.values[key]))
	s.mu.Unlock()

	defer s.remove(key, w)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-w.cut:
			return err
		case <-w.signal:
			for _, v := range w.drain() {
				if ctx.Err() != nil {
					return ctx.Err()
				}

				deliver(v)
			}
		}
	}
}

// Disconnect ends every active watch with ErrDisconnected.
func (s *Store) Disconnect() {
	s.cutAll(ErrDisconnected)
}

// Close ends every watch and rejects further calls.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cutAll(ErrClosed)

	return nil
}

func (s *Store) cutAll(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, set := range s.watchers {
		for w := range set {
			select {
			case w.cut <- err:
			default:
			}
		}
	}
}

func (s *Store) remove(key office.Key, w *watcher) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.watchers[key], w)
}

func clone(v *structpb.Value) *structpb.Value {
	if v == nil {
		return nil
	}

	out, _ := proto.Clone(v).(*structpb.Value)

	return out
}
