package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
	repo "github.com/oshokin/smart-office/internal/repository/values"
)

// watcherBuffer is how many undelivered values a watcher may hold before it is dropped.
const watcherBuffer = 64

// service keeps the store values, persists them and fans changes out to watchers.
// It is unexported to keep the transport decoupled from the implementation.
type service struct {
	// repo handles persistent storage of the values.
	repo repo.Repository
	// values holds the current contents; unset keys are absent.
	values repo.Values
	// watchers are the open Watch calls per key.
	watchers map[office.Key]map[chan *structpb.Value]struct{}
	// mu protects values and watchers.
	mu sync.RWMutex
}

// newService creates a service backed by the provided repository.
func newService(ctx context.Context, repository repo.Repository) (*service, error) {
	s := &service{
		repo:     repository,
		values:   make(repo.Values),
		watchers: make(map[office.Key]map[chan *structpb.Value]struct{}),
	}

	if repository == nil {
		return s, nil
	}

	values, err := repository.Load(ctx)
	switch {
	case err == nil:
		s.values = values
	case errors.Is(err, repo.ErrNotFound):
		// Start empty.
	default:
		return nil, fmt.Errorf("load values: %w", err)
	}

	logger.InfoKV(ctx, "Store values loaded", "keys", len(s.values))

	return s, nil
}

// Get returns a copy of the value under key, nil when unset.
func (s *service) Get(_ context.Context, key office.Key) *structpb.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return cloneValue(s.values[key])
}

// Set stores value, persists the store and notifies watchers. A null value unsets the key.
func (s *service) Set(ctx context.Context, key office.Key, value *structpb.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.values.Clone()

	if _, isNull := value.GetKind().(*structpb.Value_NullValue); isNull || value.GetKind() == nil {
		delete(next, key)
	} else {
		next[key] = cloneValue(value)
	}

	if s.repo != nil {
		if err := s.repo.Save(ctx, next); err != nil {
			logger.Errorf(ctx, "Failed to persist store values: %v", err)

			return fmt.Errorf("persist values: %w", err)
		}
	}

	s.values = next

	for ch := range s.watchers[key] {
		select {
		case ch <- cloneValue(value):
		default:
			logger.WarnKV(ctx, "Dropping slow watcher", "key", key)
			delete(s.watchers[key], ch)
			close(ch)
		}
	}

	logger.DebugKV(ctx, "Store value updated", "key", key, "value", value)

	return nil
}

// Watch registers a watcher for key and returns the current value.
func (s *service) Watch(ctx context.Context, key office.Key) (*structpb.Value, <-chan *structpb.Value, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan *structpb.Value, watcherBuffer)

	if s.watchers[key] == nil {
		s.watchers[key] = make(map[chan *structpb.Value]struct{})
	}

	s.watchers[key][ch] = struct{}{}

	logger.DebugKV(ctx, "Watcher registered", "key", key)

	var once sync.Once

	stop := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if _, ok := s.watchers[key][ch]; ok {
				delete(s.watchers[key], ch)
				close(ch)
			}
		})
	}

	return cloneValue(s.values[key]), ch, stop
}

// number returns the stored number under key or def when unset or not a number.
func (s *service) number(key office.Key, def float64) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if v, ok := s.values[key].GetKind().(*structpb.Value_NumberValue); ok {
		return v.NumberValue
	}

	return def
}

func cloneValue(v *structpb.Value) *structpb.Value {
	if v == nil {
		return nil
	}

	out, _ := proto.Clone(v).(*structpb.Value)

	return out
}
