package values

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/smart-office/internal/config"
	"github.com/oshokin/smart-office/internal/domain/office"
)

// Values maps store keys to their last written value.
type Values map[office.Key]*structpb.Value

// Clone returns a deep copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for key, value := range v {
		out[key], _ = proto.Clone(value).(*structpb.Value)
	}

	return out
}

// Repository defines persistence operations for the store values.
type Repository interface {
	Load(ctx context.Context) (Values, error)
	Save(ctx context.Context, values Values) error
}

// FileRepository persists the values to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON file.
	path string
	// mu protects concurrent access to the file.
	mu sync.Mutex
}

// ErrNotFound is returned when the state file does not exist yet.
var ErrNotFound = errors.New("values not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads the values from disk. Keys the store no longer knows are skipped.
func (r *FileRepository) Load(_ context.Context) (Values, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	values := make(Values, len(doc.GetFields()))

	for name, value := range doc.GetFields() {
		key, err := office.ParseKey(name)
		if err != nil {
			continue
		}

		values[key] = value
	}

	return values, nil
}

// Save writes the values to disk.
func (r *FileRepository) Save(_ context.Context, values Values) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(values))}
	for key, value := range values {
		doc.Fields[key.String()] = value
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode values: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}
