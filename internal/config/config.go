package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/go-playground/validator.v9"
	"gopkg.in/robfig/cron.v2"
	"gopkg.in/yaml.v3"
)

// Config holds the settings of both smart-office binaries.
type Config struct {
	// LogLevel is one of debug, info, warn or error.
	LogLevel string `yaml:"log_level" default:"info" validate:"oneof=debug info warn warning error"`
	// Store configures the realtime store and the dashboard's connection to it.
	Store Store `yaml:"store"`
	// Dashboard configures the HTTP API.
	Dashboard Dashboard `yaml:"dashboard"`
	// FaceAPI points at the biometric verification service.
	FaceAPI FaceAPI `yaml:"face_api"`
	// Camera selects where still frames come from.
	Camera Camera `yaml:"camera"`
	// Notifications sets the toast lifetime.
	Notifications Notifications `yaml:"notifications"`
	// Gas configures the demo gas trigger.
	Gas Gas `yaml:"gas"`
	// Archive configures the optional MongoDB readings archive.
	Archive Archive `yaml:"archive"`
}

// Store backend names.
const (
	BackendGRPC   = "grpc"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store configures the realtime key/value store.
type Store struct {
	// Backend is grpc, redis or memory.
	Backend string `yaml:"backend" default:"grpc" validate:"oneof=grpc redis memory"`
	// Address is the office-store gRPC address, used to dial and to listen.
	Address string `yaml:"address" default:"127.0.0.1:50051" validate:"required,hostport"`
	// RedisURL is used by the redis backend.
	RedisURL string `yaml:"redis_url" default:"redis://127.0.0.1:6379/0"`
	// RedisPrefix is prepended to every Redis key and channel.
	RedisPrefix string `yaml:"redis_prefix" default:"smart-office:"`
	// Timeout bounds each store call.
	Timeout time.Duration `yaml:"timeout" default:"5s" validate:"gt=0"`
	// Reconnect controls what happens when a subscription drops.
	Reconnect Reconnect `yaml:"reconnect"`
	// StateFile is where office-store keeps its values.
	StateFile string `yaml:"state_file" default:"smart-office-state.json"`
	// Simulate is a cron spec driving the sensor simulator, empty disables it.
	Simulate string `yaml:"simulate"`
}

// Reconnect modes.
const (
	ReconnectNone  = "none"
	ReconnectFixed = "fixed"
)

// Reconnect configures re-subscription after a dropped watch.
type Reconnect struct {
	Mode  string        `yaml:"mode" default:"none" validate:"oneof=none fixed"`
	Delay time.Duration `yaml:"delay" default:"2s" validate:"gte=0"`
	// MaxAttempts of 0 retries forever.
	MaxAttempts int `yaml:"max_attempts" validate:"gte=0"`
}

// Dashboard configures the HTTP API.
type Dashboard struct {
	ListenAddress  string   `yaml:"listen_address" default:"127.0.0.1:8080" validate:"required,hostport"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// FaceAPI configures the biometric service client.
type FaceAPI struct {
	BaseURL string        `yaml:"base_url" default:"https://face-lock-api.onrender.com" validate:"required,url"`
	Timeout time.Duration `yaml:"timeout" default:"30s" validate:"gt=0"`
}

// Camera configures still capture. SnapshotURL wins over ImagePath.
type Camera struct {
	SnapshotURL string `yaml:"snapshot_url" validate:"omitempty,url"`
	ImagePath   string `yaml:"image_path"`
	Width       int    `yaml:"width" default:"640" validate:"gt=0"`
	JPEGQuality int    `yaml:"jpeg_quality" default:"80" validate:"min=1,max=100"`
}

// Notifications configures toast timing. Both phases are always present,
// a zero duration means the default.
type Notifications struct {
	VisibleFor time.Duration `yaml:"visible_for" default:"3s" validate:"gt=0"`
	ExitFor    time.Duration `yaml:"exit_for" default:"300ms" validate:"gt=0"`
}

// Gas configures the demo trigger.
type Gas struct {
	// DemoAfter raises the gas alarm once after startup, 0 disables it.
	DemoAfter time.Duration `yaml:"demo_after" validate:"gte=0"`
}

// Archive configures the readings archive. An empty MongoURI disables it.
type Archive struct {
	MongoURI   string `yaml:"mongo_uri"`
	Database   string `yaml:"database" default:"smart_office"`
	Collection string `yaml:"collection" default:"readings"`
	// BatchSize is how many readings go into one insert.
	BatchSize int `yaml:"batch_size" default:"50" validate:"gt=0"`
	// FlushInterval writes a partial batch after this long.
	FlushInterval time.Duration `yaml:"flush_interval" default:"30s" validate:"gt=0"`
}

const (
	// DefaultConfigFilename is the default filename for settings.
	DefaultConfigFilename = "smart-office-settings.yaml"

	// DefaultTimeout is the default duration for network operations.
	DefaultTimeout = 5 * time.Second

	// DefaultFilePermissions is the default file permission for config and state files.
	DefaultFilePermissions = 0o600
)

var (
	// errConfigIsNotSet is returned when a nil configuration is provided.
	errConfigIsNotSet = errors.New("configuration is not set")
	// errRedisURLRequired is returned when the redis backend has no URL.
	errRedisURLRequired = errors.New("redis_url must be provided for the redis backend")

	validate = newValidator()
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := new(Config)
	defaults.MustSet(cfg)

	return cfg
}

// Load reads configuration from the provided path, applies defaults and validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultConfigFilename
	}

	contents, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Save writes the configuration to the provided path.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if path == "" {
		path = DefaultConfigFilename
	}

	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	// Restrict permissions.
	if err := os.WriteFile(filepath.Clean(path), data, DefaultFilePermissions); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}

	return nil
}

// Validate fills defaults and checks the settings for required fields and formatting.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errConfigIsNotSet
	}

	if err := defaults.Set(cfg); err != nil {
		return fmt.Errorf("set defaults: %w", err)
	}

	if err := validate.Struct(cfg); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			first := fieldErrors[0]

			return fmt.Errorf("invalid %s: failed %q check", first.Namespace(), first.Tag())
		}

		return fmt.Errorf("validate settings: %w", err)
	}

	if cfg.Store.Backend == BackendRedis {
		if cfg.Store.RedisURL == "" {
			return errRedisURLRequired
		}

		if _, err := url.Parse(cfg.Store.RedisURL); err != nil {
			return fmt.Errorf("invalid redis url: %w", err)
		}
	}

	if cfg.Store.Simulate != "" {
		if _, err := cron.Parse(cfg.Store.Simulate); err != nil {
			return fmt.Errorf("invalid simulate schedule: %w", err)
		}
	}

	return nil
}

func newValidator() *validator.Validate {
	v := validator.New()

	if err := v.RegisterValidation("hostport", hostPort); err != nil {
		panic(fmt.Sprintf("register hostport validation: %v", err))
	}

	return v
}

// hostPort accepts host:port pairs with a numeric port.
func hostPort(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}

	n, err := strconv.Atoi(port)

	return err == nil && n >= 0 && n <= 65535
}
