package readings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/oshokin/smart-office/internal/domain/office"
	"github.com/oshokin/smart-office/internal/logger"
)

// connectTimeout bounds the initial connect and ping.
const connectTimeout = 10 * time.Second

// ErrEmptyURI is returned when no connection string is configured.
var ErrEmptyURI = errors.New("mongo uri is empty")

// Reading is one archived snapshot.
type Reading struct {
	At              time.Time `bson:"at"`
	DoorOpen        bool      `bson:"door_open"`
	LightOn         bool      `bson:"light_on"`
	FanOn           bool      `bson:"fan_on"`
	TemperatureC    float64   `bson:"temperature_c"`
	GarbageLevelPct float64   `bson:"garbage_level_pct"`
	GasDetected     bool      `bson:"gas_detected"`
	// Status is the alert summary at the time of the snapshot.
	Status string `bson:"status"`
}

// NewReading converts a snapshot. A zero UpdatedAt is replaced with now.
func NewReading(state office.SensorState, status string) Reading {
	at := state.UpdatedAt
	if at.IsZero() {
		at = time.Now()
	}

	return Reading{
		At:              at.UTC(),
		DoorOpen:        state.DoorOpen,
		LightOn:         state.LightOn,
		FanOn:           state.FanOn,
		TemperatureC:    state.TemperatureC,
		GarbageLevelPct: state.GarbageLevelPct,
		GasDetected:     state.GasDetected(),
		Status:          status,
	}
}

// Repository stores readings.
type Repository interface {
	InsertMany(ctx context.Context, readings []Reading) error
	Close(ctx context.Context) error
}

// MongoRepository writes readings into one collection.
type MongoRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

var _ Repository = (*MongoRepository)(nil)

// NewMongoRepository connects, pings the primary and ensures the time index.
func NewMongoRepository(ctx context.Context, uri, database, collection string) (*MongoRepository, error) {
	if uri == "" {
		return nil, ErrEmptyURI
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err = client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	coll := client.Database(database).Collection(collection)

	_, err = coll.Indexes().CreateOne(connectCtx, mongo.IndexModel{
		Keys: bson.D{{Key: "at", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)

		return nil, fmt.Errorf("failed to create index on %s.%s: %w", database, collection, err)
	}

	logger.InfoKV(ctx, "Connected to MongoDB", "database", database, "collection", collection)

	return &MongoRepository{
		client:     client,
		collection: coll,
	}, nil
}

// InsertMany writes the readings in one round trip. An empty batch is a no-op.
func (r *MongoRepository) InsertMany(ctx context.Context, readings []Reading) error {
	if len(readings) == 0 {
		return nil
	}

	res, err := r.collection.InsertMany(ctx, toDocuments(readings))
	if err != nil {
		return fmt.Errorf("failed to insert %d readings: %w", len(readings), err)
	}

	logger.DebugKV(ctx, "Readings archived", "count", len(res.InsertedIDs))

	return nil
}

// Close disconnects the client.
func (r *MongoRepository) Close(ctx context.Context) error {
	if r.client == nil {
		return nil
	}

	return r.client.Disconnect(ctx)
}

func toDocuments(readings []Reading) []any {
	documents := make([]any, len(readings))
	for i, reading := range readings {
		documents[i] = reading
	}

	return documents
}
