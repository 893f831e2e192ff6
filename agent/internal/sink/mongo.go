package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/waterworm/waterworm/agent/internal/compute"
)

// Mongo inserts one document per reading.
type Mongo struct {
	uri        string
	database   string
	collection string

	client *mongo.Client
	coll   *mongo.Collection
}

// NewMongo returns a sink writing to database.collection at uri.
func NewMongo(uri, database, collection string) *Mongo {
	return &Mongo{uri: uri, database: database, collection: collection}
}

func (m *Mongo) Name() string { return "mongo" }

// Connect dials, pings and makes sure the (source_id, ts) unique index exists.
func (m *Mongo) Connect(ctx context.Context) error {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(m.uri))
	if err != nil {
		return fmt.Errorf("sink: mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("sink: mongo ping: %w", err)
	}
	m.client = client
	m.coll = client.Database(m.database).Collection(m.collection)

	_, err = m.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "source_id", Value: 1}, {Key: "ts", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		slog.Warn("sink: mongo could not ensure index", "collection", m.collection, "err", err)
	}
	return nil
}

// Write inserts the reading. A duplicate (source_id, ts) is not an error.
func (m *Mongo) Write(ctx context.Context, res *compute.Result) error {
	if m.coll == nil {
		return errors.New("sink: mongo: not connected")
	}
	_, err := m.coll.InsertOne(ctx, document(res))
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("sink: mongo insert: %w", err)
	}
	return nil
}

func (m *Mongo) Close() error {
	if m.client == nil {
		return nil
	}
	err := m.client.Disconnect(context.Background())
	m.client, m.coll = nil, nil
	return err
}

// document is the BSON form of a reading.
func document(res *compute.Result) bson.D {
	rec := NewRecord(res)
	return bson.D{
		{Key: "source_id", Value: rec.SourceID},
		{Key: "source_type", Value: rec.SourceType},
		{Key: "ts", Value: rec.Timestamp},
		{Key: "amount", Value: rec.Amount},
		{Key: "increment", Value: rec.Increment},
		{Key: "large", Value: rec.Large},
		{Key: "state", Value: rec.State},
	}
}
