package sink

import (
	"time"

	"github.com/waterworm/waterworm/agent/internal/compute"
	"github.com/waterworm/waterworm/agent/internal/config"
	"github.com/waterworm/waterworm/agent/internal/shipper"
)

// Record is the stored form of one reading, shared by every sink.
type Record struct {
	SourceID   string    `json:"source_id" db:"source_id" bson:"source_id"`
	SourceType string    `json:"source_type" db:"source_type" bson:"source_type"`
	Timestamp  time.Time `json:"ts" db:"ts" bson:"ts"`
	Amount     float64   `json:"amount" db:"amount" bson:"amount"`
	Increment  float64   `json:"increment" db:"increment" bson:"increment"`
	Large      bool      `json:"large" db:"large" bson:"large"`
	State      string    `json:"state" db:"state" bson:"state"`
}

// NewRecord converts a compute.Result. Timestamps are stored in UTC with
// second precision, matching the progress log.
func NewRecord(res *compute.Result) Record {
	return Record{
		SourceID:   res.SourceID,
		SourceType: res.SourceType,
		Timestamp:  res.Timestamp.UTC().Truncate(time.Second),
		Amount:     res.Amount,
		Increment:  res.Increment,
		Large:      res.Large,
		State:      res.State,
	}
}

// Build returns one Sink per enabled entry in cfg.
func Build(cfg config.SinksConfig) ([]shipper.Sink, error) {
	var out []shipper.Sink
	if cfg.Postgres.Enabled {
		pg, err := NewPostgres(cfg.Postgres.DSN(), cfg.Postgres.Table)
		if err != nil {
			return nil, err
		}
		out = append(out, pg)
	}
	if cfg.Mongo.Enabled {
		out = append(out, NewMongo(cfg.Mongo.URI(), cfg.Mongo.Database, cfg.Mongo.Collection))
	}
	if cfg.Redis.Enabled {
		out = append(out, NewRedis(cfg.Redis.Addr, cfg.Redis.Password(), cfg.Redis.DB, cfg.Redis.Prefix))
	}
	return out, nil
}
