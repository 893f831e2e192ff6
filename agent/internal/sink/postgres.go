package sink

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/waterworm/waterworm/agent/internal/compute"
	"github.com/waterworm/waterworm/agent/internal/shipper"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Postgres appends readings to a table, one row per (source_id, ts).
type Postgres struct {
	dsn   string
	table string
	db    *sqlx.DB
	owned bool // db was opened by Connect and must be closed by Close
}

// NewPostgres returns a sink writing to table. The table name is checked
// here because it is interpolated into SQL.
func NewPostgres(dsn, table string) (*Postgres, error) {
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("sink: postgres: invalid table name %q", table)
	}
	return &Postgres{dsn: dsn, table: table}, nil
}

// NewPostgresWithDB wraps an existing handle. Connect only ensures the table.
func NewPostgresWithDB(db *sqlx.DB, table string) (*Postgres, error) {
	p, err := NewPostgres("", table)
	if err != nil {
		return nil, err
	}
	p.db = db
	return p, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) createTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + p.table + ` (
		source_id   TEXT             NOT NULL,
		source_type TEXT             NOT NULL,
		ts          TIMESTAMPTZ      NOT NULL,
		amount      DOUBLE PRECISION NOT NULL,
		increment   DOUBLE PRECISION NOT NULL,
		large       BOOLEAN          NOT NULL DEFAULT FALSE,
		state       TEXT             NOT NULL,
		PRIMARY KEY (source_id, ts)
	)`
}

func (p *Postgres) insertSQL() string {
	return `INSERT INTO ` + p.table + ` (source_id, source_type, ts, amount, increment, large, state)
		VALUES (:source_id, :source_type, :ts, :amount, :increment, :large, :state)
		ON CONFLICT (source_id, ts) DO NOTHING`
}

// Connect opens the database (unless a handle was injected) and creates the
// table if it does not exist.
func (p *Postgres) Connect(ctx context.Context) error {
	if p.db == nil {
		db, err := sqlx.ConnectContext(ctx, "postgres", p.dsn)
		if err != nil {
			return fmt.Errorf("sink: postgres connect: %w", err)
		}
		p.db = db
		p.owned = true
	}
	if _, err := p.db.ExecContext(ctx, p.createTableSQL()); err != nil {
		return fmt.Errorf("sink: postgres create table: %w", err)
	}
	return nil
}

// Write inserts one row. Rows already present for the same source and
// second are ignored.
func (p *Postgres) Write(ctx context.Context, res *compute.Result) error {
	if p.db == nil {
		return errors.New("sink: postgres: not connected")
	}
	if _, err := p.db.NamedExecContext(ctx, p.insertSQL(), NewRecord(res)); err != nil {
		var pqErr *pq.Error
		// Class 22 is data exception, 23 is integrity constraint violation.
		if errors.As(err, &pqErr) && (pqErr.Code.Class() == "22" || pqErr.Code.Class() == "23") {
			return fmt.Errorf("sink: postgres insert: %v: %w", err, shipper.ErrPermanent)
		}
		return fmt.Errorf("sink: postgres insert: %w", err)
	}
	return nil
}

// Close releases a handle opened by Connect. Injected handles stay open.
func (p *Postgres) Close() error {
	if p.db == nil || !p.owned {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	p.owned = false
	return err
}
