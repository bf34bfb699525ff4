package sink

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	_ "github.com/lib/pq"

	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/domain"
	"github.com/OTNL99/WEIGHLINK-AUTOMATION-SYSTEM-WAS/internal/ports"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

type PostgresConfig struct {
	ConnString string `yaml:"conn_string"`
	Table      string `yaml:"table"`
}

// PostgresSink appends each record as one row of a flat table:
//
//	CREATE TABLE readings (ts timestamptz, value numeric, raw text, metadata jsonb)
type PostgresSink struct {
	db        *sql.DB
	tableName string
	insert    string
}

func NewPostgresSink(db *sql.DB, table string) (*PostgresSink, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresSink{
		db:        db,
		tableName: table,
		insert:    "INSERT INTO " + table + " (ts, value, raw, metadata) VALUES ($1,$2,$3,$4)",
	}, nil
}

// OpenPostgres connects and pings the database so that an unreachable server leaves the
// session offline instead of failing every append.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.ConnString == "" {
		return nil, fmt.Errorf("%w: postgres conn_string is empty", ErrNotConfigured)
	}
	db, err := sql.Open("postgres", cfg.ConnString)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	s, err := NewPostgresSink(db, cfg.Table)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (p *PostgresSink) Name() string { return "postgres" }

func (p *PostgresSink) Append(ctx context.Context, r *domain.Record) error {
	meta, err := r.Metadata.JSON()
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	_, err = p.db.ExecContext(ctx, p.insert, r.Timestamp.UTC(), r.ValueText(), r.Raw, meta)
	return err
}

func (p *PostgresSink) Close() error {
	return p.db.Close()
}

var _ ports.RemoteSink = (*PostgresSink)(nil)
