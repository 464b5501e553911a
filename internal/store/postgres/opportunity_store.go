// Package postgres persists opportunity records in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/skillsync/harvester/internal/reconcile"
	"github.com/skillsync/harvester/internal/schema"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for opportunity rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// pool is the subset of pgxpool.Pool the store needs; pgxmock satisfies it
// in tests.
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// OpportunityStore implements reconcile.Store on top of a pgx pool. Column
// names and order come from the schema registry; the SQL is built once at
// construction.
type OpportunityStore struct {
	pool      pool
	table     string
	registry  *schema.Registry
	logger    *zap.Logger
	selectSQL string
	insertSQL string
	updateSQL string
}

var _ reconcile.Store = (*OpportunityStore)(nil)

// New creates a Postgres-backed store using the provided config.
func New(ctx context.Context, cfg Config, registry *schema.Registry, logger *zap.Logger) (*OpportunityStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return NewWithPool(p, cfg.Table, registry, logger)
}

// NewWithPool constructs a store from an existing pool (primarily for
// testing).
func NewWithPool(p pool, table string, registry *schema.Registry, logger *zap.Logger) (*OpportunityStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if table == "" {
		table = "skillbridge_opportunities"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	s := &OpportunityStore{
		pool:     p,
		table:    table,
		registry: registry,
		logger:   logger,
	}
	s.buildSQL()
	return s, nil
}

// Close releases the underlying pool resources.
func (s *OpportunityStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// LoadAll reads every persisted opportunity row once. Values come back in
// DBColumns order and are mapped onto full schema records.
func (s *OpportunityStore) LoadAll(ctx context.Context) ([]schema.Record, error) {
	rows, err := s.pool.Query(ctx, s.selectSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: read persisted set: %v", reconcile.ErrStore, err)
	}
	defer rows.Close()

	cols := s.registry.DBColumns()
	var records []schema.Record
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: scan persisted row: %v", reconcile.ErrStore, err)
		}
		rec := s.registry.NewRecord()
		for i, name := range cols {
			if i < len(values) {
				rec[name] = values[i]
			}
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate persisted set: %v", reconcile.ErrStore, err)
	}
	s.logger.Debug("Persisted set loaded", zap.Int("rows", len(records)))
	return records, nil
}

// Apply writes the change set inside a single transaction. Any failure
// rolls the whole batch back.
func (s *OpportunityStore) Apply(ctx context.Context, changes reconcile.ChangeSet) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", reconcile.ErrStore, err)
	}

	if err := s.applyTx(ctx, tx, changes); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Warn("Rollback failed", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit transaction: %v", reconcile.ErrStore, err)
	}
	return nil
}

func (s *OpportunityStore) applyTx(ctx context.Context, tx pgx.Tx, changes reconcile.ChangeSet) error {
	for _, rec := range changes.Inserts {
		if _, err := tx.Exec(ctx, s.insertSQL, s.registry.OrderedValues(rec)...); err != nil {
			return fmt.Errorf("%w: insert row: %v", reconcile.ErrStore, err)
		}
	}
	for _, rec := range changes.Updates {
		args := make([]any, 0, len(s.registry.DBColumns()))
		for _, name := range s.registry.NonIdentityColumns() {
			args = append(args, rec[name])
		}
		// The WHERE clause matches on the candidate's literal identity
		// values; normalization is only for identifier derivation.
		args = append(args, rec[schema.FieldAgency], rec[schema.FieldCity], rec[schema.FieldState])
		if _, err := tx.Exec(ctx, s.updateSQL, args...); err != nil {
			return fmt.Errorf("%w: update row: %v", reconcile.ErrStore, err)
		}
	}
	return nil
}

func (s *OpportunityStore) buildSQL() {
	cols := s.registry.DBColumns()
	s.selectSQL = fmt.Sprintf("SELECT %s FROM %s", strings.Join(cols, ", "), s.table)

	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	s.insertSQL = fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		s.table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	nonIdentity := s.registry.NonIdentityColumns()
	sets := make([]string, len(nonIdentity))
	for i, name := range nonIdentity {
		sets[i] = fmt.Sprintf("%s = $%d", name, i+1)
	}
	n := len(nonIdentity)
	s.updateSQL = fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d AND %s = $%d AND %s = $%d",
		s.table, strings.Join(sets, ", "),
		schema.FieldAgency, n+1,
		schema.FieldCity, n+2,
		schema.FieldState, n+3,
	)
}
