package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"

	"go-link-registry/expiry"
	"go-link-registry/types"
)

const (
	createTableQuery = `
		CREATE TABLE IF NOT EXISTS link_records (
			code       TEXT PRIMARY KEY,
			target_url TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			expires_at TIMESTAMPTZ NULL,
			is_custom  BOOLEAN NOT NULL DEFAULT FALSE
		)`

	createExpiryIndexQuery = `
		CREATE INDEX IF NOT EXISTS link_records_expires_at_idx
		ON link_records (expires_at) WHERE expires_at IS NOT NULL`

	// The conflict branch only fires for rows that are already expired, so
	// a live row is never overwritten and the statement affects 0 rows.
	putQuery = `
		INSERT INTO link_records (code, target_url, created_at, expires_at, is_custom)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET target_url = EXCLUDED.target_url,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at,
			is_custom  = EXCLUDED.is_custom
		WHERE link_records.expires_at IS NOT NULL AND link_records.expires_at <= $6`

	getQuery = `
		SELECT code, target_url, created_at, expires_at, is_custom
		FROM link_records
		WHERE code = $1`

	evictQuery = `
		DELETE FROM link_records
		WHERE expires_at IS NOT NULL AND expires_at <= $1`
)

// PostgresConfig holds connection pool settings.
type PostgresConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration // Upper bound for a single statement
}

// DefaultPostgresConfig returns pool settings suitable for a single service instance.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
		QueryTimeout:    5 * time.Second,
	}
}

// OpenPostgres opens a pgx-backed *sql.DB and verifies the connection.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.QueryTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	return db, nil
}

// PostgresStorage implements Storage on a link_records table.
type PostgresStorage struct {
	db      *sql.DB
	timeout time.Duration
	clock   expiry.Clock
	logger  *zap.Logger
}

// NewPostgresStorage wraps an open database. The storage takes ownership of db.
func NewPostgresStorage(db *sql.DB, timeout time.Duration, clock expiry.Clock, logger *zap.Logger) *PostgresStorage {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if clock == nil {
		clock = expiry.SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStorage{
		db:      db,
		timeout: timeout,
		clock:   clock,
		logger:  logger,
	}
}

// Migrate creates the table and index if they do not exist yet.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	for _, query := range []string{createTableQuery, createExpiryIndexQuery} {
		if _, err := s.db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("migrating link_records: %w", err)
		}
	}
	s.logger.Info("link_records table ready")
	return nil
}

// Put inserts the record, or replaces an expired row under the same code,
// in a single statement.
func (s *PostgresStorage) Put(ctx context.Context, record types.LinkRecord) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var expiresAt sql.NullTime
	if record.ExpiresAt != nil {
		expiresAt = sql.NullTime{Time: *record.ExpiresAt, Valid: true}
	}

	result, err := s.db.ExecContext(ctx, putQuery,
		record.Code,
		record.TargetURL,
		record.CreatedAt,
		expiresAt,
		record.IsCustom,
		s.clock(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrCodeConflict
		}
		s.logger.Error("Failed to store link", zap.String("code", record.Code), zap.Error(err))
		return fmt.Errorf("inserting link %q: %w", record.Code, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		s.logger.Debug("Code is held by a live link", zap.String("code", record.Code))
		return ErrCodeConflict
	}
	return nil
}

// Get retrieves the record stored under code.
func (s *PostgresStorage) Get(ctx context.Context, code string) (types.LinkRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		record    types.LinkRecord
		expiresAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, getQuery, code).Scan(
		&record.Code,
		&record.TargetURL,
		&record.CreatedAt,
		&expiresAt,
		&record.IsCustom,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return types.LinkRecord{}, ErrNotFound
	}
	if err != nil {
		return types.LinkRecord{}, fmt.Errorf("querying link %q: %w", code, err)
	}

	if expiresAt.Valid {
		t := expiresAt.Time
		record.ExpiresAt = &t
	}
	return record, nil
}

// ContainsLive reports whether a live record is stored under code.
func (s *PostgresStorage) ContainsLive(ctx context.Context, code string) (bool, error) {
	record, err := s.Get(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return expiry.IsLive(record, s.clock()), nil
}

// EvictExpired deletes every expired row.
func (s *PostgresStorage) EvictExpired(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result, err := s.db.ExecContext(ctx, evictQuery, s.clock())
	if err != nil {
		return 0, fmt.Errorf("evicting expired links: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	if n > 0 {
		s.logger.Info("Evicted expired links", zap.Int64("count", n))
	}
	return int(n), nil
}

// Ping checks the connection to the database.
func (s *PostgresStorage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
