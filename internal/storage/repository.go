package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrDuplicateAlert indicates an audit record with the same tv_id
	// already exists. The unique index turns the insert into the
	// authoritative duplicate check across processes.
	ErrDuplicateAlert = errors.New("storage: duplicate alert")
)

const uniqueViolationCode = "23505"

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS alerts (
        id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
        tv_id TEXT,
        raw TEXT NOT NULL,
        symbol TEXT NOT NULL,
        action TEXT NOT NULL,
        amount NUMERIC NOT NULL,
        status TEXT NOT NULL,
        response JSONB,
        created_at TIMESTAMPTZ NOT NULL DEFAULT now()
    );
    CREATE UNIQUE INDEX IF NOT EXISTS ux_alerts_tv_id
        ON alerts (tv_id) WHERE tv_id IS NOT NULL;
    CREATE TABLE IF NOT EXISTS meta (
        key TEXT PRIMARY KEY,
        value TEXT NOT NULL
    );`

	insertAlertSQL = `INSERT INTO alerts (
        tv_id, raw, symbol, action, amount, status, response
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    RETURNING id;`

	alertExistsSQL = `SELECT EXISTS(SELECT 1 FROM alerts WHERE tv_id = $1);`

	listRecentAlertsSQL = `SELECT
        id, tv_id, raw, symbol, action, amount::text, status, response, created_at
    FROM alerts
    ORDER BY created_at DESC
    LIMIT $1;`

	listAlertsBetweenSQL = `SELECT
        id, tv_id, raw, symbol, action, amount::text, status, response, created_at
    FROM alerts
    WHERE created_at >= $1
      AND created_at < $2
    ORDER BY created_at;`

	countAlertsSQL = `SELECT COUNT(*) FROM alerts;`

	getMetaSQL = `SELECT value FROM meta WHERE key = $1;`

	setMetaSQL = `INSERT INTO meta (key, value) VALUES ($1, $2)
    ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value;`
)

// AuditStore defines the persistence operations the pipeline depends on.
type AuditStore interface {
	InsertAlert(ctx context.Context, record AlertRecord) (int64, error)
	AlertExists(ctx context.Context, tvID string) (bool, error)
}

// CheckpointStore exposes the single-row meta checkpoint.
type CheckpointStore interface {
	GetCheckpoint(ctx context.Context, key string) (string, bool, error)
	SetCheckpoint(ctx context.Context, key, value string) error
}

// Store aggregates access to the alert audit log and the meta checkpoint.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the alerts and meta tables when absent.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, createSchemaSQL); execErr != nil {
		return fmt.Errorf("ensure schema: %w", execErr)
	}
	return nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAlert appends one audit record and returns its id. A tv_id that
// collides with an existing record reports ErrDuplicateAlert.
func (s *Store) InsertAlert(ctx context.Context, record AlertRecord) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}

	var tvID interface{}
	if record.TVID != nil {
		tvID = *record.TVID
	}

	var response interface{}
	if len(record.Response) > 0 {
		response = []byte(record.Response)
	}

	var id int64
	scanErr := pool.QueryRow(ctx, insertAlertSQL,
		tvID,
		record.Raw,
		record.Symbol,
		record.Action,
		record.Amount.String(),
		record.Status,
		response,
	).Scan(&id)
	if scanErr != nil {
		var pgErr *pgconn.PgError
		if errors.As(scanErr, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, ErrDuplicateAlert
		}
		return 0, fmt.Errorf("insert alert: %w", scanErr)
	}
	return id, nil
}

// AlertExists reports whether an audit record with this tv_id exists.
func (s *Store) AlertExists(ctx context.Context, tvID string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var exists bool
	if scanErr := pool.QueryRow(ctx, alertExistsSQL, tvID).Scan(&exists); scanErr != nil {
		return false, fmt.Errorf("alert exists: %w", scanErr)
	}
	return exists, nil
}

// ListRecentAlerts lists the most recent audit records.
func (s *Store) ListRecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAlertsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent alerts: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, limit)
}

// ListAlertsBetween lists audit records within a time window.
func (s *Store) ListAlertsBetween(ctx context.Context, from, to time.Time) ([]AlertRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listAlertsBetweenSQL, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list alerts between: %w", queryErr)
	}
	defer rows.Close()

	return collectAlerts(rows, 0)
}

// CountAlerts counts stored audit records.
func (s *Store) CountAlerts(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countAlertsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count alerts: %w", scanErr)
	}
	return count, nil
}

// GetCheckpoint reads a meta value; the second return reports presence.
func (s *Store) GetCheckpoint(ctx context.Context, key string) (string, bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", false, err
	}
	var value string
	scanErr := pool.QueryRow(ctx, getMetaSQL, key).Scan(&value)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get checkpoint: %w", scanErr)
	}
	return value, true, nil
}

// SetCheckpoint upserts a meta value.
func (s *Store) SetCheckpoint(ctx context.Context, key, value string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, setMetaSQL, key, value); execErr != nil {
		return fmt.Errorf("set checkpoint: %w", execErr)
	}
	return nil
}

func collectAlerts(rows pgx.Rows, sizeHint int) ([]AlertRecord, error) {
	records := make([]AlertRecord, 0, sizeHint)
	for rows.Next() {
		record, scanErr := scanAlert(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, record)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

func scanAlert(rows pgx.Rows) (AlertRecord, error) {
	var (
		record    AlertRecord
		tvID      *string
		amountStr string
		response  []byte
	)

	if err := rows.Scan(
		&record.ID,
		&tvID,
		&record.Raw,
		&record.Symbol,
		&record.Action,
		&amountStr,
		&record.Status,
		&response,
		&record.CreatedAt,
	); err != nil {
		return AlertRecord{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return AlertRecord{}, fmt.Errorf("parse amount: %w", err)
	}
	record.Amount = amount
	record.TVID = tvID
	if len(response) > 0 {
		record.Response = response
	}

	return record, nil
}

var _ AuditStore = (*Store)(nil)
var _ CheckpointStore = (*Store)(nil)
