package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"nodectl/internal/storage"
	"nodectl/internal/storage/models"
	pkgerrors "nodectl/pkg/errors"
)

// Ensure DB implements the interface.
var _ storage.Storage = (*DB)(nil)

// DB implements the Storage interface using SQLite
type DB struct {
	db *sql.DB
}

// New creates a new SQLite storage instance
func New(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	storage := &DB{db: db}

	// Run migrations
	if err := runMigrations(storage); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// ─── Settings operations ────────────────────────────────────────────────────

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, key)
	}
	if err != nil {
		return "", err
	}
	return value, nil
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	query := `
		INSERT INTO settings (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	_, err := d.db.ExecContext(ctx, query, key, value)
	return err
}

func (d *DB) DeleteSetting(ctx context.Context, key string) error {
	result, err := d.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key)
	if err != nil {
		return err
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", pkgerrors.ErrSettingNotFound, key)
	}
	return nil
}

func (d *DB) GetAllSettings(ctx context.Context) (map[string]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT key, value FROM settings")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, rows.Err()
}

// ─── Speed test operations ──────────────────────────────────────────────────

const speedTestColumns = `id, run_id, success, error_message, latency_ms, jitter_ms,
	download_bps, upload_bps, download_bytes, upload_bytes, server_colo, external_ip, tested_at`

func (d *DB) RecordSpeedTest(ctx context.Context, test *models.SpeedTest) error {
	if test.TestedAt.IsZero() {
		test.TestedAt = time.Now()
	}
	query := `
		INSERT INTO speed_tests (run_id, success, error_message, latency_ms, jitter_ms,
			download_bps, upload_bps, download_bytes, upload_bytes, server_colo, external_ip, tested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query,
		test.RunID, test.Success, test.ErrorMessage, test.LatencyMS, test.JitterMS,
		test.DownloadBps, test.UploadBps, test.DownloadBytes, test.UploadBytes,
		test.ServerColo, test.ExternalIP, test.TestedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record speed test: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	test.ID = id
	return nil
}

func (d *DB) GetLatestSpeedTest(ctx context.Context) (*models.SpeedTest, error) {
	history, err := d.GetSpeedTestHistory(ctx, 1)
	if err != nil || len(history) == 0 {
		return nil, err
	}
	return history[0], nil
}

func (d *DB) GetSpeedTestHistory(ctx context.Context, limit int) ([]*models.SpeedTest, error) {
	query := `SELECT ` + speedTestColumns + `
		FROM speed_tests
		ORDER BY tested_at DESC, id DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []*models.SpeedTest
	for rows.Next() {
		test := &models.SpeedTest{}
		err := rows.Scan(
			&test.ID, &test.RunID, &test.Success, &test.ErrorMessage, &test.LatencyMS, &test.JitterMS,
			&test.DownloadBps, &test.UploadBps, &test.DownloadBytes, &test.UploadBytes,
			&test.ServerColo, &test.ExternalIP, &test.TestedAt,
		)
		if err != nil {
			return nil, err
		}
		tests = append(tests, test)
	}
	return tests, rows.Err()
}

// ─── Public IP operations ───────────────────────────────────────────────────

func (d *DB) RecordIPLookup(ctx context.Context, lookup *models.IPLookup) error {
	if lookup.ResolvedAt.IsZero() {
		lookup.ResolvedAt = time.Now()
	}
	query := `
		INSERT INTO ip_lookups (address, service, elapsed_ms, success, error_message, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := d.db.ExecContext(ctx, query,
		lookup.Address, lookup.Service, lookup.ElapsedMS, lookup.Success, lookup.ErrorMessage,
		lookup.ResolvedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record ip lookup: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	lookup.ID = id
	return nil
}

func (d *DB) GetLatestIPLookup(ctx context.Context) (*models.IPLookup, error) {
	query := `
		SELECT id, address, service, elapsed_ms, success, error_message, resolved_at
		FROM ip_lookups
		WHERE success = 1
		ORDER BY resolved_at DESC, id DESC
		LIMIT 1
	`
	lookup := &models.IPLookup{}
	err := d.db.QueryRowContext(ctx, query).Scan(
		&lookup.ID, &lookup.Address, &lookup.Service, &lookup.ElapsedMS,
		&lookup.Success, &lookup.ErrorMessage, &lookup.ResolvedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return lookup, nil
}

func (d *DB) GetIPHistory(ctx context.Context, limit int) ([]*models.IPLookup, error) {
	query := `
		SELECT id, address, service, elapsed_ms, success, error_message, resolved_at
		FROM ip_lookups
		ORDER BY resolved_at DESC, id DESC
		LIMIT ?
	`
	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lookups []*models.IPLookup
	for rows.Next() {
		lookup := &models.IPLookup{}
		err := rows.Scan(
			&lookup.ID, &lookup.Address, &lookup.Service, &lookup.ElapsedMS,
			&lookup.Success, &lookup.ErrorMessage, &lookup.ResolvedAt,
		)
		if err != nil {
			return nil, err
		}
		lookups = append(lookups, lookup)
	}
	return lookups, rows.Err()
}
