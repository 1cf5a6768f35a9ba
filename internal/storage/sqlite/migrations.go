package sqlite

const schema = `
-- Speed test runs
CREATE TABLE IF NOT EXISTS speed_tests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    success BOOLEAN NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',

    -- Ping phase
    latency_ms REAL NOT NULL DEFAULT 0,
    jitter_ms REAL NOT NULL DEFAULT 0,

    -- Throughput (bytes per second)
    download_bps REAL NOT NULL DEFAULT 0,
    upload_bps REAL NOT NULL DEFAULT 0,
    download_bytes INTEGER NOT NULL DEFAULT 0,
    upload_bytes INTEGER NOT NULL DEFAULT 0,

    server_colo TEXT NOT NULL DEFAULT '',
    external_ip TEXT NOT NULL DEFAULT '',
    tested_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Public IP lookups
CREATE TABLE IF NOT EXISTS ip_lookups (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    address TEXT NOT NULL DEFAULT '',
    service TEXT NOT NULL DEFAULT '',
    elapsed_ms INTEGER NOT NULL DEFAULT 0,
    success BOOLEAN NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    resolved_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Application settings
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Indexes for performance
CREATE INDEX IF NOT EXISTS idx_speed_tests_tested_at ON speed_tests(tested_at);
CREATE INDEX IF NOT EXISTS idx_ip_lookups_resolved_at ON ip_lookups(resolved_at);

-- Triggers for updated_at
CREATE TRIGGER IF NOT EXISTS update_settings_timestamp AFTER UPDATE ON settings
BEGIN
    UPDATE settings SET updated_at = CURRENT_TIMESTAMP WHERE key = NEW.key;
END;
`

const defaultData = `
-- Insert default settings
INSERT OR IGNORE INTO settings (key, value) VALUES
    ('speedtest.max_time', '5s'),
    ('speedtest.server', 'https://speed.cloudflare.com'),
    ('publicip.timeout', '600ms'),
    ('publicip.watch_interval', '5m'),
    ('log_level', 'info');
`

// runMigrations executes the database schema and default data
func runMigrations(db *DB) error {
	// Execute schema
	if _, err := db.db.Exec(schema); err != nil {
		return err
	}

	// Insert default data
	if _, err := db.db.Exec(defaultData); err != nil {
		return err
	}

	return nil
}
