package store

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/divviup/divviup-console/internal/errors"
	"github.com/divviup/divviup-console/internal/models"
)

// SQLiteStore is a Store backed by a SQLite file in WAL mode. It is safe
// for concurrent use.
type SQLiteStore struct {
	mu       sync.RWMutex
	db       *sql.DB
	settings SettingsStore
}

// NewSQLiteStore opens (creating if needed) the database at dbPath and
// brings its schema up to date.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, &errors.ErrDirectoryCreate{Path: dir, Err: err}
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, &errors.ErrDatabaseOpen{Path: dbPath, Err: err}
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	settings, err := NewSQLiteSettingsStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, settings: settings}, nil
}

func runMigrations(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "create migrations table", Err: err}
	}

	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "get current migration version", Err: err}
	}

	migrations := []struct {
		version int
		up      string
	}{
		{
			version: 1,
			up: `
				CREATE TABLE IF NOT EXISTS collector_keys (
					credential_id TEXT PRIMARY KEY,
					account_id TEXT NOT NULL,
					name TEXT NOT NULL DEFAULT '',
					hpke_config TEXT NOT NULL,
					private_key TEXT NOT NULL,
					created_at DATETIME DEFAULT CURRENT_TIMESTAMP
				);

				CREATE INDEX IF NOT EXISTS idx_collector_keys_account_id ON collector_keys(account_id);
			`,
		},
		{
			version: 2,
			up: `
				CREATE TABLE IF NOT EXISTS notified_jobs (
					job_id TEXT PRIMARY KEY,
					notified_at INTEGER NOT NULL
				);

				CREATE INDEX IF NOT EXISTS idx_notified_jobs_notified_at ON notified_jobs(notified_at);
			`,
		},
	}

	tx, err := db.Begin()
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "begin transaction", Err: err}
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for _, m := range migrations {
		if m.version > currentVersion {
			if _, err := tx.Exec(m.up); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
			if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", m.version); err != nil {
				return &errors.ErrDatabaseMigration{Version: m.version, Err: err}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return &errors.ErrDatabaseQuery{Operation: "commit migrations", Err: err}
	}

	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Settings() SettingsStore {
	return s.settings
}

// Collector keys

func (s *SQLiteStore) SaveKey(key *CollectorKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	config, err := json.Marshal(key.Config)
	if err != nil {
		return err
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO collector_keys (credential_id, account_id, name, hpke_config, private_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(credential_id) DO UPDATE SET
			account_id = excluded.account_id,
			name = excluded.name,
			hpke_config = excluded.hpke_config,
			private_key = excluded.private_key
	`, key.CredentialID.String(), key.AccountID.String(), key.Name, string(config), key.PrivateKey, key.CreatedAt)
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "save collector key", Err: err}
	}
	return nil
}

func (s *SQLiteStore) GetKey(credentialID uuid.UUID) (*CollectorKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`
		SELECT credential_id, account_id, name, hpke_config, private_key, created_at
		FROM collector_keys WHERE credential_id = ?
	`, credentialID.String())
	key, err := scanKey(row)
	if err == sql.ErrNoRows {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "get collector key", Err: err}
	}
	return key, nil
}

func (s *SQLiteStore) ListKeys(accountID uuid.UUID) ([]*CollectorKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT credential_id, account_id, name, hpke_config, private_key, created_at
		FROM collector_keys WHERE account_id = ?
		ORDER BY created_at, credential_id
	`, accountID.String())
	if err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list collector keys", Err: err}
	}
	defer rows.Close()

	var keys []*CollectorKey
	for rows.Next() {
		key, err := scanKey(rows)
		if err != nil {
			return nil, &errors.ErrDatabaseQuery{Operation: "scan collector key", Err: err}
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, &errors.ErrDatabaseQuery{Operation: "list collector keys", Err: err}
	}
	return keys, nil
}

func (s *SQLiteStore) DeleteKey(credentialID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM collector_keys WHERE credential_id = ?", credentialID.String())
	if err != nil {
		return &errors.ErrDatabaseQuery{Operation: "delete collector key", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrKeyNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(row scanner) (*CollectorKey, error) {
	var (
		key                   CollectorKey
		credentialID, account string
		config                string
	)
	if err := row.Scan(&credentialID, &account, &key.Name, &config, &key.PrivateKey, &key.CreatedAt); err != nil {
		return nil, err
	}

	var err error
	if key.CredentialID, err = uuid.Parse(credentialID); err != nil {
		return nil, err
	}
	if key.AccountID, err = uuid.Parse(account); err != nil {
		return nil, err
	}
	var hpkeConfig models.HpkeConfig
	if err := json.Unmarshal([]byte(config), &hpkeConfig); err != nil {
		return nil, err
	}
	key.Config = hpkeConfig
	return &key, nil
}

// Notifications

func (s *SQLiteStore) MarkNotified(jobID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("INSERT OR IGNORE INTO notified_jobs (job_id, notified_at) VALUES (?, ?)",
		jobID.String(), time.Now().Unix())
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "mark job notified", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, &errors.ErrDatabaseQuery{Operation: "mark job notified", Err: err}
	}
	return n == 1, nil
}

// PruneNotified forgets jobs notified before the given time.
func (s *SQLiteStore) PruneNotified(before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM notified_jobs WHERE notified_at < ?", before.Unix())
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "prune notified jobs", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &errors.ErrDatabaseQuery{Operation: "prune notified jobs", Err: err}
	}
	return n, nil
}
