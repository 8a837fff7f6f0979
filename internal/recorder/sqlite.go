package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/phuslu/log"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run and delivery history to a SQLite database.
type SQLiteRecorder struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *log.Logger) (*SQLiteRecorder, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

// Open returns a SQLite recorder for dbPath, or a no-op recorder when the
// path is empty or the database cannot be opened.
func Open(dbPath string, logger *log.Logger) Recorder {
	if dbPath == "" {
		return NewNoopRecorder()
	}
	r, err := NewSQLiteRecorder(dbPath, logger)
	if err != nil {
		logger.Warn().Err(err).Str("path", dbPath).Msg("run history disabled")
		return NewNoopRecorder()
	}
	return r
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id      TEXT NOT NULL,
			kind        TEXT,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			total       INTEGER,
			successful  INTEGER,
			failed      INTEGER,
			recipients  INTEGER,
			sent        INTEGER,
			send_failed INTEGER,
			error       TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON analysis_runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS deliveries (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			recipient TEXT NOT NULL,
			position  INTEGER,
			success   INTEGER NOT NULL,
			error     TEXT,
			sent_at   INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_deliveries_run ON deliveries(run_id)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordRun(evt *RunEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO analysis_runs
		(run_id, kind, started_at, finished_at, total, successful, failed,
		 recipients, sent, send_failed, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		evt.RunID, evt.Trigger, unix(evt.StartedAt), unix(evt.FinishedAt),
		evt.Total, evt.Successful, evt.Failed,
		evt.Recipients, evt.Sent, evt.SendFailed, evt.Error,
	)
	return err
}

func (r *SQLiteRecorder) RecordDelivery(evt *DeliveryEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	success := 0
	if evt.Success {
		success = 1
	}
	_, err := r.db.Exec(`INSERT INTO deliveries
		(run_id, recipient, position, success, error, sent_at)
		VALUES (?,?,?,?,?,?)`,
		evt.RunID, evt.Recipient, evt.Position, success, evt.Error, unix(evt.SentAt),
	)
	return err
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}

func unix(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}
