// Package report keeps a SQLite journal of recovery runs.
package report

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/bamsammich/salvage/internal/engine"
	"github.com/bamsammich/salvage/internal/transport"
)

var _ engine.FileRecorder = (*Journal)(nil)

var (
	// ErrNoRun is returned when recording before BeginRun.
	ErrNoRun = errors.New("no run in progress")
	// ErrNoRuns is returned by LastRun on an empty journal.
	ErrNoRuns = errors.New("journal has no runs")
)

const batchSize = 100

// Journal records what each recovery run attempted. It is write-mostly:
// salvage never resumes from it.
type Journal struct {
	db   *sql.DB
	path string

	// Batch buffer for RecordFile calls.
	mu      sync.Mutex
	runID   string
	seq     int64
	batch   []fileRow
	done    chan struct{}
	stopped bool
}

type fileRow struct {
	seq int64
	rec engine.FileRecord
}

// Run is one recovery run.
type Run struct {
	Started       time.Time
	Finished      time.Time // zero while running or if the process died
	ID            string
	Source        string
	Destination   string
	Outcome       string
	FilesSelected int64
	BytesSelected int64
	FilesCopied   int64
	BytesCopied   int64
}

// File is one attempted file of a run.
type File struct {
	Path         string
	Hash         string
	Size         int64
	Status       transport.CopyStatus
	Verified     bool
	VerifyFailed bool
}

// Open opens or creates the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db, path: path, done: make(chan struct{})}
	if err := j.init(); err != nil {
		db.Close()
		return nil, err
	}

	go j.flushLoop()
	return j, nil
}

func (j *Journal) init() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id             TEXT PRIMARY KEY,
			source         TEXT NOT NULL,
			destination    TEXT NOT NULL,
			started        INTEGER NOT NULL,
			finished       INTEGER NOT NULL DEFAULT 0,
			outcome        TEXT NOT NULL DEFAULT 'running',
			files_selected INTEGER NOT NULL,
			bytes_selected INTEGER NOT NULL,
			files_copied   INTEGER NOT NULL DEFAULT 0,
			bytes_copied   INTEGER NOT NULL DEFAULT 0
		);
		CREATE TABLE IF NOT EXISTS files (
			run_id        TEXT NOT NULL,
			seq           INTEGER NOT NULL,
			path          TEXT NOT NULL,
			size          INTEGER NOT NULL,
			status        INTEGER NOT NULL,
			hash          TEXT NOT NULL DEFAULT '',
			verified      INTEGER NOT NULL DEFAULT 0,
			verify_failed INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (run_id, seq)
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	return nil
}

// BeginRun starts a new run and returns its id. Files recorded afterwards
// belong to it.
func (j *Journal) BeginRun(source, destination string, totals engine.SelectionTotals) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.flushLocked(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	_, err := j.db.Exec(
		"INSERT INTO runs (id, source, destination, started, files_selected, bytes_selected) VALUES (?, ?, ?, ?, ?, ?)",
		id, source, destination, time.Now().UnixNano(), totals.Files, totals.Bytes,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	j.runID = id
	j.seq = 0
	return id, nil
}

// RecordFile buffers one attempted file. Writes are batched and flushed
// periodically.
func (j *Journal) RecordFile(rec engine.FileRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.runID == "" {
		return ErrNoRun
	}
	j.seq++
	j.batch = append(j.batch, fileRow{seq: j.seq, rec: rec})
	if len(j.batch) >= batchSize {
		return j.flushLocked()
	}
	return nil
}

// FinishRun flushes pending files and stores the run's outcome.
func (j *Journal) FinishRun(outcome string, res engine.CopyResult) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.runID == "" {
		return ErrNoRun
	}
	if err := j.flushLocked(); err != nil {
		return err
	}
	_, err := j.db.Exec(
		"UPDATE runs SET finished = ?, outcome = ?, files_copied = ?, bytes_copied = ? WHERE id = ?",
		time.Now().UnixNano(), outcome, res.Copied, res.BytesCopied, j.runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	j.runID = ""
	return nil
}

// Flush writes any pending batch entries to the database.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.batch) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO files
		(run_id, seq, path, size, status, hash, verified, verify_failed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, row := range j.batch {
		r := row.rec
		if _, err := stmt.Exec(j.runID, row.seq, r.Path, r.Size, int(r.Status), r.Hash, r.Verified, r.VerifyFailed); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %s: %w", r.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	j.batch = j.batch[:0]
	return nil
}

func (j *Journal) flushLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.mu.Lock()
			_ = j.flushLocked()
			j.mu.Unlock()
		}
	}
}

// Close flushes any pending writes and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		close(j.done)
	}
	_ = j.flushLocked()
	j.mu.Unlock()
	return j.db.Close()
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// LastRun returns the most recently started run.
func (j *Journal) LastRun() (Run, error) {
	var r Run
	var started, finished int64
	err := j.db.QueryRow(`
		SELECT id, source, destination, started, finished, outcome,
		       files_selected, bytes_selected, files_copied, bytes_copied
		FROM runs ORDER BY started DESC LIMIT 1`,
	).Scan(&r.ID, &r.Source, &r.Destination, &started, &finished, &r.Outcome,
		&r.FilesSelected, &r.BytesSelected, &r.FilesCopied, &r.BytesCopied)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, ErrNoRuns
	}
	if err != nil {
		return Run{}, fmt.Errorf("query last run: %w", err)
	}
	r.Started = time.Unix(0, started)
	if finished > 0 {
		r.Finished = time.Unix(0, finished)
	}
	return r, nil
}

// Files returns the files of a run in attempt order. With problemsOnly set
// it returns only files that failed to copy or failed verification.
func (j *Journal) Files(runID string, problemsOnly bool) ([]File, error) {
	query := `SELECT path, size, status, hash, verified, verify_failed
		FROM files WHERE run_id = ?`
	if problemsOnly {
		query += ` AND (status != ? OR verify_failed != 0)`
	}
	query += ` ORDER BY seq`

	args := []any{runID}
	if problemsOnly {
		args = append(args, int(transport.Copied))
	}

	rows, err := j.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var files []File
	for rows.Next() {
		var f File
		var status int
		if err := rows.Scan(&f.Path, &f.Size, &status, &f.Hash, &f.Verified, &f.VerifyFailed); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.Status = transport.CopyStatus(status)
		files = append(files, f)
	}
	return files, rows.Err()
}
