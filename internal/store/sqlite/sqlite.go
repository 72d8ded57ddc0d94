package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"sitedeploy/internal/store"
)

// tsLayout is fixed width so that text order is time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ store.RunStore = (*Store)(nil)

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// conservative pool for single-file sqlite
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) Migrate() error {
	return migrate(s.db)
}

func (s *Store) StartRun(kind, domain string) (store.Run, error) {
	if kind == "" {
		return store.Run{}, fmt.Errorf("kind is required")
	}
	run := store.Run{
		ID:        uuid.NewString(),
		Kind:      kind,
		Domain:    domain,
		StartedAt: s.now().UTC(),
		Status:    store.RunRunning,
	}
	_, err := s.db.Exec(`
		INSERT INTO runs(id, kind, domain, started_at, status)
		VALUES (?, ?, ?, ?, ?)
	`, run.ID, run.Kind, run.Domain, run.StartedAt.Format(tsLayout), run.Status)
	if err != nil {
		return store.Run{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (s *Store) FinishRun(id, status, errMsg string) error {
	res, err := s.db.Exec(`
		UPDATE runs
		   SET finished_at=?, status=?, error=?
		 WHERE id=?
	`, s.now().UTC().Format(tsLayout), status, errMsg, id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) GetRun(id string) (store.Run, error) {
	row := s.db.QueryRow(`
		SELECT id, kind, domain, started_at, finished_at, status, error
		FROM runs WHERE id=?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Run{}, fmt.Errorf("run %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return store.Run{}, err
	}

	if run.Steps, err = s.listSteps(id); err != nil {
		return store.Run{}, err
	}
	if run.Artifacts, err = s.listArtifacts(id); err != nil {
		return store.Run{}, err
	}
	return run, nil
}

// ListRuns returns the most recent runs first, without steps.
func (s *Store) ListRuns(limit int) ([]store.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT id, kind, domain, started_at, finished_at, status, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (store.Run, error) {
	var run store.Run
	var started string
	var finished sql.NullString
	if err := sc.Scan(&run.ID, &run.Kind, &run.Domain, &started, &finished, &run.Status, &run.Error); err != nil {
		return store.Run{}, err
	}
	if t, err := time.Parse(tsLayout, started); err == nil {
		run.StartedAt = t
	}
	if finished.Valid && finished.String != "" {
		if t, err := time.Parse(tsLayout, finished.String); err == nil {
			run.FinishedAt = &t
		}
	}
	return run, nil
}
