package sqlite

import (
	"fmt"
	"time"

	"sitedeploy/internal/store"
)

func (s *Store) RecordStep(st store.StepRecord) error {
	if st.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	_, err := s.db.Exec(`
		INSERT INTO run_steps(run_id, seq, name, status, message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO UPDATE SET
			name=excluded.name,
			status=excluded.status,
			message=excluded.message,
			duration_ms=excluded.duration_ms
	`, st.RunID, st.Seq, st.Name, st.Status, st.Message, st.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("record step %s: %w", st.Name, err)
	}
	return nil
}

func (s *Store) RecordArtifact(a store.Artifact) error {
	if a.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	changed := 0
	if a.Changed {
		changed = 1
	}
	_, err := s.db.Exec(`
		INSERT INTO artifacts(run_id, path, sha256, changed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(run_id, path) DO UPDATE SET
			sha256=excluded.sha256,
			changed=excluded.changed
	`, a.RunID, a.Path, a.SHA256, changed)
	if err != nil {
		return fmt.Errorf("record artifact %s: %w", a.Path, err)
	}
	return nil
}

func (s *Store) listSteps(runID string) ([]store.StepRecord, error) {
	rows, err := s.db.Query(`
		SELECT run_id, seq, name, status, message, duration_ms
		FROM run_steps
		WHERE run_id=?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.StepRecord
	for rows.Next() {
		var st store.StepRecord
		var ms int64
		if err := rows.Scan(&st.RunID, &st.Seq, &st.Name, &st.Status, &st.Message, &ms); err != nil {
			return nil, err
		}
		st.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *Store) listArtifacts(runID string) ([]store.Artifact, error) {
	rows, err := s.db.Query(`
		SELECT run_id, path, sha256, changed
		FROM artifacts
		WHERE run_id=?
		ORDER BY path ASC
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Artifact
	for rows.Next() {
		var a store.Artifact
		var changed int
		if err := rows.Scan(&a.RunID, &a.Path, &a.SHA256, &changed); err != nil {
			return nil, err
		}
		a.Changed = changed == 1
		out = append(out, a)
	}
	return out, rows.Err()
}
