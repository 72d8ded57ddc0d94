package store

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

const (
	RunRunning     = "running"
	RunOK          = "ok"
	RunFailed      = "failed"
	RunInterrupted = "interrupted"
)

// Run is one provision, update or renew execution.
type Run struct {
	ID         string
	Kind       string // "provision" | "update" | "renew"
	Domain     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Status     string
	Error      string

	Steps     []StepRecord
	Artifacts []Artifact
}

type StepRecord struct {
	RunID    string
	Seq      int
	Name     string
	Status   string // ok | warning | skipped | failed
	Message  string
	Duration time.Duration
}

// Artifact is a generated file written during a run.
type Artifact struct {
	RunID   string
	Path    string
	SHA256  string
	Changed bool
}

type RunStore interface {
	Migrate() error

	StartRun(kind, domain string) (Run, error)
	RecordStep(s StepRecord) error
	RecordArtifact(a Artifact) error
	FinishRun(id, status, errMsg string) error

	GetRun(id string) (Run, error)
	ListRuns(limit int) ([]Run, error)

	Close() error
}
