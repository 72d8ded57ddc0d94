package app

import (
	"context"
	"errors"
	"log/slog"

	"sitedeploy/internal/stack"
	"sitedeploy/internal/store"
	"sitedeploy/internal/workflow"
)

// runState is shared by the steps of one run. It also observes the
// runner and mirrors every step into the journal.
type runState struct {
	kind  string
	runID string
	st    store.RunStore
	log   *slog.Logger

	results []workflow.StepResult

	tls     bool
	written []stack.Written
}

func (a *App) newRunState(kind string) *runState {
	rs := &runState{kind: kind, st: a.st, log: a.log}
	if a.st == nil {
		return rs
	}
	run, err := a.st.StartRun(kind, a.cfg.Site.Domain)
	if err != nil {
		a.log.Warn("journal: start run", "err", err)
		rs.st = nil
		return rs
	}
	rs.runID = run.ID
	return rs
}

func (rs *runState) StepStarted(seq int, s workflow.Step) {
	rs.log.Info("step", "seq", seq, "name", s.Name, "policy", s.Policy.String())
}

func (rs *runState) StepFinished(res workflow.StepResult) {
	rs.results = append(rs.results, res)

	attrs := []any{"seq", res.Seq, "name", res.Name, "status", string(res.Status), "duration", res.Duration}
	switch res.Status {
	case workflow.StatusWarning:
		rs.log.Warn("step finished", append(attrs, "msg", res.Message)...)
	case workflow.StatusFailed:
		rs.log.Error("step finished", append(attrs, "msg", res.Message)...)
	default:
		rs.log.Info("step finished", attrs...)
	}

	if rs.st == nil {
		return
	}
	err := rs.st.RecordStep(store.StepRecord{
		RunID:    rs.runID,
		Seq:      res.Seq,
		Name:     res.Name,
		Status:   string(res.Status),
		Message:  res.Message,
		Duration: res.Duration,
	})
	if err != nil {
		rs.log.Warn("journal: record step", "err", err)
	}
}

func (rs *runState) recordWritten(ws []stack.Written) {
	rs.written = append(rs.written, ws...)
	if rs.st == nil {
		return
	}
	for _, w := range ws {
		err := rs.st.RecordArtifact(store.Artifact{RunID: rs.runID, Path: w.Path, SHA256: w.Hash, Changed: w.Changed})
		if err != nil {
			rs.log.Warn("journal: record artifact", "path", w.Path, "err", err)
		}
	}
}

func (rs *runState) warnings() []workflow.StepResult {
	var out []workflow.StepResult
	for _, r := range rs.results {
		if r.Status == workflow.StatusWarning {
			out = append(out, r)
		}
	}
	return out
}

func (rs *runState) finish(rep *workflow.Report) {
	if rs.st == nil {
		return
	}
	status, msg := store.RunOK, ""
	switch {
	case errors.Is(rep.Err, workflow.ErrInterrupted):
		status, msg = store.RunInterrupted, rep.Err.Error()
	case rep.Err != nil:
		status, msg = store.RunFailed, rep.Err.Error()
	}
	if err := rs.st.FinishRun(rs.runID, status, msg); err != nil {
		rs.log.Warn("journal: finish run", "err", err)
	}
}

// execute runs a plan with rs observing it and returns the report. The
// error is the report's error.
func (a *App) execute(ctx context.Context, rs *runState, plan workflow.Plan) (*workflow.Report, error) {
	a.log.Info("run started", "kind", rs.kind, "domain", a.cfg.Site.Domain, "run_id", rs.runID)
	rep := workflow.NewRunner(rs).Run(ctx, plan)
	rs.finish(rep)
	a.log.Info("run finished", "kind", rs.kind, "elapsed", rep.Elapsed, "warnings", len(rep.Warnings()), "err", rep.Err)
	return rep, rep.Err
}
