package workflow

import (
	"context"
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"
)

type recordingObserver struct {
	started  []string
	finished []StepResult
}

func (o *recordingObserver) StepStarted(_ int, s Step)   { o.started = append(o.started, s.Name) }
func (o *recordingObserver) StepFinished(res StepResult) { o.finished = append(o.finished, res) }

func ok(ran *[]string, name string) Step {
	return Step{Name: name, Run: func(context.Context) error {
		*ran = append(*ran, name)
		return nil
	}}
}

func statuses(rep *Report) []Status {
	out := make([]Status, len(rep.Steps))
	for i, s := range rep.Steps {
		out[i] = s.Status
	}
	return out
}

func TestRunHaltsOnRequiredFailure(t *testing.T) {
	c := qt.New(t)

	var ran []string
	boom := errors.New("boom")
	plan := Plan{Name: "test", Steps: []Step{
		ok(&ran, "a"),
		{Name: "b", Run: func(context.Context) error { return boom }},
		ok(&ran, "c"),
	}}
	rep := NewRunner(nil).Run(context.Background(), plan)

	c.Assert(ran, qt.DeepEquals, []string{"a"})
	c.Assert(errors.Is(rep.Err, boom), qt.IsTrue)
	c.Assert(rep.Err, qt.ErrorMatches, "b: boom")
	c.Assert(statuses(rep), qt.DeepEquals, []Status{StatusOK, StatusFailed})
}

func TestRunContinuesPastBestEffortAndWarnings(t *testing.T) {
	c := qt.New(t)

	var ran []string
	obs := &recordingObserver{}
	plan := Plan{Steps: []Step{
		{Name: "probe", Policy: BestEffort, Run: func(context.Context) error { return errors.New("no lsb_release") }},
		{Name: "certs", Run: func(context.Context) error { return Warn("issuance failed: %s", "rate limited") }},
		{Name: "firewall", Skip: "--skip-firewall", Run: func(context.Context) error { panic("must not run") }},
		ok(&ran, "summary"),
	}}
	rep := NewRunner(obs).Run(context.Background(), plan)

	c.Assert(rep.Err, qt.IsNil)
	c.Assert(ran, qt.DeepEquals, []string{"summary"})
	c.Assert(statuses(rep), qt.DeepEquals, []Status{StatusWarning, StatusWarning, StatusSkipped, StatusOK})
	c.Assert(rep.Warnings(), qt.HasLen, 2)

	s, found := rep.Step("firewall")
	c.Assert(found, qt.IsTrue)
	c.Assert(s.Message, qt.Equals, "--skip-firewall")
	c.Assert(s.Seq, qt.Equals, 3)

	c.Assert(obs.started, qt.DeepEquals, []string{"probe", "certs", "summary"})
	c.Assert(obs.finished, qt.HasLen, 4)
}

func TestRunInterruptedDuringStep(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	var ran []string
	plan := Plan{Steps: []Step{
		{Name: "clone", Policy: BestEffort, Run: func(ctx context.Context) error {
			cancel()
			return ctx.Err()
		}},
		ok(&ran, "after"),
	}}
	rep := NewRunner(nil).Run(ctx, plan)

	c.Assert(rep.Interrupted(), qt.IsTrue)
	c.Assert(rep.Err, qt.ErrorMatches, "interrupted during clone")
	c.Assert(ran, qt.HasLen, 0)
	c.Assert(statuses(rep), qt.DeepEquals, []Status{StatusFailed})
}

func TestRunInterruptedBeforeStep(t *testing.T) {
	c := qt.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var ran []string
	rep := NewRunner(nil).Run(ctx, Plan{Steps: []Step{ok(&ran, "a")}})

	c.Assert(rep.Interrupted(), qt.IsTrue)
	c.Assert(rep.Steps, qt.HasLen, 0)
	c.Assert(ran, qt.HasLen, 0)
}

func TestPolicyString(t *testing.T) {
	c := qt.New(t)
	c.Assert(Required.String(), qt.Equals, "required")
	c.Assert(BestEffort.String(), qt.Equals, "best-effort")
}
