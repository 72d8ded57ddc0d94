package execx

import (
	"context"
	"strings"
	"sync"
)

// Handler scripts the outcome of a recorded command.
type Handler func(c Cmd) (Result, error)

// Recorder is a Runner that never touches the host. It records every
// invocation and answers from handlers registered with On; the most
// recently registered matching handler wins. Unmatched commands succeed
// with empty output.
type Recorder struct {
	mu       sync.Mutex
	calls    []Cmd
	handlers []prefixHandler
}

type prefixHandler struct {
	prefix string
	h      Handler
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

// On registers h for commands whose String() starts with prefix.
func (r *Recorder) On(prefix string, h Handler) *Recorder {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers = append(r.handlers, prefixHandler{prefix: prefix, h: h})
	return r
}

// Stdout makes matching commands succeed with the given output.
func (r *Recorder) Stdout(prefix, out string) *Recorder {
	return r.On(prefix, func(Cmd) (Result, error) {
		return Result{Stdout: out}, nil
	})
}

// Fail makes matching commands exit with code and stderr.
func (r *Recorder) Fail(prefix string, code int, stderr string) *Recorder {
	return r.On(prefix, func(c Cmd) (Result, error) {
		res := Result{Stderr: stderr, ExitCode: code}
		return res, exitError(c, res)
	})
}

func (r *Recorder) Run(ctx context.Context, c Cmd) (Result, error) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	var h Handler
	line := c.String()
	for i := len(r.handlers) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, r.handlers[i].prefix) {
			h = r.handlers[i].h
			break
		}
	}
	r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Result{ExitCode: -1}, err
	}
	if h == nil {
		return Result{}, nil
	}
	return h(c)
}

// Calls returns a copy of every recorded command.
func (r *Recorder) Calls() []Cmd {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Cmd(nil), r.calls...)
}

// Lines returns the recorded command lines in order.
func (r *Recorder) Lines() []string {
	calls := r.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.String()
	}
	return out
}

// Count returns how many recorded commands start with prefix.
func (r *Recorder) Count(prefix string) int {
	n := 0
	for _, l := range r.Lines() {
		if strings.HasPrefix(l, prefix) {
			n++
		}
	}
	return n
}
