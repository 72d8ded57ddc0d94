package execx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Cmd describes one external process invocation. Name is looked up on PATH.
type Cmd struct {
	Name    string
	Args    []string
	Dir     string
	Env     []string // appended to the current environment
	Stdin   string
	Timeout time.Duration
}

func Command(name string, args ...string) Cmd {
	return Cmd{Name: name, Args: args}
}

func (c Cmd) InDir(dir string) Cmd {
	c.Dir = dir
	return c
}

func (c Cmd) WithEnv(kv ...string) Cmd {
	c.Env = append(append([]string(nil), c.Env...), kv...)
	return c
}

func (c Cmd) WithStdin(s string) Cmd {
	c.Stdin = s
	return c
}

func (c Cmd) WithTimeout(d time.Duration) Cmd {
	c.Timeout = d
	return c
}

// String renders the command line for logs. It is not shell-quoted.
func (c Cmd) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes external commands. A non-zero exit is reported as an
// error with the Result still populated.
type Runner interface {
	Run(ctx context.Context, c Cmd) (Result, error)
}

// OSRunner runs real processes on the host.
type OSRunner struct {
	DefaultTimeout time.Duration
}

func (r OSRunner) Run(ctx context.Context, c Cmd) (Result, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = r.DefaultTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}

	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	err := cmd.Run()

	res := Result{
		Stdout: outb.String(),
		Stderr: errb.String(),
	}

	// Timeout?
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		res.ExitCode = -1
		return res, fmt.Errorf("command timeout after %s: %s", timeout, c)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		res.ExitCode = -1
		return res, fmt.Errorf("command interrupted: %s: %w", c, ctx.Err())
	}

	if err == nil {
		return res, nil
	}

	// Non-zero exit
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		res.ExitCode = ee.ExitCode()
		return res, exitError(c, res)
	}

	res.ExitCode = -1
	return res, fmt.Errorf("command error: %s: %w", c, err)
}

func exitError(c Cmd, res Result) error {
	if msg := strings.TrimSpace(res.Stderr); msg != "" {
		return fmt.Errorf("command failed (exit %d): %s: %s", res.ExitCode, c, lastLine(msg))
	}
	return fmt.Errorf("command failed (exit %d): %s", res.ExitCode, c)
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

// Output runs c and returns trimmed stdout.
func Output(ctx context.Context, r Runner, c Cmd) (string, error) {
	res, err := r.Run(ctx, c)
	return strings.TrimSpace(res.Stdout), err
}
