package printer

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// CommandRunner executes a single program invocation and returns its output.
type CommandRunner interface {
	Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error)
	Close() error
}

// ExitError reports a command that ran but exited non-zero.
type ExitError struct {
	Command string
	Status  int
	Output  string
}

func (e *ExitError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s: exit status %d", e.Command, e.Status)
	}
	return fmt.Sprintf("%s: exit status %d: %s", e.Command, e.Status, e.Output)
}

// NewRunner picks the runner for the host: a gosh shell session on POSIX
// systems, direct process execution on Windows.
func NewRunner() CommandRunner {
	if runtime.GOOS == "windows" {
		return &execRunner{}
	}
	return &goshRunner{}
}

// goshRunner keeps one local shell session open and runs commands through it.
type goshRunner struct {
	mu  sync.Mutex
	svc *gosh.Service
}

func (r *goshRunner) session(ctx context.Context) (*gosh.Service, error) {
	if r.svc != nil {
		return r.svc, nil
	}
	svc, err := gosh.New(ctx, local.New())
	if err != nil {
		return nil, fmt.Errorf("start shell session: %w", err)
	}
	r.svc = svc
	return svc, nil
}

func (r *goshRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	svc, err := r.session(ctx)
	if err != nil {
		return "", err
	}

	command := shellJoin(name, args...)
	stdout, status, err := svc.Run(ctx, command, runner.WithTimeout(int(timeout.Milliseconds())))
	if err != nil {
		// a broken session is replaced on the next call
		_ = svc.Close()
		r.svc = nil
		return stdout, fmt.Errorf("%s: %w", name, err)
	}
	if status != 0 {
		return stdout, &ExitError{Command: name, Status: status, Output: strings.TrimSpace(stdout)}
	}
	return stdout, nil
}

func (r *goshRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.svc == nil {
		return nil
	}
	err := r.svc.Close()
	r.svc = nil
	return err
}

// execRunner starts each command as its own process.
type execRunner struct{}

func (execRunner) Run(ctx context.Context, timeout time.Duration, name string, args ...string) (string, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return string(out), &ExitError{Command: name, Status: exitErr.ExitCode(), Output: strings.TrimSpace(string(out))}
	}
	if err != nil {
		return string(out), fmt.Errorf("%s: %w", name, err)
	}
	return string(out), nil
}

func (execRunner) Close() error { return nil }

// shellJoin quotes each word for a POSIX shell.
func shellJoin(name string, args ...string) string {
	words := make([]string, 0, len(args)+1)
	for _, w := range append([]string{name}, args...) {
		words = append(words, shellQuote(w))
	}
	return strings.Join(words, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n'\"\\$`&|;<>()*?[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
