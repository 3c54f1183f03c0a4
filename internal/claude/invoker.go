// Package claude runs the Claude Code CLI for one prompt at a time and turns
// every way the call can end into an Outcome.
package claude

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"time"
)

// Request holds per-invocation settings.
type Request struct {
	// Prompt is the text passed to the CLI (required).
	Prompt string

	// Timeout bounds the call. Zero means no bound beyond ctx.
	Timeout time.Duration

	// SkipPermissions adds --dangerously-skip-permissions.
	SkipPermissions bool

	// WorkingDir is the directory the CLI runs in. Empty uses the current one.
	WorkingDir string
}

// Outcome is the structured result of one invocation. Failures of any kind
// (missing binary, timeout, non-zero exit) are reported here with
// Success=false and never as a Go error.
type Outcome struct {
	Success  bool
	Output   string
	Error    *string
	Duration time.Duration
}

// ErrorText returns the failure message or an empty string.
func (o Outcome) ErrorText() string {
	if o.Error == nil {
		return ""
	}
	return *o.Error
}

// Port is the capability the executor needs from the external tool.
type Port interface {
	Invoke(ctx context.Context, req Request) Outcome
}

// Invoker is the Port backed by the claude binary.
// It follows the http.Client pattern: create once, use many times.
type Invoker struct {
	// ClaudePath is the CLI binary. Defaults to "claude" (found in PATH).
	ClaudePath string

	// Env holds extra variables for the child process, typically read from
	// the working directory's .env file.
	Env map[string]string

	// WaitDelay bounds how long to wait for output pipes after the process
	// is killed. Defaults to 5s.
	WaitDelay time.Duration

	clock func() time.Time
}

// NewInvoker creates an Invoker for the given binary path.
func NewInvoker(claudePath string) *Invoker {
	if claudePath == "" {
		claudePath = "claude"
	}
	return &Invoker{
		ClaudePath: claudePath,
		WaitDelay:  5 * time.Second,
		clock:      time.Now,
	}
}

// BuildArgs returns the CLI arguments for a request.
func BuildArgs(req Request) []string {
	args := []string{"--print"}
	if req.SkipPermissions {
		args = append(args, "--dangerously-skip-permissions")
	}
	return append(args, req.Prompt)
}

// Invoke runs the CLI and waits for it to exit or for the timeout.
func (inv *Invoker) Invoke(ctx context.Context, req Request) Outcome {
	now := inv.clock
	if now == nil {
		now = time.Now
	}
	start := now()

	if strings.TrimSpace(req.Prompt) == "" {
		return failed("", "prompt is required", 0)
	}

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	claudePath := inv.ClaudePath
	if claudePath == "" {
		claudePath = "claude"
	}

	if req.WorkingDir != "" {
		if info, err := os.Stat(req.WorkingDir); err != nil || !info.IsDir() {
			return failed("", fmt.Sprintf("working directory %s is not accessible", req.WorkingDir), 0)
		}
	}

	cmd := exec.CommandContext(runCtx, claudePath, BuildArgs(req)...)
	cmd.Dir = req.WorkingDir
	SetCleanEnv(cmd, inv.Env)
	cmd.WaitDelay = inv.WaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	elapsed := now().Sub(start)
	output := stdout.String() + stderr.String()

	if err == nil {
		return Outcome{Success: true, Output: output, Duration: elapsed}
	}

	switch {
	case errors.Is(err, exec.ErrNotFound), isMissingBinary(err):
		return failed(output, fmt.Sprintf("claude CLI not found (%s): make sure Claude Code is installed", claudePath), 0)
	case ctx.Err() != nil:
		return failed(output, fmt.Sprintf("interrupted: %v", ctx.Err()), elapsed)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		return failed(output, fmt.Sprintf("timeout after %s", req.Timeout), elapsed)
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("claude exited with status %d", exitErr.ExitCode())
		}
		return failed(output, msg, elapsed)
	}

	return failed(output, fmt.Sprintf("claude invocation failed: %v", err), elapsed)
}

// isMissingBinary reports a start failure for an explicit path that does not exist.
func isMissingBinary(err error) bool {
	var pathErr *fs.PathError
	return errors.As(err, &pathErr) && errors.Is(pathErr.Err, fs.ErrNotExist)
}

func failed(output, msg string, elapsed time.Duration) Outcome {
	return Outcome{
		Success:  false,
		Output:   output,
		Error:    &msg,
		Duration: elapsed,
	}
}
