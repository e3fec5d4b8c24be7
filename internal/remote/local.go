package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/standardbeagle/mbrgrep/internal/debug"
)

// LocalExecutor runs commands through the local shell. It is used when
// mbrgrep itself runs inside PASE on the IBM i.
type LocalExecutor struct {
	Shell string // defaults to sh
}

// NewLocalExecutor creates an executor for the local shell
func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{Shell: "sh"}
}

// Send implements Executor
func (e *LocalExecutor) Send(ctx context.Context, command string, env Environment) (*Result, error) {
	shell := e.Shell
	if shell == "" {
		shell = "sh"
	}
	line := Wrap(command, env)
	debug.LogRemote("local %s: %s\n", env, line)

	cmd := exec.CommandContext(ctx, shell, "-c", line)
	// Children of the shell may keep the pipes open after it is killed
	cmd.WaitDelay = 250 * time.Millisecond

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return nil, fmt.Errorf("failed to run %s: %w", shell, err)
	}
	return result, nil
}
