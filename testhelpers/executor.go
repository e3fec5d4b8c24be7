// Package testhelpers provides shared fakes for testing mbrgrep
package testhelpers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/mbrgrep/internal/remote"
)

// Response scripts what ScriptedExecutor returns for a command
type Response struct {
	Result *remote.Result
	Err    error
	Delay  time.Duration // simulated round trip, cut short by cancellation
	Gate   *Gate         // if set, Send blocks until the gate opens or ctx is done
}

// Call records one Send
type Call struct {
	Command   string
	Env       remote.Environment
	Started   time.Time
	Finished  time.Time
	Cancelled bool
}

type rule struct {
	contains string
	resp     Response
}

// ScriptedExecutor is a remote.Executor that answers from a script keyed by
// command substrings. It records every call and the highest number of calls
// in flight at once.
type ScriptedExecutor struct {
	mu          sync.Mutex
	rules       []rule
	fallback    Response
	calls       []*Call
	inFlight    int
	maxInFlight int
}

// NewScriptedExecutor creates an executor that answers exit code 1 (no
// matches) to any command without a rule
func NewScriptedExecutor() *ScriptedExecutor {
	return &ScriptedExecutor{fallback: Response{Result: &remote.Result{ExitCode: 1}}}
}

// On adds a response for commands containing substr. The first matching
// rule wins.
func (e *ScriptedExecutor) On(substr string, resp Response) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules, rule{contains: substr, resp: resp})
	return e
}

// Respond is On with a plain result
func (e *ScriptedExecutor) Respond(substr string, exitCode int, stdout, stderr string) *ScriptedExecutor {
	return e.On(substr, Response{Result: &remote.Result{ExitCode: exitCode, Stdout: stdout, Stderr: stderr}})
}

// Default replaces the response for unmatched commands
func (e *ScriptedExecutor) Default(resp Response) *ScriptedExecutor {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fallback = resp
	return e
}

// Send implements remote.Executor
func (e *ScriptedExecutor) Send(ctx context.Context, command string, env remote.Environment) (*remote.Result, error) {
	call := &Call{Command: command, Env: env, Started: time.Now()}

	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.inFlight++
	if e.inFlight > e.maxInFlight {
		e.maxInFlight = e.inFlight
	}
	resp := e.fallback
	for _, r := range e.rules {
		if strings.Contains(command, r.contains) {
			resp = r.resp
			break
		}
	}
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.inFlight--
		call.Finished = time.Now()
		e.mu.Unlock()
	}()

	if err := e.wait(ctx, resp); err != nil {
		e.mu.Lock()
		call.Cancelled = true
		e.mu.Unlock()
		return nil, err
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	if resp.Result == nil {
		return &remote.Result{}, nil
	}
	result := *resp.Result
	return &result, nil
}

func (e *ScriptedExecutor) wait(ctx context.Context, resp Response) error {
	if resp.Gate != nil {
		select {
		case <-resp.Gate.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return ctx.Err()
}

// Calls returns a copy of the recorded calls in start order
func (e *ScriptedExecutor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]Call, len(e.calls))
	for i, c := range e.calls {
		out[i] = *c
	}
	return out
}

// CallCount returns how many commands were sent
func (e *ScriptedExecutor) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.calls)
}

// MaxInFlight returns the highest number of concurrent calls observed
func (e *ScriptedExecutor) MaxInFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.maxInFlight
}

// WaitForCalls waits until at least n commands were sent
func (e *ScriptedExecutor) WaitForCalls(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if e.CallCount() >= n {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(time.Millisecond)
	}
}
