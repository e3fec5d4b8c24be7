// Package remote runs command lines on the IBM i system. The Executor
// contract is shared by the SSH transport and the local PASE shell.
package remote

import (
	"context"
	"fmt"
	"strings"
)

// Environment selects the command interpreter a command is sent to
type Environment int

const (
	// EnvPASE runs the command in the PASE (AIX compatible) shell
	EnvPASE Environment = iota
	// EnvQSH runs the command in the QShell interpreter
	EnvQSH
	// EnvCL runs the command as a CL command
	EnvCL
)

const (
	qshPath    = "/QOpenSys/usr/bin/qsh"
	systemPath = "/QOpenSys/usr/bin/system"
)

func (e Environment) String() string {
	switch e {
	case EnvPASE:
		return "pase"
	case EnvQSH:
		return "qsh"
	case EnvCL:
		return "cl"
	default:
		return fmt.Sprintf("environment(%d)", int(e))
	}
}

// ParseEnvironment maps a configuration value to an Environment. An empty
// value selects PASE.
func ParseEnvironment(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "pase":
		return EnvPASE, nil
	case "qsh":
		return EnvQSH, nil
	case "cl":
		return EnvCL, nil
	default:
		return EnvPASE, fmt.Errorf("unknown environment %q (expected pase, qsh or cl)", s)
	}
}

// Result is the raw outcome of one command
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Executor sends a command to the remote system. Send returns an error only
// when the command could not be run or its result could not be collected; a
// non-zero exit status is reported through Result. Implementations must
// return promptly once ctx is done.
type Executor interface {
	Send(ctx context.Context, command string, env Environment) (*Result, error)
}

// Wrap renders command for a PASE shell according to env
func Wrap(command string, env Environment) string {
	switch env {
	case EnvQSH:
		return qshPath + " -c " + quote(command)
	case EnvCL:
		return systemPath + " -i " + quote(command)
	default:
		return command
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}
