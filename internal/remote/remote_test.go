package remote

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseEnvironment(t *testing.T) {
	tests := []struct {
		in   string
		want Environment
	}{
		{"", EnvPASE},
		{"pase", EnvPASE},
		{" PASE ", EnvPASE},
		{"qsh", EnvQSH},
		{"CL", EnvCL},
	}
	for _, tt := range tests {
		got, err := ParseEnvironment(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got)
		back, err := ParseEnvironment(got.String())
		require.NoError(t, err)
		assert.Equal(t, got, back)
	}

	_, err := ParseEnvironment("bash")
	assert.Error(t, err)
	assert.Equal(t, "environment(9)", Environment(9).String())
}

func TestWrap(t *testing.T) {
	cmd := "/QOpenSys/pkgs/bin/grep -F -r -n -H -e 'it'\"'\"'s' /QSYS.LIB/ACME.LIB"

	assert.Equal(t, cmd, Wrap(cmd, EnvPASE))
	assert.Equal(t,
		`/QOpenSys/usr/bin/qsh -c 'grep -r '"'"'X'"'"' /QSYS.LIB/ACME.LIB'`,
		Wrap("grep -r 'X' /QSYS.LIB/ACME.LIB", EnvQSH))
	assert.Equal(t,
		`/QOpenSys/usr/bin/system -i 'DSPLIB LIB(ACME)'`,
		Wrap("DSPLIB LIB(ACME)", EnvCL))
}

func TestLocalExecutorExitCodes(t *testing.T) {
	e := NewLocalExecutor()
	ctx := context.Background()

	res, err := e.Send(ctx, "printf 'a:1:x\\n'", EnvPASE)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "a:1:x\n", res.Stdout)

	res, err = e.Send(ctx, "exit 1", EnvPASE)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	res, err = e.Send(ctx, "echo 'Permission denied' >&2; exit 2", EnvPASE)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "Permission denied")
}

func TestLocalExecutorCancel(t *testing.T) {
	e := NewLocalExecutor()
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	res, err := e.Send(ctx, "sleep 5", EnvPASE)
	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 3*time.Second)
}

func TestLocalExecutorMissingShell(t *testing.T) {
	e := &LocalExecutor{Shell: "/nonexistent/shell"}
	_, err := e.Send(context.Background(), "true", EnvPASE)
	assert.Error(t, err)
}
