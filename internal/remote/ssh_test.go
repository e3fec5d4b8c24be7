package remote

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

type exitReply struct {
	stdout string
	stderr string
	code   uint32
	block  bool // wait for a signal or for the client to close the session
}

// testSSHServer is a minimal sshd that answers exec requests from a script
type testSSHServer struct {
	listener net.Listener
	hostKey  ssh.Signer
	reply    func(command string) exitReply

	wg       sync.WaitGroup
	mu       sync.Mutex
	commands []string
}

func startSSHServer(t *testing.T, reply func(command string) exitReply) *testSSHServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	hostKey, err := ssh.NewSignerFromKey(priv)
	require.NoError(t, err)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := &testSSHServer{listener: l, hostKey: hostKey, reply: reply}
	cfg := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, pass []byte) (*ssh.Permissions, error) {
			if c.User() == "dev" && string(pass) == "secret" {
				return nil, nil
			}
			return nil, errors.New("access denied")
		},
	}
	cfg.AddHostKey(hostKey)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.serveConn(conn, cfg)
			}()
		}
	}()

	t.Cleanup(func() {
		l.Close()
		s.wg.Wait()
	})
	return s
}

func (s *testSSHServer) serveConn(conn net.Conn, cfg *ssh.ServerConfig) {
	sconn, chans, reqs, err := ssh.NewServerConn(conn, cfg)
	if err != nil {
		conn.Close()
		return
	}
	defer sconn.Close()
	go ssh.DiscardRequests(reqs)

	var sessions sync.WaitGroup
	for newCh := range chans {
		if newCh.ChannelType() != "session" {
			newCh.Reject(ssh.UnknownChannelType, "unsupported")
			continue
		}
		ch, chReqs, err := newCh.Accept()
		if err != nil {
			continue
		}
		sessions.Add(1)
		go func() {
			defer sessions.Done()
			s.serveSession(ch, chReqs)
		}()
	}
	sessions.Wait()
}

func (s *testSSHServer) serveSession(ch ssh.Channel, reqs <-chan *ssh.Request) {
	defer ch.Close()
	for req := range reqs {
		switch req.Type {
		case "exec":
			var payload struct{ Command string }
			if err := ssh.Unmarshal(req.Payload, &payload); err != nil {
				req.Reply(false, nil)
				return
			}
			req.Reply(true, nil)

			s.mu.Lock()
			s.commands = append(s.commands, payload.Command)
			s.mu.Unlock()

			r := s.reply(payload.Command)
			if r.block {
				continue
			}
			s.finish(ch, r)
			go ssh.DiscardRequests(reqs)
			return
		case "signal":
			s.finish(ch, exitReply{code: 137})
			go ssh.DiscardRequests(reqs)
			return
		default:
			if req.WantReply {
				req.Reply(false, nil)
			}
		}
	}
}

func (s *testSSHServer) finish(ch ssh.Channel, r exitReply) {
	ch.Write([]byte(r.stdout))
	ch.Stderr().Write([]byte(r.stderr))
	ch.SendRequest("exit-status", false, ssh.Marshal(struct{ Status uint32 }{r.code}))
}

func (s *testSSHServer) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

func (s *testSSHServer) config(t *testing.T) SSHConfig {
	t.Helper()
	addr := s.listener.Addr().(*net.TCPAddr)

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{s.listener.Addr().String()}, s.hostKey.PublicKey())
	require.NoError(t, os.WriteFile(knownHosts, []byte(line+"\n"), 0o600))

	return SSHConfig{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		User:           "dev",
		Password:       "secret",
		KnownHosts:     knownHosts,
		ConnectTimeout: 5 * time.Second,
	}
}

func grepReply(command string) exitReply {
	switch {
	case strings.Contains(command, "NOPE.LIB"):
		return exitReply{stderr: "grep: /QSYS.LIB/NOPE.LIB: No such file or directory\n", code: 2}
	case strings.Contains(command, "EMPTY.LIB"):
		return exitReply{code: 1}
	case strings.Contains(command, "SLOW.LIB"):
		return exitReply{block: true}
	default:
		return exitReply{stdout: "/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/PGM1.MBR:10:DCL-S X;\n"}
	}
}

func TestSSHExecutorSend(t *testing.T) {
	srv := startSSHServer(t, grepReply)
	e, err := NewSSHExecutor(srv.config(t))
	require.NoError(t, err)
	defer e.Close()

	ctx := context.Background()

	res, err := e.Send(ctx, "grep -r -n -H -e 'X' /QSYS.LIB/ACME.LIB", EnvPASE)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "/QSYS.LIB/ACME.LIB/QRPGLESRC.FILE/PGM1.MBR:10:DCL-S X;\n", res.Stdout)

	res, err = e.Send(ctx, "grep -r 'X' /QSYS.LIB/EMPTY.LIB", EnvPASE)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ExitCode)

	res, err = e.Send(ctx, "grep -r 'X' /QSYS.LIB/NOPE.LIB", EnvQSH)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ExitCode)
	assert.Contains(t, res.Stderr, "No such file or directory")

	cmds := srv.Commands()
	require.Len(t, cmds, 3)
	assert.Equal(t, `/QOpenSys/usr/bin/qsh -c 'grep -r '"'"'X'"'"' /QSYS.LIB/NOPE.LIB'`, cmds[2])
}

func TestSSHExecutorCancel(t *testing.T) {
	srv := startSSHServer(t, grepReply)
	e, err := NewSSHExecutor(srv.config(t))
	require.NoError(t, err)
	defer e.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	res, err := e.Send(ctx, "grep -r 'X' /QSYS.LIB/SLOW.LIB", EnvPASE)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The connection stays usable for the next command
	res, err = e.Send(context.Background(), "grep -r 'X' /QSYS.LIB/ACME.LIB", EnvPASE)
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestSSHExecutorSlowDialDoesNotBlockOtherCallers(t *testing.T) {
	cfg := startSSHServer(t, grepReply).config(t)

	// Accepts TCP but never speaks SSH, so the handshake stalls
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	accepted := make(chan net.Conn, 4)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				close(accepted)
				return
			}
			accepted <- conn
		}
	}()
	cfg.Port = l.Addr().(*net.TCPAddr).Port
	cfg.ConnectTimeout = 10 * time.Second

	e, err := NewSSHExecutor(cfg)
	require.NoError(t, err)
	defer e.Close()

	firstDone := make(chan error, 1)
	go func() {
		_, err := e.Send(context.Background(), "true", EnvPASE)
		firstDone <- err
	}()
	stalled := <-accepted

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = e.Send(ctx, "true", EnvPASE)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)

	// Dropping the stalled connection fails the shared dial
	stalled.Close()
	assert.ErrorContains(t, <-firstDone, "handshake")

	l.Close()
	for conn := range accepted {
		conn.Close()
	}
}

func TestSSHExecutorRejectsUnknownHostKey(t *testing.T) {
	srv := startSSHServer(t, grepReply)
	cfg := srv.config(t)

	// Trust a different key
	_, otherPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	other, err := ssh.NewSignerFromKey(otherPriv)
	require.NoError(t, err)
	line := knownhosts.Line([]string{srv.listener.Addr().String()}, other.PublicKey())
	require.NoError(t, os.WriteFile(cfg.KnownHosts, []byte(line+"\n"), 0o600))

	e, err := NewSSHExecutor(cfg)
	require.NoError(t, err)
	defer e.Close()

	_, err = e.Send(context.Background(), "true", EnvPASE)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handshake")
}

func TestSSHExecutorClosed(t *testing.T) {
	srv := startSSHServer(t, grepReply)
	e, err := NewSSHExecutor(srv.config(t))
	require.NoError(t, err)
	require.NoError(t, e.Close())

	_, err = e.Send(context.Background(), "true", EnvPASE)
	assert.ErrorIs(t, err, ErrConnectionClosed)
}

func TestNewSSHExecutorValidation(t *testing.T) {
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))

	tests := []struct {
		name string
		cfg  SSHConfig
	}{
		{"no host", SSHConfig{User: "dev", Password: "x", KnownHosts: knownHosts}},
		{"no user", SSHConfig{Host: "ibmi", Password: "x", KnownHosts: knownHosts}},
		{"no auth", SSHConfig{Host: "ibmi", User: "dev", KnownHosts: knownHosts}},
		{"missing key file", SSHConfig{Host: "ibmi", User: "dev", KeyFile: "/nonexistent/id_ed25519", KnownHosts: knownHosts}},
		{"missing known hosts", SSHConfig{Host: "ibmi", User: "dev", Password: "x", KnownHosts: "/nonexistent/known_hosts"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSSHExecutor(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestNewSSHExecutorWithKeyFile(t *testing.T) {
	dir := t.TempDir()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := ssh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyFile := filepath.Join(dir, "id_ed25519")
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(block), 0o600))
	knownHosts := filepath.Join(dir, "known_hosts")
	require.NoError(t, os.WriteFile(knownHosts, nil, 0o600))

	e, err := NewSSHExecutor(SSHConfig{Host: "ibmi", User: "dev", KeyFile: keyFile, KnownHosts: knownHosts})
	require.NoError(t, err)
	assert.Equal(t, "ibmi:22", e.config.Addr())
	assert.Len(t, e.clientCfg.Auth, 1)
	assert.Equal(t, 15*time.Second, e.clientCfg.Timeout)
}
