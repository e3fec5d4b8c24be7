package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
	"golang.org/x/sync/singleflight"

	"github.com/standardbeagle/mbrgrep/internal/debug"
)

// ErrConnectionClosed is returned by Send after Close
var ErrConnectionClosed = errors.New("ssh connection closed")

// SSHConfig describes how to reach the IBM i SSH daemon
type SSHConfig struct {
	Host           string
	Port           int
	User           string
	KeyFile        string
	Password       string // resolved from the configured environment variable
	KnownHosts     string // defaults to ~/.ssh/known_hosts
	ConnectTimeout time.Duration
}

// Addr returns host:port
func (c SSHConfig) Addr() string {
	port := c.Port
	if port == 0 {
		port = 22
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

// SSHExecutor runs commands over one shared SSH connection, opening a session
// per command. The connection is dialed lazily and redialed after it drops.
type SSHExecutor struct {
	config    SSHConfig
	clientCfg *ssh.ClientConfig

	mu     sync.Mutex
	client *ssh.Client
	closed bool
	dials  singleflight.Group
}

// NewSSHExecutor validates cfg and prepares authentication. No connection is
// made until the first Send.
func NewSSHExecutor(cfg SSHConfig) (*SSHExecutor, error) {
	clientCfg, err := clientConfig(cfg)
	if err != nil {
		return nil, err
	}
	return &SSHExecutor{config: cfg, clientCfg: clientCfg}, nil
}

func clientConfig(cfg SSHConfig) (*ssh.ClientConfig, error) {
	if cfg.Host == "" {
		return nil, errors.New("ssh host is required")
	}
	if cfg.User == "" {
		return nil, errors.New("ssh user is required")
	}

	var auth []ssh.AuthMethod
	if cfg.KeyFile != "" {
		signer, err := loadSigner(cfg.KeyFile)
		if err != nil {
			return nil, err
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if cfg.Password != "" {
		auth = append(auth, ssh.Password(cfg.Password))
	}
	if len(auth) == 0 {
		return nil, errors.New("ssh requires a key file or a password")
	}

	hostKeys, err := hostKeyCallback(cfg.KnownHosts)
	if err != nil {
		return nil, err
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}, nil
}

func loadSigner(path string) (ssh.Signer, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ssh key: %w", err)
	}
	signer, err := ssh.ParsePrivateKey(pem)
	if err != nil {
		return nil, fmt.Errorf("failed to parse ssh key %s: %w", path, err)
	}
	return signer, nil
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to locate known_hosts: %w", err)
		}
		path = filepath.Join(home, ".ssh", "known_hosts")
	}
	cb, err := knownhosts.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load known_hosts %s: %w", path, err)
	}
	return cb, nil
}

// connect returns the shared client, dialing it when needed. Concurrent
// callers share one dial and each stops waiting when its own ctx is done.
func (e *SSHExecutor) connect(ctx context.Context) (*ssh.Client, error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, ErrConnectionClosed
	}
	if e.client != nil {
		client := e.client
		e.mu.Unlock()
		return client, nil
	}
	e.mu.Unlock()

	ch := e.dials.DoChan("dial", func() (any, error) {
		return e.dial()
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*ssh.Client), nil
	}
}

// dial opens a new connection. It is not tied to any caller's context,
// ConnectTimeout bounds both the TCP dial and the handshake.
func (e *SSHExecutor) dial() (*ssh.Client, error) {
	addr := e.config.Addr()
	debug.LogRemote("dialing %s as %s\n", addr, e.config.User)

	dialer := net.Dialer{Timeout: e.clientCfg.Timeout}
	conn, err := dialer.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", addr, err)
	}
	if e.clientCfg.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(e.clientCfg.Timeout))
	}
	c, chans, reqs, err := ssh.NewClientConn(conn, addr, e.clientCfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s failed: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	client := ssh.NewClient(c, chans, reqs)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		client.Close()
		return nil, ErrConnectionClosed
	}
	e.client = client
	return client, nil
}

// drop forgets a broken client so the next Send redials
func (e *SSHExecutor) drop(client *ssh.Client) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.client == client {
		e.client.Close()
		e.client = nil
	}
}

// Send implements Executor
func (e *SSHExecutor) Send(ctx context.Context, command string, env Environment) (*Result, error) {
	client, err := e.connect(ctx)
	if err != nil {
		return nil, err
	}

	session, err := client.NewSession()
	if err != nil {
		e.drop(client)
		return nil, fmt.Errorf("failed to open ssh session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdout = &stdout
	session.Stderr = &stderr

	line := Wrap(command, env)
	debug.LogRemote("ssh %s: %s\n", env, line)
	if err := session.Start(line); err != nil {
		return nil, fmt.Errorf("failed to start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case <-ctx.Done():
		// Best effort; not every sshd honours signals
		_ = session.Signal(ssh.SIGKILL)
		session.Close()
		<-done
		return nil, ctx.Err()
	case err := <-done:
		return e.result(client, &stdout, &stderr, err)
	}
}

func (e *SSHExecutor) result(client *ssh.Client, stdout, stderr *bytes.Buffer, err error) (*Result, error) {
	result := &Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err == nil {
		return result, nil
	}

	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitStatus()
		return result, nil
	}

	var missing *ssh.ExitMissingError
	if errors.As(err, &missing) || errors.Is(err, net.ErrClosed) {
		e.drop(client)
	}
	return nil, fmt.Errorf("remote command did not complete: %w", err)
}

// Close closes the shared connection. Send fails afterwards.
func (e *SSHExecutor) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	return err
}
