// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/drydock-dev/drydock/lib/host"
	"github.com/drydock-dev/drydock/lib/secret"
)

// DefaultDialTimeout bounds TCP connect plus the SSH handshake.
const DefaultDialTimeout = 15 * time.Second

// DialOptions configures Dial.
type DialOptions struct {
	Logger  *slog.Logger
	Timeout time.Duration

	// Stdout and Stderr receive echoed command output. Nil means the
	// process's own stdout and stderr.
	Stdout io.Writer
	Stderr io.Writer

	// SudoPassword is injected on sudo prompts. With password
	// authentication the login password is used when this is nil.
	// The session takes ownership and closes it.
	SudoPassword *secret.Buffer

	// Transfers overrides the Put strategy order. Nil means
	// DefaultTransfers.
	Transfers []Transfer
}

// Session is an open connection to one host. It is safe to use from
// one goroutine at a time; the pipeline never shares it.
type Session struct {
	target   host.Host
	client   *ssh.Client
	logger   *slog.Logger
	stdout   io.Writer
	stderr   io.Writer
	password *secret.Buffer

	agentConn net.Conn
	dirs      dirStack
	transfers []Transfer

	closeOnce sync.Once
	closeErr  error
}

// Dial connects and authenticates to target. Any failure is a
// *ConnectionError. The caller must Close the session.
func Dial(ctx context.Context, target host.Host, opts DialOptions) (*Session, error) {
	if err := target.Validate(); err != nil {
		return nil, &ConnectionError{Host: target.String(), Op: "validating host", Err: err}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	session := &Session{
		target:   target,
		logger:   logger,
		stdout:   opts.Stdout,
		stderr:   opts.Stderr,
		password: opts.SudoPassword,
	}
	if session.stdout == nil {
		session.stdout = os.Stdout
	}
	if session.stderr == nil {
		session.stderr = os.Stderr
	}

	fail := func(op string, err error) (*Session, error) {
		session.Close()
		return nil, &ConnectionError{Host: target.String(), Op: op, Err: err}
	}

	auth, err := session.authMethods()
	if err != nil {
		return fail("preparing authentication", err)
	}
	hostKeys, err := hostKeyCallback(target)
	if err != nil {
		return fail("loading host keys", err)
	}

	config := &ssh.ClientConfig{
		User:            target.User,
		Auth:            auth,
		HostKeyCallback: hostKeys,
		Timeout:         timeout,
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", target.Endpoint())
	if err != nil {
		return fail("dialing", err)
	}
	// NewClientConn has no context; bound the handshake with a
	// deadline and clear it once the connection is up.
	conn.SetDeadline(time.Now().Add(timeout))
	clientConn, channels, requests, err := ssh.NewClientConn(conn, target.Endpoint(), config)
	if err != nil {
		conn.Close()
		return fail("handshake", err)
	}
	conn.SetDeadline(time.Time{})
	session.client = ssh.NewClient(clientConn, channels, requests)

	session.transfers = opts.Transfers
	if session.transfers == nil {
		session.transfers = DefaultTransfers(session)
	}

	logger.Info("connected",
		"host", target.String(),
		"auth", string(target.Auth()),
	)
	return session, nil
}

func (s *Session) authMethods() ([]ssh.AuthMethod, error) {
	switch s.target.Auth() {
	case host.AuthKey:
		signer, err := loadSigner(host.ExpandHome(s.target.KeyFile))
		if err != nil {
			return nil, err
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil

	case host.AuthPassword:
		password, err := secret.FromEnv(s.target.PasswordEnv)
		if err != nil {
			return nil, err
		}
		if s.password == nil {
			s.password = password
		} else {
			defer password.Close()
		}
		answer := password.String()
		return []ssh.AuthMethod{
			ssh.Password(answer),
			ssh.KeyboardInteractive(func(_, _ string, questions []string, _ []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for index := range answers {
					answers[index] = answer
				}
				return answers, nil
			}),
		}, nil

	case host.AuthAgent:
		socket := os.Getenv("SSH_AUTH_SOCK")
		if socket == "" {
			return nil, errors.New("agent authentication requested but SSH_AUTH_SOCK is not set")
		}
		conn, err := net.Dial("unix", socket)
		if err != nil {
			return nil, fmt.Errorf("connecting to ssh agent: %w", err)
		}
		s.agentConn = conn
		return []ssh.AuthMethod{ssh.PublicKeysCallback(agent.NewClient(conn).Signers)}, nil
	}
	return nil, errors.New("no authentication method configured")
}

func loadSigner(path string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key %s: %w", path, err)
	}
	signer, err := ssh.ParsePrivateKey(data)
	if err == nil {
		return signer, nil
	}
	var missing *ssh.PassphraseMissingError
	if errors.As(err, &missing) {
		return nil, fmt.Errorf("key %s is passphrase protected; load it into ssh-agent and set agent: true", path)
	}
	return nil, fmt.Errorf("parsing key %s: %w", path, err)
}

func hostKeyCallback(target host.Host) (ssh.HostKeyCallback, error) {
	if target.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	path := target.KnownHostsPath()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("known_hosts %s: %w (connect once with ssh to record the host key)", path, err)
	}
	return knownhosts.New(path)
}

// Host returns the descriptor this session is bound to.
func (s *Session) Host() host.Host { return s.target }

// Cd scopes subsequent Runs to dir. Relative dirs resolve against the
// enclosing scope.
func (s *Session) Cd(dir string) (restore func()) { return s.dirs.push(dir) }

// Run executes command on the host.
func (s *Session) Run(ctx context.Context, command string, opts RunOptions) (Result, error) {
	mode := sudoNone
	var password *secret.Buffer
	if opts.Sudo {
		mode = sudoNonInteractive
		if s.password != nil {
			if opts.Stdin != nil {
				return Result{Command: command}, errors.New("remote: Stdin cannot be combined with password sudo")
			}
			mode = sudoWithPassword
			password = s.password
		}
	}
	line := compose(s.dirs.top(), command, opts.Env, mode)

	channel, err := s.client.NewSession()
	if err != nil {
		return Result{Command: command}, s.connectionError("opening channel", err)
	}
	defer channel.Close()

	if opts.PTY {
		modes := ssh.TerminalModes{
			ssh.ECHO:          0,
			ssh.TTY_OP_ISPEED: 14400,
			ssh.TTY_OP_OSPEED: 14400,
		}
		if err := channel.RequestPty("xterm", 40, 80, modes); err != nil {
			return Result{Command: command}, s.connectionError("requesting pty", err)
		}
	}

	stdin, err := channel.StdinPipe()
	if err != nil {
		return Result{Command: command}, s.connectionError("opening stdin", err)
	}
	stdout, err := channel.StdoutPipe()
	if err != nil {
		return Result{Command: command}, s.connectionError("opening stdout", err)
	}
	var stderr io.Reader
	if !opts.PTY {
		if stderr, err = channel.StderrPipe(); err != nil {
			return Result{Command: command}, s.connectionError("opening stderr", err)
		}
	}

	s.logger.Debug("running remote command",
		"command", command,
		"dir", s.dirs.top(),
		"sudo", opts.Sudo,
	)
	if err := channel.Start(line); err != nil {
		return Result{Command: command}, s.connectionError("starting command", err)
	}

	result, err := consume(ctx, &execution{
		command:  command,
		opts:     opts,
		stdout:   stdout,
		stderr:   stderr,
		stdin:    stdin,
		wait:     channel.Wait,
		password: password,
		abort: func() {
			channel.Signal(ssh.SIGKILL)
			channel.Close()
		},
		exitCode:   s.exitCode,
		echoStdout: s.stdout,
		echoStderr: s.stderr,
	})
	s.logger.Debug("remote command finished",
		"command", command,
		"exit_code", result.ExitCode,
		"elapsed", result.Elapsed,
	)
	return result, err
}

func (s *Session) exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, s.connectionError("waiting for exit status", err)
}

func (s *Session) connectionError(op string, err error) error {
	return &ConnectionError{Host: s.target.String(), Op: op, Err: err}
}

// Close releases the connection and any held credential. It is safe
// to call more than once.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		if s.client != nil {
			s.closeErr = s.client.Close()
		}
		if s.agentConn != nil {
			s.agentConn.Close()
		}
		if s.password != nil {
			s.password.Close()
		}
	})
	return s.closeErr
}
