// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

// Package remotetest runs an in-process SSH server for tests. Exec
// requests run through the local bash unless a Handler claims them,
// so session behavior (exit codes, streams, stdin, working directory)
// is exercised against a real SSH transport.
package remotetest

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/binary"
	"io"
	"net"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"

	"golang.org/x/crypto/ssh"
)

const (
	// User is the only account the server accepts.
	User = "deploy"
	// Password authenticates User.
	Password = "correct horse battery staple"
)

// Handler may take over an exec request. It returns the exit status
// and true, or false to let bash run the command.
type Handler func(command string, stdin io.Reader, stdout, stderr io.Writer) (exitCode int, handled bool)

// Server is a minimal SSH server bound to a loopback port.
type Server struct {
	HostKey ssh.PublicKey

	listener net.Listener
	config   *ssh.ServerConfig

	mu         sync.Mutex
	authorized []ssh.PublicKey
	commands   []string
	handler    Handler

	wg sync.WaitGroup
}

// Start launches a server and registers its shutdown with t.Cleanup.
func Start(t testing.TB) *Server {
	t.Helper()

	_, hostPrivate, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPrivate)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}

	server := &Server{HostKey: hostSigner.PublicKey()}
	server.config = &ssh.ServerConfig{
		PasswordCallback: func(meta ssh.ConnMetadata, password []byte) (*ssh.Permissions, error) {
			if meta.User() == User && string(password) == Password {
				return nil, nil
			}
			return nil, errRejected
		},
		PublicKeyCallback: func(meta ssh.ConnMetadata, key ssh.PublicKey) (*ssh.Permissions, error) {
			server.mu.Lock()
			defer server.mu.Unlock()
			for _, allowed := range server.authorized {
				if meta.User() == User && string(allowed.Marshal()) == string(key.Marshal()) {
					return nil, nil
				}
			}
			return nil, errRejected
		},
	}
	server.config.AddHostKey(hostSigner)

	server.listener, err = net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	server.wg.Add(1)
	go server.accept()
	t.Cleanup(server.Close)
	return server
}

type rejection struct{}

func (rejection) Error() string { return "credentials rejected" }

var errRejected = rejection{}

// Address returns the host part of the listening address.
func (s *Server) Address() string {
	host, _, _ := net.SplitHostPort(s.listener.Addr().String())
	return host
}

// Port returns the listening port.
func (s *Server) Port() int {
	return s.listener.Addr().(*net.TCPAddr).Port
}

// Authorize accepts key for public key authentication.
func (s *Server) Authorize(key ssh.PublicKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authorized = append(s.authorized, key)
}

// Handle installs handler for subsequent exec requests.
func (s *Server) Handle(handler Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handler = handler
}

// Commands returns every exec command received, in order.
func (s *Server) Commands() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commands...)
}

// Close stops accepting connections.
func (s *Server) Close() {
	s.listener.Close()
	s.wg.Wait()
}

func (s *Server) accept() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.serve(conn)
	}
}

func (s *Server) serve(raw net.Conn) {
	conn, channels, requests, err := ssh.NewServerConn(raw, s.config)
	if err != nil {
		raw.Close()
		return
	}
	defer conn.Close()
	go ssh.DiscardRequests(requests)

	for newChannel := range channels {
		if newChannel.ChannelType() != "session" {
			newChannel.Reject(ssh.UnknownChannelType, "only session channels are supported")
			continue
		}
		channel, channelRequests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.session(channel, channelRequests)
	}
}

func (s *Server) session(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	var pid atomic.Int64
	kill := func() {
		if group := pid.Load(); group > 0 {
			syscall.Kill(-int(group), syscall.SIGKILL)
		}
	}
	finished := make(chan int, 1)

	for {
		select {
		case request, ok := <-requests:
			if !ok {
				kill()
				return
			}
			switch request.Type {
			case "pty-req", "env", "window-change":
				request.Reply(true, nil)
			case "signal":
				kill()
			case "exec":
				var payload struct{ Command string }
				if err := ssh.Unmarshal(request.Payload, &payload); err != nil {
					request.Reply(false, nil)
					continue
				}
				request.Reply(true, nil)
				s.mu.Lock()
				s.commands = append(s.commands, payload.Command)
				handler := s.handler
				s.mu.Unlock()

				go func() {
					if handler != nil {
						if code, handled := handler(payload.Command, channel, channel, channel.Stderr()); handled {
							finished <- code
							return
						}
					}
					finished <- runBash(payload.Command, channel, &pid)
				}()
			default:
				request.Reply(false, nil)
			}

		case code := <-finished:
			status := make([]byte, 4)
			binary.BigEndian.PutUint32(status, uint32(code))
			channel.SendRequest("exit-status", false, status)
			return
		}
	}
}

// runBash runs command with the channel as its stdio and publishes
// the process group id to pid. stdin is copied by a goroutine that is
// never waited on: the client may keep its side open after the process
// exits.
func runBash(command string, channel ssh.Channel, pid *atomic.Int64) int {
	process := exec.Command("bash", "-c", command)
	process.Stdout = channel
	process.Stderr = channel.Stderr()
	process.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	stdin, err := process.StdinPipe()
	if err != nil {
		return 255
	}
	if err := process.Start(); err != nil {
		return 127
	}
	pid.Store(int64(process.Process.Pid))
	go func() {
		io.Copy(stdin, channel)
		stdin.Close()
	}()

	err = process.Wait()
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		if code := exitErr.ExitCode(); code >= 0 {
			return code
		}
		return 137
	}
	return 255
}
