// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/crypto/ssh"
	"golang.org/x/term"
)

// Interactive runs command attached to the local terminal: a remote
// pseudo-terminal sized like the local one, local stdin in raw mode
// and forwarded until the remote process exits, and window size
// changes propagated. Cancelling ctx sends SIGINT to the remote
// process. Pipeline stages never use this path.
func (s *Session) Interactive(ctx context.Context, command string) (int, error) {
	channel, err := s.client.NewSession()
	if err != nil {
		return -1, s.connectionError("opening channel", err)
	}
	defer channel.Close()

	stdinFd := int(os.Stdin.Fd())
	width, height := 80, 24
	if term.IsTerminal(stdinFd) {
		if w, h, err := term.GetSize(stdinFd); err == nil {
			width, height = w, h
		}
	}
	termType := os.Getenv("TERM")
	if termType == "" {
		termType = "xterm-256color"
	}
	if err := channel.RequestPty(termType, height, width, ssh.TerminalModes{ssh.ECHO: 1}); err != nil {
		return -1, s.connectionError("requesting pty", err)
	}

	channel.Stdout = s.stdout
	channel.Stderr = s.stderr
	stdin, err := channel.StdinPipe()
	if err != nil {
		return -1, s.connectionError("opening stdin", err)
	}

	if term.IsTerminal(stdinFd) {
		oldState, err := term.MakeRaw(stdinFd)
		if err != nil {
			return -1, err
		}
		defer term.Restore(stdinFd, oldState)
	}

	line := compose(s.dirs.top(), command, nil, sudoNone)
	if command == "" {
		line = compose(s.dirs.top(), "exec \"${SHELL:-bash}\" -l", nil, sudoNone)
	}
	if err := channel.Start(line); err != nil {
		return -1, s.connectionError("starting command", err)
	}

	go func() {
		io.Copy(stdin, os.Stdin)
		stdin.Close()
	}()

	resize := make(chan os.Signal, 1)
	signal.Notify(resize, syscall.SIGWINCH)
	defer signal.Stop(resize)

	exited := make(chan error, 1)
	go func() { exited <- channel.Wait() }()

	for {
		select {
		case <-resize:
			if w, h, err := term.GetSize(stdinFd); err == nil {
				channel.WindowChange(h, w)
			}
		case <-ctx.Done():
			channel.Signal(ssh.SIGINT)
			// Keep waiting: the remote side decides how to exit.
			ctx = context.Background()
		case err := <-exited:
			return s.exitCode(err)
		}
	}
}
