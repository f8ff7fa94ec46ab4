// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/drydock-dev/drydock/lib/secret"
)

type streamID int

const (
	streamStdout streamID = iota
	streamStderr
)

// chunk is one raw read from a stream. eof marks the stream's end.
type chunk struct {
	stream streamID
	data   []byte
	eof    bool
}

// execution is a started process as seen by the consumer loop. Both
// the SSH and the local backend build one.
type execution struct {
	command string
	opts    RunOptions

	stdout io.Reader
	// stderr is nil when a pseudo-terminal merged it into stdout.
	stderr io.Reader
	stdin  io.WriteCloser

	// wait blocks until the process exits.
	wait func() error
	// abort signals the process and releases its streams.
	abort func()
	// exitCode maps wait's error to an exit status, or to a transport
	// error when no status was delivered.
	exitCode func(error) (int, error)

	// password is injected on the first sudo prompt. Nil disables the
	// watcher.
	password *secret.Buffer

	echoStdout io.Writer
	echoStderr io.Writer
}

// consume is the single consumer of every stream of e.
func consume(ctx context.Context, e *execution) (Result, error) {
	started := time.Now()
	result := Result{Command: e.command}

	chunks := make(chan chunk, 16)
	stop := make(chan struct{})
	defer close(stop)

	open := 0
	for id, reader := range map[streamID]io.Reader{streamStdout: e.stdout, streamStderr: e.stderr} {
		if reader == nil {
			continue
		}
		open++
		go pump(reader, id, chunks, stop)
	}

	exited := make(chan error, 1)
	go func() { exited <- e.wait() }()

	switch {
	case e.opts.Stdin != nil:
		go func() {
			io.Copy(e.stdin, e.opts.Stdin)
			e.stdin.Close()
		}()
	case e.password == nil:
		e.stdin.Close()
	}

	var timeout <-chan time.Time
	if e.opts.Timeout > 0 {
		timer := time.NewTimer(e.opts.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	var scrubbers [2]*PromptScrubber
	if e.password != nil {
		for i := range scrubbers {
			scrubbers[i] = NewPromptScrubber(e.password.String())
		}
	}

	var (
		decoders [2]Decoder
		stdout   strings.Builder
		stderr   strings.Builder
		watcher  PromptWatcher
		waitErr  error
		done     bool
	)

	finish := func() Result {
		result.Stdout = stdout.String()
		result.Stderr = stderr.String()
		result.Elapsed = time.Since(started)
		return result
	}

	for open > 0 || !done {
		select {
		case next := <-chunks:
			var text string
			if next.eof {
				open--
				text = decoders[next.stream].Flush()
			} else {
				text = decoders[next.stream].Write(next.data)
			}
			if text == "" && !next.eof {
				continue
			}

			if e.password != nil {
				switch watcher.Observe(text) {
				case WatchInject:
					// Two writes so the credential is never copied into
					// a heap slice together with the newline.
					e.stdin.Write(e.password.Bytes())
					e.stdin.Write([]byte("\n"))
					if e.opts.Stdin == nil {
						e.stdin.Close()
					}
				case WatchFail:
					e.abort()
					return finish(), ErrSudoAuthFailed
				}
				scrubber := scrubbers[next.stream]
				text = scrubber.Write(text)
				if next.eof {
					text += scrubber.Flush()
				}
			}
			if text == "" {
				continue
			}

			target, echo := &stdout, e.echoStdout
			if next.stream == streamStderr {
				target, echo = &stderr, e.echoStderr
			}
			target.WriteString(text)
			if !e.opts.Hide && echo != nil {
				io.WriteString(echo, text)
			}

		case err := <-exited:
			done = true
			waitErr = err
			exited = nil

		case <-ctx.Done():
			e.abort()
			return finish(), fmt.Errorf("running %q: %w", e.command, ctx.Err())

		case <-timeout:
			e.abort()
			return finish(), &TimeoutError{Command: e.command, Timeout: e.opts.Timeout}
		}
	}

	code, err := e.exitCode(waitErr)
	if err != nil {
		return finish(), err
	}
	result = finish()
	result.ExitCode = code
	result.OK = code == 0
	if !result.OK && e.opts.Strict {
		return result, &CommandError{Command: e.command, ExitCode: code, Stderr: result.Stderr + result.Stdout}
	}
	return result, nil
}

func pump(reader io.Reader, id streamID, out chan<- chunk, stop <-chan struct{}) {
	buffer := make([]byte, 32*1024)
	for {
		n, err := reader.Read(buffer)
		if n > 0 {
			data := make([]byte, n)
			copy(data, buffer[:n])
			select {
			case out <- chunk{stream: id, data: data}:
			case <-stop:
				return
			}
		}
		if err != nil {
			select {
			case out <- chunk{stream: id, eof: true}:
			case <-stop:
			}
			return
		}
	}
}
