// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
)

// SCPTransfer speaks the sink side of the scp protocol over an exec
// channel running "scp -t". It needs no local scp binary.
type SCPTransfer struct {
	Session *Session
}

func (t *SCPTransfer) Name() string { return "scp" }

func (t *SCPTransfer) Send(ctx context.Context, source LocalFile, remotePath string) TransferAttempt {
	file, err := os.Open(source.Path)
	if err != nil {
		return failed(err)
	}
	defer file.Close()

	channel, err := t.Session.client.NewSession()
	if err != nil {
		return failed(t.Session.connectionError("opening scp channel", err))
	}
	defer channel.Close()
	stop := context.AfterFunc(ctx, func() { channel.Close() })
	defer stop()

	stdin, err := channel.StdinPipe()
	if err != nil {
		return failed(err)
	}
	stdoutPipe, err := channel.StdoutPipe()
	if err != nil {
		return failed(err)
	}
	acks := bufio.NewReader(stdoutPipe)

	if err := channel.Start("scp -qt " + Quote(path.Dir(remotePath))); err != nil {
		return failed(err)
	}

	send := func() error {
		if err := readAck(acks); err != nil {
			return fmt.Errorf("scp handshake: %w", err)
		}
		if _, err := fmt.Fprintf(stdin, "C0644 %d %s\n", source.Size, path.Base(remotePath)); err != nil {
			return err
		}
		if err := readAck(acks); err != nil {
			return fmt.Errorf("scp header: %w", err)
		}
		if _, err := io.Copy(stdin, file); err != nil {
			return err
		}
		if _, err := stdin.Write([]byte{0}); err != nil {
			return err
		}
		if err := readAck(acks); err != nil {
			return fmt.Errorf("scp data: %w", err)
		}
		stdin.Close()
		return channel.Wait()
	}

	if err := send(); err != nil {
		if ctx.Err() != nil {
			return failed(ctx.Err())
		}
		return failed(err)
	}
	return TransferAttempt{Status: TransferDone, Bytes: source.Size}
}

// readAck reads one scp status byte. 1 and 2 are followed by a
// message line.
func readAck(reader *bufio.Reader) error {
	status, err := reader.ReadByte()
	if err != nil {
		return err
	}
	if status == 0 {
		return nil
	}
	message, _ := reader.ReadString('\n')
	if message == "" {
		message = fmt.Sprintf("status %d", status)
	}
	return errors.New(message)
}
