// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// RsyncThreshold is the size at which Put prefers a delta transfer.
const RsyncThreshold = 30 << 20

// TransferStatus is the outcome of one strategy.
type TransferStatus string

const (
	TransferDone    TransferStatus = "done"
	TransferSkipped TransferStatus = "skipped"
	TransferFailed  TransferStatus = "failed"
)

// LocalFile is the source of a transfer.
type LocalFile struct {
	Path string
	Size int64
}

// TransferAttempt is one strategy's typed result.
type TransferAttempt struct {
	Strategy string
	Status   TransferStatus
	// Reason explains a skip.
	Reason  string
	Err     error
	Bytes   int64
	Elapsed time.Duration
}

// Transfer is one way of getting a file onto the host.
type Transfer interface {
	Name() string
	Send(ctx context.Context, source LocalFile, remotePath string) TransferAttempt
}

// TransferReport lists every attempt Put made, in order.
type TransferReport struct {
	Attempts []TransferAttempt
	// Used is the strategy that succeeded, or "" if none did.
	Used string
}

// FellBack reports whether a strategy failed before a later one
// succeeded.
func (r TransferReport) FellBack() bool {
	if r.Used == "" {
		return false
	}
	for _, attempt := range r.Attempts {
		if attempt.Status == TransferFailed {
			return true
		}
	}
	return false
}

// Summary renders the attempts on one line, e.g.
// "rsync skipped (below threshold), scp done".
func (r TransferReport) Summary() string {
	parts := make([]string, 0, len(r.Attempts))
	for _, attempt := range r.Attempts {
		part := attempt.Strategy + " " + string(attempt.Status)
		switch {
		case attempt.Reason != "":
			part += " (" + attempt.Reason + ")"
		case attempt.Err != nil:
			part += " (" + attempt.Err.Error() + ")"
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

// TransferError is returned when no strategy delivered the file.
type TransferError struct {
	Report TransferReport
}

func (e *TransferError) Error() string {
	return "all transfer strategies failed: " + e.Report.Summary()
}

// Hint is remediation text for operators.
func (e *TransferError) Hint() string {
	return "check free disk space on the host and network stability; install rsync on both ends for large bundles"
}

// SendFile runs strategies in order until one succeeds. A cancelled
// ctx or a lost connection stops the chain immediately, since no later
// strategy can succeed over the same session.
func SendFile(ctx context.Context, strategies []Transfer, localPath, remotePath string) (TransferReport, error) {
	info, err := os.Stat(localPath)
	if err != nil {
		return TransferReport{}, fmt.Errorf("stat %s: %w", localPath, err)
	}
	if !info.Mode().IsRegular() {
		return TransferReport{}, fmt.Errorf("%s is not a regular file", localPath)
	}
	source := LocalFile{Path: localPath, Size: info.Size()}

	var report TransferReport
	for _, strategy := range strategies {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		started := time.Now()
		attempt := strategy.Send(ctx, source, remotePath)
		attempt.Strategy = strategy.Name()
		if attempt.Elapsed == 0 {
			attempt.Elapsed = time.Since(started)
		}
		report.Attempts = append(report.Attempts, attempt)
		if attempt.Status == TransferDone {
			report.Used = attempt.Strategy
			return report, nil
		}
		if errors.Is(attempt.Err, context.Canceled) || errors.Is(attempt.Err, context.DeadlineExceeded) {
			return report, attempt.Err
		}
		var connection *ConnectionError
		if errors.As(attempt.Err, &connection) {
			return report, attempt.Err
		}
	}
	return report, &TransferError{Report: report}
}

// DefaultTransfers is rsync, then scp, then cat.
func DefaultTransfers(session *Session) []Transfer {
	return []Transfer{
		&RsyncTransfer{Session: session, Threshold: RsyncThreshold},
		&SCPTransfer{Session: session},
		&CatTransfer{Session: session},
	}
}

// Put copies localPath to remotePath on the host.
func (s *Session) Put(ctx context.Context, localPath, remotePath string) (TransferReport, error) {
	report, err := SendFile(ctx, s.transfers, localPath, remotePath)
	s.logger.Info("transfer finished",
		"local", localPath,
		"remote", remotePath,
		"strategy", report.Used,
		"attempts", report.Summary(),
	)
	return report, err
}

func skipped(reason string) TransferAttempt {
	return TransferAttempt{Status: TransferSkipped, Reason: reason}
}

func failed(err error) TransferAttempt {
	return TransferAttempt{Status: TransferFailed, Err: err}
}
