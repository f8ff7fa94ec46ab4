// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"os"
)

// CatTransfer streams the file into "cat > path". It is the last
// resort when neither rsync nor scp is usable on the host.
type CatTransfer struct {
	Session *Session
}

func (t *CatTransfer) Name() string { return "cat" }

func (t *CatTransfer) Send(ctx context.Context, source LocalFile, remotePath string) TransferAttempt {
	file, err := os.Open(source.Path)
	if err != nil {
		return failed(err)
	}
	defer file.Close()

	_, err = t.Session.Run(ctx, "cat > "+Quote(remotePath), RunOptions{
		Hide:   true,
		Strict: true,
		Stdin:  file,
	})
	if err != nil {
		return failed(err)
	}
	return TransferAttempt{Status: TransferDone, Bytes: source.Size}
}
