// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/drydock-dev/drydock/lib/secret"
)

// DefaultLimit bounds concurrent lookups when the caller passes zero.
const DefaultLimit = 8

// ErrNotFound is returned by sources that have no value for a name.
var ErrNotFound = errors.New("secret not found")

// Source fetches one secret by name. Implementations must be safe for
// concurrent use.
type Source interface {
	Fetch(ctx context.Context, name string) (*secret.Buffer, error)
}

// ResolveError reports the secret that failed to resolve.
type ResolveError struct {
	Name string
	Err  error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolving secret %q: %v", e.Name, e.Err)
}

func (e *ResolveError) Unwrap() error { return e.Err }

// Resolve substitutes every $NAME marker in env with the value from
// source, fetching at most limit secrets at a time. Content without
// markers is returned unchanged. The caller must Close the result. An
// empty env yields a nil buffer.
func Resolve(ctx context.Context, env []byte, source Source, limit int) (*secret.Buffer, error) {
	if len(env) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = DefaultLimit
	}

	names := References(env)
	values := make([]*secret.Buffer, len(names))
	defer func() {
		for _, value := range values {
			if value != nil {
				value.Close()
			}
		}
	}()

	if len(names) > 0 {
		if source == nil {
			return nil, &ResolveError{Name: names[0], Err: errors.New("no secret source configured")}
		}
		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(limit)
		for index, name := range names {
			group.Go(func() error {
				value, err := source.Fetch(groupCtx, name)
				if err != nil {
					return &ResolveError{Name: name, Err: err}
				}
				values[index] = value
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			return nil, err
		}
	}

	byName := make(map[string]*secret.Buffer, len(names))
	for index, name := range names {
		byName[name] = values[index]
	}
	return render(parse(env), byName)
}

// render assembles the resolved file into a buffer sized exactly, so
// the only heap copy of the secrets is the one zeroed by NewFromBytes.
func render(lines []line, values map[string]*secret.Buffer) (*secret.Buffer, error) {
	pieces := make([][]byte, 0, len(lines))
	var quoted [][]byte
	defer func() {
		for _, piece := range quoted {
			secret.Zero(piece)
		}
	}()

	for _, parsed := range lines {
		switch {
		case parsed.marker != "":
			value := quote(values[parsed.marker].Bytes())
			quoted = append(quoted, value)
			pieces = append(pieces, []byte(parsed.key+"="), value, []byte("\n"))
		case parsed.key != "" && strings.HasPrefix(parsed.value, "$$"):
			pieces = append(pieces, []byte(parsed.key+"="+parsed.value[1:]+"\n"))
		default:
			pieces = append(pieces, parsed.raw)
		}
	}

	size := 0
	for _, piece := range pieces {
		size += len(piece)
	}
	if size == 0 {
		return nil, nil
	}
	assembled := make([]byte, 0, size)
	for _, piece := range pieces {
		assembled = append(assembled, piece...)
	}
	return secret.NewFromBytes(assembled)
}
