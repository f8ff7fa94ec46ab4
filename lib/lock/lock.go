// Copyright 2026 The Drydock Authors
// SPDX-License-Identifier: Apache-2.0

package lock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/drydock-dev/drydock/lib/clock"
)

const (
	// DefaultTTL bounds how long a crashed drydock blocks others.
	DefaultTTL = 10 * time.Minute

	// DefaultInterval is the polling interval while waiting.
	DefaultInterval = 100 * time.Millisecond

	keyPrefix = "drydock:lock:"
)

// ErrNotHeld is returned by Release and Extend when the lease expired
// or was taken over.
var ErrNotHeld = errors.New("lock no longer held")

var (
	releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)
	extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)
)

// Locker acquires leases on one Redis server.
type Locker struct {
	Client   redis.UniversalClient
	Clock    clock.Clock
	Interval time.Duration
	Logger   *slog.Logger
}

// New returns a Locker using client.
func New(client redis.UniversalClient, clk clock.Clock, logger *slog.Logger) *Locker {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Locker{Client: client, Clock: clk, Interval: DefaultInterval, Logger: logger}
}

// Dial connects to the server at url (redis://[user:password@]host:port/db)
// and checks that it answers.
func Dial(ctx context.Context, url string, clk clock.Clock, logger *slog.Logger) (*Locker, error) {
	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing lock.redis_url: %w", err)
	}
	client := redis.NewClient(options)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", options.Addr, err)
	}
	return New(client, clk, logger), nil
}

// Close closes the Redis client.
func (l *Locker) Close() error { return l.Client.Close() }

// Lease is a held lock.
type Lease struct {
	Key   string
	Token string

	locker *Locker
}

// Owner is the holder description embedded in the token.
func (l *Lease) Owner() string { return ownerOf(l.Token) }

func ownerOf(token string) string {
	owner, _, _ := strings.Cut(token, "#")
	return owner
}

// Acquire takes the lock for name, waiting until it is free or ctx
// ends. owner describes the holder ("alice@laptop deploy") and is shown
// to anyone waiting.
func (l *Locker) Acquire(ctx context.Context, name, owner string, ttl time.Duration) (*Lease, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	interval := l.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	key := keyPrefix + name
	token := owner + "#" + uuid.NewString()

	reported := ""
	waitErr := func() error {
		if reported == "" {
			return fmt.Errorf("waiting for lock %s: %w", name, ctx.Err())
		}
		return fmt.Errorf("waiting for lock %s held by %s: %w", name, reported, ctx.Err())
	}
	for {
		acquired, err := l.Client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, waitErr()
			}
			return nil, fmt.Errorf("acquiring lock %s: %w", name, err)
		}
		if acquired {
			l.Logger.Debug("lock acquired", "lock", name, "ttl", ttl)
			return &Lease{Key: key, Token: token, locker: l}, nil
		}

		if holder, err := l.Holder(ctx, name); err == nil && holder != reported && holder != "" {
			l.Logger.Info("waiting for lock", "lock", name, "holder", holder)
			reported = holder
		}
		select {
		case <-ctx.Done():
			return nil, waitErr()
		case <-l.Clock.After(interval):
		}
	}
}

// Holder returns the owner of name's lease, or "" when it is free.
func (l *Locker) Holder(ctx context.Context, name string) (string, error) {
	token, err := l.Client.Get(ctx, keyPrefix+name).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ownerOf(token), nil
}

// Release deletes the lease if it is still ours.
func (l *Lease) Release(ctx context.Context) error {
	deleted, err := releaseScript.Run(ctx, l.locker.Client, []string{l.Key}, l.Token).Int()
	if err != nil {
		return fmt.Errorf("releasing %s: %w", l.Key, err)
	}
	if deleted == 0 {
		return ErrNotHeld
	}
	return nil
}

// Extend resets the lease's time to live if it is still ours.
func (l *Lease) Extend(ctx context.Context, ttl time.Duration) error {
	extended, err := extendScript.Run(ctx, l.locker.Client, []string{l.Key}, l.Token, ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("extending %s: %w", l.Key, err)
	}
	if extended == 0 {
		return ErrNotHeld
	}
	return nil
}
