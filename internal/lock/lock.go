/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package redlock provides a single-holder lock on a Redis key. The migrate
// command holds one so two deployments never apply migrations at the same time.
package redlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLockHeld is returned by Acquire when another holder owns the key.
var ErrLockHeld = errors.New("lock is already held")

// ErrNotHolder is returned when releasing or extending a lock that expired or belongs to someone else.
var ErrNotHolder = errors.New("lock expired or held by another owner")

const (
	releaseScript = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('del', KEYS[1]) else return 0 end"
	extendScript  = "if redis.call('get', KEYS[1]) == ARGV[1] then return redis.call('pexpire', KEYS[1], ARGV[2]) else return 0 end"
)

// Locker owns key while its value is stored there.
type Locker struct {
	client redis.UniversalClient
	key    string
	owner  string
}

func NewLocker(client redis.UniversalClient, key, owner string) *Locker {
	return &Locker{client: client, key: key, owner: owner}
}

// Acquire takes the lock for ttl or returns ErrLockHeld.
func (l *Locker) Acquire(ctx context.Context, ttl time.Duration) error {
	ok, err := l.client.SetNX(ctx, l.key, l.owner, ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrLockHeld, l.key)
	}
	return nil
}

// Release deletes the key if this Locker still owns it.
func (l *Locker) Release(ctx context.Context) error {
	res, err := l.client.Eval(ctx, releaseScript, []string{l.key}, l.owner).Result()
	if err != nil {
		return err
	}
	if res == int64(0) {
		return fmt.Errorf("%w: %s", ErrNotHolder, l.key)
	}
	return nil
}

// Extend resets the expiry of an owned lock to ttl.
func (l *Locker) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := l.client.Eval(ctx, extendScript, []string{l.key}, l.owner, fmt.Sprintf("%d", ttl.Milliseconds())).Result()
	if err != nil {
		return err
	}
	if res == int64(0) {
		return fmt.Errorf("%w: %s", ErrNotHolder, l.key)
	}
	return nil
}

// Wait retries Acquire every poll until it succeeds, ctx ends, or a Redis error occurs.
func (l *Locker) Wait(ctx context.Context, ttl, poll time.Duration) error {
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		err := l.Acquire(ctx, ttl)
		if err == nil || !errors.Is(err, ErrLockHeld) {
			return err
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", l.key, ctx.Err())
		case <-ticker.C:
		}
	}
}
