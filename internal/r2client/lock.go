package r2client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

// lease is the JSON body of a lock object.
type lease struct {
	Owner     string    `json:"owner"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Lock is a best-effort mutual exclusion between replicas, stored as one
// object and taken with conditional writes. An expired lease may be taken
// over by another owner.
type Lock struct {
	client *Client
	key    string
	ttl    time.Duration
	owner  string
	etag   string
}

// NewLock returns an unlocked lock on key.
func NewLock(client *Client, key string, ttl time.Duration) *Lock {
	return &Lock{client: client, key: key, ttl: ttl, owner: uuid.NewString()}
}

// Owner returns the lease owner id of this instance.
func (l *Lock) Owner() string {
	return l.owner
}

func (l *Lock) body() (io.Reader, error) {
	data, err := json.Marshal(lease{Owner: l.owner, ExpiresAt: time.Now().Add(l.ttl)})
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

// Acquire takes the lock. It returns false without error when another owner
// holds an unexpired lease.
func (l *Lock) Acquire(ctx context.Context) (bool, error) {
	body, err := l.body()
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	created, etag, err := l.client.PutIfAbsent(ctx, l.key, body, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if created {
		l.etag = etag
		return true, nil
	}

	current, etag, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return false, nil // released meanwhile; next attempt wins
	}
	if err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	if current != nil && time.Now().Before(current.ExpiresAt) {
		return false, nil
	}

	if body, err = l.body(); err != nil {
		return false, fmt.Errorf("acquire lock: %w", err)
	}
	taken, newETag, err := l.client.PutIfMatch(ctx, l.key, body, etag, "application/json")
	if err != nil {
		return false, fmt.Errorf("acquire lock: take over: %w", err)
	}
	if taken {
		l.etag = newETag
	}
	return taken, nil
}

// Release deletes the lock object if this instance still owns it.
func (l *Lock) Release(ctx context.Context) error {
	current, _, err := l.read(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if current != nil && current.Owner != l.owner {
		return nil
	}
	l.etag = ""
	return l.client.Delete(ctx, l.key)
}

// read returns the current lease; a nil lease means the body is unreadable
// and the lock counts as expired.
func (l *Lock) read(ctx context.Context) (*lease, string, error) {
	rc, etag, err := l.client.Download(ctx, l.key)
	if err != nil {
		return nil, "", err
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, "", err
	}
	var cur lease
	if err := json.Unmarshal(data, &cur); err != nil {
		return nil, etag, nil
	}
	return &cur, etag, nil
}
