// Package handoff carries the result of a successful analysis from the
// intake screen to the results screen of the same session.
package handoff

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Slot names. They match the storage keys the web client used.
const (
	SlotPreview  = "uploadedImage"
	SlotMetadata = "metadata"
)

// Slots is a session-scoped key/value backend
type Slots interface {
	// Get returns the slot value and whether it is present
	Get(ctx context.Context, session, slot string) ([]byte, bool, error)

	// Set stores a slot value, replacing any previous one
	Set(ctx context.Context, session, slot string, value []byte) error

	// SetAll stores several slots at once. Either all of them are written
	// or none are.
	SetAll(ctx context.Context, session string, values map[string][]byte) error

	// Delete removes the named slots. Missing slots are not an error.
	Delete(ctx context.Context, session string, slots ...string) error

	// Lock takes the session lease for owner. It reports false while another
	// unexpired lease is held, whoever holds it.
	Lock(ctx context.Context, session, owner string, ttl time.Duration) (bool, error)

	// Unlock drops the lease if owner still holds it
	Unlock(ctx context.Context, session, owner string) error

	Close() error
}

// Options selects and configures a backend
type Options struct {
	Backend   string // memory, sqlite or redis
	Path      string
	RedisAddr string
	RedisDB   int
	TTL       time.Duration
}

// Open creates the backend named in opts
func Open(ctx context.Context, opts Options) (Slots, error) {
	switch opts.Backend {
	case "memory", "":
		return NewMemorySlots(), nil
	case "sqlite":
		slots, err := NewSQLiteSlots(opts.Path, opts.TTL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		// Expired sessions are dropped opportunistically
		if _, err := slots.Purge(ctx); err != nil {
			slots.Close()
			return nil, fmt.Errorf("purge sqlite store: %w", err)
		}
		return slots, nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr, DB: opts.RedisDB})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect to redis at %s: %w", opts.RedisAddr, err)
		}
		return NewRedisSlots(client, DefaultRedisPrefix, opts.TTL), nil
	default:
		return nil, errors.New("unknown store backend: " + opts.Backend)
	}
}
