package handoff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/pdxmph/huskytrace/pkg/metadata"
)

// DefaultLeaseTTL bounds how long a crashed submit can keep a session busy
const DefaultLeaseTTL = 5 * time.Minute

var (
	// ErrIncompleteRecord is returned when committing a record missing a part
	ErrIncompleteRecord = errors.New("handoff record needs both a preview and metadata")
	// ErrLeaseHeld is returned while another submit, in this process or
	// another one, owns the session
	ErrLeaseHeld = errors.New("session is held by another upload")
)

// Record is what a successful analysis leaves for the results screen
type Record struct {
	PreviewURL string
	// Metadata is the analysis payload exactly as the service sent it
	Metadata json.RawMessage
}

// Result decodes the stored metadata
func (r Record) Result() (metadata.AnalysisResult, error) {
	return metadata.Decode(r.Metadata)
}

// ReleaseFunc gives a lease back
type ReleaseFunc func(ctx context.Context) error

// Writer is held by the upload orchestrator only
type Writer interface {
	// Acquire takes the session lease for one submit, or fails with
	// ErrLeaseHeld
	Acquire(ctx context.Context) (ReleaseFunc, error)
	// Clear removes any record of the session
	Clear(ctx context.Context) error
	// Commit stores a complete record
	Commit(ctx context.Context, rec Record) error
}

// Reader is held by the results presenter only
type Reader interface {
	// Load returns the record and whether both parts of it are present
	Load(ctx context.Context) (Record, bool, error)
}

// Store binds a backend to one session
type Store struct {
	slots   Slots
	session string

	// LeaseTTL is how long a submit may hold the session; zero means
	// DefaultLeaseTTL
	LeaseTTL time.Duration
}

// NewStore creates a store for session
func NewStore(slots Slots, session string) *Store {
	return &Store{slots: slots, session: session}
}

// Writer returns the write side of the store
func (s *Store) Writer() Writer {
	return storeWriter{s}
}

// Reader returns the read side of the store
func (s *Store) Reader() Reader {
	return storeReader{s}
}

type storeWriter struct{ s *Store }

func (w storeWriter) Acquire(ctx context.Context) (ReleaseFunc, error) {
	ttl := w.s.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}

	owner := uuid.NewString()
	ok, err := w.s.slots.Lock(ctx, w.s.session, owner, ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	if !ok {
		return nil, ErrLeaseHeld
	}

	return func(ctx context.Context) error {
		return w.s.slots.Unlock(ctx, w.s.session, owner)
	}, nil
}

func (w storeWriter) Clear(ctx context.Context) error {
	if err := w.s.slots.Delete(ctx, w.s.session, SlotPreview, SlotMetadata); err != nil {
		return fmt.Errorf("clear handoff: %w", err)
	}
	return nil
}

func (w storeWriter) Commit(ctx context.Context, rec Record) error {
	if rec.PreviewURL == "" || len(rec.Metadata) == 0 {
		return ErrIncompleteRecord
	}

	values := map[string][]byte{
		SlotMetadata: rec.Metadata,
		SlotPreview:  []byte(rec.PreviewURL),
	}
	if err := w.s.slots.SetAll(ctx, w.s.session, values); err != nil {
		return fmt.Errorf("store record: %w", err)
	}
	return nil
}

type storeReader struct{ s *Store }

func (r storeReader) Load(ctx context.Context) (Record, bool, error) {
	preview, ok, err := r.s.slots.Get(ctx, r.s.session, SlotPreview)
	if err != nil || !ok || len(preview) == 0 {
		return Record{}, false, err
	}
	meta, ok, err := r.s.slots.Get(ctx, r.s.session, SlotMetadata)
	if err != nil || !ok || len(meta) == 0 {
		return Record{}, false, err
	}
	return Record{PreviewURL: string(preview), Metadata: json.RawMessage(meta)}, true, nil
}
