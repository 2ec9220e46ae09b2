// Package changelog keeps the per-profile change log that offline devices
// pull and acknowledge, plus the registry of those devices.
package changelog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	defaultListLimit = 100
	maxListLimit     = 500
)

var (
	// ErrInvalid is returned when an entry is missing fields or its change is not a JSON object.
	ErrInvalid = errors.New("invalid change entry")
	// ErrDeviceNotFound is returned by Touch for an identifier the profile does not own.
	ErrDeviceNotFound = errors.New("device not found")
	// ErrDeviceClaimed is returned when registering an identifier another profile owns.
	ErrDeviceClaimed = errors.New("device registered to another profile")
)

// Change is one append-only change-log row. Only Synced ever changes.
type Change struct {
	ID        int64           `json:"id"`
	ProfileID int64           `json:"profile_id"`
	ModelName string          `json:"model_name"`
	ObjectID  string          `json:"object_id"`
	Change    json.RawMessage `json:"change"`
	CreatedAt time.Time       `json:"created_at"`
	Synced    bool            `json:"synced"`
}

// Entry is the input to Log.
type Entry struct {
	ProfileID int64
	ModelName string
	ObjectID  string
	Change    json.RawMessage
}

// Device is a client that syncs one profile's change log.
type Device struct {
	ID         int64      `json:"id"`
	ProfileID  int64      `json:"profile_id"`
	Identifier string     `json:"identifier"`
	Label      string     `json:"label"`
	LastSeen   *time.Time `json:"last_seen"`
}

// Store persists change-log entries and devices.
type Store interface {
	Log(ctx context.Context, e Entry) (Change, error)
	// List returns entries newest first, ties broken by id. A nil synced
	// returns both states.
	List(ctx context.Context, profileID int64, synced *bool, limit int) ([]Change, error)
	// MarkSynced flips synced on the profile's own unsynced rows and returns how many changed.
	MarkSynced(ctx context.Context, profileID int64, ids []int64) (int, error)
	// RegisterDevice creates the device for profileID, or refreshes it when
	// the profile already owns identifier. An empty identifier gets a new one.
	RegisterDevice(ctx context.Context, profileID int64, identifier, label string) (Device, error)
	// Touch updates last_seen on a device owned by profileID.
	Touch(ctx context.Context, profileID int64, identifier string) (Device, error)
}

// validate normalizes e.Change and checks required fields.
func validate(e Entry) (Entry, error) {
	e.ModelName = strings.TrimSpace(e.ModelName)
	e.ObjectID = strings.TrimSpace(e.ObjectID)
	if e.ModelName == "" {
		return e, fmt.Errorf("%w: model_name is required", ErrInvalid)
	}
	if e.ObjectID == "" {
		return e, fmt.Errorf("%w: object_id is required", ErrInvalid)
	}

	var obj map[string]any
	if err := json.Unmarshal(e.Change, &obj); err != nil || obj == nil {
		return e, fmt.Errorf("%w: change must be a JSON object", ErrInvalid)
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, e.Change); err != nil {
		return e, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	e.Change = buf.Bytes()
	return e, nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// NewIdentifier returns a fresh device identifier.
func NewIdentifier() string {
	return uuid.NewString()
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu         sync.RWMutex
	changes    []Change
	devices    map[string]*Device
	nextID     int64
	nextDevice int64
	now        func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{devices: make(map[string]*Device), now: time.Now}
}

func (s *MemoryStore) Log(_ context.Context, e Entry) (Change, error) {
	e, err := validate(e)
	if err != nil {
		return Change{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	c := Change{
		ID:        s.nextID,
		ProfileID: e.ProfileID,
		ModelName: e.ModelName,
		ObjectID:  e.ObjectID,
		Change:    append(json.RawMessage(nil), e.Change...),
		CreatedAt: s.now(),
	}
	s.changes = append(s.changes, c)
	return c, nil
}

func (s *MemoryStore) List(_ context.Context, profileID int64, synced *bool, limit int) ([]Change, error) {
	s.mu.RLock()
	var out []Change
	for _, c := range s.changes {
		if c.ProfileID != profileID {
			continue
		}
		if synced != nil && c.Synced != *synced {
			continue
		}
		out = append(out, c)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) MarkSynced(_ context.Context, profileID int64, ids []int64) (int, error) {
	want := make(map[int64]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.changes {
		c := &s.changes[i]
		if c.ProfileID == profileID && want[c.ID] && !c.Synced {
			c.Synced = true
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) RegisterDevice(_ context.Context, profileID int64, identifier, label string) (Device, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		identifier = NewIdentifier()
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if d, ok := s.devices[identifier]; ok {
		if d.ProfileID != profileID {
			return Device{}, fmt.Errorf("%w: %s", ErrDeviceClaimed, identifier)
		}
		if label != "" {
			d.Label = label
		}
		d.LastSeen = &now
		return *d, nil
	}
	s.nextDevice++
	d := &Device{ID: s.nextDevice, ProfileID: profileID, Identifier: identifier, Label: label, LastSeen: &now}
	s.devices[identifier] = d
	return *d, nil
}

func (s *MemoryStore) Touch(_ context.Context, profileID int64, identifier string) (Device, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[identifier]
	if !ok || d.ProfileID != profileID {
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, identifier)
	}
	d.LastSeen = &now
	return *d, nil
}
