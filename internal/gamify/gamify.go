// Package gamify awards points for quiz results and grants badges once a
// profile's point total crosses a badge threshold.
package gamify

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrInvalid is returned for zero-point awards and badges without a code.
var ErrInvalid = errors.New("invalid gamify input")

// Transaction is one points ledger entry.
type Transaction struct {
	ID        int64     `json:"id"`
	ProfileID int64     `json:"profile_id"`
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// Criteria decides when a badge is earned. A badge with no points
// threshold is never granted automatically.
type Criteria struct {
	Points *int `json:"points,omitempty" yaml:"points"`
}

// Badge is an achievement definition.
type Badge struct {
	ID          int64    `json:"id"`
	Code        string   `json:"code"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Criteria    Criteria `json:"criteria"`
}

// UserBadge is a badge held by a profile.
type UserBadge struct {
	Badge
	AwardedAt time.Time `json:"awarded_at"`
}

// Store keeps points and badges.
type Store interface {
	Award(ctx context.Context, profileID int64, points int, reason string) (Transaction, error)
	// AwardOnce records the transaction only if the profile has no earlier
	// AwardOnce transaction with the same reason. It reports whether it wrote.
	AwardOnce(ctx context.Context, profileID int64, points int, reason string) (Transaction, bool, error)
	Total(ctx context.Context, profileID int64) (int, error)
	// Evaluate grants every badge whose threshold the profile has reached
	// and that it does not hold yet. It returns only the new badges.
	Evaluate(ctx context.Context, profileID int64) ([]UserBadge, error)
	Badges(ctx context.Context, profileID int64) ([]UserBadge, error)
	UpsertBadge(ctx context.Context, b Badge) (Badge, error)
}

func (c Criteria) reached(total int) bool {
	return c.Points != nil && *c.Points <= total
}

func normalizeBadge(b Badge) (Badge, error) {
	b.Code = strings.TrimSpace(b.Code)
	if b.Code == "" {
		return b, fmt.Errorf("%w: badge code is required", ErrInvalid)
	}
	if b.Title == "" {
		b.Title = b.Code
	}
	return b, nil
}

// MemoryStore is an in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	txns    []Transaction
	once    map[int64]map[string]bool
	badges  map[string]*Badge
	held    map[int64]map[int64]time.Time
	nextTxn int64
	nextBdg int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		badges: make(map[string]*Badge),
		held:   make(map[int64]map[int64]time.Time),
		once:   make(map[int64]map[string]bool),
	}
}

func (s *MemoryStore) Award(_ context.Context, profileID int64, points int, reason string) (Transaction, error) {
	if points == 0 {
		return Transaction{}, fmt.Errorf("%w: points must be non-zero", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(profileID, points, reason), nil
}

func (s *MemoryStore) AwardOnce(_ context.Context, profileID int64, points int, reason string) (Transaction, bool, error) {
	if points == 0 {
		return Transaction{}, false, fmt.Errorf("%w: points must be non-zero", ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.once[profileID][reason] {
		return Transaction{}, false, nil
	}
	if s.once[profileID] == nil {
		s.once[profileID] = make(map[string]bool)
	}
	s.once[profileID][reason] = true
	return s.appendLocked(profileID, points, reason), true, nil
}

func (s *MemoryStore) appendLocked(profileID int64, points int, reason string) Transaction {
	s.nextTxn++
	t := Transaction{ID: s.nextTxn, ProfileID: profileID, Points: points, Reason: reason, CreatedAt: time.Now()}
	s.txns = append(s.txns, t)
	return t
}

func (s *MemoryStore) Total(_ context.Context, profileID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.totalLocked(profileID), nil
}

func (s *MemoryStore) totalLocked(profileID int64) int {
	total := 0
	for _, t := range s.txns {
		if t.ProfileID == profileID {
			total += t.Points
		}
	}
	return total
}

func (s *MemoryStore) Evaluate(_ context.Context, profileID int64) ([]UserBadge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := s.totalLocked(profileID)
	held := s.held[profileID]
	if held == nil {
		held = make(map[int64]time.Time)
		s.held[profileID] = held
	}

	var awarded []UserBadge
	now := time.Now()
	for _, b := range s.badges {
		if _, ok := held[b.ID]; ok || !b.Criteria.reached(total) {
			continue
		}
		held[b.ID] = now
		awarded = append(awarded, UserBadge{Badge: *b, AwardedAt: now})
	}
	sortUserBadges(awarded)
	return awarded, nil
}

func (s *MemoryStore) Badges(_ context.Context, profileID int64) ([]UserBadge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []UserBadge
	for _, b := range s.badges {
		if at, ok := s.held[profileID][b.ID]; ok {
			out = append(out, UserBadge{Badge: *b, AwardedAt: at})
		}
	}
	sortUserBadges(out)
	return out, nil
}

func (s *MemoryStore) UpsertBadge(_ context.Context, b Badge) (Badge, error) {
	b, err := normalizeBadge(b)
	if err != nil {
		return Badge{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.badges[b.Code]; ok {
		b.ID = existing.ID
	} else {
		s.nextBdg++
		b.ID = s.nextBdg
	}
	s.badges[b.Code] = &b
	return b, nil
}

func sortUserBadges(bs []UserBadge) {
	sort.Slice(bs, func(i, j int) bool { return bs[i].ID < bs[j].ID })
}
