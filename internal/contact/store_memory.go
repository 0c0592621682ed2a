package contact

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"unify/pkg/platform/sentinel"
)

// InMemoryStore keeps contacts in a map guarded by a RWMutex. It backs unit
// tests and the memory driver; it favors clarity over performance.
type InMemoryStore struct {
	mu       sync.RWMutex
	contacts map[int64]Contact
	nextID   int64
	clock    Clock
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock used for assigned timestamps.
func WithClock(clock Clock) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewInMemoryStore constructs an empty in-memory contact store.
func NewInMemoryStore(opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		contacts: make(map[int64]Contact),
		nextID:   1,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryStore) FindByEmailOrPhone(_ context.Context, email, phone *string) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Contact
	for _, c := range s.contacts {
		if matchesField(c.Email, email) || matchesField(c.PhoneNumber, phone) {
			cc := c
			out = append(out, &cc)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *InMemoryStore) FindByIDsOrLinkedIDs(_ context.Context, ids []int64) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	var out []*Contact
	for _, c := range s.contacts {
		_, byID := want[c.ID]
		byLink := false
		if c.LinkedID != nil {
			_, byLink = want[*c.LinkedID]
		}
		if byID || byLink {
			cc := c
			out = append(out, &cc)
		}
	}
	sortByID(out)
	return out, nil
}

func (s *InMemoryStore) Insert(_ context.Context, nc NewContact) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	c := Contact{
		ID:             s.nextID,
		Email:          nc.Email,
		PhoneNumber:    nc.PhoneNumber,
		LinkedID:       nc.LinkedID,
		LinkPrecedence: nc.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.nextID++
	s.contacts[c.ID] = c

	cc := c
	return &cc, nil
}

func (s *InMemoryStore) UpdateLink(_ context.Context, id int64, precedence LinkPrecedence, linkedID *int64) (*Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.contacts[id]
	if !ok {
		return nil, fmt.Errorf("update contact %d: %w", id, sentinel.ErrNotFound)
	}
	c.LinkPrecedence = precedence
	c.LinkedID = linkedID
	c.UpdatedAt = s.clock()
	s.contacts[id] = c

	cc := c
	return &cc, nil
}

// matchesField is nil-aware on the query side only: a nil query value matches
// nothing, while a set query value requires an equal set field.
func matchesField(field, query *string) bool {
	if query == nil || field == nil {
		return false
	}
	return *field == *query
}

func sortByID(contacts []*Contact) {
	sort.Slice(contacts, func(i, j int) bool { return contacts[i].ID < contacts[j].ID })
}
