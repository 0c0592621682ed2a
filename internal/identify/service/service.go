// Package service implements the identity resolution engine: given a contact
// fingerprint it discovers the transitive cluster of matching records, elects
// the canonical primary, merges previously separate clusters, records novel
// information, and projects the consolidated identity.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"unify/internal/contact"
	"unify/internal/identify/lock"
	"unify/internal/platform/metrics"
	"unify/pkg/platform/sentinel"
	pstrings "unify/pkg/platform/strings"
)

// ErrMissingFingerprint is returned when neither email nor phone is supplied.
// The transport layer normally rejects such requests before the engine runs.
var ErrMissingFingerprint = errors.New("email or phone number is required")

// Fingerprint is the (email, phoneNumber) pair identifying a contact attempt.
// Either field may be nil; an empty string counts as absent.
type Fingerprint struct {
	Email       *string
	PhoneNumber *string
}

func normalize(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}

// lockKeys returns the serialization keys for the provided fields.
func (f Fingerprint) lockKeys() []string {
	var keys []string
	if f.Email != nil {
		keys = append(keys, "email:"+*f.Email)
	}
	if f.PhoneNumber != nil {
		keys = append(keys, "phone:"+*f.PhoneNumber)
	}
	return keys
}

// Identity is the consolidated view of one cluster. Emails and PhoneNumbers
// start with the primary's values; SecondaryIDs follow discovery order.
type Identity struct {
	PrimaryID    int64
	Emails       []string
	PhoneNumbers []string
	SecondaryIDs []int64
}

// Service runs the resolution pipeline. It holds no state between requests;
// all state lives in the contact store.
type Service struct {
	store   contact.Store
	locker  lock.Locker
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Service.
type Option func(*Service)

// WithLocker serializes requests per fingerprint key. The default Nop locker
// reproduces the reference behavior (no serialization).
func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

// New constructs the identity resolution service.
func New(store contact.Store, logger *slog.Logger, m *metrics.Metrics, opts ...Option) *Service {
	s := &Service{
		store:   store,
		locker:  lock.Nop{},
		logger:  logger,
		metrics: m,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Identify resolves a fingerprint to its consolidated identity, creating or
// linking contact records as needed. Writes are not transactional: a request
// cancelled mid-sequence can leave a demotion or insert applied without the
// rest, which the next touching request heals.
func (s *Service) Identify(ctx context.Context, fp Fingerprint) (*Identity, error) {
	fp.Email = normalize(fp.Email)
	fp.PhoneNumber = normalize(fp.PhoneNumber)
	if fp.Email == nil && fp.PhoneNumber == nil {
		return nil, ErrMissingFingerprint
	}

	release, err := s.locker.Acquire(ctx, fp.lockKeys())
	if err != nil {
		return nil, fmt.Errorf("acquire fingerprint locks: %w", err)
	}
	defer release()

	seeds, err := s.store.FindByEmailOrPhone(ctx, fp.Email, fp.PhoneNumber)
	if err != nil {
		return nil, fmt.Errorf("lookup seed matches: %w", err)
	}

	if len(seeds) == 0 {
		created, err := s.store.Insert(ctx, contact.NewContact{
			Email:          fp.Email,
			PhoneNumber:    fp.PhoneNumber,
			LinkPrecedence: contact.PrecedencePrimary,
		})
		if err != nil {
			return nil, fmt.Errorf("create primary contact: %w", err)
		}
		s.countCreated(contact.PrecedencePrimary)
		return assemble(created, nil, nil), nil
	}

	closure, err := s.loadCluster(ctx, seeds)
	if err != nil {
		return nil, err
	}
	if len(closure) == 0 {
		return nil, fmt.Errorf("cluster closure empty despite %d seed matches: %w",
			len(seeds), sentinel.ErrInvalidState)
	}

	primary := electPrimary(closure)

	closure, err = s.reconcile(ctx, closure, primary)
	if err != nil {
		return nil, err
	}

	var created *contact.Contact
	if needsNewContact(closure, fp) {
		created, err = s.store.Insert(ctx, contact.NewContact{
			Email:          fp.Email,
			PhoneNumber:    fp.PhoneNumber,
			LinkedID:       &primary.ID,
			LinkPrecedence: contact.PrecedenceSecondary,
		})
		if err != nil {
			return nil, fmt.Errorf("create secondary contact: %w", err)
		}
		s.countCreated(contact.PrecedenceSecondary)
	}

	return assemble(primary, closure, created), nil
}

// loadCluster expands the seed matches to the full transitive closure over
// the linked-to relation. The loop iterates to a fixed point rather than
// assuming links are flat, so it stays correct even when a chained link has
// crept into the store.
func (s *Service) loadCluster(ctx context.Context, seeds []*contact.Contact) ([]*contact.Contact, error) {
	idSet := make(map[int64]struct{})
	for _, c := range seeds {
		idSet[c.ID] = struct{}{}
		if c.LinkedID != nil {
			idSet[*c.LinkedID] = struct{}{}
		}
	}

	known := make(map[int64]*contact.Contact)
	var order []int64

	for {
		records, err := s.store.FindByIDsOrLinkedIDs(ctx, sortedIDs(idSet))
		if err != nil {
			return nil, fmt.Errorf("expand cluster closure: %w", err)
		}

		grew := false
		for _, r := range records {
			if _, seen := known[r.ID]; !seen {
				known[r.ID] = r
				order = append(order, r.ID)
			}
			if _, ok := idSet[r.ID]; !ok {
				idSet[r.ID] = struct{}{}
				grew = true
			}
			if r.LinkedID != nil {
				if _, ok := idSet[*r.LinkedID]; !ok {
					idSet[*r.LinkedID] = struct{}{}
					grew = true
				}
			}
		}
		if !grew {
			break
		}
	}

	closure := make([]*contact.Contact, 0, len(order))
	for _, id := range order {
		closure = append(closure, known[id])
	}
	return closure, nil
}

// electPrimary picks the record with the earliest CreatedAt; identical
// timestamps fall back to the lowest ID so the election stays deterministic
// across stores.
func electPrimary(closure []*contact.Contact) *contact.Contact {
	primary := closure[0]
	for _, c := range closure[1:] {
		if c.CreatedAt.Before(primary.CreatedAt) ||
			(c.CreatedAt.Equal(primary.CreatedAt) && c.ID < primary.ID) {
			primary = c
		}
	}
	return primary
}

// reconcile demotes every primary other than the elected one and repoints any
// record not linked directly to the elected primary, restoring the depth-1
// link invariant. It returns a new closure slice reflecting the writes.
func (s *Service) reconcile(ctx context.Context, closure []*contact.Contact, primary *contact.Contact) ([]*contact.Contact, error) {
	updated := make([]*contact.Contact, len(closure))
	merges := 0

	for i, c := range closure {
		switch {
		case c.ID == primary.ID:
			updated[i] = c

		case c.IsPrimary():
			// A second primary in the closure means this request bridged two
			// clusters; the younger primary loses the election.
			upd, err := s.store.UpdateLink(ctx, c.ID, contact.PrecedenceSecondary, &primary.ID)
			if err != nil {
				return nil, fmt.Errorf("demote contact %d: %w", c.ID, err)
			}
			s.logger.InfoContext(ctx, "demoted primary contact",
				"contact_id", c.ID,
				"new_primary_id", primary.ID,
			)
			updated[i] = upd
			merges++

		case c.LinkedID == nil || *c.LinkedID != primary.ID:
			upd, err := s.store.UpdateLink(ctx, c.ID, contact.PrecedenceSecondary, &primary.ID)
			if err != nil {
				return nil, fmt.Errorf("repoint contact %d: %w", c.ID, err)
			}
			updated[i] = upd

		default:
			updated[i] = c
		}
	}

	if merges > 0 && s.metrics != nil {
		s.metrics.ClusterMerges.Add(float64(merges))
	}
	return updated, nil
}

// needsNewContact reports whether the fingerprint's exact (email, phone) pair
// is absent from the cluster. Partial overlap (a known email with a new
// phone, or a provided field the cluster pairs differently) still counts as
// novel; only a verbatim pair match suppresses the insert.
func needsNewContact(closure []*contact.Contact, fp Fingerprint) bool {
	for _, c := range closure {
		if c.MatchesPair(fp.Email, fp.PhoneNumber) {
			return false
		}
	}
	return true
}

// assemble projects the cluster, plus the freshly created record if any, into
// the consolidated identity. Each stage above returned new values, so this is
// a pure projection over immutable inputs.
func assemble(primary *contact.Contact, closure []*contact.Contact, created *contact.Contact) *Identity {
	emails := make([]string, 0, len(closure)+2)
	phones := make([]string, 0, len(closure)+2)
	secondaryIDs := make([]int64, 0, len(closure)+1)

	if primary.Email != nil {
		emails = append(emails, *primary.Email)
	}
	if primary.PhoneNumber != nil {
		phones = append(phones, *primary.PhoneNumber)
	}

	members := closure
	if created != nil {
		members = append(append(make([]*contact.Contact, 0, len(closure)+1), closure...), created)
	}
	for _, c := range members {
		if c.Email != nil {
			emails = append(emails, *c.Email)
		}
		if c.PhoneNumber != nil {
			phones = append(phones, *c.PhoneNumber)
		}
		if c.ID != primary.ID {
			secondaryIDs = append(secondaryIDs, c.ID)
		}
	}

	return &Identity{
		PrimaryID:    primary.ID,
		Emails:       pstrings.Dedupe(emails),
		PhoneNumbers: pstrings.Dedupe(phones),
		SecondaryIDs: secondaryIDs,
	}
}

func (s *Service) countCreated(p contact.LinkPrecedence) {
	if s.metrics != nil {
		s.metrics.ContactsCreated.WithLabelValues(string(p)).Inc()
	}
}

func sortedIDs(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
