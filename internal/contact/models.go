package contact

import "time"

// LinkPrecedence marks a contact as the canonical record of its cluster or a
// secondary linked to it.
type LinkPrecedence string

const (
	PrecedencePrimary   LinkPrecedence = "primary"
	PrecedenceSecondary LinkPrecedence = "secondary"
)

// Contact is a single sighting of an identity fingerprint. A cluster is the
// set of contacts reachable through LinkedID; exactly one member carries
// PrecedencePrimary and a nil LinkedID between requests.
type Contact struct {
	ID             int64
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
	CreatedAt      time.Time
	UpdatedAt      time.Time
	DeletedAt      *time.Time
}

// NewContact carries the store-independent fields of a contact to be
// inserted. The store assigns ID, CreatedAt and UpdatedAt.
type NewContact struct {
	Email          *string
	PhoneNumber    *string
	LinkedID       *int64
	LinkPrecedence LinkPrecedence
}

// IsPrimary reports whether the contact is its cluster's canonical record.
func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == PrecedencePrimary
}

// MatchesPair reports whether the contact carries exactly the given
// email/phone pair. Both sides are nil-aware: an unset field only matches an
// unset field.
func (c *Contact) MatchesPair(email, phone *string) bool {
	return optEqual(c.Email, email) && optEqual(c.PhoneNumber, phone)
}

func optEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
