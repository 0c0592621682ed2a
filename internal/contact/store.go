package contact

import (
	"context"
	"time"
)

// Store persists contacts. Implementations must not assume multi-statement
// transactions: the identify flow issues each write independently and
// tolerates the resulting partial-failure window.
//
// Stores return sentinel errors from pkg/platform/sentinel (wrapped) for
// infrastructure facts such as a missing record.
type Store interface {
	// FindByEmailOrPhone returns contacts whose email equals the given email
	// or whose phone number equals the given phone. A nil argument matches
	// nothing; in particular it never matches records where that field is
	// unset.
	FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*Contact, error)

	// FindByIDsOrLinkedIDs returns contacts whose ID or LinkedID is in ids.
	FindByIDsOrLinkedIDs(ctx context.Context, ids []int64) ([]*Contact, error)

	// Insert persists a new contact, assigning ID and timestamps.
	Insert(ctx context.Context, nc NewContact) (*Contact, error)

	// UpdateLink rewrites a contact's precedence and link target, refreshing
	// UpdatedAt. Used only by cluster reconciliation.
	UpdateLink(ctx context.Context, id int64, precedence LinkPrecedence, linkedID *int64) (*Contact, error)
}

// Clock supplies the current time; injectable so store tests control
// CreatedAt ordering.
type Clock func() time.Time
