package contact

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// SQLiteStore persists contacts in SQLite for single-node deployments. It
// shares row scanning with the postgres store; only placeholders and the id
// retrieval differ.
type SQLiteStore struct {
	db    *sql.DB
	clock Clock
}

// SQLiteOption configures a SQLiteStore.
type SQLiteOption func(*SQLiteStore)

// WithSQLiteClock sets the clock used for assigned timestamps.
func WithSQLiteClock(clock Clock) SQLiteOption {
	return func(s *SQLiteStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSQLiteStore constructs a SQLite-backed contact store.
func NewSQLiteStore(db *sql.DB, opts ...SQLiteOption) *SQLiteStore {
	s := &SQLiteStore{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *SQLiteStore) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE email = ? OR phone_number = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, email, phone)
	if err != nil {
		return nil, fmt.Errorf("find contacts by email or phone: %w", err)
	}
	return scanContacts(rows)
}

func (s *SQLiteStore) FindByIDsOrLinkedIDs(ctx context.Context, ids []int64) ([]*Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id IN (` + placeholders + `) OR linked_id IN (` + placeholders + `)
		ORDER BY id
	`
	args := make([]any, 0, len(ids)*2)
	for _, id := range ids {
		args = append(args, id)
	}
	for _, id := range ids {
		args = append(args, id)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find contacts by ids: %w", err)
	}
	return scanContacts(rows)
}

func (s *SQLiteStore) Insert(ctx context.Context, nc NewContact) (*Contact, error) {
	now := s.clock()
	query := `
		INSERT INTO contacts (email, phone_number, linked_id, link_precedence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	res, err := s.db.ExecContext(ctx, query, nc.Email, nc.PhoneNumber, nc.LinkedID, string(nc.LinkPrecedence), now, now)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert contact id: %w", err)
	}
	return &Contact{
		ID:             id,
		Email:          nc.Email,
		PhoneNumber:    nc.PhoneNumber,
		LinkedID:       nc.LinkedID,
		LinkPrecedence: nc.LinkPrecedence,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (s *SQLiteStore) UpdateLink(ctx context.Context, id int64, precedence LinkPrecedence, linkedID *int64) (*Contact, error) {
	now := s.clock()
	query := `
		UPDATE contacts
		SET link_precedence = ?, linked_id = ?, updated_at = ?
		WHERE id = ?
	`
	if _, err := s.db.ExecContext(ctx, query, string(precedence), linkedID, now, id); err != nil {
		return nil, fmt.Errorf("update contact %d link: %w", id, err)
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+contactColumns+` FROM contacts WHERE id = ?`, id)
	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("reload contact %d: %w", id, err)
	}
	return c, nil
}
