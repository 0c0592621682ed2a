package contact

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresStore persists contacts in PostgreSQL through database/sql.
type PostgresStore struct {
	db    *sql.DB
	clock Clock
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock sets the clock used for assigned timestamps.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewPostgresStore constructs a PostgreSQL-backed contact store.
func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
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

const contactColumns = `id, email, phone_number, linked_id, link_precedence, created_at, updated_at, deleted_at`

func (s *PostgresStore) FindByEmailOrPhone(ctx context.Context, email, phone *string) ([]*Contact, error) {
	// NULL arguments compare to nothing, so an omitted field cannot match
	// rows where that column is unset.
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE email = $1 OR phone_number = $2
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, email, phone)
	if err != nil {
		return nil, fmt.Errorf("find contacts by email or phone: %w", err)
	}
	return scanContacts(rows)
}

func (s *PostgresStore) FindByIDsOrLinkedIDs(ctx context.Context, ids []int64) ([]*Contact, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = ANY($1::bigint[]) OR linked_id = ANY($1::bigint[])
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("find contacts by ids: %w", err)
	}
	return scanContacts(rows)
}

func (s *PostgresStore) Insert(ctx context.Context, nc NewContact) (*Contact, error) {
	now := s.clock()
	query := `
		INSERT INTO contacts (email, phone_number, linked_id, link_precedence, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id
	`
	var id int64
	err := s.db.QueryRowContext(ctx, query, nc.Email, nc.PhoneNumber, nc.LinkedID, string(nc.LinkPrecedence), now).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("insert contact: %w", err)
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

func (s *PostgresStore) UpdateLink(ctx context.Context, id int64, precedence LinkPrecedence, linkedID *int64) (*Contact, error) {
	now := s.clock()
	query := `
		UPDATE contacts
		SET link_precedence = $1, linked_id = $2, updated_at = $3
		WHERE id = $4
		RETURNING ` + contactColumns + `
	`
	row := s.db.QueryRowContext(ctx, query, string(precedence), linkedID, now, id)
	c, err := scanContact(row)
	if err != nil {
		return nil, fmt.Errorf("update contact %d link: %w", id, err)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContact(row rowScanner) (*Contact, error) {
	var (
		c          Contact
		email      sql.NullString
		phone      sql.NullString
		linkedID   sql.NullInt64
		precedence string
		deletedAt  sql.NullTime
	)
	err := row.Scan(&c.ID, &email, &phone, &linkedID, &precedence, &c.CreatedAt, &c.UpdatedAt, &deletedAt)
	if err != nil {
		return nil, err
	}
	if email.Valid {
		c.Email = &email.String
	}
	if phone.Valid {
		c.PhoneNumber = &phone.String
	}
	if linkedID.Valid {
		c.LinkedID = &linkedID.Int64
	}
	if deletedAt.Valid {
		c.DeletedAt = &deletedAt.Time
	}
	c.LinkPrecedence = LinkPrecedence(precedence)
	return &c, nil
}

func scanContacts(rows *sql.Rows) ([]*Contact, error) {
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, nil
}
