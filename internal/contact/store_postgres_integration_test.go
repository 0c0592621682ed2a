//go:build integration

package contact_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/internal/contact"
	"unify/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *contact.PostgresStore
	now      time.Time
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.Truncate(context.Background()))
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = contact.NewPostgresStore(s.postgres.DB, contact.WithPostgresClock(func() time.Time {
		s.now = s.now.Add(time.Second)
		return s.now
	}))
}

func strptr(v string) *string { return &v }

func (s *PostgresStoreSuite) TestInsertAndFindByEmailOrPhone() {
	ctx := context.Background()

	created, err := s.store.Insert(ctx, contact.NewContact{
		Email:          strptr("a@example.com"),
		PhoneNumber:    strptr("111"),
		LinkPrecedence: contact.PrecedencePrimary,
	})
	s.Require().NoError(err)
	s.Positive(created.ID)

	found, err := s.store.FindByEmailOrPhone(ctx, strptr("a@example.com"), nil)
	s.Require().NoError(err)
	s.Require().Len(found, 1)
	s.Equal(created.ID, found[0].ID)
	s.Require().NotNil(found[0].Email)
	s.Equal("a@example.com", *found[0].Email)
	s.True(found[0].IsPrimary())
	s.Nil(found[0].DeletedAt)
}

func (s *PostgresStoreSuite) TestNullFieldsNeverMatchOmittedArguments() {
	ctx := context.Background()

	_, err := s.store.Insert(ctx, contact.NewContact{
		PhoneNumber:    strptr("111"),
		LinkPrecedence: contact.PrecedencePrimary,
	})
	s.Require().NoError(err)

	// email IS NULL on the row; a NULL email argument must not match it.
	found, err := s.store.FindByEmailOrPhone(ctx, nil, strptr("999"))
	s.Require().NoError(err)
	s.Empty(found)

	found, err = s.store.FindByEmailOrPhone(ctx, strptr("a@example.com"), nil)
	s.Require().NoError(err)
	s.Empty(found)
}

func (s *PostgresStoreSuite) TestFindByIDsOrLinkedIDs() {
	ctx := context.Background()

	primary, err := s.store.Insert(ctx, contact.NewContact{
		Email:          strptr("a@example.com"),
		LinkPrecedence: contact.PrecedencePrimary,
	})
	s.Require().NoError(err)
	secondary, err := s.store.Insert(ctx, contact.NewContact{
		Email:          strptr("b@example.com"),
		LinkedID:       &primary.ID,
		LinkPrecedence: contact.PrecedenceSecondary,
	})
	s.Require().NoError(err)
	_, err = s.store.Insert(ctx, contact.NewContact{
		Email:          strptr("unrelated@example.com"),
		LinkPrecedence: contact.PrecedencePrimary,
	})
	s.Require().NoError(err)

	found, err := s.store.FindByIDsOrLinkedIDs(ctx, []int64{primary.ID})
	s.Require().NoError(err)
	s.Require().Len(found, 2)
	s.Equal(primary.ID, found[0].ID)
	s.Equal(secondary.ID, found[1].ID)

	none, err := s.store.FindByIDsOrLinkedIDs(ctx, nil)
	s.Require().NoError(err)
	s.Empty(none)
}

func (s *PostgresStoreSuite) TestUpdateLink() {
	ctx := context.Background()

	primary, err := s.store.Insert(ctx, contact.NewContact{
		Email:          strptr("a@example.com"),
		LinkPrecedence: contact.PrecedencePrimary,
	})
	s.Require().NoError(err)
	other, err := s.store.Insert(ctx, contact.NewContact{
		Email:          strptr("b@example.com"),
		LinkPrecedence: contact.PrecedencePrimary,
	})
	s.Require().NoError(err)

	updated, err := s.store.UpdateLink(ctx, other.ID, contact.PrecedenceSecondary, &primary.ID)
	s.Require().NoError(err)
	s.Equal(contact.PrecedenceSecondary, updated.LinkPrecedence)
	s.Require().NotNil(updated.LinkedID)
	s.Equal(primary.ID, *updated.LinkedID)
	s.True(updated.UpdatedAt.After(updated.CreatedAt))
}
