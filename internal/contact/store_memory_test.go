package contact

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"unify/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
	now   time.Time
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(WithClock(func() time.Time {
		s.now = s.now.Add(time.Second)
		return s.now
	}))
}

func strptr(v string) *string { return &v }

func (s *MemoryStoreSuite) TestInsertAssignsIDAndTimestamps() {
	first, err := s.store.Insert(s.ctx, NewContact{
		Email:          strptr("a@example.com"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)
	second, err := s.store.Insert(s.ctx, NewContact{
		PhoneNumber:    strptr("111"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)

	s.Less(first.ID, second.ID)
	s.True(first.CreatedAt.Before(second.CreatedAt), "clock orders creation")
	s.Equal(first.CreatedAt, first.UpdatedAt)
	s.Nil(first.DeletedAt)
}

func (s *MemoryStoreSuite) TestFindByEmailOrPhone() {
	withBoth, err := s.store.Insert(s.ctx, NewContact{
		Email:          strptr("a@example.com"),
		PhoneNumber:    strptr("111"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)
	phoneOnly, err := s.store.Insert(s.ctx, NewContact{
		PhoneNumber:    strptr("222"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)

	s.Run("matches on either provided field", func() {
		found, err := s.store.FindByEmailOrPhone(s.ctx, strptr("a@example.com"), strptr("222"))
		s.Require().NoError(err)
		s.Len(found, 2)
	})

	s.Run("nil field matches nothing", func() {
		found, err := s.store.FindByEmailOrPhone(s.ctx, nil, strptr("111"))
		s.Require().NoError(err)
		s.Require().Len(found, 1)
		s.Equal(withBoth.ID, found[0].ID)
	})

	s.Run("nil query field never matches an unset record field", func() {
		// phoneOnly has no email; an email-only query must not return it.
		found, err := s.store.FindByEmailOrPhone(s.ctx, strptr("missing@example.com"), nil)
		s.Require().NoError(err)
		s.Empty(found)
		_ = phoneOnly
	})
}

func (s *MemoryStoreSuite) TestFindByIDsOrLinkedIDs() {
	primary, err := s.store.Insert(s.ctx, NewContact{
		Email:          strptr("a@example.com"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)
	secondary, err := s.store.Insert(s.ctx, NewContact{
		Email:          strptr("b@example.com"),
		LinkedID:       &primary.ID,
		LinkPrecedence: PrecedenceSecondary,
	})
	s.Require().NoError(err)
	_, err = s.store.Insert(s.ctx, NewContact{
		Email:          strptr("unrelated@example.com"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)

	found, err := s.store.FindByIDsOrLinkedIDs(s.ctx, []int64{primary.ID})
	s.Require().NoError(err)
	s.Require().Len(found, 2, "matches by id and by linked id")
	s.Equal(primary.ID, found[0].ID)
	s.Equal(secondary.ID, found[1].ID)
}

func (s *MemoryStoreSuite) TestUpdateLink() {
	primary, err := s.store.Insert(s.ctx, NewContact{
		Email:          strptr("a@example.com"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)
	other, err := s.store.Insert(s.ctx, NewContact{
		Email:          strptr("b@example.com"),
		LinkPrecedence: PrecedencePrimary,
	})
	s.Require().NoError(err)

	updated, err := s.store.UpdateLink(s.ctx, other.ID, PrecedenceSecondary, &primary.ID)
	s.Require().NoError(err)
	s.Equal(PrecedenceSecondary, updated.LinkPrecedence)
	s.Require().NotNil(updated.LinkedID)
	s.Equal(primary.ID, *updated.LinkedID)
	s.True(updated.UpdatedAt.After(updated.CreatedAt), "UpdatedAt refreshed")
	s.Equal(other.CreatedAt, updated.CreatedAt, "CreatedAt immutable")
}

func (s *MemoryStoreSuite) TestUpdateLinkUnknownID() {
	_, err := s.store.UpdateLink(s.ctx, 404, PrecedenceSecondary, nil)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
