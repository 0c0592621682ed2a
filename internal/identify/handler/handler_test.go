package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"unify/internal/contact"
	"unify/internal/identify/service"
	"unify/internal/platform/metrics"
	"unify/pkg/testutil"
)

// HandlerSuite runs the identify handler against the real service and an
// in-memory store; handler tests validate HTTP concerns only.
type HandlerSuite struct {
	suite.Suite
	router http.Handler
	store  *contact.InMemoryStore
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.store = contact.NewInMemoryStore()
	s.router = s.buildRouter(s.store)
}

func (s *HandlerSuite) buildRouter(store contact.Store) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New(prometheus.NewRegistry())
	svc := service.New(store, logger, m)

	r := chi.NewRouter()
	New(svc, logger, m).Register(r)
	return r
}

func (s *HandlerSuite) TestMissingFingerprintReturns400() {
	for _, body := range []any{
		map[string]any{},
		map[string]any{"email": "", "phoneNumber": ""},
		map[string]any{"email": nil, "phoneNumber": nil},
	} {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", body)
		rr := testutil.DoRequest(s.router, req)

		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		testutil.AssertJSONContains(s.T(), rr, "message", "Email or phone number is required")
	}

	records, err := s.store.FindByIDsOrLinkedIDs(context.Background(), []int64{1})
	s.Require().NoError(err)
	s.Empty(records, "rejected requests must not create records")
}

func (s *HandlerSuite) TestMalformedJSONReturns400() {
	req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/identify", "not valid json")
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	testutil.AssertJSONContains(s.T(), rr, "message", "Email or phone number is required")
}

func (s *HandlerSuite) TestNewIdentityResponseShape() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify",
		map[string]any{"email": "doc@example.com", "phoneNumber": "111"})
	rr := testutil.DoRequest(s.router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	// The misspelled primaryContatctId key is the wire contract; decode into
	// a raw map so a silent rename would fail the test.
	resp := testutil.UnmarshalResponse[map[string]map[string]any](s.T(), rr)
	payload, ok := (*resp)["contact"]
	s.Require().True(ok, "response must nest under contact")
	s.Contains(payload, "primaryContatctId")
	s.Equal([]any{"doc@example.com"}, payload["emails"])
	s.Equal([]any{"111"}, payload["phoneNumbers"])
	s.Equal([]any{}, payload["secondaryContactIds"], "empty arrays stay [], never null")
}

func (s *HandlerSuite) TestLinkedIdentityResponse() {
	for _, body := range []map[string]any{
		{"email": "doc@example.com", "phoneNumber": "111"},
		{"email": "marty@example.com", "phoneNumber": "111"},
	} {
		rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify", body))
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
	}

	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify",
		map[string]any{"phoneNumber": "111"}))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	resp := testutil.UnmarshalResponse[map[string]map[string]any](s.T(), rr)
	payload := (*resp)["contact"]
	s.Equal([]any{"doc@example.com", "marty@example.com"}, payload["emails"])
	s.NotEmpty(payload["secondaryContactIds"])
}

func (s *HandlerSuite) TestStoreFailureReturns500() {
	router := s.buildRouter(failingStore{})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/identify",
		map[string]any{"email": "doc@example.com"})
	rr := testutil.DoRequest(router, req)

	testutil.AssertStatus(s.T(), rr, http.StatusInternalServerError)
	testutil.AssertJSONContains(s.T(), rr, "message", "Internal Server Error")
}

func (s *HandlerSuite) TestHealth() {
	rr := testutil.DoRequest(s.router, testutil.NewJSONRequest(s.T(), http.MethodGet, "/health", nil))
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

// failingStore simulates a down record store.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) FindByEmailOrPhone(context.Context, *string, *string) ([]*contact.Contact, error) {
	return nil, errStoreDown
}

func (failingStore) FindByIDsOrLinkedIDs(context.Context, []int64) ([]*contact.Contact, error) {
	return nil, errStoreDown
}

func (failingStore) Insert(context.Context, contact.NewContact) (*contact.Contact, error) {
	return nil, errStoreDown
}

func (failingStore) UpdateLink(context.Context, int64, contact.LinkPrecedence, *int64) (*contact.Contact, error) {
	return nil, errStoreDown
}
