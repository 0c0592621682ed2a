// Package handler exposes the identify endpoint. It owns transport concerns
// only: request parsing, presence validation, and status-code mapping.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"unify/internal/identify/service"
	"unify/internal/platform/metrics"
	"unify/pkg/requestcontext"
)

// Service defines the engine operations the handler depends on.
type Service interface {
	Identify(ctx context.Context, fp service.Fingerprint) (*service.Identity, error)
}

// Handler handles the identify endpoints.
type Handler struct {
	logger   *slog.Logger
	identify Service
	metrics  *metrics.Metrics
}

// New creates a new identify Handler.
func New(identify Service, logger *slog.Logger, m *metrics.Metrics) *Handler {
	return &Handler{
		logger:   logger,
		identify: identify,
		metrics:  m,
	}
}

// Register registers the identify routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/identify", h.handleIdentify)
	r.Get("/health", h.handleHealth)
}

type identifyRequest struct {
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

func (r identifyRequest) empty() bool {
	return (r.Email == nil || *r.Email == "") &&
		(r.PhoneNumber == nil || *r.PhoneNumber == "")
}

// contactPayload is the wire shape of a consolidated identity. The
// primaryContatctId spelling is the established contract; keep it.
type contactPayload struct {
	PrimaryContactID    int64    `json:"primaryContatctId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

type identifyResponse struct {
	Contact contactPayload `json:"contact"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) handleIdentify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	var req identifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid identify request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.countOutcome("invalid")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Email or phone number is required"})
		return
	}
	if req.empty() {
		h.countOutcome("invalid")
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Email or phone number is required"})
		return
	}

	identity, err := h.identify.Identify(ctx, service.Fingerprint{
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		// No partial detail leaks to the caller; the request-scoped log line
		// carries the cause.
		h.logger.ErrorContext(ctx, "identify failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		h.countOutcome("error")
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Internal Server Error"})
		return
	}

	h.countOutcome("ok")
	writeJSON(w, http.StatusOK, identifyResponse{Contact: contactPayload{
		PrimaryContactID:    identity.PrimaryID,
		Emails:              orEmpty(identity.Emails),
		PhoneNumbers:        orEmpty(identity.PhoneNumbers),
		SecondaryContactIDs: orEmptyIDs(identity.SecondaryIDs),
	}})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) countOutcome(outcome string) {
	if h.metrics != nil {
		h.metrics.IdentifyRequests.WithLabelValues(outcome).Inc()
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// orEmpty keeps empty arrays as [] instead of null on the wire.
func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func orEmptyIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
