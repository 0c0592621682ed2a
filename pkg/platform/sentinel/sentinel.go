package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (wrapped) so
// the identify service and handler can classify failures without inspecting
// driver-specific error types.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: contact does not exist in the store
// - ErrConflict: concurrent modification detected
// - ErrInvalidState: persisted data violates a cluster invariant (e.g. a
//   seed match whose closure resolves to zero records)
// - ErrUnavailable: store or lock backend temporarily unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
