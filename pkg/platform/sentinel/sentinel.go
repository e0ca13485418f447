package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and cache clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: document or cache entry does not exist
// - ErrConflict: write lost against a concurrent writer
// - ErrUnavailable: cache or store temporarily unreachable
//
// For validation errors (bad input, missing owner context), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrUnavailable = errors.New("unavailable")
)
