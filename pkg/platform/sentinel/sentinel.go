package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not business outcomes:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: concurrent write lost a serialization race
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrValidation: input rejected synchronously (bad rule, empty reasoning)
// - ErrUnavailable: service or resource temporarily unavailable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrValidation   = errors.New("validation failed")
	ErrUnavailable  = errors.New("unavailable")
)
