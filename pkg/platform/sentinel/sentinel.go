package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into protocol-level errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrExpired: code or pending request has aged past its deadline
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrConflict: entity already exists under the same key
//
// For request validation failures, use pkg/oidc-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrConflict     = errors.New("conflict")
)
