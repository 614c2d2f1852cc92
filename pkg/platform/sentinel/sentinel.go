package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors.
//
//   - ErrNotFound: no record exists for the requested key
//   - ErrUnavailable: backend temporarily unreachable
//
// Resident input is never rejected by stores, so there is no validation
// sentinel here.
var (
	ErrNotFound    = errors.New("not found")
	ErrUnavailable = errors.New("unavailable")
)
