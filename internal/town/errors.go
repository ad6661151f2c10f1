package town

import "errors"

var (
	// ErrSessionNotFound is returned for operations referencing an unknown
	// session token.
	ErrSessionNotFound = errors.New("session not found")
	// ErrProvisioning wraps a failure to obtain a video credential from the
	// external provisioner.
	ErrProvisioning = errors.New("video credential provisioning failed")
	// ErrTownDestroyed is returned for joins against a town that has been
	// destroyed.
	ErrTownDestroyed = errors.New("town destroyed")
	// ErrTownFull is returned for joins against a town at capacity.
	ErrTownFull = errors.New("town is at capacity")
)
