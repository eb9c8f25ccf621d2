package offline

import "errors"

var (
	// ErrInstallFailed wraps every failure of the install phase.
	ErrInstallFailed = errors.New("install failed")

	// ErrActivateFailed wraps every failure of the activate phase.
	ErrActivateFailed = errors.New("activate failed")

	// ErrNotInstalled is returned when activating a controller that never installed.
	ErrNotInstalled = errors.New("controller not installed")
)
