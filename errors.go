package hxnav

import "errors"

// Sentinel errors for navigation and store operations.
var (
	ErrIncompatible       = errors.New("hxnav: environment cannot host navigation")
	ErrNavigationInFlight = errors.New("hxnav: navigation already in progress")
	ErrFetchStatus        = errors.New("hxnav: unexpected response status")
	ErrCrossOrigin        = errors.New("hxnav: target is on another origin")
	ErrComponentNotFound  = errors.New("hxnav: component not found")
	ErrMountNotFound      = errors.New("hxnav: mount element not found")
	ErrNoHistory          = errors.New("hxnav: no history entry to go back to")
	ErrNoStorage          = errors.New("hxnav: no persisted storage configured")
)

// IsCrossOrigin checks if err reports a navigation that left the origin.
func IsCrossOrigin(err error) bool {
	return errors.Is(err, ErrCrossOrigin)
}

// IsFetchError checks if err is a page fetch failure.
func IsFetchError(err error) bool {
	return errors.Is(err, ErrFetchStatus)
}

// IsNotFound checks if err is a component or mount lookup miss.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrComponentNotFound) || errors.Is(err, ErrMountNotFound)
}
