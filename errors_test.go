package hxnav

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	errs := []error{
		ErrIncompatible,
		ErrNavigationInFlight,
		ErrFetchStatus,
		ErrCrossOrigin,
		ErrComponentNotFound,
		ErrMountNotFound,
		ErrNoHistory,
		ErrNoStorage,
	}

	for i, err1 := range errs {
		for j, err2 := range errs {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("Sentinel errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestIsNotFound(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		expect bool
	}{
		{"nil error", nil, false},
		{"component", ErrComponentNotFound, true},
		{"wrapped mount", fmt.Errorf("navigate: %w", ErrMountNotFound), true},
		{"fetch", ErrFetchStatus, false},
		{"other error", errors.New("other error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsNotFound(tt.err); got != tt.expect {
				t.Errorf("IsNotFound(%v) = %v, want %v", tt.err, got, tt.expect)
			}
		})
	}
}

func TestIsFetchAndCrossOrigin(t *testing.T) {
	status := fmt.Errorf("%w: 404", ErrFetchStatus)
	if !IsFetchError(status) {
		t.Errorf("IsFetchError(%v) = false, want true", status)
	}
	if IsCrossOrigin(status) {
		t.Errorf("IsCrossOrigin(%v) = true, want false", status)
	}
	cross := fmt.Errorf("go https://other.test: %w", ErrCrossOrigin)
	if !IsCrossOrigin(cross) {
		t.Errorf("IsCrossOrigin(%v) = false, want true", cross)
	}
}
