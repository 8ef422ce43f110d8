package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrAlreadyExists", ErrAlreadyExists, "already exists"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrInvalidTransition", ErrInvalidTransition, "invalid status transition"},
		{"ErrMalformedAnalysis", ErrMalformedAnalysis, "malformed analysis"},
		{"ErrUnsupportedType", ErrUnsupportedType, "unsupported file type"},
		{"ErrDispatchFailed", ErrDispatchFailed, "dispatch failed"},
		{"ErrRunInProgress", ErrRunInProgress, "run already in progress"},
		{"ErrUnauthorized", ErrUnauthorized, "unauthorized"},
		{"ErrTokenExpired", ErrTokenExpired, "token expired"},
		{"ErrTokenInvalid", ErrTokenInvalid, "token invalid"},
		{"ErrInvalidCredentials", ErrInvalidCredentials, "invalid credentials"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrAlreadyExists,
		ErrInvalidInput,
		ErrInvalidTransition,
		ErrMalformedAnalysis,
		ErrUnsupportedType,
		ErrDispatchFailed,
		ErrRunInProgress,
		ErrUnauthorized,
		ErrTokenExpired,
		ErrTokenInvalid,
		ErrInvalidCredentials,
		ErrInvalidProvider,
		ErrServiceUnavailable,
	}

	for i, err1 := range allErrors {
		for j, err2 := range allErrors {
			if i != j && errors.Is(err1, err2) {
				t.Errorf("errors should be distinct: %v and %v", err1, err2)
			}
		}
	}
}

func TestErrorsIs_Wrapped(t *testing.T) {
	wrapped := fmt.Errorf("send response 4: %w", ErrDispatchFailed)
	if !errors.Is(wrapped, ErrDispatchFailed) {
		t.Error("expected wrapped error to match ErrDispatchFailed")
	}
}
