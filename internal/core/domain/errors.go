package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates a row with the same natural key exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrInvalidTransition indicates an illegal response status change
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMalformedAnalysis indicates the analyzer returned output that does not fit the contract
	ErrMalformedAnalysis = errors.New("malformed analysis")

	// ErrUnsupportedType indicates no extractor handles the file type
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrDispatchFailed indicates the mail dispatcher could not send a response
	ErrDispatchFailed = errors.New("dispatch failed")

	// ErrRunInProgress indicates another run of the same pipeline holds the lock
	ErrRunInProgress = errors.New("run already in progress")

	// ErrUnauthorized indicates authentication failed or missing
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired indicates the auth token has expired
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates the auth token is malformed or invalid
	ErrTokenInvalid = errors.New("token invalid")

	// ErrInvalidCredentials indicates wrong email/password combination
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrInvalidProvider indicates an unknown AI provider was specified
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrServiceUnavailable indicates an external service could not be reached
	ErrServiceUnavailable = errors.New("service unavailable")
)
