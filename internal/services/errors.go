// Package services defines the business logic of the trademark monitor: the
// process store, the messaging engine and the account/preferences store.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

// Process-related errors.
var (
	// ErrProcessNotFound indicates that the process does not exist for the user.
	ErrProcessNotFound = errors.New("process not found")

	// ErrDeadlineNotFound indicates that the deadline does not exist on the process.
	ErrDeadlineNotFound = errors.New("deadline not found")

	// ErrDispatchNotFound indicates that the process has no dispatch with that code.
	ErrDispatchNotFound = errors.New("dispatch not found")

	// ErrEmptyTitle is returned when a deadline is saved without a title.
	ErrEmptyTitle = errors.New("deadline title is required")

	// ErrEmptyDate is returned when a deadline is saved without a date.
	ErrEmptyDate = errors.New("deadline date is required")
)

// Registry-related errors.
var (
	// ErrInvalidCaseNumber is returned for case numbers that are not at least
	// five digits.
	ErrInvalidCaseNumber = errors.New("invalid case number")

	// ErrCaseNotFound is returned when the registry has no such case.
	ErrCaseNotFound = errors.New("case not found in registry")

	// ErrRegistryUnavailable wraps registry connectivity failures. Retryable.
	ErrRegistryUnavailable = errors.New("registry unavailable")
)

// Messaging errors.
var (
	// ErrChatNotFound indicates that the chat does not exist for the user.
	ErrChatNotFound = errors.New("chat not found")

	// ErrSpecialistNotFound is returned when starting a chat with an unknown specialist.
	ErrSpecialistNotFound = errors.New("specialist not found")

	// ErrEmptyMessage is returned for empty or whitespace-only messages.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrTooLong is returned when a message exceeds the configured limit.
	ErrTooLong = errors.New("message too long")
)

// Account errors.
var (
	// ErrMissingFields is returned when a registration lacks a required field.
	ErrMissingFields = errors.New("missing required fields")

	// ErrInvalidCode is returned for a wrong verification code.
	ErrInvalidCode = errors.New("invalid verification code")

	// ErrNotRegistered is returned when no account (or pending registration) exists.
	ErrNotRegistered = errors.New("not registered")

	// ErrInvalidTheme is returned for a theme other than light or dark.
	ErrInvalidTheme = errors.New("invalid theme")
)

// ErrStorageUnavailable is returned when a user's stored state cannot be read.
// Write failures are never surfaced; see persist.
var ErrStorageUnavailable = errors.New("storage unavailable")
