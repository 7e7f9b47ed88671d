// Copyright 2026 The Hivebase Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errs defines the error taxonomy shared by the credential,
// authentication, and permission engines. Every expected outcome is a typed
// error kind; only IntegrityViolation marks a fatal, non-retryable condition.
package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind discriminates error categories across the platform core.
type Kind string

const (
	KindInvalidCredentials    Kind = "invalid_credentials"
	KindAccountDisabled       Kind = "account_disabled"
	KindAccessTokenInvalid    Kind = "access_token_invalid"
	KindAccessTokenExpired    Kind = "access_token_expired"
	KindMustChangePassword    Kind = "password_must_change"
	KindInsufficientPrivilege Kind = "insufficient_privilege"
	KindForbidden             Kind = "forbidden"
	KindAlreadyExists         Kind = "already_exists"
	KindNotFound              Kind = "not_found"
	KindConflict              Kind = "conflict"
	KindIntegrityViolation    Kind = "integrity_violation"
	KindInvalidInput          Kind = "invalid_input"
)

// Error carries a kind and a human-readable message. It supports wrapping so
// callers can keep the original storage error while signaling a kind.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match two *Error values of the same kind.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Kind == t.Kind
	}
	return false
}

// New creates an error of the given kind.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying error.
func Wrap(kind Kind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), cause: cause}
}

// KindOf extracts the kind from err, or "" if err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Constructors for the common kinds.

func InvalidCredentials() *Error {
	// One message for every credential failure so callers cannot tell which
	// part of the challenge was wrong.
	return New(KindInvalidCredentials, "invalid username or password")
}

func AccountDisabled(username string) *Error {
	return New(KindAccountDisabled, "credentials of username [%s] are disabled", username)
}

func AccessTokenInvalid() *Error {
	return New(KindAccessTokenInvalid, "access token is invalid")
}

func AccessTokenExpired() *Error {
	return New(KindAccessTokenExpired, "access token has expired")
}

func MustChangePassword(username string) *Error {
	return New(KindMustChangePassword, "credentials of username [%s] must change password", username)
}

func InsufficientPrivilege(format string, args ...any) *Error {
	return New(KindInsufficientPrivilege, format, args...)
}

func Forbidden(format string, args ...any) *Error {
	return New(KindForbidden, format, args...)
}

func AlreadyExists(resource, key string) *Error {
	return New(KindAlreadyExists, "%s [%s] already exists", resource, key)
}

func NotFound(resource, key string) *Error {
	return New(KindNotFound, "%s [%s] not found", resource, key)
}

func Conflict(resource, key string) *Error {
	return New(KindConflict, "%s [%s] was modified concurrently", resource, key)
}

func IntegrityViolation(format string, args ...any) *Error {
	return New(KindIntegrityViolation, format, args...)
}

// HTTPStatus maps an error kind to the wire status of the /1 surface.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindInvalidCredentials, KindAccessTokenInvalid, KindAccessTokenExpired:
		return http.StatusUnauthorized
	case KindAccountDisabled, KindMustChangePassword, KindInsufficientPrivilege, KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindConflict:
		return http.StatusConflict
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindIntegrityViolation:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
