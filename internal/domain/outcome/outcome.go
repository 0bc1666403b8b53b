// Package outcome defines the failure kinds reported by key selection and message dispatch.
package outcome

import (
	"context"
	"errors"
	"fmt"
	"time"

	"jan-server/services/dispatch-api/internal/utils/platformerrors"
)

// Kind classifies a dispatch failure.
type Kind string

const (
	KindNoAvailableKey      Kind = "no_available_key"
	KindRateLimited         Kind = "rate_limited"
	KindProviderAuthInvalid Kind = "provider_auth_invalid"
	KindProviderError       Kind = "provider_error"
	KindServiceUnavailable  Kind = "service_unavailable"
	KindMalformedResponse   Kind = "malformed_response"
	KindValidation          Kind = "validation"
)

// Error is the single error type for every dispatch outcome other than success.
// ResetAt is set only for KindRateLimited and Status only for KindProviderError.
type Error struct {
	Kind    Kind
	ResetAt *time.Time
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case KindRateLimited:
		msg = fmt.Sprintf("%s: %s (reset at %s)", e.Kind, e.Message, e.ResetAt.UTC().Format(time.RFC3339))
	case KindProviderError:
		msg = fmt.Sprintf("%s: status %d: %s", e.Kind, e.Status, e.Message)
	default:
		msg = fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NoAvailableKey(message string) *Error {
	return &Error{Kind: KindNoAvailableKey, Message: message}
}

func RateLimited(resetAt time.Time) *Error {
	reset := resetAt.UTC()
	return &Error{Kind: KindRateLimited, ResetAt: &reset, Message: "provider rate limit exceeded"}
}

func AuthInvalid(message string) *Error {
	return &Error{Kind: KindProviderAuthInvalid, Message: message}
}

func ProviderError(status int, message string) *Error {
	return &Error{Kind: KindProviderError, Status: status, Message: message}
}

func Unavailable(message string, err error) *Error {
	return &Error{Kind: KindServiceUnavailable, Message: message, Err: err}
}

func Malformed(message string, err error) *Error {
	return &Error{Kind: KindMalformedResponse, Message: message, Err: err}
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Message: message}
}

// As extracts an outcome error from err's chain.
func As(err error) (*Error, bool) {
	var oe *Error
	if errors.As(err, &oe) {
		return oe, true
	}
	return nil, false
}

// IsKind reports whether err carries an outcome of the given kind.
func IsKind(err error, kind Kind) bool {
	oe, ok := As(err)
	return ok && oe.Kind == kind
}

var platformTypes = map[Kind]platformerrors.ErrorType{
	KindNoAvailableKey:      platformerrors.ErrorTypeServiceUnavailable,
	KindServiceUnavailable:  platformerrors.ErrorTypeServiceUnavailable,
	KindRateLimited:         platformerrors.ErrorTypeRateLimited,
	KindProviderAuthInvalid: platformerrors.ErrorTypeExternal,
	KindProviderError:       platformerrors.ErrorTypeExternal,
	KindMalformedResponse:   platformerrors.ErrorTypeExternal,
	KindValidation:          platformerrors.ErrorTypeValidation,
}

var platformCodes = map[Kind]string{
	KindNoAvailableKey:      "8f0e2b8c-5a0d-4b52-9a43-0f3a1b7f6c01",
	KindServiceUnavailable:  "2d5c7a1e-93f4-4f0b-8b6e-4c2a9e1d7b02",
	KindRateLimited:         "c41b6e0a-7d28-4e3f-a5b9-1f6d8c2e4a03",
	KindProviderAuthInvalid: "5e9a3c7b-1f4d-4a2e-9c8b-7d0f2e6a1b04",
	KindProviderError:       "a7d2f9e4-3b6c-4d1a-8e5f-9b0c4a7d2e05",
	KindMalformedResponse:   "e3b8c1d6-4a9f-4e7b-b2c5-6d1f8a3e9c06",
	KindValidation:          "1c6f4a9d-8e2b-4b7c-a3d0-5e9b2f7c1a07",
}

// ToPlatformError converts err into the platform error the route layer renders.
// Errors that are not outcomes are wrapped as internal domain errors.
func ToPlatformError(ctx context.Context, err error) *platformerrors.PlatformError {
	if err == nil {
		return nil
	}
	oe, ok := As(err)
	if !ok {
		return platformerrors.AsError(ctx, platformerrors.LayerDomain, err, "dispatch failed")
	}

	fields := map[string]any{"kind": string(oe.Kind)}
	if oe.ResetAt != nil {
		fields["reset_at"] = oe.ResetAt.UTC().Format(time.RFC3339)
	}
	if oe.Kind == KindProviderError {
		fields["provider_status"] = oe.Status
	}
	return platformerrors.NewErrorWithContext(ctx, platformerrors.LayerDomain, platformTypes[oe.Kind], oe.Message, oe, platformCodes[oe.Kind], fields)
}
