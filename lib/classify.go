package lib

import (
	"context"
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrorKind is the result of classifying a failure from the remote
// boundary. Classification is total: any error maps to exactly one kind,
// with KindUnknown as the catch-all.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindNetwork
	KindUnauthorized
	KindMFARequired
	KindForbidden
	KindInvalidInput
	KindExpired
	KindRateLimited
	KindDecodeFailure
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindUnauthorized:
		return "unauthorized"
	case KindMFARequired:
		return "mfa_required"
	case KindForbidden:
		return "forbidden"
	case KindInvalidInput:
		return "invalid_input"
	case KindExpired:
		return "expired"
	case KindRateLimited:
		return "rate_limited"
	case KindDecodeFailure:
		return "decode_failure"
	case KindCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Message returns the user-facing text for a terminal failure of this
// kind. Every terminal error reaches the presentation boundary with one
// of these.
func (k ErrorKind) Message() string {
	switch k {
	case KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	case KindUnauthorized:
		return "Your session is no longer valid. Please log in again."
	case KindMFARequired:
		return "Additional verification is required to continue."
	case KindForbidden:
		return "You don't have permission to perform this action."
	case KindInvalidInput:
		return "Invalid passcode. Please try again."
	case KindExpired:
		return "This code has expired. Please start over."
	case KindRateLimited:
		return "Too many attempts. Please wait a moment and try again."
	case KindDecodeFailure:
		return "Received an unexpected response from the server."
	case KindCancelled:
		return "The operation was cancelled."
	}
	return "Something went wrong. Please try again."
}

// Classify maps any error raised by the remote boundary or an interactive
// collaborator into exactly one ErrorKind. It never fails; anything it
// does not recognize is KindUnknown.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, ErrLoginCancelled) {
		return KindCancelled
	}

	var de *decodeError
	if errors.As(err, &de) {
		return KindDecodeFailure
	}

	var ae *apiError
	if errors.As(err, &ae) {
		return classifyAPIError(ae)
	}

	var ue *url.Error
	if errors.As(err, &ue) {
		return KindNetwork
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return KindNetwork
	}

	return KindUnknown
}

func classifyAPIError(e *apiError) ErrorKind {
	// Machine-readable codes first; these are the stable contract.
	switch e.Code {
	case "mfa_required":
		// The current session cannot satisfy the requested scope under
		// its authentication context. Step-up can fix this; a plain
		// re-login cannot.
		return KindMFARequired
	case "invalid_grant", "invalid_token", "login_required":
		return KindUnauthorized
	case "insufficient_scope", "access_denied":
		return KindForbidden
	case "expired_token", "expired_session":
		return KindExpired
	case "too_many_requests", "slow_down":
		return KindRateLimited
	}

	switch e.StatusCode {
	case 401:
		return KindUnauthorized
	case 403:
		return KindForbidden
	case 429:
		return KindRateLimited
	}

	if kind, ok := classifyMessage(e.Description); ok {
		return kind
	}

	if e.StatusCode == 400 {
		return KindInvalidInput
	}

	return KindUnknown
}

// classifyMessage inspects the server's free-text message to split
// invalid / expired / rate-limited failures. The API exposes no stable
// machine code for these cases, so this is a best-effort fallback, not a
// contract; prefer e.Code whenever the server supplies one.
func classifyMessage(msg string) (ErrorKind, bool) {
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "expired"):
		return KindExpired, true
	case strings.Contains(m, "too many"), strings.Contains(m, "rate"):
		return KindRateLimited, true
	case strings.Contains(m, "invalid"), strings.Contains(m, "incorrect"), strings.Contains(m, "wrong"):
		return KindInvalidInput, true
	}
	return KindUnknown, false
}
