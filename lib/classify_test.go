package lib

import (
	"context"
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"context cancelled", context.Canceled, KindCancelled},
		{"login cancelled", ErrLoginCancelled, KindCancelled},
		{"decode failure", &decodeError{cause: errors.New("bad json")}, KindDecodeFailure},
		{"url error", &url.Error{Op: "Post", URL: "https://x", Err: errors.New("refused")}, KindNetwork},

		{"mfa_required code", &apiError{StatusCode: 403, Code: "mfa_required"}, KindMFARequired},
		{"invalid_grant code", &apiError{StatusCode: 403, Code: "invalid_grant"}, KindUnauthorized},
		{"login_required code", &apiError{StatusCode: 400, Code: "login_required"}, KindUnauthorized},
		{"insufficient_scope code", &apiError{StatusCode: 400, Code: "insufficient_scope"}, KindForbidden},
		{"access_denied code", &apiError{StatusCode: 400, Code: "access_denied"}, KindForbidden},
		{"expired_token code", &apiError{StatusCode: 400, Code: "expired_token"}, KindExpired},
		{"slow_down code", &apiError{StatusCode: 400, Code: "slow_down"}, KindRateLimited},

		{"status 401", &apiError{StatusCode: 401}, KindUnauthorized},
		{"status 403", &apiError{StatusCode: 403}, KindForbidden},
		{"status 429", &apiError{StatusCode: 429}, KindRateLimited},

		{"message says expired", &apiError{StatusCode: 400, Description: "The code has expired"}, KindExpired},
		{"message says too many", &apiError{StatusCode: 400, Description: "Too many failed attempts"}, KindRateLimited},
		{"message says invalid", &apiError{StatusCode: 400, Description: "Invalid otp_code"}, KindInvalidInput},
		{"message says wrong", &apiError{StatusCode: 400, Message: "Wrong code entered"}, KindInvalidInput},

		{"bare 400", &apiError{StatusCode: 400}, KindInvalidInput},
		{"bare 500", &apiError{StatusCode: 500}, KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassifyCodeBeatsStatusAndMessage(t *testing.T) {
	// a machine code wins even when the status and the free text say
	// something else
	err := &apiError{
		StatusCode:  401,
		Code:        "mfa_required",
		Description: "invalid session",
	}
	assert.Equal(t, KindMFARequired, Classify(err))
}

func TestClassifyWrappedError(t *testing.T) {
	inner := &apiError{StatusCode: 403, Code: "mfa_required"}
	wrapped := &decodeErrorFreeWrapper{inner}
	assert.Equal(t, KindMFARequired, Classify(wrapped))
}

type decodeErrorFreeWrapper struct{ err error }

func (w *decodeErrorFreeWrapper) Error() string { return "wrapped: " + w.err.Error() }
func (w *decodeErrorFreeWrapper) Unwrap() error { return w.err }

func TestErrorKindMessage(t *testing.T) {
	// every kind has user-facing text; nothing falls through to an empty
	// string
	for k := KindUnknown; k <= KindCancelled; k++ {
		assert.NotEmpty(t, k.Message(), "kind %s", k)
		assert.NotEmpty(t, k.String())
	}
	assert.Equal(t, "Invalid passcode. Please try again.", KindInvalidInput.Message())
}
