package resolver

import (
	"context"
	"errors"

	"github.com/spherical-ai/spherical/libs/link-engine/internal/safety"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/search"
	"github.com/spherical-ai/spherical/libs/link-engine/internal/verify"
)

// Error taxonomy. GetBestLinks absorbs all of them into the fallback;
// GetFirstResultURL surfaces ErrNoPertinentResults wrapping the cause.
var (
	ErrProviderTimeout    = search.ErrProviderTimeout
	ErrProviderError      = search.ErrProviderError
	ErrNoResults          = search.ErrNoResults
	ErrVerificationFailed = verify.ErrVerificationFailed
	ErrInvalidURLFormat   = verify.ErrInvalidURLFormat
	ErrPolicyBlocked      = safety.ErrPolicyBlocked

	ErrNoPertinentResults = errors.New("no pertinent results")
)

// fallbackReason maps an error to the reason label logged and recorded for
// a fallback.
func fallbackReason(err error) string {
	switch {
	case err == nil:
		return "none"
	case errors.Is(err, ErrProviderTimeout), errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrNoResults):
		return "no_results"
	case errors.Is(err, ErrPolicyBlocked):
		return "policy_blocked"
	case errors.Is(err, ErrProviderError):
		return "provider_error"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
