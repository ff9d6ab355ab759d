package orchestrator

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/goatanime/instagram-bot/internal/fetch"
)

// Reason is the fixed failure taxonomy. Every task failure maps to
// exactly one entry, which in turn maps to one user-facing message.
type Reason string

const (
	ReasonInvalidURL         Reason = "invalid_url"
	ReasonUnauthorized       Reason = "unauthorized"
	ReasonNoMediaFound       Reason = "no_media_found"
	ReasonCredentialRequired Reason = "credential_required"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonPayloadTooLarge    Reason = "payload_too_large"
	ReasonUnsupportedContent Reason = "unsupported_content"
	ReasonTransientFetch     Reason = "transient_fetch_failure"
	ReasonDeliveryFailure    Reason = "delivery_failure"
)

// NotifiesAdmin reports whether this failure class additionally sends a
// best-effort admin notification. Only suspected credential problems do.
func (r Reason) NotifiesAdmin() bool {
	return r == ReasonCredentialRequired
}

// UserMessage maps the reason to the terminal status text.
func (r Reason) UserMessage() string {
	switch r {
	case ReasonInvalidURL:
		return "❌ *Invalid URL*\nPlease send a valid link from a supported platform."
	case ReasonUnauthorized:
		return "⏱️ *Your access has expired!*\nPlease renew your free access."
	case ReasonNoMediaFound:
		return "🤔 *No Media Found*\nThe link was processed but produced no files."
	case ReasonCredentialRequired:
		return "🔒 *Private or Restricted Content*\nThis content needs a logged-in session, which only the bot's administrator can provide."
	case ReasonRateLimited:
		return "⏳ *Rate Limited*\nThe platform is limiting requests. Please try again later."
	case ReasonPayloadTooLarge:
		return "📦 *Too Large*\nThe media exceeds the size the bot is allowed to send."
	case ReasonUnsupportedContent:
		return "🔗 *Unsupported Content*\nThis type of link is not supported."
	case ReasonDeliveryFailure:
		return "❌ *Sending Failed*\nThe media was downloaded but could not be delivered."
	default:
		return "❌ *Download Failed*\nAn unknown error occurred."
	}
}

// Signals the extractor emits when a logged-in session is missing or
// insufficient.
var credentialSignals = []string{
	"login required",
	"login_required",
	"private profile",
	"requested content is not available",
	"restricted video",
	"18 years old",
	"age-restricted",
	"cookies",
	"authentication",
}

var rateLimitSignals = []string{
	"429",
	"too many requests",
	"rate-limit",
	"rate limit",
}

// ClassifyFetchError maps a fetch collaborator error to the nearest
// taxonomy entry by inspecting its description.
func ClassifyFetchError(err error) Reason {
	if errors.Is(err, fetch.ErrNoFiles) {
		return ReasonNoMediaFound
	}

	desc := strings.ToLower(err.Error())
	for _, signal := range credentialSignals {
		if strings.Contains(desc, signal) {
			return ReasonCredentialRequired
		}
	}
	for _, signal := range rateLimitSignals {
		if strings.Contains(desc, signal) {
			return ReasonRateLimited
		}
	}
	if strings.Contains(desc, "unsupported url") {
		return ReasonUnsupportedContent
	}
	if strings.Contains(desc, "too large") {
		return ReasonPayloadTooLarge
	}
	return ReasonTransientFetch
}

// ClassifyDeliveryError maps a messaging channel error.
func ClassifyDeliveryError(err error) Reason {
	desc := strings.ToLower(err.Error())
	if strings.Contains(desc, "too large") || strings.Contains(desc, "413") {
		return ReasonPayloadTooLarge
	}
	return ReasonDeliveryFailure
}
