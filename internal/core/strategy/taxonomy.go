package strategy

import "strings"

// FailureKind is the fixed failure taxonomy used to decide retry and
// strategy-switch policy.
type FailureKind string

const (
	FailureTimeout    FailureKind = "timeout"
	FailureBlocked    FailureKind = "blocked"
	FailureCaptcha    FailureKind = "captcha"
	FailureRateLimit  FailureKind = "rate_limit"
	FailureProxy      FailureKind = "proxy_error"
	FailureNetwork    FailureKind = "network_error"
	FailureNotFound   FailureKind = "not_found"
	FailureValidation FailureKind = "validation_error"
	FailureUnknown    FailureKind = "unknown"
)

// Classify maps a failure message into the taxonomy. Order matters: the
// more specific categories are checked before the generic network bucket.
func Classify(err error) FailureKind {
	if err == nil {
		return FailureUnknown
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "captcha"):
		return FailureCaptcha
	case strings.Contains(msg, "blocked") || strings.Contains(msg, "access denied") || strings.Contains(msg, "403"):
		return FailureBlocked
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests") || strings.Contains(msg, "429"):
		return FailureRateLimit
	case strings.Contains(msg, "proxy"):
		return FailureProxy
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return FailureTimeout
	case strings.Contains(msg, "connection refused") || strings.Contains(msg, "connection reset") || strings.Contains(msg, "no such host") || strings.Contains(msg, "network"):
		return FailureNetwork
	case strings.Contains(msg, "not found") || strings.Contains(msg, "404") || strings.Contains(msg, "no extractable"):
		return FailureNotFound
	case strings.Contains(msg, "validation") || strings.Contains(msg, "invalid record"):
		return FailureValidation
	}
	return FailureUnknown
}
