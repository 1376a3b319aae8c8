package queue

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"

	"google.golang.org/api/googleapi"

	"dailyplan/internal/apperr"
)

// Classify decides whether a failed attempt against provider may be retried.
// It returns the decision and a short reason for logs and metrics.
func Classify(provider Provider, err error) (bool, string) {
	if err == nil {
		return false, ""
	}

	switch apperr.KindOf(err) {
	case apperr.KindValidation, apperr.KindNotFound, apperr.KindNotConnected,
		apperr.KindUnauthenticated, apperr.KindPermanent:
		return false, apperr.KindOf(err).String()
	case apperr.KindPersistence:
		return true, "persistence"
	}

	if errors.Is(err, context.Canceled) {
		return false, "canceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true, "timeout"
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return true, "timeout"
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return true, "timeout"
		}
		return true, "network"
	}

	switch provider {
	case ProviderGoogle:
		return classifyGoogle(err)
	case ProviderSlack:
		return classifyStatus(err, "ratelimited", "rate_limited")
	case ProviderNotion:
		return classifyStatus(err, "rate_limited", "service_unavailable")
	case ProviderGitHub:
		return classifyGitHub(err)
	default:
		return classifyStatus(err)
	}
}

func classifyGoogle(err error) (bool, string) {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			return true, "rate_limit"
		case gerr.Code >= 500:
			return true, "server_error"
		case gerr.Code == http.StatusForbidden:
			for _, item := range gerr.Errors {
				switch item.Reason {
				case "rateLimitExceeded", "userRateLimitExceeded":
					return true, "rate_limit"
				case "quotaExceeded", "dailyLimitExceeded":
					return true, "quota"
				}
			}
			return false, "forbidden"
		}
		return false, "client_error"
	}
	return classifyStatus(err, "rateLimitExceeded", "quotaExceeded")
}

func classifyGitHub(err error) (bool, string) {
	code := apperr.StatusCodeOf(err)
	if code == http.StatusForbidden && strings.Contains(strings.ToLower(err.Error()), "rate limit") {
		return true, "rate_limit"
	}
	return classifyStatus(err, "secondary rate limit")
}

// classifyStatus retries 429, 5xx, transient errors and errors whose text
// contains one of the provider rate-limit markers.
func classifyStatus(err error, markers ...string) (bool, string) {
	code := apperr.StatusCodeOf(err)
	switch {
	case code == http.StatusTooManyRequests:
		return true, "rate_limit"
	case code >= 500:
		return true, "server_error"
	}
	msg := err.Error()
	for _, m := range markers {
		if strings.Contains(msg, m) {
			return true, "rate_limit"
		}
	}
	if apperr.IsRetryable(err) {
		return true, "transient"
	}
	return false, "unknown"
}
