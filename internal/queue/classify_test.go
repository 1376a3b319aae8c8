package queue

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"dailyplan/internal/apperr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		provider Provider
		err      error
		retry    bool
	}{
		{"google 429", ProviderGoogle, &googleapi.Error{Code: 429}, true},
		{"google 500", ProviderGoogle, fmt.Errorf("list events: %w", &googleapi.Error{Code: 500}), true},
		{"google 403 rate limit", ProviderGoogle, &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "userRateLimitExceeded"}}}, true},
		{"google 403 quota", ProviderGoogle, &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}}, true},
		{"google 403 forbidden", ProviderGoogle, &googleapi.Error{Code: 403, Errors: []googleapi.ErrorItem{{Reason: "forbidden"}}}, false},
		{"google 404", ProviderGoogle, &googleapi.Error{Code: 404}, false},
		{"deadline", ProviderGoogle, context.DeadlineExceeded, true},
		{"canceled", ProviderGoogle, context.Canceled, false},
		{"slack rate limited", ProviderSlack, errors.New("slack: ratelimited"), true},
		{"slack invalid auth", ProviderSlack, errors.New("slack: invalid_auth"), false},
		{"notion 502", ProviderNotion, apperr.Transient("query", "notion", 502, errors.New("bad gateway")), true},
		{"notion 400", ProviderNotion, apperr.Permanent("query", "notion", 400, errors.New("validation_error")), false},
		{"github rate limit", ProviderGitHub, &apperr.Error{Kind: apperr.KindUnknown, StatusCode: 403, Message: "API rate limit exceeded"}, true},
		{"github 403", ProviderGitHub, &apperr.Error{Kind: apperr.KindUnknown, StatusCode: 403, Message: "resource not accessible"}, false},
		{"validation", ProviderGoogle, apperr.Validation("sync", "bad payload"), false},
		{"not connected", ProviderGoogle, apperr.NotConnected("sync", "google"), false},
		{"persistence", ProviderGoogle, apperr.Persistence("upsert", errors.New("database is locked")), true},
		{"plain", ProviderAsana, errors.New("boom"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			retry, reason := Classify(tc.provider, tc.err)
			assert.Equal(t, tc.retry, retry, "reason %s", reason)
			assert.NotEmpty(t, reason)
		})
	}

	retry, reason := Classify(ProviderGoogle, nil)
	assert.False(t, retry)
	assert.Empty(t, reason)
}
