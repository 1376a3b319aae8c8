package queue

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_Backoff(t *testing.T) {
	half := func() float64 { return 0.5 }

	assert.Equal(t, time.Second, GooglePolicy.Backoff(0, half))
	assert.Equal(t, 8*time.Second, GooglePolicy.Backoff(3, half))
	assert.Equal(t, time.Minute, GooglePolicy.Backoff(10, half), "capped")
	assert.Equal(t, 3*time.Second, NotionPolicy.Backoff(1, half))
	assert.Equal(t, 8*time.Second, SlackPolicy.Backoff(2, half))
}

func TestPolicy_BackoffJitterRange(t *testing.T) {
	low := GitHubPolicy.Backoff(2, func() float64 { return 0 })
	high := GitHubPolicy.Backoff(2, func() float64 { return 0.999 })

	assert.Equal(t, 2*time.Second, low)
	assert.Greater(t, high, 5*time.Second)
	assert.Less(t, high, 6*time.Second)
}

func TestPolicy_MaxRetries(t *testing.T) {
	assert.Equal(t, 4, GooglePolicy.MaxRetries())
	assert.Equal(t, 2, SlackPolicy.MaxRetries())
	assert.Equal(t, 3, NotionPolicy.MaxRetries())
	assert.Equal(t, 2, GitHubPolicy.MaxRetries())
	assert.Equal(t, 0, Policy{MaxAttempts: 1}.MaxRetries())
}
