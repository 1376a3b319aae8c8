package queue

import (
	"math"
	"time"
)

// Policy bounds retries of one provider. MaxAttempts counts the first try.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// MaxDelay caps the jittered delay; zero means no cap.
	MaxDelay time.Duration
}

var (
	GooglePolicy  = Policy{MaxAttempts: 5, BaseDelay: time.Second, MaxDelay: time.Minute}
	SlackPolicy   = Policy{MaxAttempts: 3, BaseDelay: 2 * time.Second}
	NotionPolicy  = Policy{MaxAttempts: 4, BaseDelay: 1500 * time.Millisecond}
	GitHubPolicy  = Policy{MaxAttempts: 3, BaseDelay: time.Second}
	DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: time.Minute}
)

// DefaultPolicies returns the per-provider policies.
func DefaultPolicies() map[Provider]Policy {
	return map[Provider]Policy{
		ProviderGoogle: GooglePolicy,
		ProviderSlack:  SlackPolicy,
		ProviderNotion: NotionPolicy,
		ProviderGitHub: GitHubPolicy,
	}
}

func (p Policy) MaxRetries() int {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return p.MaxAttempts - 1
}

// Backoff is BaseDelay * 2^retries scaled by a jitter factor in [0.5, 1.5),
// where rnd returns a value in [0, 1).
func (p Policy) Backoff(retries int, rnd func() float64) time.Duration {
	if retries < 0 {
		retries = 0
	}
	delay := float64(p.BaseDelay) * math.Pow(2, float64(retries))
	if rnd != nil {
		delay *= 0.5 + rnd()
	}
	if p.MaxDelay > 0 && delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}
	return time.Duration(delay)
}
