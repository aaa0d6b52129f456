package utils

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"hypersync/src/models"
)

// -----------------------------------------------------------------------------

// NewFeedBackoff builds the reconnect policy for the price feed. MaxElapsedTime
// is zero: reconnect attempts continue for as long as listeners remain, and
// the feed stops retrying by dropping the policy, not by exhausting it.
func NewFeedBackoff(cfg *models.MConfig) *backoff.ExponentialBackOff {
	initial := time.Duration(cfg.Feed.ReconnectInitialSeconds) * time.Second
	if initial <= 0 {
		initial = time.Second
	}
	max := time.Duration(cfg.Feed.ReconnectMaxSeconds) * time.Second
	if max <= 0 {
		max = 30 * time.Second
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = max
	b.MaxElapsedTime = 0
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.1
	b.Reset()
	return b
}
