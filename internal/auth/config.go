// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package auth

import (
	"net/url"
	"time"

	"github.com/samber/oops"
)

// Config holds the core's tunables.
type Config struct {
	// Origin is the base URL that verification and reset links point at,
	// e.g. "https://app.example.com".
	Origin string

	SessionTTL          time.Duration
	VerificationCodeTTL time.Duration
	ResetCodeTTL        time.Duration

	// RenewalThreshold is how close to expiry a session must be before a
	// refresh extends it.
	RenewalThreshold time.Duration

	// A reset request is refused once ResetThrottleLimit codes were issued
	// for the user within ResetThrottleWindow.
	ResetThrottleWindow time.Duration
	ResetThrottleLimit  int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Origin:              "http://localhost:3000",
		SessionTTL:          30 * 24 * time.Hour,
		VerificationCodeTTL: 365 * 24 * time.Hour,
		ResetCodeTTL:        time.Hour,
		RenewalThreshold:    24 * time.Hour,
		ResetThrottleWindow: 5 * time.Minute,
		ResetThrottleLimit:  2,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	u, err := url.Parse(c.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return oops.Code("CONFIG_INVALID").With("origin", c.Origin).Errorf("origin must be an absolute URL")
	}
	durations := map[string]time.Duration{
		"session_ttl":           c.SessionTTL,
		"verification_code_ttl": c.VerificationCodeTTL,
		"reset_code_ttl":        c.ResetCodeTTL,
		"renewal_threshold":     c.RenewalThreshold,
		"reset_throttle_window": c.ResetThrottleWindow,
	}
	for name, d := range durations {
		if d <= 0 {
			return oops.Code("CONFIG_INVALID").With("field", name).Errorf("%s must be positive", name)
		}
	}
	if c.RenewalThreshold >= c.SessionTTL {
		return oops.Code("CONFIG_INVALID").Errorf("renewal_threshold must be shorter than session_ttl")
	}
	if c.ResetThrottleLimit < 1 {
		return oops.Code("CONFIG_INVALID").Errorf("reset_throttle_limit must be at least 1")
	}
	return nil
}
