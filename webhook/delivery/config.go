package delivery

import (
	"fmt"
	"time"
)

// Version is reported in the User-Agent header
const Version = "1.0.0"

// Outbound header names
const (
	HeaderEvent     = "X-Webhook-Event"
	HeaderSignature = "X-Webhook-Signature"
	HeaderDelivery  = "X-Webhook-Delivery"
	HeaderAttempt   = "X-Webhook-Attempt"
)

// UserAgent is the fixed User-Agent sent with every attempt
var UserAgent = "webhook-dispatch/" + Version

// DefaultBackoff is the fixed retry table
var DefaultBackoff = []time.Duration{60 * time.Second, 300 * time.Second, 900 * time.Second}

/* Config is threaded into the executor, retry policy and dispatcher at
 * construction time. Nothing in this package reads ambient configuration
 */
type Config struct {
	MaxAttempts      int
	Backoff          []time.Duration
	MaxResponseBytes int
	MinTimeout       time.Duration
	MaxTimeout       time.Duration
	DefaultTimeout   time.Duration
	QueueName        string
}

// DefaultConfig returns the documented defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:      3,
		Backoff:          append([]time.Duration(nil), DefaultBackoff...),
		MaxResponseBytes: 10000,
		MinTimeout:       5 * time.Second,
		MaxTimeout:       60 * time.Second,
		DefaultTimeout:   10 * time.Second,
		QueueName:        "webhooks",
	}
}

// Validate checks the configuration is usable
func (c Config) Validate() error {
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1 (got %d)", c.MaxAttempts)
	}
	if len(c.Backoff) == 0 {
		return fmt.Errorf("backoff table cannot be empty")
	}
	for i, d := range c.Backoff {
		if d < 0 {
			return fmt.Errorf("backoff entry %d cannot be negative", i)
		}
	}
	if c.MaxResponseBytes < 0 {
		return fmt.Errorf("max response bytes cannot be negative")
	}
	if c.MinTimeout <= 0 || c.MaxTimeout < c.MinTimeout {
		return fmt.Errorf("timeout bounds must satisfy 0 < min <= max (got %s, %s)", c.MinTimeout, c.MaxTimeout)
	}
	if c.DefaultTimeout < c.MinTimeout || c.DefaultTimeout > c.MaxTimeout {
		return fmt.Errorf("default timeout %s outside bounds [%s, %s]", c.DefaultTimeout, c.MinTimeout, c.MaxTimeout)
	}
	if c.QueueName == "" {
		return fmt.Errorf("queue name cannot be empty")
	}
	return nil
}

// ClampTimeout bounds a webhook's timeout; zero means the default
func (c Config) ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return c.DefaultTimeout
	}
	if d < c.MinTimeout {
		return c.MinTimeout
	}
	if d > c.MaxTimeout {
		return c.MaxTimeout
	}
	return d
}
