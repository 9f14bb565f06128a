package subscriptions

import (
	"fmt"
	"net/url"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
)

/* Subscription is a webhook declared in the seed file
 * Registered through webhook.Service, so the secret is always generated
 */
type Subscription struct {
	Name    string
	URL     string
	Events  webhook.EventSet
	Timeout time.Duration
	Active  bool
}

// Validate checks the entry against the timeout bounds
// Address-class checks need DNS and are left to the URL validator
func (s *Subscription) Validate(bounds webhook.TimeoutBounds) error {
	if s.Name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if s.URL == "" {
		return fmt.Errorf("url cannot be empty for webhook %s", s.Name)
	}
	u, err := url.Parse(s.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("url must be absolute for webhook %s: %q", s.Name, s.URL)
	}
	if s.Events.IsEmpty() {
		return fmt.Errorf("events cannot be empty for webhook %s", s.Name)
	}
	if s.Timeout != 0 && (s.Timeout < bounds.Min || s.Timeout > bounds.Max) {
		return fmt.Errorf("timeout_seconds must be between %d and %d for webhook %s (got %d)",
			int(bounds.Min.Seconds()), int(bounds.Max.Seconds()), s.Name, int(s.Timeout.Seconds()))
	}
	return nil
}

// Input converts the entry into a registration request
func (s *Subscription) Input(createdBy string) webhook.RegisterInput {
	return webhook.RegisterInput{
		Name:      s.Name,
		URL:       s.URL,
		Events:    s.Events.Names(),
		Timeout:   s.Timeout,
		CreatedBy: createdBy,
	}
}
