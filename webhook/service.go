package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-dispatch/webhook/signature"
)

/* Service represents the business logic layer
 * Uses pointer semantics as it's an API, not data
 */

var (
	// ErrInactive is returned when an operation needs an active webhook
	ErrInactive = errors.New("webhook is inactive")
	// ErrInvalidInput wraps every rejection of caller supplied fields
	ErrInvalidInput = errors.New("invalid input")
)

const (
	maxNameLength       = 255
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// UseCase defines the business operations for webhook management
type UseCase interface {
	Register(ctx context.Context, in RegisterInput) (Webhook, error)
	Update(ctx context.Context, id string, in UpdateInput) (Webhook, error)
	Deactivate(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (Webhook, error)
	List(ctx context.Context) ([]Webhook, error)
	History(ctx context.Context, webhookID string, limit int) ([]DeliveryAttempt, error)
	SendTest(ctx context.Context, webhookID string) (string, error)
}

// URLValidator checks a webhook URL when it is registered or changed
type URLValidator interface {
	ValidateOnCreate(ctx context.Context, rawURL string) error
}

// TestSender enqueues a single delivery to one webhook
type TestSender interface {
	DispatchTo(ctx context.Context, wh Webhook, event EventName, data json.RawMessage) (string, error)
}

// TimeoutBounds limits per-webhook request timeouts
type TimeoutBounds struct {
	Min     time.Duration
	Max     time.Duration
	Default time.Duration
}

// RegisterInput carries the fields of a new webhook
type RegisterInput struct {
	Name      string
	URL       string
	Events    []string
	Timeout   time.Duration
	CreatedBy string
}

// UpdateInput carries optional changes; nil fields are left as they are
type UpdateInput struct {
	Name    *string
	URL     *string
	Events  []string
	Timeout *time.Duration
	Active  *bool
}

type Service struct {
	Repo      Repository
	Attempts  AttemptReader
	Validator URLValidator
	Sender    TestSender
	Bounds    TimeoutBounds
	now       func() time.Time
}

// NewService creates a new webhook service with dependency injection
func NewService(repo Repository, attempts AttemptReader, validator URLValidator, sender TestSender, bounds TimeoutBounds) *Service {
	return &Service{
		Repo:      repo,
		Attempts:  attempts,
		Validator: validator,
		Sender:    sender,
		Bounds:    bounds,
		now:       time.Now,
	}
}

// Register validates and stores a new webhook with a freshly generated secret
// The returned webhook is the only place the secret is ever exposed
func (s *Service) Register(ctx context.Context, in RegisterInput) (Webhook, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return Webhook{}, err
	}
	events, err := ParseEventSet(in.Events)
	if err != nil {
		return Webhook{}, invalid(fmt.Errorf("validating events: %w", err))
	}
	timeout, err := s.timeout(in.Timeout)
	if err != nil {
		return Webhook{}, err
	}
	if err := s.Validator.ValidateOnCreate(ctx, in.URL); err != nil {
		return Webhook{}, invalid(fmt.Errorf("validating url: %w", err))
	}

	secret, err := signature.GenerateSecret(signature.DefaultSecretBytes)
	if err != nil {
		return Webhook{}, fmt.Errorf("generating secret: %w", err)
	}

	now := s.now().UTC()
	wh := Webhook{
		ID:        uuid.New().String(),
		Name:      name,
		URL:       in.URL,
		Events:    events,
		Active:    true,
		Timeout:   timeout,
		Secret:    secret.String(),
		CreatedBy: in.CreatedBy,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.Repo.Create(ctx, wh); err != nil {
		return Webhook{}, fmt.Errorf("storing webhook: %w", err)
	}
	return wh, nil
}

// Update applies the given changes; a changed URL is validated again
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (Webhook, error) {
	wh, err := s.Get(ctx, id)
	if err != nil {
		return Webhook{}, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return Webhook{}, err
		}
		wh.Name = name
	}
	if in.Events != nil {
		events, err := ParseEventSet(in.Events)
		if err != nil {
			return Webhook{}, invalid(fmt.Errorf("validating events: %w", err))
		}
		wh.Events = events
	}
	if in.Timeout != nil {
		timeout, err := s.timeout(*in.Timeout)
		if err != nil {
			return Webhook{}, err
		}
		wh.Timeout = timeout
	}
	if in.URL != nil && *in.URL != wh.URL {
		if err := s.Validator.ValidateOnCreate(ctx, *in.URL); err != nil {
			return Webhook{}, invalid(fmt.Errorf("validating url: %w", err))
		}
		wh.URL = *in.URL
	}
	if in.Active != nil {
		wh.Active = *in.Active
	}
	wh.UpdatedAt = s.now().UTC()

	if err := s.Repo.Update(ctx, wh); err != nil {
		return Webhook{}, fmt.Errorf("updating webhook: %w", err)
	}
	return wh, nil
}

// Deactivate stops future deliveries; queued units are recorded as exhausted when they run
func (s *Service) Deactivate(ctx context.Context, id string) error {
	active := false
	_, err := s.Update(ctx, id, UpdateInput{Active: &active})
	return err
}

// Get returns a webhook by id
func (s *Service) Get(ctx context.Context, id string) (Webhook, error) {
	wh, err := s.Repo.Get(ctx, id)
	if err != nil {
		return Webhook{}, fmt.Errorf("getting webhook %s: %w", id, err)
	}
	return wh, nil
}

// List returns all webhooks
func (s *Service) List(ctx context.Context) ([]Webhook, error) {
	hooks, err := s.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing webhooks: %w", err)
	}
	return hooks, nil
}

// History returns the newest attempts recorded for a webhook
func (s *Service) History(ctx context.Context, webhookID string, limit int) ([]DeliveryAttempt, error) {
	if _, err := s.Get(ctx, webhookID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	attempts, err := s.Attempts.ListByWebhook(ctx, webhookID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing delivery attempts: %w", err)
	}
	return attempts, nil
}

// SendTest enqueues a webhook.test delivery whatever the webhook subscribes to
func (s *Service) SendTest(ctx context.Context, webhookID string) (string, error) {
	wh, err := s.Get(ctx, webhookID)
	if err != nil {
		return "", err
	}
	if !wh.Active {
		return "", fmt.Errorf("sending test delivery to %s: %w", webhookID, ErrInactive)
	}

	data, err := json.Marshal(map[string]string{
		"webhook_id": wh.ID,
		"message":    "This is a test delivery",
		"sent_at":    s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("encoding test payload: %w", err)
	}

	id, err := s.Sender.DispatchTo(ctx, wh, TestEvent, data)
	if err != nil {
		return "", fmt.Errorf("sending test delivery: %w", err)
	}
	return id, nil
}

func (s *Service) timeout(d time.Duration) (time.Duration, error) {
	if d == 0 {
		return s.Bounds.Default, nil
	}
	if d < s.Bounds.Min || d > s.Bounds.Max {
		return 0, invalid(fmt.Errorf("timeout must be between %s and %s (got %s)", s.Bounds.Min, s.Bounds.Max, d))
	}
	return d, nil
}

func validateName(name string) error {
	if name == "" {
		return invalid(errors.New("name cannot be empty"))
	}
	if len(name) > maxNameLength {
		return invalid(fmt.Errorf("name cannot exceed %d characters", maxNameLength))
	}
	return nil
}

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, err)
}
