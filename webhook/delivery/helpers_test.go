package delivery_test

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/signature"
	"github.com/marcelsud/webhook-dispatch/webhook/urlguard"
	"github.com/stretchr/testify/require"
)

/* In-memory collaborators for executor tests
 * Following the pattern from: https://eltonminetto.dev/post/2024-02-15-using-test-helpers/
 */

type attemptKey struct {
	deliveryID string
	attempt    int
}

// memAttempts enforces (delivery_id, attempt) uniqueness like the SQL store
type memAttempts struct {
	mu   sync.Mutex
	rows map[attemptKey]webhook.DeliveryAttempt
}

func newMemAttempts() *memAttempts {
	return &memAttempts{rows: make(map[attemptKey]webhook.DeliveryAttempt)}
}

func (m *memAttempts) Insert(_ context.Context, a webhook.DeliveryAttempt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := attemptKey{a.DeliveryID, a.Attempt}
	if _, ok := m.rows[key]; ok {
		return webhook.ErrDuplicateAttempt
	}
	m.rows[key] = a
	return nil
}

func (m *memAttempts) GetAttempt(_ context.Context, deliveryID string, attempt int) (webhook.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.rows[attemptKey{deliveryID, attempt}]
	if !ok {
		return webhook.DeliveryAttempt{}, webhook.ErrNotFound
	}
	return a, nil
}

func (m *memAttempts) ListByWebhook(_ context.Context, webhookID string, _ int) ([]webhook.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []webhook.DeliveryAttempt
	for _, a := range m.rows {
		if a.WebhookID == webhookID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memAttempts) ListByDelivery(_ context.Context, deliveryID string) ([]webhook.DeliveryAttempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []webhook.DeliveryAttempt
	for _, a := range m.rows {
		if a.DeliveryID == deliveryID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

// memWebhooks is a read-only webhook lookup
type memWebhooks struct {
	hooks map[string]webhook.Webhook
}

func newMemWebhooks(hooks ...webhook.Webhook) *memWebhooks {
	m := &memWebhooks{hooks: make(map[string]webhook.Webhook)}
	for _, h := range hooks {
		m.hooks[h.ID] = h
	}
	return m
}

func (m *memWebhooks) Get(_ context.Context, id string) (webhook.Webhook, error) {
	h, ok := m.hooks[id]
	if !ok {
		return webhook.Webhook{}, webhook.ErrNotFound
	}
	return h, nil
}

func (m *memWebhooks) List(_ context.Context) ([]webhook.Webhook, error) {
	out := make([]webhook.Webhook, 0, len(m.hooks))
	for _, h := range m.hooks {
		out = append(out, h)
	}
	return out, nil
}

func (m *memWebhooks) FindSubscribed(_ context.Context, event webhook.EventName) ([]webhook.Webhook, error) {
	var out []webhook.Webhook
	for _, h := range m.hooks {
		if h.Subscribes(event) {
			out = append(out, h)
		}
	}
	return out, nil
}

// pinnedValidator vets any URL and pins it to the given address
type pinnedValidator struct {
	addr  netip.Addr
	port  string
	err   error
	calls int
}

func (v *pinnedValidator) ValidateAtDelivery(_ context.Context, rawURL string) (urlguard.Target, error) {
	v.calls++
	if v.err != nil {
		return urlguard.Target{}, fmt.Errorf("%w: %w", urlguard.ErrDeliveryValidation, v.err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return urlguard.Target{}, err
	}
	return urlguard.Target{URL: u, Host: u.Hostname(), Port: v.port, Addrs: []netip.Addr{v.addr}}, nil
}

// validatorFor pins every URL to the host:port of a test server
func validatorFor(t *testing.T, serverURL string) *pinnedValidator {
	t.Helper()
	u, err := url.Parse(serverURL)
	require.NoError(t, err)
	return &pinnedValidator{addr: netip.MustParseAddr(u.Hostname()), port: u.Port()}
}

func newSecret(t *testing.T) signature.Secret {
	t.Helper()
	s, err := signature.GenerateSecret(signature.DefaultSecretBytes)
	require.NoError(t, err)
	return s
}

func testWebhook(id, rawURL string, secret signature.Secret) webhook.Webhook {
	return webhook.Webhook{
		ID:      id,
		Name:    "hook " + id,
		URL:     rawURL,
		Events:  webhook.ExplicitEvents("post.published"),
		Active:  true,
		Timeout: 5 * time.Second,
		Secret:  secret.String(),
	}
}

var errBoom = errors.New("boom")
