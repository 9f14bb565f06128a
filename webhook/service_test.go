package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/mocks"
	"github.com/marcelsud/webhook-dispatch/webhook/signature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var bounds = webhook.TimeoutBounds{Min: 5 * time.Second, Max: 60 * time.Second, Default: 10 * time.Second}

type fixture struct {
	repo      *mocks.Repository
	attempts  *mocks.AttemptStore
	validator *mocks.URLValidator
	sender    *mocks.TestSender
	service   *webhook.Service
}

func newFixture(t *testing.T) fixture {
	f := fixture{
		repo:      mocks.NewRepository(t),
		attempts:  mocks.NewAttemptStore(t),
		validator: mocks.NewURLValidator(t),
		sender:    mocks.NewTestSender(t),
	}
	f.service = webhook.NewService(f.repo, f.attempts, f.validator, f.sender, bounds)
	return f
}

func existing() webhook.Webhook {
	return webhook.Webhook{
		ID:      "wh-1",
		Name:    "Search indexer",
		URL:     "https://hooks.example.com/in",
		Events:  webhook.ExplicitEvents("post.published"),
		Active:  true,
		Timeout: 10 * time.Second,
		Secret:  "whsec_c2VjcmV0LXNlY3JldC1zZWNyZXQtc2VjcmV0",
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.validator.On("ValidateOnCreate", ctx, "https://hooks.example.com/in").Return(nil)
		f.repo.On("Create", ctx, webhook.MatchWebhook(func(wh webhook.Webhook) bool {
			return wh.Name == "Search indexer" &&
				wh.Active &&
				wh.Events.Subscribes("post.published") &&
				!wh.Events.Subscribes("post.deleted") &&
				wh.Timeout == 10*time.Second &&
				strings.HasPrefix(wh.Secret, signature.SecretPrefix)
		})).Return(nil)

		wh, err := f.service.Register(ctx, webhook.RegisterInput{
			Name:   "  Search indexer ",
			URL:    "https://hooks.example.com/in",
			Events: []string{"post.published"},
		})

		require.NoError(t, err)
		assert.NotEmpty(t, wh.ID)
		assert.False(t, wh.CreatedAt.IsZero())

		secret, err := signature.ParseSecret(wh.Secret)
		require.NoError(t, err)
		assert.Len(t, secret.Bytes(), signature.DefaultSecretBytes)
	})

	t.Run("wildcard subscription", func(t *testing.T) {
		f := newFixture(t)
		f.validator.On("ValidateOnCreate", ctx, mock.Anything).Return(nil)
		f.repo.On("Create", ctx, webhook.MatchWebhook(func(wh webhook.Webhook) bool {
			return wh.Events.IsAll() && wh.Timeout == 30*time.Second
		})).Return(nil)

		_, err := f.service.Register(ctx, webhook.RegisterInput{
			Name:    "audit",
			URL:     "https://audit.example.com",
			Events:  []string{"*"},
			Timeout: 30 * time.Second,
		})
		require.NoError(t, err)
	})

	t.Run("rejected url is never stored", func(t *testing.T) {
		f := newFixture(t)
		f.validator.On("ValidateOnCreate", ctx, "https://10.0.0.5/hook").Return(errors.New("forbidden address"))

		_, err := f.service.Register(ctx, webhook.RegisterInput{
			Name:   "internal",
			URL:    "https://10.0.0.5/hook",
			Events: []string{"post.published"},
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "validating url")
		assert.ErrorIs(t, err, webhook.ErrInvalidInput)
		f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("input validation", func(t *testing.T) {
		tests := []struct {
			name    string
			in      webhook.RegisterInput
			wantErr string
		}{
			{name: "empty name", in: webhook.RegisterInput{Name: " ", Events: []string{"a.b"}}, wantErr: "name cannot be empty"},
			{name: "no events", in: webhook.RegisterInput{Name: "x"}, wantErr: "validating events"},
			{name: "mixed wildcard", in: webhook.RegisterInput{Name: "x", Events: []string{"*", "a.b"}}, wantErr: "validating events"},
			{name: "timeout too small", in: webhook.RegisterInput{Name: "x", Events: []string{"a.b"}, Timeout: time.Second}, wantErr: "timeout must be between"},
			{name: "timeout too large", in: webhook.RegisterInput{Name: "x", Events: []string{"a.b"}, Timeout: time.Hour}, wantErr: "timeout must be between"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				f := newFixture(t)
				_, err := f.service.Register(ctx, tt.in)
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.ErrorIs(t, err, webhook.ErrInvalidInput)
			})
		}
	})

	t.Run("repository error", func(t *testing.T) {
		f := newFixture(t)
		f.validator.On("ValidateOnCreate", ctx, mock.Anything).Return(nil)
		f.repo.On("Create", ctx, mock.Anything).Return(errors.New("connection refused"))

		_, err := f.service.Register(ctx, webhook.RegisterInput{Name: "x", URL: "https://x.example.com", Events: []string{"a.b"}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "storing webhook")
	})
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()

	t.Run("changed url is validated again", func(t *testing.T) {
		f := newFixture(t)
		newURL := "https://new.example.com/in"
		f.repo.On("Get", ctx, "wh-1").Return(existing(), nil)
		f.validator.On("ValidateOnCreate", ctx, newURL).Return(nil)
		f.repo.On("Update", ctx, webhook.MatchWebhook(func(wh webhook.Webhook) bool {
			return wh.URL == newURL && wh.Secret == existing().Secret
		})).Return(nil)

		wh, err := f.service.Update(ctx, "wh-1", webhook.UpdateInput{URL: &newURL})
		require.NoError(t, err)
		assert.Equal(t, newURL, wh.URL)
	})

	t.Run("unchanged url skips validation", func(t *testing.T) {
		f := newFixture(t)
		sameURL := existing().URL
		f.repo.On("Get", ctx, "wh-1").Return(existing(), nil)
		f.repo.On("Update", ctx, mock.Anything).Return(nil)

		_, err := f.service.Update(ctx, "wh-1", webhook.UpdateInput{URL: &sameURL, Events: []string{"post.deleted"}})
		require.NoError(t, err)
		f.validator.AssertNotCalled(t, "ValidateOnCreate", mock.Anything, mock.Anything)
	})

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Get", ctx, "missing").Return(webhook.Webhook{}, webhook.ErrNotFound)

		_, err := f.service.Update(ctx, "missing", webhook.UpdateInput{})
		assert.ErrorIs(t, err, webhook.ErrNotFound)
	})
}

func TestDeactivate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.repo.On("Get", ctx, "wh-1").Return(existing(), nil)
	f.repo.On("Update", ctx, webhook.MatchWebhook(func(wh webhook.Webhook) bool {
		return wh.ID == "wh-1" && !wh.Active
	})).Return(nil)

	require.NoError(t, f.service.Deactivate(ctx, "wh-1"))
}

func TestHistory(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		limit     int
		wantLimit int
	}{
		{name: "default limit", limit: 0, wantLimit: 50},
		{name: "explicit limit", limit: 10, wantLimit: 10},
		{name: "capped limit", limit: 10000, wantLimit: 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.On("Get", ctx, "wh-1").Return(existing(), nil)
			f.attempts.On("ListByWebhook", ctx, "wh-1", tt.wantLimit).
				Return([]webhook.DeliveryAttempt{{DeliveryID: "d-1", Attempt: 1}}, nil)

			attempts, err := f.service.History(ctx, "wh-1", tt.limit)
			require.NoError(t, err)
			assert.Len(t, attempts, 1)
		})
	}
}

func TestSendTest(t *testing.T) {
	ctx := context.Background()

	t.Run("enqueues webhook.test regardless of subscriptions", func(t *testing.T) {
		f := newFixture(t)
		f.repo.On("Get", ctx, "wh-1").Return(existing(), nil)
		f.sender.On("DispatchTo", ctx, existing(), webhook.TestEvent, mock.MatchedBy(func(data json.RawMessage) bool {
			var body map[string]string
			return json.Unmarshal(data, &body) == nil && body["webhook_id"] == "wh-1"
		})).Return("delivery-9", nil)

		id, err := f.service.SendTest(ctx, "wh-1")
		require.NoError(t, err)
		assert.Equal(t, "delivery-9", id)
	})

	t.Run("inactive webhook", func(t *testing.T) {
		f := newFixture(t)
		inactive := existing()
		inactive.Active = false
		f.repo.On("Get", ctx, "wh-1").Return(inactive, nil)

		_, err := f.service.SendTest(ctx, "wh-1")
		assert.ErrorIs(t, err, webhook.ErrInactive)
	})
}
