package delivery_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/delivery"
	"github.com/marcelsud/webhook-dispatch/webhook/mocks"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func subscribedHooks() []webhook.Webhook {
	return []webhook.Webhook{
		{ID: "wh-a", URL: "https://a.example.com", Events: webhook.ExplicitEvents("post.published"), Active: true},
		{ID: "wh-b", URL: "https://b.example.com", Events: webhook.AllEvents(), Active: true},
		{ID: "wh-c", URL: "https://c.example.com", Events: webhook.ExplicitEvents("post.deleted"), Active: true},
		{ID: "wh-d", URL: "https://d.example.com", Events: webhook.ExplicitEvents("post.published"), Active: false},
	}
}

func TestDispatcher_Dispatch(t *testing.T) {
	data := json.RawMessage(`{"post":{"id":7}}`)

	t.Run("enqueues one unit per subscribed active webhook", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		queue := mocks.NewQueue(t)

		// The store is trusted loosely; unsubscribed or inactive rows are filtered again
		repo.On("FindSubscribed", mock.Anything, webhook.EventName("post.published")).Return(subscribedHooks(), nil).Once()

		var units []webhook.DeliveryUnit
		queue.On("Enqueue", mock.Anything, mock.AnythingOfType("webhook.DeliveryUnit"), time.Time{}).
			Run(func(args mock.Arguments) {
				units = append(units, args.Get(1).(webhook.DeliveryUnit))
			}).
			Return(nil).Twice()

		d := delivery.NewDispatcher(repo, queue, delivery.DefaultConfig(), zerolog.Nop())
		result, err := d.Dispatch(context.Background(), "post.published", data)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Matched)
		assert.Len(t, result.DeliveryIDs, 2)
		assert.Empty(t, result.Failed)
		assert.NotEqual(t, result.DeliveryIDs[0], result.DeliveryIDs[1])

		require.Len(t, units, 2)
		targets := []string{units[0].WebhookID, units[1].WebhookID}
		assert.ElementsMatch(t, []string{"wh-a", "wh-b"}, targets)
		for _, u := range units {
			assert.Equal(t, 1, u.Attempt)
			assert.Equal(t, 3, u.MaxAttempts)
			assert.Equal(t, webhook.EventName("post.published"), u.Event)
			assert.JSONEq(t, string(data), string(u.Payload))
		}
	})

	t.Run("one failing enqueue does not affect the others", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		queue := mocks.NewQueue(t)

		repo.On("FindSubscribed", mock.Anything, webhook.EventName("post.published")).Return(subscribedHooks(), nil).Once()
		queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(u webhook.DeliveryUnit) bool { return u.WebhookID == "wh-a" }), time.Time{}).
			Return(errBoom).Once()
		queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(u webhook.DeliveryUnit) bool { return u.WebhookID == "wh-b" }), time.Time{}).
			Return(nil).Once()

		d := delivery.NewDispatcher(repo, queue, delivery.DefaultConfig(), zerolog.Nop())
		result, err := d.Dispatch(context.Background(), "post.published", data)
		require.NoError(t, err)

		assert.Equal(t, 2, result.Matched)
		assert.Len(t, result.DeliveryIDs, 1)
		assert.Contains(t, result.Failed["wh-a"], "boom")
	})

	t.Run("no subscribers enqueues nothing", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		queue := mocks.NewQueue(t)
		repo.On("FindSubscribed", mock.Anything, webhook.EventName("media.uploaded")).Return(nil, nil).Once()

		d := delivery.NewDispatcher(repo, queue, delivery.DefaultConfig(), zerolog.Nop())
		result, err := d.Dispatch(context.Background(), "media.uploaded", data)
		require.NoError(t, err)
		assert.Zero(t, result.Matched)
		queue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		queue := mocks.NewQueue(t)
		repo.On("FindSubscribed", mock.Anything, webhook.EventName("post.published")).Return(nil, errBoom).Once()

		d := delivery.NewDispatcher(repo, queue, delivery.DefaultConfig(), zerolog.Nop())
		_, err := d.Dispatch(context.Background(), "post.published", data)
		assert.ErrorIs(t, err, errBoom)
	})

	t.Run("rejects bad input before touching the store", func(t *testing.T) {
		repo := mocks.NewRepository(t)
		queue := mocks.NewQueue(t)
		d := delivery.NewDispatcher(repo, queue, delivery.DefaultConfig(), zerolog.Nop())

		_, err := d.Dispatch(context.Background(), "Not An Event", data)
		assert.ErrorContains(t, err, "validating event")

		_, err = d.Dispatch(context.Background(), "post.published", json.RawMessage(`[1,2]`))
		assert.ErrorContains(t, err, "validating payload")
	})
}

func TestDispatcher_DispatchTo(t *testing.T) {
	repo := mocks.NewRepository(t)
	queue := mocks.NewQueue(t)
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(u webhook.DeliveryUnit) bool {
		return u.WebhookID == "wh-a" && u.Event == webhook.TestEvent && u.Attempt == 1
	}), time.Time{}).Return(nil).Once()

	d := delivery.NewDispatcher(repo, queue, delivery.DefaultConfig(), zerolog.Nop())
	id, err := d.DispatchTo(context.Background(), webhook.Webhook{ID: "wh-a"}, webhook.TestEvent, json.RawMessage(`{}`))
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = d.DispatchTo(context.Background(), webhook.Webhook{}, webhook.TestEvent, json.RawMessage(`{}`))
	assert.Error(t, err)
}
