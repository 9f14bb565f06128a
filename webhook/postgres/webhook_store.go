package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/marcelsud/webhook-dispatch/webhook"
)

// WebhookStore implements webhook.Repository
type WebhookStore struct {
	DB *sql.DB
}

// NewWebhookStore creates a store on an open database
func NewWebhookStore(db *sql.DB) *WebhookStore {
	return &WebhookStore{DB: db}
}

const webhookColumns = "id, name, url, events, active, timeout_ms, secret, created_by, created_at, updated_at"

// Get returns a webhook by id
func (s *WebhookStore) Get(ctx context.Context, id string) (webhook.Webhook, error) {
	query := "SELECT " + webhookColumns + " FROM webhooks WHERE id = $1"

	wh, err := scanWebhook(s.DB.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return webhook.Webhook{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.Webhook{}, fmt.Errorf("selecting webhook: %w", err)
	}
	return wh, nil
}

// List returns every webhook, oldest first
func (s *WebhookStore) List(ctx context.Context) ([]webhook.Webhook, error) {
	query := "SELECT " + webhookColumns + " FROM webhooks ORDER BY created_at, id"
	return s.query(ctx, query)
}

// FindSubscribed returns active webhooks subscribed to event or to every event
func (s *WebhookStore) FindSubscribed(ctx context.Context, event webhook.EventName) ([]webhook.Webhook, error) {
	query := "SELECT " + webhookColumns + " FROM webhooks WHERE active AND events && $1 ORDER BY created_at, id"
	return s.query(ctx, query, pq.Array([]string{string(event), webhook.Wildcard}))
}

// Create inserts a new webhook
func (s *WebhookStore) Create(ctx context.Context, wh webhook.Webhook) error {
	query := `
		INSERT INTO webhooks (id, name, url, events, active, timeout_ms, secret, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.DB.ExecContext(ctx, query,
		wh.ID, wh.Name, wh.URL, pq.Array(wh.Events.Names()), wh.Active,
		wh.Timeout.Milliseconds(), wh.Secret, wh.CreatedBy, wh.CreatedAt, wh.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting webhook: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a webhook
func (s *WebhookStore) Update(ctx context.Context, wh webhook.Webhook) error {
	query := `
		UPDATE webhooks
		SET name = $1, url = $2, events = $3, active = $4, timeout_ms = $5, updated_at = $6
		WHERE id = $7
	`

	result, err := s.DB.ExecContext(ctx, query,
		wh.Name, wh.URL, pq.Array(wh.Events.Names()), wh.Active, wh.Timeout.Milliseconds(), wh.UpdatedAt, wh.ID,
	)
	if err != nil {
		return fmt.Errorf("updating webhook: %w", err)
	}
	return expectOneRow(result)
}

// Delete removes a webhook; its delivery history is kept
func (s *WebhookStore) Delete(ctx context.Context, id string) error {
	result, err := s.DB.ExecContext(ctx, "DELETE FROM webhooks WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("deleting webhook: %w", err)
	}
	return expectOneRow(result)
}

// Close closes the database connection
func (s *WebhookStore) Close(ctx context.Context) error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

func (s *WebhookStore) query(ctx context.Context, query string, args ...interface{}) ([]webhook.Webhook, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting webhooks: %w", err)
	}
	defer rows.Close()

	hooks := []webhook.Webhook{}
	for rows.Next() {
		wh, err := scanWebhook(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning webhook: %w", err)
		}
		hooks = append(hooks, wh)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating webhooks: %w", err)
	}
	return hooks, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanWebhook(row scanner) (webhook.Webhook, error) {
	var (
		wh        webhook.Webhook
		events    []string
		timeoutMs int64
	)
	err := row.Scan(
		&wh.ID, &wh.Name, &wh.URL, pq.Array(&events), &wh.Active,
		&timeoutMs, &wh.Secret, &wh.CreatedBy, &wh.CreatedAt, &wh.UpdatedAt,
	)
	if err != nil {
		return webhook.Webhook{}, err
	}

	wh.Events, err = webhook.ParseEventSet(events)
	if err != nil {
		return webhook.Webhook{}, fmt.Errorf("parsing events of webhook %s: %w", wh.ID, err)
	}
	wh.Timeout = time.Duration(timeoutMs) * time.Millisecond
	return wh, nil
}

func expectOneRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rows == 0 {
		return webhook.ErrNotFound
	}
	return nil
}
