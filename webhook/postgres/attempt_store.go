package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/payload"
)

// uniqueViolation is the SQLSTATE for a unique constraint conflict
const uniqueViolation = "23505"

// AttemptStore implements webhook.AttemptStore; rows are append-only
type AttemptStore struct {
	DB *sql.DB
}

// NewAttemptStore creates a store on an open database
func NewAttemptStore(db *sql.DB) *AttemptStore {
	return &AttemptStore{DB: db}
}

const attemptColumns = "delivery_id, webhook_id, event, payload, attempt, status_code, response_body, response_headers, duration_ms, success, error, next_retry_at, created_at"

// Insert records one attempt
func (s *AttemptStore) Insert(ctx context.Context, a webhook.DeliveryAttempt) error {
	// TEXT and JSONB reject NUL bytes and invalid UTF-8
	headers := make(map[string]string, len(a.ResponseHeaders))
	for k, v := range a.ResponseHeaders {
		headers[payload.CleanText(k)] = payload.CleanText(v)
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		return fmt.Errorf("marshaling response headers: %w", err)
	}

	body := a.Payload
	if len(body) == 0 {
		body = []byte("{}")
	}

	var status sql.NullInt64
	if a.StatusCode != nil {
		status = sql.NullInt64{Int64: int64(*a.StatusCode), Valid: true}
	}
	var nextRetry sql.NullTime
	if a.NextRetryAt != nil {
		nextRetry = sql.NullTime{Time: *a.NextRetryAt, Valid: true}
	}

	query := `
		INSERT INTO webhook_deliveries (` + attemptColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err = s.DB.ExecContext(ctx, query,
		a.DeliveryID, a.WebhookID, string(a.Event), string(body), a.Attempt, status,
		payload.CleanText(a.ResponseBody), string(headersJSON), a.DurationMs, a.Success, payload.CleanText(a.Error), nextRetry, a.CreatedAt,
	)

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return webhook.ErrDuplicateAttempt
	}
	if err != nil {
		return fmt.Errorf("inserting delivery attempt: %w", err)
	}
	return nil
}

// GetAttempt returns one attempt of a delivery
func (s *AttemptStore) GetAttempt(ctx context.Context, deliveryID string, attempt int) (webhook.DeliveryAttempt, error) {
	query := "SELECT " + attemptColumns + " FROM webhook_deliveries WHERE delivery_id = $1 AND attempt = $2"

	a, err := scanAttempt(s.DB.QueryRowContext(ctx, query, deliveryID, attempt))
	if err == sql.ErrNoRows {
		return webhook.DeliveryAttempt{}, webhook.ErrNotFound
	}
	if err != nil {
		return webhook.DeliveryAttempt{}, fmt.Errorf("selecting delivery attempt: %w", err)
	}
	return a, nil
}

// ListByWebhook returns the newest attempts for a webhook
func (s *AttemptStore) ListByWebhook(ctx context.Context, webhookID string, limit int) ([]webhook.DeliveryAttempt, error) {
	query := "SELECT " + attemptColumns + " FROM webhook_deliveries WHERE webhook_id = $1 ORDER BY created_at DESC, attempt DESC LIMIT $2"
	return s.query(ctx, query, webhookID, limit)
}

// ListByDelivery returns every attempt of one delivery in attempt order
func (s *AttemptStore) ListByDelivery(ctx context.Context, deliveryID string) ([]webhook.DeliveryAttempt, error) {
	query := "SELECT " + attemptColumns + " FROM webhook_deliveries WHERE delivery_id = $1 ORDER BY attempt"
	return s.query(ctx, query, deliveryID)
}

func (s *AttemptStore) query(ctx context.Context, query string, args ...interface{}) ([]webhook.DeliveryAttempt, error) {
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("selecting delivery attempts: %w", err)
	}
	defer rows.Close()

	attempts := []webhook.DeliveryAttempt{}
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning delivery attempt: %w", err)
		}
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating delivery attempts: %w", err)
	}
	return attempts, nil
}

func scanAttempt(row scanner) (webhook.DeliveryAttempt, error) {
	var (
		a         webhook.DeliveryAttempt
		event     string
		body      []byte
		status    sql.NullInt64
		headers   []byte
		nextRetry sql.NullTime
	)
	err := row.Scan(
		&a.DeliveryID, &a.WebhookID, &event, &body, &a.Attempt, &status,
		&a.ResponseBody, &headers, &a.DurationMs, &a.Success, &a.Error, &nextRetry, &a.CreatedAt,
	)
	if err != nil {
		return webhook.DeliveryAttempt{}, err
	}

	a.Event = webhook.EventName(event)
	a.Payload = body
	if status.Valid {
		code := int(status.Int64)
		a.StatusCode = &code
	}
	if nextRetry.Valid {
		t := nextRetry.Time
		a.NextRetryAt = &t
	}
	if len(headers) > 0 {
		if err := json.Unmarshal(headers, &a.ResponseHeaders); err != nil {
			return webhook.DeliveryAttempt{}, fmt.Errorf("unmarshaling response headers: %w", err)
		}
	}
	return a, nil
}
