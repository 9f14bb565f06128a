package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// TruncationMarker is appended to response bodies cut at the size limit
const TruncationMarker = "...[truncated]"

// Reserved keys injected into every outbound body
const (
	KeyDeliveryID  = "id"
	KeyAttempt     = "attempt"
	KeyMaxAttempts = "max_attempts"
)

// Metadata is the delivery information injected into the outbound body
type Metadata struct {
	DeliveryID  string
	Attempt     int
	MaxAttempts int
}

// ValidateObject checks that data is a single JSON object
func ValidateObject(data json.RawMessage) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return fmt.Errorf("payload is required")
	}
	if trimmed[0] != '{' {
		return fmt.Errorf("payload must be a JSON object")
	}
	if !json.Valid(trimmed) {
		return fmt.Errorf("payload must be valid JSON")
	}
	return nil
}

/* Build returns the exact bytes to send: the original payload object plus
 * id, attempt and max_attempts. Keys are emitted in sorted order and the
 * output is minified, so the same input always yields the same bytes
 */
func Build(data json.RawMessage, meta Metadata) ([]byte, error) {
	fields := make(map[string]json.RawMessage)
	if len(bytes.TrimSpace(data)) > 0 {
		if err := ValidateObject(data); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(data, &fields); err != nil {
			return nil, fmt.Errorf("unmarshaling payload: %w", err)
		}
	}

	id, err := json.Marshal(meta.DeliveryID)
	if err != nil {
		return nil, fmt.Errorf("marshaling delivery id: %w", err)
	}
	fields[KeyDeliveryID] = id
	fields[KeyAttempt] = json.RawMessage(fmt.Sprintf("%d", meta.Attempt))
	fields[KeyMaxAttempts] = json.RawMessage(fmt.Sprintf("%d", meta.MaxAttempts))

	body, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("marshaling payload: %w", err)
	}
	return body, nil
}

// Truncate cuts body to at most limit bytes and appends TruncationMarker when cut
// The cut never splits a UTF-8 sequence and the result is always CleanText
func Truncate(body []byte, limit int) string {
	if limit <= 0 || len(body) <= limit {
		return CleanText(string(body))
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return CleanText(string(body[:cut])) + TruncationMarker
}

// CleanText drops NUL bytes and replaces invalid UTF-8 so the text can be stored in TEXT and JSONB columns
func CleanText(s string) string {
	if strings.IndexByte(s, 0) >= 0 {
		s = strings.ReplaceAll(s, "\x00", "")
	}
	return strings.ToValidUTF8(s, "\uFFFD")
}
