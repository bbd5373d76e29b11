package domain

import (
	"encoding/json"
	"time"
)

// AuditEntry records one external call attempt. Entries are append-only.
type AuditEntry struct {
	ID           string          `json:"id"`
	PropertyID   string          `json:"propertyId"`
	Service      string          `json:"service"`
	Method       string          `json:"method"`
	Endpoint     string          `json:"endpoint"`
	RequestBody  json.RawMessage `json:"requestBody,omitempty"`
	ResponseBody json.RawMessage `json:"responseBody,omitempty"`
	StatusCode   int             `json:"statusCode"`
	Error        string          `json:"error,omitempty"`
	Duration     time.Duration   `json:"-"`
	CreatedAt    time.Time       `json:"createdAt"`
}

func (e AuditEntry) Failed() bool { return e.Error != "" }

type AuditQuery struct {
	PropertyID string
	Since      time.Time
	Until      time.Time
	Limit      int
}

// MarshalJSON reports the duration in milliseconds.
func (e AuditEntry) MarshalJSON() ([]byte, error) {
	type alias AuditEntry
	return json.Marshal(struct {
		alias
		DurationMS int64 `json:"durationMs"`
	}{alias(e), e.Duration.Milliseconds()})
}
