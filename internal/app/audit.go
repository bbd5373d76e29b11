package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"hotel_sync/internal/adapters/observability"
	"hotel_sync/internal/domain"
)

// Auditor writes one entry per external call. Append failures never reach the
// caller; they go to the log and the audit_append_failures_total counter.
type Auditor struct {
	sink     domain.AuditSink
	reader   domain.AuditReader
	archiver domain.AuditArchiver
	prefix   string
	now      func() time.Time
}

type AuditorOption func(*Auditor)

// WithArchive enables ArchiveDay. Keys are {prefix}/{property}/{YYYY-MM-DD}.jsonl.
func WithArchive(a domain.AuditArchiver, prefix string) AuditorOption {
	return func(au *Auditor) { au.archiver, au.prefix = a, prefix }
}

func WithClock(now func() time.Time) AuditorOption {
	return func(au *Auditor) { au.now = now }
}

func NewAuditor(sink domain.AuditSink, reader domain.AuditReader, opts ...AuditorOption) *Auditor {
	a := &Auditor{sink: sink, reader: reader, prefix: "audit", now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Auditor) Record(ctx context.Context, e domain.AuditEntry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = a.now().UTC()
	}
	if err := a.sink.Append(ctx, e); err != nil {
		observability.ObserveAuditFailure()
		log.Error().Err(err).
			Str("property", e.PropertyID).
			Str("service", e.Service).
			Str("method", e.Method).
			Str("endpoint", e.Endpoint).
			Int("status", e.StatusCode).
			Str("call_error", e.Error).
			Dur("took", e.Duration).
			Msg("audit append failed")
	}
}

func (a *Auditor) List(ctx context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	if q.Limit <= 0 || q.Limit > 500 {
		q.Limit = 100
	}
	if !q.Until.IsZero() && q.Until.Before(q.Since) {
		return nil, domain.Validation("until is before since")
	}
	return a.reader.ListAudit(ctx, q)
}

// ArchiveDay copies one UTC day of a property's audit entries to the archive
// and returns the object key and entry count.
func (a *Auditor) ArchiveDay(ctx context.Context, propertyID string, day domain.Date) (string, int, error) {
	if a.archiver == nil {
		return "", 0, domain.Validation("audit archive is not configured")
	}
	if !day.Valid() {
		return "", 0, domain.Validation("invalid date %q: expected YYYY-MM-DD", day)
	}
	since := day.Time()
	entries, err := a.reader.ListAudit(ctx, domain.AuditQuery{
		PropertyID: propertyID,
		Since:      since,
		Until:      since.Add(24 * time.Hour),
	})
	if err != nil {
		return "", 0, fmt.Errorf("list audit for %s on %s: %w", propertyID, day, err)
	}
	key := fmt.Sprintf("%s/%s/%s.jsonl", a.prefix, propertyID, day)
	if len(entries) == 0 {
		return key, 0, nil
	}
	if err := a.archiver.Put(ctx, key, entries); err != nil {
		return "", 0, fmt.Errorf("archive %s: %w", key, err)
	}
	return key, len(entries), nil
}

/********** audited external calls **********/

type call struct {
	propertyID string
	service    string
	method     string
	endpoint   string
	body       any
}

// audited runs fn and records exactly one entry for it. Duration covers only fn.
func audited[T any](ctx context.Context, a *Auditor, c call, fn func(context.Context) (T, error)) (T, error) {
	start := time.Now()
	out, err := fn(ctx)
	e := domain.AuditEntry{
		PropertyID:  c.propertyID,
		Service:     c.service,
		Method:      c.method,
		Endpoint:    c.endpoint,
		RequestBody: rawJSON(c.body),
		Duration:    time.Since(start),
		StatusCode:  200,
	}
	if err != nil {
		e.Error = err.Error()
		e.StatusCode = 500
		if st := domain.UpstreamStatus(err); st > 0 {
			e.StatusCode = st
		}
		e.ResponseBody = upstreamBody(err)
	} else {
		e.ResponseBody = rawJSON(out)
	}
	a.Record(ctx, e)
	return out, err
}

// auditedDo is audited for calls with no response payload.
func auditedDo(ctx context.Context, a *Auditor, c call, fn func(context.Context) error) error {
	_, err := audited(ctx, a, c, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func rawJSON(v any) json.RawMessage {
	switch v.(type) {
	case nil:
		return nil
	case struct{}:
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil || string(b) == "null" {
		return nil
	}
	return b
}

// upstreamBody keeps the upstream error body, quoting it when it is not JSON.
func upstreamBody(err error) json.RawMessage {
	var de *domain.Error
	if !errors.As(err, &de) || de.Body == "" {
		return nil
	}
	if json.Valid([]byte(de.Body)) {
		return json.RawMessage(de.Body)
	}
	b, _ := json.Marshal(de.Body)
	return b
}
