package app_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotel_sync/internal/app"
	"hotel_sync/internal/domain"
	"hotel_sync/internal/storage/memory"
)

type memArchive struct {
	puts map[string][]domain.AuditEntry
}

func (m *memArchive) Put(ctx context.Context, key string, entries []domain.AuditEntry) error {
	if m.puts == nil {
		m.puts = map[string][]domain.AuditEntry{}
	}
	m.puts[key] = entries
	return nil
}

func TestAuditor_RecordFillsIDAndTime(t *testing.T) {
	store := memory.New()
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	a := app.NewAuditor(store, store, app.WithClock(func() time.Time { return now }))

	a.Record(context.Background(), domain.AuditEntry{PropertyID: "P1", Service: "pms", Method: "GET", Endpoint: "/x", Duration: 1500 * time.Millisecond})
	got := store.AuditEntries()
	require.Len(t, got, 1)
	assert.NotEmpty(t, got[0].ID)
	assert.Equal(t, now, got[0].CreatedAt)

	b, err := json.Marshal(got[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"durationMs":1500`)
}

func TestAuditor_ArchiveDay(t *testing.T) {
	store := memory.New()
	arch := &memArchive{}
	a := app.NewAuditor(store, store, app.WithArchive(arch, "audit"))
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	a.Record(ctx, domain.AuditEntry{PropertyID: "P1", CreatedAt: day.Add(time.Hour)})
	a.Record(ctx, domain.AuditEntry{PropertyID: "P1", CreatedAt: day.Add(2 * time.Hour)})
	a.Record(ctx, domain.AuditEntry{PropertyID: "P1", CreatedAt: day.Add(30 * time.Hour)})
	a.Record(ctx, domain.AuditEntry{PropertyID: "P2", CreatedAt: day.Add(time.Hour)})

	key, n, err := a.ArchiveDay(ctx, "P1", "2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, "audit/P1/2024-05-01.jsonl", key)
	assert.Equal(t, 2, n)
	assert.Len(t, arch.puts[key], 2)

	_, _, err = a.ArchiveDay(ctx, "P1", "May 1")
	assert.Equal(t, domain.CodeValidation, domain.Classify(err))
}

func TestAuditor_ArchiveDisabled(t *testing.T) {
	store := memory.New()
	a := app.NewAuditor(store, store)
	_, _, err := a.ArchiveDay(context.Background(), "P1", "2024-05-01")
	assert.Equal(t, domain.CodeValidation, domain.Classify(err))
}

func TestAuditor_ListRejectsInvertedWindow(t *testing.T) {
	store := memory.New()
	a := app.NewAuditor(store, store)
	now := time.Now()
	_, err := a.List(context.Background(), domain.AuditQuery{Since: now, Until: now.Add(-time.Hour)})
	assert.Equal(t, domain.CodeValidation, domain.Classify(err))
}
