package domain

import (
	"context"
	"time"
)

type PropertyRepository interface {
	GetByID(ctx context.Context, id string) (Property, error)
	// GetByExternalID looks a property up by its channel-manager property id.
	GetByExternalID(ctx context.Context, channelPropertyID string) (Property, error)
	ListActive(ctx context.Context) ([]Property, error)
	SetCredentialsRef(ctx context.Context, id, ref string) error
	MarkInitialSynced(ctx context.Context, id string) error
}

// PropertyWriter creates or updates a property's identity and room catalog.
// Credentials and the initial-sync flag are left untouched.
type PropertyWriter interface {
	UpsertProperty(ctx context.Context, p Property) error
}

type ReservationRepository interface {
	Create(ctx context.Context, r Reservation) error
	Get(ctx context.Context, id string) (Reservation, error)
	FindByExternalID(ctx context.Context, system System, externalID string) (Reservation, error)
	UpdateStatus(ctx context.Context, id string, status ReservationStatus) error
	ListByProperty(ctx context.Context, propertyID string, limit int) ([]Reservation, error)
}

type MappingRepository interface {
	// GetMapping returns an empty set when nothing is configured.
	GetMapping(ctx context.Context, propertyID string, kind MappingKind) (MappingSet, error)
	// PutMapping replaces the whole set in one write.
	PutMapping(ctx context.Context, propertyID string, kind MappingKind, set MappingSet) error
}

type AuditSink interface {
	Append(ctx context.Context, e AuditEntry) error
}

type AuditReader interface {
	ListAudit(ctx context.Context, q AuditQuery) ([]AuditEntry, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// AuditArchiver stores a batch of audit entries under a stable key.
type AuditArchiver interface {
	Put(ctx context.Context, key string, entries []AuditEntry) error
}
