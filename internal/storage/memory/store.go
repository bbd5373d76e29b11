// Package memory is an in-process implementation of the storage ports, used by
// tests and by the API when MYSQL_DSN is "memory".
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"hotel_sync/internal/domain"
)

var ErrDuplicate = errors.New("duplicate key")

type Store struct {
	mu         sync.RWMutex
	props      map[string]domain.Property
	res        map[string]domain.Reservation
	byExternal map[domain.System]map[string]string
	mappings   map[string]domain.MappingSet
	audit      []domain.AuditEntry
	now        func() time.Time
}

func New() *Store {
	return &Store{
		props: map[string]domain.Property{},
		res:   map[string]domain.Reservation{},
		byExternal: map[domain.System]map[string]string{
			domain.SystemPMS:     {},
			domain.SystemChannel: {},
		},
		mappings: map[string]domain.MappingSet{},
		now:      time.Now,
	}
}

/********** properties **********/

// PutProperty inserts or replaces p.
func (s *Store) PutProperty(p domain.Property) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.props[p.ID] = p
}

func (s *Store) UpsertProperty(_ context.Context, p domain.Property) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ChannelPropertyID != "" {
		for id, other := range s.props {
			if id != p.ID && other.ChannelPropertyID == p.ChannelPropertyID {
				return fmt.Errorf("%w: channel property %s", ErrDuplicate, p.ChannelPropertyID)
			}
		}
	}
	now := s.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	if old, ok := s.props[p.ID]; ok {
		p.CredentialsRef = old.CredentialsRef
		p.InitialSyncCompleted = old.InitialSyncCompleted
		p.CreatedAt = old.CreatedAt
	}
	s.props[p.ID] = p
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.props[id]
	if !ok {
		return domain.Property{}, domain.ErrNotFound
	}
	return p, nil
}

func (s *Store) GetByExternalID(_ context.Context, channelPropertyID string) (domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.props {
		if p.ChannelPropertyID == channelPropertyID {
			return p, nil
		}
	}
	return domain.Property{}, domain.ErrNotFound
}

func (s *Store) ListActive(_ context.Context) ([]domain.Property, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Property, 0, len(s.props))
	for _, p := range s.props {
		if p.Active {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) SetCredentialsRef(_ context.Context, id, ref string) error {
	return s.updateProperty(id, func(p *domain.Property) { p.CredentialsRef = ref })
}

func (s *Store) MarkInitialSynced(_ context.Context, id string) error {
	return s.updateProperty(id, func(p *domain.Property) { p.InitialSyncCompleted = true })
}

func (s *Store) updateProperty(id string, fn func(*domain.Property)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.props[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&p)
	p.UpdatedAt = s.now().UTC()
	s.props[id] = p
	return nil
}

/********** reservations **********/

func (s *Store) Create(_ context.Context, r domain.Reservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.res[r.ID]; ok {
		return fmt.Errorf("%w: id %s", ErrDuplicate, r.ID)
	}
	for _, sys := range []domain.System{domain.SystemPMS, domain.SystemChannel} {
		if ext := r.ExternalID(sys); ext != "" {
			if _, ok := s.byExternal[sys][ext]; ok {
				return fmt.Errorf("%w: %s id %s", ErrDuplicate, sys, ext)
			}
		}
	}
	s.res[r.ID] = r
	for _, sys := range []domain.System{domain.SystemPMS, domain.SystemChannel} {
		if ext := r.ExternalID(sys); ext != "" {
			s.byExternal[sys][ext] = r.ID
		}
	}
	return nil
}

func (s *Store) Get(_ context.Context, id string) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.res[id]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *Store) FindByExternalID(_ context.Context, system domain.System, externalID string) (domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExternal[system][externalID]
	if !ok {
		return domain.Reservation{}, domain.ErrNotFound
	}
	return s.res[id], nil
}

func (s *Store) UpdateStatus(_ context.Context, id string, status domain.ReservationStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.res[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.Status = status
	r.UpdatedAt = s.now().UTC()
	s.res[id] = r
	return nil
}

// ListByProperty returns newest first.
func (s *Store) ListByProperty(_ context.Context, propertyID string, limit int) ([]domain.Reservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Reservation
	for _, r := range s.res {
		if r.PropertyID == propertyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reservations returns every stored row, for assertions.
func (s *Store) Reservations() []domain.Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Reservation, 0, len(s.res))
	for _, r := range s.res {
		out = append(out, r)
	}
	return out
}

/********** mappings **********/

func mappingKey(propertyID string, kind domain.MappingKind) string {
	return propertyID + "/" + string(kind)
}

func (s *Store) GetMapping(_ context.Context, propertyID string, kind domain.MappingKind) (domain.MappingSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// stored sets are never mutated, so handing out the map is safe for readers
	if m, ok := s.mappings[mappingKey(propertyID, kind)]; ok {
		return m, nil
	}
	return domain.MappingSet{}, nil
}

func (s *Store) PutMapping(_ context.Context, propertyID string, kind domain.MappingKind, set domain.MappingSet) error {
	cp := set.Clone()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings[mappingKey(propertyID, kind)] = cp
	return nil
}

/********** audit **********/

func (s *Store) Append(_ context.Context, e domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// ListAudit returns entries oldest first.
func (s *Store) ListAudit(_ context.Context, q domain.AuditQuery) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.AuditEntry{}
	for _, e := range s.audit {
		if q.PropertyID != "" && e.PropertyID != q.PropertyID {
			continue
		}
		if !q.Since.IsZero() && e.CreatedAt.Before(q.Since) {
			continue
		}
		if !q.Until.IsZero() && !e.CreatedAt.Before(q.Until) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

// AuditEntries returns every appended entry, for assertions.
func (s *Store) AuditEntries() []domain.AuditEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry(nil), s.audit...)
}
