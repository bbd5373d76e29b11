package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_sync/internal/domain"
)

// MappingStore persists and resolves cross-system id mappings per property.
// Sets are stored as whole documents, so a replace is atomic for readers.
//
// Each key carries a generation bumped by SetMapping. A read-through that
// started before a replace never writes its result back to the cache.
// Replaces made by another process are only bounded by the cache TTL.
type MappingStore struct {
	props domain.PropertyRepository
	repo  domain.MappingRepository
	cache domain.Cache
	ttl   time.Duration

	mu  sync.Mutex // guards gen and orders cache fills against invalidation
	gen map[string]uint64
}

// NewMappingStore wires the store. cache may be nil.
func NewMappingStore(props domain.PropertyRepository, repo domain.MappingRepository, cache domain.Cache, ttl time.Duration) *MappingStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MappingStore{props: props, repo: repo, cache: cache, ttl: ttl, gen: map[string]uint64{}}
}

func mappingKey(propertyID string, kind domain.MappingKind) string {
	return fmt.Sprintf("mapping:%s:%s", propertyID, kind)
}

// Resolve maps sourceID across systems. A missing mapping returns sourceID unchanged.
func (s *MappingStore) Resolve(ctx context.Context, dir domain.Direction, propertyID string, kind domain.MappingKind, sourceID string) (string, error) {
	set, err := s.load(ctx, propertyID, kind)
	if err != nil {
		return "", err
	}
	if dir == domain.ChannelToPMS {
		set = set.Invert()
	}
	return set.Lookup(sourceID), nil
}

// SetMapping replaces the whole set for (propertyID, kind).
func (s *MappingStore) SetMapping(ctx context.Context, propertyID string, kind domain.MappingKind, m map[string]string) error {
	if !kind.Valid() {
		return domain.Validation("unknown mapping kind %q", kind)
	}
	for k, v := range m {
		if k == "" || v == "" {
			return domain.Validation("%s mapping: empty id in pair %q -> %q", kind, k, v)
		}
	}
	if _, err := s.props.GetByID(ctx, propertyID); err != nil {
		return propertyErr(propertyID, err)
	}
	if err := s.repo.PutMapping(ctx, propertyID, kind, domain.MappingSet(m).Clone()); err != nil {
		return fmt.Errorf("put %s mapping for %s: %w", kind, propertyID, err)
	}
	if s.cache != nil {
		key := mappingKey(propertyID, kind)
		s.mu.Lock()
		s.gen[key]++
		err := s.cache.Del(ctx, key)
		s.mu.Unlock()
		if err != nil {
			log.Warn().Err(err).Str("property", propertyID).Str("kind", string(kind)).Msg("mapping cache invalidation failed")
		}
	}
	return nil
}

// Mapping returns a copy of the current set; never nil.
func (s *MappingStore) Mapping(ctx context.Context, propertyID string, kind domain.MappingKind) (domain.MappingSet, error) {
	if !kind.Valid() {
		return nil, domain.Validation("unknown mapping kind %q", kind)
	}
	set, err := s.load(ctx, propertyID, kind)
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// Snapshot loads both sets for p and orients them for dir.
func (s *MappingStore) Snapshot(ctx context.Context, p domain.Property, dir domain.Direction) (IDMapper, error) {
	rooms, err := s.load(ctx, p.ID, domain.KindRoomType)
	if err != nil {
		return IDMapper{}, err
	}
	plans, err := s.load(ctx, p.ID, domain.KindRatePlan)
	if err != nil {
		return IDMapper{}, err
	}
	dest := p.ChannelPropertyID
	if dir == domain.ChannelToPMS {
		dest = p.PMSPropertyID
	}
	return NewIDMapper(dir, dest, rooms, plans), nil
}

// load reads through the cache; cache failures fall back to the repository.
func (s *MappingStore) load(ctx context.Context, propertyID string, kind domain.MappingKind) (domain.MappingSet, error) {
	key := mappingKey(propertyID, kind)
	if s.cache != nil {
		var cached domain.MappingSet
		ok, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			log.Debug().Err(err).Str("key", key).Msg("mapping cache read failed")
		} else if ok {
			return cached, nil
		}
	}
	s.mu.Lock()
	gen := s.gen[key]
	s.mu.Unlock()

	set, err := s.repo.GetMapping(ctx, propertyID, kind)
	if err != nil {
		return nil, fmt.Errorf("get %s mapping for %s: %w", kind, propertyID, err)
	}
	if s.cache != nil {
		s.fill(ctx, key, gen, set)
	}
	return set, nil
}

// fill caches set unless the key was replaced after gen was read.
func (s *MappingStore) fill(ctx context.Context, key string, gen uint64, set domain.MappingSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen[key] != gen {
		log.Debug().Str("key", key).Msg("mapping replaced during read, not caching")
		return
	}
	if err := s.cache.Set(ctx, key, set, s.ttl); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("mapping cache write failed")
	}
}

// propertyErr classifies a repository lookup failure.
func propertyErr(id string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return domain.NotFound("property %s not found", id)
	}
	return fmt.Errorf("load property %s: %w", id, err)
}
