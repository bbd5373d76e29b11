package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"hotel_sync/internal/domain"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

// Repo implements the property, reservation, mapping and audit ports on MySQL.
type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

type rowScanner interface {
	Scan(dest ...any) error
}

// UpsertProperty creates or updates a property's catalog fields. Credentials
// and the initial-sync flag have their own setters.
func (r *Repo) UpsertProperty(ctx context.Context, p domain.Property) error {
	if p.RoomTypes == nil {
		p.RoomTypes = []domain.RoomTypeInfo{}
	}
	rooms, err := json.Marshal(p.RoomTypes)
	if err != nil {
		return fmt.Errorf("encode room types: %w", err)
	}
	_, err = r.db.ExecContext(ctx, upsertPropertySQL,
		p.ID,
		p.Name,
		valStr(p.PMSPropertyID),
		valStr(p.ChannelPropertyID),
		valStr(p.CredentialsRef),
		string(rooms),
		p.Active,
	)
	return err
}

func scanProperty(s rowScanner) (domain.Property, error) {
	var (
		p                  domain.Property
		pmsID, cmID, creds sql.NullString
		rooms              []byte
	)
	err := s.Scan(&p.ID, &p.Name, &pmsID, &cmID, &creds, &rooms,
		&p.InitialSyncCompleted, &p.Active, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Property{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Property{}, err
	}
	p.PMSPropertyID, p.ChannelPropertyID, p.CredentialsRef = pmsID.String, cmID.String, creds.String
	if len(rooms) > 0 {
		if err := json.Unmarshal(rooms, &p.RoomTypes); err != nil {
			return domain.Property{}, fmt.Errorf("decode room types of %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func (r *Repo) GetByID(ctx context.Context, id string) (domain.Property, error) {
	return scanProperty(r.db.QueryRowContext(ctx, getPropertySQL, id))
}

func (r *Repo) GetByExternalID(ctx context.Context, channelPropertyID string) (domain.Property, error) {
	return scanProperty(r.db.QueryRowContext(ctx, getPropertyByChannelSQL, channelPropertyID))
}

func (r *Repo) ListActive(ctx context.Context) ([]domain.Property, error) {
	rows, err := r.db.QueryContext(ctx, listActivePropertiesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) SetCredentialsRef(ctx context.Context, id, ref string) error {
	return r.execOne(ctx, setCredentialsSQL, ref, id)
}

func (r *Repo) MarkInitialSynced(ctx context.Context, id string) error {
	return r.execOne(ctx, markInitialSyncedSQL, id)
}

// execOne runs an UPDATE by primary key and maps "no such row" to ErrNotFound.
// MySQL reports zero affected rows for a no-op update too, so a miss is
// confirmed with a lookup.
func (r *Repo) execOne(ctx context.Context, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}
	id := args[len(args)-1]
	var one int
	err = r.db.QueryRowContext(ctx, "SELECT 1 FROM properties WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

/********** mappings **********/

func (r *Repo) GetMapping(ctx context.Context, propertyID string, kind domain.MappingKind) (domain.MappingSet, error) {
	var doc []byte
	err := r.db.QueryRowContext(ctx, getMappingSQL, propertyID, string(kind)).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.MappingSet{}, nil
	}
	if err != nil {
		return nil, err
	}
	set := domain.MappingSet{}
	if err := json.Unmarshal(doc, &set); err != nil {
		return nil, fmt.Errorf("decode %s mapping of %s: %w", kind, propertyID, err)
	}
	return set, nil
}

// PutMapping writes the whole set as one row, so readers see old or new, never a mix.
func (r *Repo) PutMapping(ctx context.Context, propertyID string, kind domain.MappingKind, set domain.MappingSet) error {
	if set == nil {
		set = domain.MappingSet{}
	}
	doc, err := json.Marshal(set)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, upsertMappingSQL, propertyID, string(kind), string(doc))
	return err
}
