package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"hotel_sync/internal/domain"
)

func (r *Repo) Create(ctx context.Context, res domain.Reservation) error {
	_, err := r.db.ExecContext(ctx, insertReservationSQL,
		res.ID,
		res.PropertyID,
		res.RoomTypeID,
		valStr(res.RatePlanID),
		res.GuestName,
		res.GuestEmail,
		res.CheckIn.String(),
		res.CheckOut.String(),
		res.Adults,
		res.Children,
		res.TotalPrice,
		res.Currency,
		string(res.Status),
		res.Source,
		valStr(res.PMSBookingID), // NULL keeps the unique index happy for channel-only rows
		valStr(res.ChannelReservationID),
		res.CreatedAt,
		res.UpdatedAt,
	)
	return err
}

func scanReservation(s rowScanner) (domain.Reservation, error) {
	var (
		res               domain.Reservation
		plan, pmsID, cmID sql.NullString
		checkIn, checkOut time.Time
		status            string
	)
	err := s.Scan(&res.ID, &res.PropertyID, &res.RoomTypeID, &plan, &res.GuestName, &res.GuestEmail,
		&checkIn, &checkOut, &res.Adults, &res.Children, &res.TotalPrice, &res.Currency, &status, &res.Source,
		&pmsID, &cmID, &res.CreatedAt, &res.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Reservation{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Reservation{}, err
	}
	res.RatePlanID, res.PMSBookingID, res.ChannelReservationID = plan.String, pmsID.String, cmID.String
	res.CheckIn, res.CheckOut = domain.DateOf(checkIn), domain.DateOf(checkOut)
	res.Status = domain.ReservationStatus(status)
	return res, nil
}

func (r *Repo) Get(ctx context.Context, id string) (domain.Reservation, error) {
	return scanReservation(r.db.QueryRowContext(ctx, getReservationSQL, id))
}

func (r *Repo) FindByExternalID(ctx context.Context, system domain.System, externalID string) (domain.Reservation, error) {
	var q string
	switch system {
	case domain.SystemPMS:
		q = findByPMSBookingSQL
	case domain.SystemChannel:
		q = findByChannelReservationSQL
	default:
		return domain.Reservation{}, fmt.Errorf("unknown system %q", system)
	}
	return scanReservation(r.db.QueryRowContext(ctx, q, externalID))
}

func (r *Repo) UpdateStatus(ctx context.Context, id string, status domain.ReservationStatus) error {
	res, err := r.db.ExecContext(ctx, updateReservationStatusSQL, string(status), id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		if _, err := r.Get(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repo) ListByProperty(ctx context.Context, propertyID string, limit int) ([]domain.Reservation, error) {
	rows, err := r.db.QueryContext(ctx, listReservationsSQL, propertyID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []domain.Reservation{}
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
