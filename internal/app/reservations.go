package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/domain"
)

// RetryPolicy bounds the local persist of a reservation after the destination
// system accepted it. It is the only retry in the engine.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

var DefaultRetryPolicy = RetryPolicy{Attempts: 2, Backoff: 50 * time.Millisecond}

// Persist creates r. Before each retry it looks r up by the destination id so
// a write that committed but reported an error is not duplicated.
func (p RetryPolicy) Persist(ctx context.Context, repo domain.ReservationRepository, r domain.Reservation, dest domain.System) (domain.Reservation, error) {
	extID := r.ExternalID(dest)
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if existing, err := repo.FindByExternalID(ctx, dest, extID); err == nil {
				return existing, nil
			}
			if p.Backoff > 0 {
				select {
				case <-ctx.Done():
					return domain.Reservation{}, domain.ConsistencyRisk(ctx.Err(), "reservation linkage not persisted (pms booking %q, channel reservation %q)", r.PMSBookingID, r.ChannelReservationID)
				case <-time.After(p.Backoff):
				}
			}
		}
		if last = repo.Create(ctx, r); last == nil {
			return r, nil
		}
		log.Warn().Err(last).Int("attempt", i+1).Str("property", r.PropertyID).Str("external_id", extID).Msg("reservation persist failed")
	}
	return domain.Reservation{}, domain.ConsistencyRisk(last, "reservation linkage not persisted after %d attempts (pms booking %q, channel reservation %q)",
		attempts, r.PMSBookingID, r.ChannelReservationID)
}

// existing returns the local row for an external id, if any.
func (e *Engine) existing(ctx context.Context, sys domain.System, id string) (domain.Reservation, bool, error) {
	r, err := e.res.FindByExternalID(ctx, sys, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return domain.Reservation{}, false, nil
	case err != nil:
		return domain.Reservation{}, false, fmt.Errorf("find reservation by %s id %s: %w", sys, id, err)
	}
	return r, true, nil
}

// halfLinked is the error for a row that is missing its other side for no
// known reason. Nothing is written upstream in that case.
func halfLinked(r domain.Reservation) error {
	return domain.ConsistencyRisk(nil, "reservation %s is linked on one side only (pms booking %q, channel reservation %q)",
		r.ID, r.PMSBookingID, r.ChannelReservationID)
}

/********** PMS -> channel **********/

// PushBooking copies a PMS booking to the channel manager and stores the link.
func (e *Engine) PushBooking(ctx context.Context, propertyID, pmsBookingID string) (Result, error) {
	return e.run(ctx, "push_booking", propertyID, func(ctx context.Context) (string, any, error) {
		p, err := e.property(ctx, propertyID)
		if err != nil {
			return "", nil, err
		}
		if pmsBookingID == "" {
			return "", nil, domain.Validation("booking id is required")
		}
		if r, found, err := e.existing(ctx, domain.SystemPMS, pmsBookingID); err != nil {
			return "", nil, err
		} else if found {
			if !r.Linked() {
				return "", nil, halfLinked(r)
			}
			return "booking already synchronized", r, nil
		}

		b, err := audited(ctx, e.audit, call{p.ID, pms.Service, http.MethodGet, pms.BookingPath(p.PMSPropertyID, pmsBookingID), nil},
			func(ctx context.Context) (pms.Booking, error) {
				return e.pms.Booking(ctx, p.PMSPropertyID, pmsBookingID)
			})
		if err != nil {
			return "", nil, err
		}

		ids, err := e.maps.Snapshot(ctx, p, domain.PMSToChannel)
		if err != nil {
			return "", nil, err
		}
		cr, err := PMSBookingToChannelReservation(ids, b)
		if err != nil {
			return "", nil, err
		}

		created, err := audited(ctx, e.audit, call{p.ID, channel.Service, http.MethodPost, channel.ReservationsPath(p.ChannelPropertyID), cr},
			func(ctx context.Context) (channel.Reservation, error) {
				return e.cm.CreateReservation(ctx, p.ChannelPropertyID, cr)
			})
		if err != nil {
			return "", nil, err
		}
		if created.ID == "" {
			return "", nil, domain.ConsistencyRisk(nil, "channel manager accepted pms booking %q without returning a reservation id", b.ID)
		}

		now := e.now().UTC()
		row := domain.Reservation{
			ID:                   e.newID(),
			PropertyID:           p.ID,
			RoomTypeID:           b.RoomTypeID,
			RatePlanID:           b.RatePlanID,
			GuestName:            cr.GuestName,
			GuestEmail:           cr.GuestEmail,
			CheckIn:              domain.Date(b.CheckInDate),
			CheckOut:             domain.Date(b.CheckOutDate),
			Adults:               b.Adults,
			Children:             b.Children,
			TotalPrice:           b.Payment.TotalAmount,
			Currency:             b.Payment.Currency,
			Status:               reservationStatus(cr.Status),
			Source:               string(domain.SystemPMS),
			PMSBookingID:         b.ID,
			ChannelReservationID: created.ID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		saved, err := e.retry.Persist(ctx, e.res, row, domain.SystemChannel)
		if err != nil {
			return "", nil, err
		}
		return "booking pushed to channel manager", saved, nil
	})
}

/********** channel -> PMS **********/

// ImportReservation creates a PMS booking for a channel reservation and stores the link.
func (e *Engine) ImportReservation(ctx context.Context, channelPropertyID, channelReservationID string) (Result, error) {
	start := time.Now()
	owner, err := e.props.GetByExternalID(ctx, channelPropertyID)
	if err != nil {
		err = propertyErr(channelPropertyID, err)
		e.finish("import_reservation", channelPropertyID, start, err)
		return failed(err), err
	}
	return e.run(ctx, "import_reservation", owner.ID, func(ctx context.Context) (string, any, error) {
		p, err := e.property(ctx, owner.ID)
		if err != nil {
			return "", nil, err
		}
		if channelReservationID == "" {
			return "", nil, domain.Validation("reservation id is required")
		}
		if r, found, err := e.existing(ctx, domain.SystemChannel, channelReservationID); err != nil {
			return "", nil, err
		} else if found {
			switch {
			case r.Linked():
				return "reservation already synchronized", r, nil
			case r.PMSBookingID == "" && e.channelOnly[r.Source]:
				return "channel-only reservation, not imported into pms", r, nil
			}
			return "", nil, halfLinked(r)
		}

		cres, err := audited(ctx, e.audit, call{p.ID, channel.Service, http.MethodGet, channel.ReservationPath(channelReservationID), nil},
			func(ctx context.Context) (channel.Reservation, error) {
				return e.cm.Reservation(ctx, channelReservationID)
			})
		if err != nil {
			return "", nil, err
		}
		if cres.PropertyID != "" && cres.PropertyID != p.ChannelPropertyID {
			return "", nil, domain.Validation("reservation %s belongs to channel property %s, not %s", channelReservationID, cres.PropertyID, p.ChannelPropertyID)
		}

		ids, err := e.maps.Snapshot(ctx, p, domain.ChannelToPMS)
		if err != nil {
			return "", nil, err
		}
		in, err := ChannelReservationToPMSBooking(ids, cres)
		if err != nil {
			return "", nil, err
		}

		if e.channelOnly[cres.Source] {
			cres.ID = channelReservationID
			row := channelRow(p.ID, in, cres, e.newID(), e.now().UTC())
			saved, err := e.retry.Persist(ctx, e.res, row, domain.SystemChannel)
			if err != nil {
				return "", nil, err
			}
			return "channel-only reservation recorded", saved, nil
		}

		b, err := audited(ctx, e.audit, call{p.ID, pms.Service, http.MethodPost, pms.BookingsPath(p.PMSPropertyID), in},
			func(ctx context.Context) (pms.Booking, error) {
				return e.pms.CreateBooking(ctx, p.PMSPropertyID, in)
			})
		if err != nil {
			return "", nil, err
		}
		if b.ID == "" {
			return "", nil, domain.ConsistencyRisk(nil, "pms accepted channel reservation %q without returning a booking id", channelReservationID)
		}

		status := domain.StatusConfirmed
		if in.Status == pms.StatusCanceled {
			status = domain.StatusCancelled
		}
		source := cres.Source
		if source == "" {
			source = string(domain.SystemChannel)
		}
		now := e.now().UTC()
		row := domain.Reservation{
			ID:                   e.newID(),
			PropertyID:           p.ID,
			RoomTypeID:           in.RoomTypeID,
			RatePlanID:           in.RatePlanID,
			GuestName:            cres.GuestName,
			GuestEmail:           cres.GuestEmail,
			CheckIn:              domain.Date(cres.CheckIn),
			CheckOut:             domain.Date(cres.CheckOut),
			Adults:               cres.Adults,
			Children:             cres.Children,
			TotalPrice:           cres.TotalPrice,
			Currency:             cres.Currency,
			Status:               status,
			Source:               source,
			PMSBookingID:         b.ID,
			ChannelReservationID: channelReservationID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		saved, err := e.retry.Persist(ctx, e.res, row, domain.SystemPMS)
		if err != nil {
			return "", nil, err
		}
		return "reservation imported into pms", saved, nil
	})
}

// channelRow records a reservation that exists only on the channel manager.
func channelRow(propertyID string, in pms.BookingInput, cres channel.Reservation, id string, now time.Time) domain.Reservation {
	return domain.Reservation{
		ID:                   id,
		PropertyID:           propertyID,
		RoomTypeID:           in.RoomTypeID,
		RatePlanID:           in.RatePlanID,
		GuestName:            cres.GuestName,
		GuestEmail:           cres.GuestEmail,
		CheckIn:              domain.Date(cres.CheckIn),
		CheckOut:             domain.Date(cres.CheckOut),
		Adults:               cres.Adults,
		Children:             cres.Children,
		TotalPrice:           cres.TotalPrice,
		Currency:             cres.Currency,
		Status:               reservationStatus(cres.Status),
		Source:               cres.Source,
		ChannelReservationID: cres.ID,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

/********** channel-only bookings **********/

// SubmitReservation creates an API-originated booking on the channel manager
// only. The source must be configured as channel-only.
func (e *Engine) SubmitReservation(ctx context.Context, propertyID string, req BookingRequest) (Result, error) {
	return e.run(ctx, "submit_reservation", propertyID, func(ctx context.Context) (string, any, error) {
		if err := checkRequired("booking request", req); err != nil {
			return "", nil, err
		}
		if !e.channelOnly[req.Source] {
			return "", nil, domain.Validation("source %q is not configured as a channel-only source", req.Source)
		}
		p, err := e.property(ctx, propertyID)
		if err != nil {
			return "", nil, err
		}
		ids, err := e.maps.Snapshot(ctx, p, domain.PMSToChannel)
		if err != nil {
			return "", nil, err
		}
		cr, err := BookingRequestToChannelReservation(ids, req)
		if err != nil {
			return "", nil, err
		}

		created, err := audited(ctx, e.audit, call{p.ID, channel.Service, http.MethodPost, channel.ReservationsPath(p.ChannelPropertyID), cr},
			func(ctx context.Context) (channel.Reservation, error) {
				return e.cm.CreateReservation(ctx, p.ChannelPropertyID, cr)
			})
		if err != nil {
			return "", nil, err
		}
		if created.ID == "" {
			return "", nil, domain.ConsistencyRisk(nil, "channel manager accepted a %s booking without returning a reservation id", req.Source)
		}

		now := e.now().UTC()
		row := domain.Reservation{
			ID:                   e.newID(),
			PropertyID:           p.ID,
			RoomTypeID:           req.RoomTypeID,
			RatePlanID:           req.RatePlanID,
			GuestName:            req.GuestName,
			GuestEmail:           req.GuestEmail,
			CheckIn:              domain.Date(req.CheckIn),
			CheckOut:             domain.Date(req.CheckOut),
			Adults:               req.Adults,
			Children:             req.Children,
			TotalPrice:           req.TotalPrice,
			Currency:             req.Currency,
			Status:               reservationStatus(created.Status),
			Source:               req.Source,
			ChannelReservationID: created.ID,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		saved, err := e.retry.Persist(ctx, e.res, row, domain.SystemChannel)
		if err != nil {
			return "", nil, err
		}
		return "reservation created on channel manager", saved, nil
	})
}

/********** cancellation **********/

// CancelReservation cancels every linked side, then marks the row cancelled.
// A failure on either side leaves the local status unchanged; a retry skips
// the channel DELETE when the channel already reports the reservation cancelled.
func (e *Engine) CancelReservation(ctx context.Context, reservationID string) (Result, error) {
	start := time.Now()
	r, err := e.res.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.NotFound("reservation %s not found", reservationID)
		}
		e.finish("cancel_reservation", "", start, err)
		return failed(err), err
	}
	return e.run(ctx, "cancel_reservation", r.PropertyID, func(ctx context.Context) (string, any, error) {
		// re-read under the lock
		r, err := e.res.Get(ctx, reservationID)
		if err != nil {
			return "", nil, fmt.Errorf("reload reservation %s: %w", reservationID, err)
		}
		if !r.CanTransition(domain.StatusCancelled) {
			return "", nil, domain.Validation("reservation %s is %s and cannot be cancelled", r.ID, r.Status)
		}
		p, err := e.property(ctx, r.PropertyID)
		if err != nil {
			return "", nil, err
		}
		if r.ChannelReservationID != "" {
			// a previous attempt may have cancelled the channel side already
			cur, err := audited(ctx, e.audit, call{p.ID, channel.Service, http.MethodGet, channel.ReservationPath(r.ChannelReservationID), nil},
				func(ctx context.Context) (channel.Reservation, error) { return e.cm.Reservation(ctx, r.ChannelReservationID) })
			if err != nil {
				return "", nil, err
			}
			if cur.Status != channel.StatusCancelled {
				err = auditedDo(ctx, e.audit, call{p.ID, channel.Service, http.MethodDelete, channel.ReservationPath(r.ChannelReservationID), nil},
					func(ctx context.Context) error { return e.cm.CancelReservation(ctx, r.ChannelReservationID) })
				if err != nil {
					return "", nil, err
				}
			}
		}
		if r.PMSBookingID != "" {
			err := auditedDo(ctx, e.audit, call{p.ID, pms.Service, http.MethodDelete, pms.BookingPath(p.PMSPropertyID, r.PMSBookingID), nil},
				func(ctx context.Context) error { return e.pms.CancelBooking(ctx, p.PMSPropertyID, r.PMSBookingID) })
			if err != nil {
				if r.ChannelReservationID != "" {
					return "", nil, domain.ConsistencyRisk(err, "reservation %s cancelled on channel manager but not in pms", r.ID)
				}
				return "", nil, err
			}
		}
		if err := e.res.UpdateStatus(ctx, r.ID, domain.StatusCancelled); err != nil {
			return "", nil, domain.ConsistencyRisk(err, "reservation %s cancelled upstream but local status not updated", r.ID)
		}
		r.Status = domain.StatusCancelled
		return "reservation cancelled", r, nil
	})
}

/********** confirmation **********/

// ConfirmReservation moves a pending reservation to confirmed on every linked
// side, channel manager first. Stay dates are sent as stored; an upstream that
// answers with different dates is a consistency risk because dates are fixed
// once confirmed.
func (e *Engine) ConfirmReservation(ctx context.Context, reservationID string) (Result, error) {
	start := time.Now()
	r, err := e.res.Get(ctx, reservationID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			err = domain.NotFound("reservation %s not found", reservationID)
		}
		e.finish("confirm_reservation", "", start, err)
		return failed(err), err
	}
	return e.run(ctx, "confirm_reservation", r.PropertyID, func(ctx context.Context) (string, any, error) {
		r, err := e.res.Get(ctx, reservationID)
		if err != nil {
			return "", nil, fmt.Errorf("reload reservation %s: %w", reservationID, err)
		}
		if !r.CanTransition(domain.StatusConfirmed) {
			return "", nil, domain.Validation("reservation %s is %s and cannot be confirmed", r.ID, r.Status)
		}
		p, err := e.property(ctx, r.PropertyID)
		if err != nil {
			return "", nil, err
		}

		if r.ChannelReservationID != "" {
			ids, err := e.maps.Snapshot(ctx, p, domain.PMSToChannel)
			if err != nil {
				return "", nil, err
			}
			cr := ReservationToChannel(ids, r, channel.StatusConfirmed)
			got, err := audited(ctx, e.audit, call{p.ID, channel.Service, http.MethodPut, channel.ReservationPath(r.ChannelReservationID), cr},
				func(ctx context.Context) (channel.Reservation, error) {
					return e.cm.UpdateReservation(ctx, r.ChannelReservationID, cr)
				})
			if err != nil {
				return "", nil, err
			}
			if !sameStay(r, got.CheckIn, got.CheckOut) {
				return "", nil, domain.ConsistencyRisk(nil, "channel manager changed stay dates of reservation %s to %s..%s", r.ID, got.CheckIn, got.CheckOut)
			}
		}
		if r.PMSBookingID != "" {
			in := ReservationToPMSBooking(p.PMSPropertyID, r, pms.StatusConfirmed)
			got, err := audited(ctx, e.audit, call{p.ID, pms.Service, http.MethodPut, pms.BookingPath(p.PMSPropertyID, r.PMSBookingID), in},
				func(ctx context.Context) (pms.Booking, error) {
					return e.pms.UpdateBooking(ctx, p.PMSPropertyID, r.PMSBookingID, in)
				})
			if err != nil {
				if r.ChannelReservationID != "" {
					return "", nil, domain.ConsistencyRisk(err, "reservation %s confirmed on channel manager but not in pms", r.ID)
				}
				return "", nil, err
			}
			if !sameStay(r, got.CheckInDate, got.CheckOutDate) {
				return "", nil, domain.ConsistencyRisk(nil, "pms changed stay dates of reservation %s to %s..%s", r.ID, got.CheckInDate, got.CheckOutDate)
			}
		}

		if err := e.res.UpdateStatus(ctx, r.ID, domain.StatusConfirmed); err != nil {
			return "", nil, domain.ConsistencyRisk(err, "reservation %s confirmed upstream but local status not updated", r.ID)
		}
		r.Status = domain.StatusConfirmed
		return "reservation confirmed", r, nil
	})
}

// sameStay reports whether an upstream echo kept r's dates. Empty echoes
// carry no dates and pass.
func sameStay(r domain.Reservation, checkIn, checkOut string) bool {
	if checkIn == "" && checkOut == "" {
		return true
	}
	return checkIn == r.CheckIn.String() && checkOut == r.CheckOut.String()
}

/********** reads **********/

func (e *Engine) Reservation(ctx context.Context, id string) (domain.Reservation, error) {
	r, err := e.res.Get(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Reservation{}, domain.NotFound("reservation %s not found", id)
	}
	return r, err
}

func (e *Engine) Reservations(ctx context.Context, propertyID string, limit int) ([]domain.Reservation, error) {
	if _, err := e.props.GetByID(ctx, propertyID); err != nil {
		return nil, propertyErr(propertyID, err)
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return e.res.ListByProperty(ctx, propertyID, limit)
}
