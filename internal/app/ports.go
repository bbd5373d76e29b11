package app

import (
	"context"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/domain"
)

// PMS is the subset of the property-management client the engine uses.
type PMS interface {
	RoomTypes(ctx context.Context, propertyID string) ([]pms.RoomType, error)
	RatePlans(ctx context.Context, propertyID string) ([]pms.RatePlan, error)
	Availability(ctx context.Context, propertyID string, from, to domain.Date) ([]pms.Availability, error)
	Rates(ctx context.Context, propertyID string, from, to domain.Date) ([]pms.Rate, error)
	Booking(ctx context.Context, propertyID, bookingID string) (pms.Booking, error)
	CreateBooking(ctx context.Context, propertyID string, in pms.BookingInput) (pms.Booking, error)
	UpdateBooking(ctx context.Context, propertyID, bookingID string, in pms.BookingInput) (pms.Booking, error)
	CancelBooking(ctx context.Context, propertyID, bookingID string) error
}

// Channel is the subset of the channel-manager client the engine uses.
type Channel interface {
	Rooms(ctx context.Context, propertyID string) ([]channel.Room, error)
	RatePlans(ctx context.Context, propertyID string) ([]channel.RatePlan, error)
	Reservation(ctx context.Context, reservationID string) (channel.Reservation, error)
	CreateReservation(ctx context.Context, propertyID string, r channel.Reservation) (channel.Reservation, error)
	UpdateReservation(ctx context.Context, reservationID string, r channel.Reservation) (channel.Reservation, error)
	CancelReservation(ctx context.Context, reservationID string) error
	UpdateAvailability(ctx context.Context, propertyID, roomID string, batch []channel.Availability) error
	UpdateRates(ctx context.Context, propertyID, roomID, ratePlanID string, batch []channel.Rate) error
}
