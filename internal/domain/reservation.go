package domain

import "time"

type ReservationStatus string

const (
	StatusPending   ReservationStatus = "pending"
	StatusConfirmed ReservationStatus = "confirmed"
	StatusCancelled ReservationStatus = "cancelled"
)

type System string

const (
	SystemPMS     System = "pms"
	SystemChannel System = "channel"
)

// Reservation is the canonical booking row linking both systems' ids.
type Reservation struct {
	ID                   string            `json:"id"`
	PropertyID           string            `json:"propertyId"`
	RoomTypeID           string            `json:"roomTypeId"`
	RatePlanID           string            `json:"ratePlanId,omitempty"`
	GuestName            string            `json:"guestName"`
	GuestEmail           string            `json:"guestEmail"`
	CheckIn              Date              `json:"checkInDate"`
	CheckOut             Date              `json:"checkOutDate"`
	Adults               int               `json:"adults"`
	Children             int               `json:"children"`
	TotalPrice           float64           `json:"totalPrice"`
	Currency             string            `json:"currency"`
	Status               ReservationStatus `json:"status"`
	Source               string            `json:"source"`
	PMSBookingID         string            `json:"pmsBookingId,omitempty"`
	ChannelReservationID string            `json:"channelReservationId,omitempty"`
	CreatedAt            time.Time         `json:"createdAt"`
	UpdatedAt            time.Time         `json:"updatedAt"`
}

// ExternalID returns the reservation's id in the given system.
func (r Reservation) ExternalID(s System) string {
	if s == SystemPMS {
		return r.PMSBookingID
	}
	return r.ChannelReservationID
}

// Linked reports whether the reservation carries ids on both systems.
func (r Reservation) Linked() bool {
	return r.PMSBookingID != "" && r.ChannelReservationID != ""
}

// CanTransition reports whether the lifecycle allows moving to next.
// Cancelled is terminal.
func (r Reservation) CanTransition(next ReservationStatus) bool {
	switch r.Status {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusCancelled
	}
	return false
}
