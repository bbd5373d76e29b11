package pms

// Wire types of the property-management API (snake_case JSON).

const (
	StatusConfirmed = "confirmed"
	StatusCanceled  = "canceled"
	StatusNoShow    = "no_show"
)

const (
	RateTypeStandard      = "standard"
	RateTypeNonRefundable = "non_refundable"
	RateTypePackage       = "package"

	ChargePerRoom   = "per_room"
	ChargePerPerson = "per_person"
)

type RoomType struct {
	ID           string   `json:"id" validate:"required"`
	Name         string   `json:"name"`
	Description  string   `json:"description,omitempty"`
	MaxOccupancy int      `json:"max_occupancy"`
	MaxAdults    int      `json:"max_adults"`
	MaxChildren  int      `json:"max_children"`
	DefaultRate  float64  `json:"default_rate"`
	ImageURL     string   `json:"image_url,omitempty"`
	Amenities    []string `json:"amenities,omitempty"`
	Status       string   `json:"status"`
}

type TaxOrFee struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Percentage float64 `json:"percentage"`
	IsTax      bool    `json:"is_tax"`
}

type RatePlan struct {
	ID                     string     `json:"id" validate:"required"`
	Name                   string     `json:"name"`
	Description            string     `json:"description,omitempty"`
	RoomTypeID             string     `json:"room_type_id"`
	IsShownInOnlineBooking bool       `json:"is_shown_in_online_booking"`
	ChargeType             string     `json:"charge_type"`
	RateType               string     `json:"rate_type"`
	BaseRate               float64    `json:"base_rate"`
	Currency               string     `json:"currency"`
	TaxesAndFees           []TaxOrFee `json:"taxes_and_fees,omitempty"`
}

type Availability struct {
	Date         string `json:"date" validate:"required"`
	RoomTypeID   string `json:"room_type_id" validate:"required"`
	Availability int    `json:"availability"`
	Status       string `json:"status"`
}

// Rate is one nightly price. RoomTypeID is optional on the wire; when absent
// the room type is taken from the rate plan.
type Rate struct {
	Date              string  `json:"date" validate:"required"`
	RatePlanID        string  `json:"rate_plan_id" validate:"required"`
	RoomTypeID        string  `json:"room_type_id,omitempty"`
	Rate              float64 `json:"rate"`
	Currency          string  `json:"currency"`
	MinLengthOfStay   *int    `json:"min_length_of_stay,omitempty"`
	MaxLengthOfStay   *int    `json:"max_length_of_stay,omitempty"`
	ClosedToArrival   *bool   `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture *bool   `json:"closed_to_departure,omitempty"`
}

type Guest struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
}

type Payment struct {
	TotalAmount   float64 `json:"total_amount"`
	Currency      string  `json:"currency"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	CardType      string  `json:"card_type,omitempty"`
	CardNumber    string  `json:"card_number,omitempty"`
	ExpiryDate    string  `json:"expiry_date,omitempty"`
}

type Booking struct {
	ID              string  `json:"id" validate:"required"`
	BookingNumber   string  `json:"booking_number,omitempty"`
	PropertyID      string  `json:"property_id"`
	RoomTypeID      string  `json:"room_type_id" validate:"required"`
	RatePlanID      string  `json:"rate_plan_id,omitempty"`
	CheckInDate     string  `json:"check_in_date" validate:"required"`
	CheckOutDate    string  `json:"check_out_date" validate:"required"`
	Guest           Guest   `json:"guest"`
	Adults          int     `json:"adults"`
	Children        int     `json:"children"`
	Status          string  `json:"status"`
	Payment         Payment `json:"payment"`
	SpecialRequests string  `json:"special_requests,omitempty"`
	CreatedAt       string  `json:"created_at,omitempty"`
	UpdatedAt       string  `json:"updated_at,omitempty"`
}

// BookingInput is the create/update payload; the PMS assigns id and number.
type BookingInput struct {
	PropertyID      string  `json:"property_id"`
	RoomTypeID      string  `json:"room_type_id"`
	RatePlanID      string  `json:"rate_plan_id,omitempty"`
	CheckInDate     string  `json:"check_in_date"`
	CheckOutDate    string  `json:"check_out_date"`
	Guest           Guest   `json:"guest"`
	Adults          int     `json:"adults"`
	Children        int     `json:"children"`
	Status          string  `json:"status"`
	Payment         Payment `json:"payment"`
	SpecialRequests string  `json:"special_requests,omitempty"`
}
