package channel

// Wire types of the channel-manager API (camelCase JSON).

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCancelled = "cancelled"
)

const (
	PriceModelPerRoom   = "per_room"
	PriceModelPerPerson = "per_person"
)

type DefaultPrice struct {
	Occupancy int     `json:"occupancy"`
	Price     float64 `json:"price"`
}

type Room struct {
	ID               string         `json:"id" validate:"required"`
	Name             string         `json:"name"`
	Description      string         `json:"description,omitempty"`
	BaseOccupancy    int            `json:"baseOccupancy"`
	MaxOccupancy     int            `json:"maxOccupancy"`
	MinNumAdults     int            `json:"minNumAdults"`
	MaxNumAdults     int            `json:"maxNumAdults"`
	DefaultAllotment int            `json:"defaultAllotment"`
	DefaultPrices    []DefaultPrice `json:"defaultPrices"`
	Active           bool           `json:"active"`
}

type Restrictions struct {
	MinStay           *int  `json:"minStay,omitempty"`
	MaxStay           *int  `json:"maxStay,omitempty"`
	ClosedToArrival   *bool `json:"closedToArrival,omitempty"`
	ClosedToDeparture *bool `json:"closedToDeparture,omitempty"`
}

// Empty reports whether no restriction is set.
func (r *Restrictions) Empty() bool {
	return r == nil || (r.MinStay == nil && r.MaxStay == nil && r.ClosedToArrival == nil && r.ClosedToDeparture == nil)
}

type RatePlan struct {
	ID              string        `json:"id" validate:"required"`
	Name            string        `json:"name"`
	Description     string        `json:"description,omitempty"`
	RoomID          string        `json:"roomId"`
	Active          bool          `json:"active"`
	IsPackage       bool          `json:"isPackage"`
	IsNonRefundable bool          `json:"isNonRefundable"`
	PriceModel      string        `json:"priceModel"`
	Restrictions    *Restrictions `json:"restrictions,omitempty"`
}

type Availability struct {
	Date      string `json:"date"`
	RoomID    string `json:"roomId"`
	Allotment int    `json:"allotment"`
	Status    string `json:"status"`
}

type Rate struct {
	Date         string        `json:"date"`
	RoomID       string        `json:"roomId"`
	RatePlanID   string        `json:"ratePlanId"`
	Price        float64       `json:"price"`
	Currency     string        `json:"currency"`
	Occupancy    int           `json:"occupancy,omitempty"`
	Restrictions *Restrictions `json:"restrictions,omitempty"`
}

type GuestDetails struct {
	Phone      string `json:"phone,omitempty"`
	Address    string `json:"address,omitempty"`
	City       string `json:"city,omitempty"`
	Country    string `json:"country,omitempty"`
	PostalCode string `json:"postalCode,omitempty"`
}

type PaymentDetails struct {
	Method     string `json:"method,omitempty"`
	CardType   string `json:"cardType,omitempty"`
	CardNumber string `json:"cardNumber,omitempty"`
	ExpiryDate string `json:"expiryDate,omitempty"`
}

type Reservation struct {
	ID                    string          `json:"id,omitempty"`
	PropertyID            string          `json:"propertyId"`
	RoomID                string          `json:"roomId" validate:"required"`
	RatePlanID            string          `json:"ratePlanId,omitempty"`
	CheckIn               string          `json:"checkIn" validate:"required"`
	CheckOut              string          `json:"checkOut" validate:"required"`
	GuestName             string          `json:"guestName"`
	GuestEmail            string          `json:"guestEmail"`
	Adults                int             `json:"adults"`
	Children              int             `json:"children,omitempty"`
	TotalPrice            float64         `json:"totalPrice"`
	Currency              string          `json:"currency"`
	Status                string          `json:"status,omitempty"`
	ExternalReservationID string          `json:"externalReservationId,omitempty"`
	Source                string          `json:"source,omitempty"`
	SpecialRequests       string          `json:"specialRequests,omitempty"`
	GuestDetails          *GuestDetails   `json:"guestDetails,omitempty"`
	PaymentDetails        *PaymentDetails `json:"paymentDetails,omitempty"`
}
