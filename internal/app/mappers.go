package app

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"hotel_sync/internal/adapters/channel"
	"hotel_sync/internal/adapters/pms"
	"hotel_sync/internal/domain"
)

/********** required-field validation **********/

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report wire names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// checkRequired turns struct-tag failures into a ValidationError naming every field.
func checkRequired(what string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return domain.Validation("%s: %v", what, err)
	}
	names := make([]string, 0, len(ve))
	for _, fe := range ve {
		if fe.Tag() == "required" {
			names = append(names, fe.Field())
			continue
		}
		names = append(names, fe.Field()+" ("+fe.Tag()+")")
	}
	return domain.Validation("%s: invalid or missing field(s): %s", what, strings.Join(names, ", "))
}

func checkDates(what string, ds ...string) error {
	for _, d := range ds {
		if _, err := domain.ParseDate(d); err != nil {
			return domain.Validation("%s: invalid date %q: expected YYYY-MM-DD", what, d)
		}
	}
	return nil
}

/********** id resolution **********/

// IDMapper resolves ids for one property in one direction. PropertyID is the
// destination system's property id.
type IDMapper struct {
	Direction  domain.Direction
	PropertyID string
	rooms      domain.MappingSet
	plans      domain.MappingSet
}

// NewIDMapper orients the stored PMS->channel sets for dir.
func NewIDMapper(dir domain.Direction, propertyID string, rooms, plans domain.MappingSet) IDMapper {
	if dir == domain.ChannelToPMS {
		rooms, plans = rooms.Invert(), plans.Invert()
	}
	return IDMapper{Direction: dir, PropertyID: propertyID, rooms: rooms, plans: plans}
}

func (m IDMapper) Room(id string) string { return m.rooms.Lookup(id) }

func (m IDMapper) RatePlan(id string) string {
	if id == "" {
		return ""
	}
	return m.plans.Lookup(id)
}

/********** PMS -> channel **********/

func RoomToChannelRoom(ids IDMapper, r pms.RoomType) (channel.Room, error) {
	if err := checkRequired("room type", r); err != nil {
		return channel.Room{}, err
	}
	return channel.Room{
		ID:               ids.Room(r.ID),
		Name:             r.Name,
		Description:      r.Description,
		BaseOccupancy:    2,
		MaxOccupancy:     r.MaxOccupancy,
		MinNumAdults:     1,
		MaxNumAdults:     r.MaxAdults,
		DefaultAllotment: 1,
		// the PMS exposes a single rate per room type
		DefaultPrices: []channel.DefaultPrice{
			{Occupancy: 1, Price: r.DefaultRate},
			{Occupancy: 2, Price: r.DefaultRate},
		},
		Active: r.Status == "active",
	}, nil
}

func RatePlanToChannelRatePlan(ids IDMapper, p pms.RatePlan) (channel.RatePlan, error) {
	if err := checkRequired("rate plan", p); err != nil {
		return channel.RatePlan{}, err
	}
	model := channel.PriceModelPerPerson
	if p.ChargeType == pms.ChargePerRoom {
		model = channel.PriceModelPerRoom
	}
	out := channel.RatePlan{
		ID:              ids.RatePlan(p.ID),
		Name:            p.Name,
		Description:     p.Description,
		Active:          p.IsShownInOnlineBooking,
		IsPackage:       p.RateType == pms.RateTypePackage,
		IsNonRefundable: p.RateType == pms.RateTypeNonRefundable,
		PriceModel:      model,
	}
	if p.RoomTypeID != "" {
		out.RoomID = ids.Room(p.RoomTypeID)
	}
	return out, nil
}

func AvailabilityToChannel(ids IDMapper, a pms.Availability) (channel.Availability, error) {
	if err := checkRequired("availability", a); err != nil {
		return channel.Availability{}, err
	}
	if err := checkDates("availability", a.Date); err != nil {
		return channel.Availability{}, err
	}
	status := a.Status
	if status == "" {
		status = "available"
		if a.Availability <= 0 {
			status = "unavailable"
		}
	}
	return channel.Availability{
		Date:      a.Date,
		RoomID:    ids.Room(a.RoomTypeID),
		Allotment: a.Availability,
		Status:    status,
	}, nil
}

// RateToChannel translates one nightly rate. roomTypeID is the PMS room type
// the rate belongs to; callers resolve it from the rate plan when the rate
// record does not carry it.
func RateToChannel(ids IDMapper, r pms.Rate, roomTypeID string) (channel.Rate, error) {
	if err := checkRequired("rate", r); err != nil {
		return channel.Rate{}, err
	}
	if roomTypeID == "" {
		return channel.Rate{}, domain.Validation("rate: no room type for rate plan %q on %s", r.RatePlanID, r.Date)
	}
	if err := checkDates("rate", r.Date); err != nil {
		return channel.Rate{}, err
	}
	out := channel.Rate{
		Date:       r.Date,
		RoomID:     ids.Room(roomTypeID),
		RatePlanID: ids.RatePlan(r.RatePlanID),
		Price:      r.Rate,
		Currency:   r.Currency,
	}
	rs := &channel.Restrictions{
		MinStay:           r.MinLengthOfStay,
		MaxStay:           r.MaxLengthOfStay,
		ClosedToArrival:   r.ClosedToArrival,
		ClosedToDeparture: r.ClosedToDeparture,
	}
	if !rs.Empty() {
		out.Restrictions = rs
	}
	return out, nil
}

func PMSBookingToChannelReservation(ids IDMapper, b pms.Booking) (channel.Reservation, error) {
	if err := checkRequired("booking", b); err != nil {
		return channel.Reservation{}, err
	}
	if err := checkDates("booking", b.CheckInDate, b.CheckOutDate); err != nil {
		return channel.Reservation{}, err
	}
	out := channel.Reservation{
		PropertyID:            ids.PropertyID,
		RoomID:                ids.Room(b.RoomTypeID),
		RatePlanID:            ids.RatePlan(b.RatePlanID),
		CheckIn:               b.CheckInDate,
		CheckOut:              b.CheckOutDate,
		GuestName:             b.Guest.FirstName + " " + b.Guest.LastName,
		GuestEmail:            b.Guest.Email,
		Adults:                b.Adults,
		Children:              b.Children,
		TotalPrice:            b.Payment.TotalAmount,
		Currency:              b.Payment.Currency,
		Status:                channelStatus(b.Status),
		ExternalReservationID: b.ID,
		SpecialRequests:       b.SpecialRequests,
	}
	gd := channel.GuestDetails{
		Phone:      b.Guest.Phone,
		Address:    b.Guest.Address,
		City:       b.Guest.City,
		Country:    b.Guest.Country,
		PostalCode: b.Guest.PostalCode,
	}
	if gd != (channel.GuestDetails{}) {
		out.GuestDetails = &gd
	}
	pd := channel.PaymentDetails{
		Method:     b.Payment.PaymentMethod,
		CardType:   b.Payment.CardType,
		CardNumber: b.Payment.CardNumber,
		ExpiryDate: b.Payment.ExpiryDate,
	}
	if pd != (channel.PaymentDetails{}) {
		out.PaymentDetails = &pd
	}
	return out, nil
}

// no_show maps to pending, not cancelled.
func channelStatus(s string) string {
	switch s {
	case pms.StatusCanceled:
		return channel.StatusCancelled
	case pms.StatusNoShow:
		return channel.StatusPending
	}
	return channel.StatusConfirmed
}

/********** channel -> PMS **********/

// ChannelReservationToPMSBooking splits guestName at the first space: names
// without a space get an empty last name and extra words stay in the last name.
// Phone and address come from guestDetails only.
func ChannelReservationToPMSBooking(ids IDMapper, r channel.Reservation) (pms.BookingInput, error) {
	if err := checkRequired("reservation", r); err != nil {
		return pms.BookingInput{}, err
	}
	if err := checkDates("reservation", r.CheckIn, r.CheckOut); err != nil {
		return pms.BookingInput{}, err
	}
	first, last, _ := strings.Cut(r.GuestName, " ")
	out := pms.BookingInput{
		PropertyID:   ids.PropertyID,
		RoomTypeID:   ids.Room(r.RoomID),
		RatePlanID:   ids.RatePlan(r.RatePlanID),
		CheckInDate:  r.CheckIn,
		CheckOutDate: r.CheckOut,
		Guest: pms.Guest{
			FirstName: first,
			LastName:  last,
			Email:     r.GuestEmail,
		},
		Adults:   r.Adults,
		Children: r.Children,
		Status:   pmsStatus(r.Status),
		Payment: pms.Payment{
			TotalAmount: r.TotalPrice,
			Currency:    r.Currency,
		},
		SpecialRequests: r.SpecialRequests,
	}
	if gd := r.GuestDetails; gd != nil {
		out.Guest.Phone = gd.Phone
		out.Guest.Address = gd.Address
		out.Guest.City = gd.City
		out.Guest.Country = gd.Country
		out.Guest.PostalCode = gd.PostalCode
	}
	if pd := r.PaymentDetails; pd != nil {
		out.Payment.PaymentMethod = pd.Method
		out.Payment.CardType = pd.CardType
		out.Payment.CardNumber = pd.CardNumber
		out.Payment.ExpiryDate = pd.ExpiryDate
	}
	return out, nil
}

func pmsStatus(s string) string {
	if s == channel.StatusCancelled {
		return pms.StatusCanceled
	}
	return pms.StatusConfirmed
}

/********** API-submitted bookings **********/

// BookingRequest is a booking submitted through the API by a channel-only source.
// Room and rate-plan ids are PMS-side ids.
type BookingRequest struct {
	RoomTypeID      string  `json:"roomTypeId" validate:"required"`
	RatePlanID      string  `json:"ratePlanId"`
	CheckIn         string  `json:"checkIn" validate:"required"`
	CheckOut        string  `json:"checkOut" validate:"required"`
	GuestName       string  `json:"guestName" validate:"required"`
	GuestEmail      string  `json:"guestEmail" validate:"required,email"`
	GuestPhone      string  `json:"guestPhone"`
	Adults          int     `json:"adults" validate:"gte=1"`
	Children        int     `json:"children" validate:"gte=0"`
	TotalPrice      float64 `json:"totalPrice" validate:"gte=0"`
	Currency        string  `json:"currency" validate:"required,len=3"`
	Source          string  `json:"source" validate:"required"`
	SpecialRequests string  `json:"specialRequests"`
}

func BookingRequestToChannelReservation(ids IDMapper, req BookingRequest) (channel.Reservation, error) {
	if err := checkRequired("booking request", req); err != nil {
		return channel.Reservation{}, err
	}
	if err := checkDates("booking request", req.CheckIn, req.CheckOut); err != nil {
		return channel.Reservation{}, err
	}
	if req.CheckOut <= req.CheckIn {
		return channel.Reservation{}, domain.Validation("booking request: checkOut %s must be after checkIn %s", req.CheckOut, req.CheckIn)
	}
	out := channel.Reservation{
		PropertyID:      ids.PropertyID,
		RoomID:          ids.Room(req.RoomTypeID),
		RatePlanID:      ids.RatePlan(req.RatePlanID),
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		GuestName:       req.GuestName,
		GuestEmail:      req.GuestEmail,
		Adults:          req.Adults,
		Children:        req.Children,
		TotalPrice:      req.TotalPrice,
		Currency:        req.Currency,
		Status:          channel.StatusConfirmed,
		Source:          req.Source,
		SpecialRequests: req.SpecialRequests,
	}
	if req.GuestPhone != "" {
		out.GuestDetails = &channel.GuestDetails{Phone: req.GuestPhone}
	}
	return out, nil
}

// reservationStatus maps a channel status onto the local lifecycle.
func reservationStatus(channelStatus string) domain.ReservationStatus {
	switch channelStatus {
	case channel.StatusCancelled:
		return domain.StatusCancelled
	case channel.StatusPending:
		return domain.StatusPending
	}
	return domain.StatusConfirmed
}

/********** stored reservation -> upstream updates **********/

// ReservationToChannel renders a stored reservation for a channel-manager
// update. The row holds PMS-side room and rate-plan ids; ids must be oriented
// PMSToChannel.
func ReservationToChannel(ids IDMapper, r domain.Reservation, status string) channel.Reservation {
	return channel.Reservation{
		ID:         r.ChannelReservationID,
		PropertyID: ids.PropertyID,
		RoomID:     ids.Room(r.RoomTypeID),
		RatePlanID: ids.RatePlan(r.RatePlanID),
		CheckIn:    r.CheckIn.String(),
		CheckOut:   r.CheckOut.String(),
		GuestName:  r.GuestName,
		GuestEmail: r.GuestEmail,
		Adults:     r.Adults,
		Children:   r.Children,
		TotalPrice: r.TotalPrice,
		Currency:   r.Currency,
		Status:     status,
		Source:     r.Source,
	}
}

// ReservationToPMSBooking renders a stored reservation for a PMS booking update.
func ReservationToPMSBooking(pmsPropertyID string, r domain.Reservation, status string) pms.BookingInput {
	first, last, _ := strings.Cut(r.GuestName, " ")
	return pms.BookingInput{
		PropertyID:   pmsPropertyID,
		RoomTypeID:   r.RoomTypeID,
		RatePlanID:   r.RatePlanID,
		CheckInDate:  r.CheckIn.String(),
		CheckOutDate: r.CheckOut.String(),
		Guest:        pms.Guest{FirstName: first, LastName: last, Email: r.GuestEmail},
		Adults:       r.Adults,
		Children:     r.Children,
		Status:       status,
		Payment:      pms.Payment{TotalAmount: r.TotalPrice, Currency: r.Currency},
	}
}
