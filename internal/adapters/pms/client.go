// internal/adapters/pms/client.go
package pms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"hotel_sync/internal/adapters/rest"
	"hotel_sync/internal/domain"
)

const Service = "pms"

type Config struct {
	BaseURL  string
	APIKey   string
	Username string
	Password string
	Timeout  time.Duration
	RPS      int
	// Transport is used by tests; nil means http.DefaultTransport.
	Transport http.RoundTripper
}

type Client struct {
	ex *rest.Executor
}

// New builds a client that authenticates with X-API-KEY when a key is set and
// falls back to basic auth otherwise.
func New(cfg Config) (*Client, error) {
	var auth rest.Auth
	switch {
	case cfg.APIKey != "":
		auth = rest.APIKeyAuth{Header: "X-API-KEY", Key: cfg.APIKey}
	case cfg.Username != "" && cfg.Password != "":
		auth = rest.BasicAuth{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	ex, err := rest.New(rest.Options{
		Service:   Service,
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		Auth:      auth,
		RPS:       cfg.RPS,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, err
	}
	return &Client{ex: ex}, nil
}

func RoomTypesPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/room_types", url.PathEscape(propertyID))
}

func RatePlansPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/rate_plans", url.PathEscape(propertyID))
}

func AvailabilityPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/availability", url.PathEscape(propertyID))
}

func RatesPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/rates", url.PathEscape(propertyID))
}

func BookingsPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/bookings", url.PathEscape(propertyID))
}

func BookingPath(propertyID, bookingID string) string {
	return BookingsPath(propertyID) + "/" + url.PathEscape(bookingID)
}

func rangeQuery(from, to domain.Date) url.Values {
	return url.Values{"start_date": {from.String()}, "end_date": {to.String()}}
}

func (c *Client) RoomTypes(ctx context.Context, propertyID string) ([]RoomType, error) {
	var out []RoomType
	return out, c.ex.Do(ctx, http.MethodGet, RoomTypesPath(propertyID), nil, nil, &out)
}

func (c *Client) RatePlans(ctx context.Context, propertyID string) ([]RatePlan, error) {
	var out []RatePlan
	return out, c.ex.Do(ctx, http.MethodGet, RatePlansPath(propertyID), nil, nil, &out)
}

func (c *Client) Availability(ctx context.Context, propertyID string, from, to domain.Date) ([]Availability, error) {
	var out []Availability
	return out, c.ex.Do(ctx, http.MethodGet, AvailabilityPath(propertyID), rangeQuery(from, to), nil, &out)
}

func (c *Client) Rates(ctx context.Context, propertyID string, from, to domain.Date) ([]Rate, error) {
	var out []Rate
	return out, c.ex.Do(ctx, http.MethodGet, RatesPath(propertyID), rangeQuery(from, to), nil, &out)
}

func (c *Client) Booking(ctx context.Context, propertyID, bookingID string) (Booking, error) {
	var out Booking
	return out, c.ex.Do(ctx, http.MethodGet, BookingPath(propertyID, bookingID), nil, nil, &out)
}

func (c *Client) CreateBooking(ctx context.Context, propertyID string, in BookingInput) (Booking, error) {
	var out Booking
	return out, c.ex.Do(ctx, http.MethodPost, BookingsPath(propertyID), nil, in, &out)
}

func (c *Client) UpdateBooking(ctx context.Context, propertyID, bookingID string, in BookingInput) (Booking, error) {
	var out Booking
	return out, c.ex.Do(ctx, http.MethodPut, BookingPath(propertyID, bookingID), nil, in, &out)
}

func (c *Client) CancelBooking(ctx context.Context, propertyID, bookingID string) error {
	return c.ex.Do(ctx, http.MethodDelete, BookingPath(propertyID, bookingID), nil, nil, nil)
}
