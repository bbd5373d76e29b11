// internal/adapters/channel/client.go
package channel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"hotel_sync/internal/adapters/rest"
)

const Service = "channel"

type Config struct {
	BaseURL   string
	Username  string
	Password  string
	Timeout   time.Duration
	RPS       int
	Transport http.RoundTripper
}

// Client talks to the channel manager using basic auth.
type Client struct {
	ex *rest.Executor
}

func New(cfg Config) (*Client, error) {
	var auth rest.Auth
	if cfg.Username != "" {
		auth = rest.BasicAuth{Username: cfg.Username, Password: cfg.Password}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
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

func RoomsPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/rooms", url.PathEscape(propertyID))
}

func RatePlansPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/rateplans", url.PathEscape(propertyID))
}

func ReservationsPath(propertyID string) string {
	return fmt.Sprintf("/properties/%s/reservations", url.PathEscape(propertyID))
}

func ReservationPath(reservationID string) string {
	return "/reservations/" + url.PathEscape(reservationID)
}

func AvailabilityPath(propertyID, roomID string) string {
	return fmt.Sprintf("/properties/%s/rooms/%s/availability", url.PathEscape(propertyID), url.PathEscape(roomID))
}

func RatesPath(propertyID, roomID, ratePlanID string) string {
	return fmt.Sprintf("/properties/%s/rooms/%s/rateplans/%s/rates",
		url.PathEscape(propertyID), url.PathEscape(roomID), url.PathEscape(ratePlanID))
}

func (c *Client) Rooms(ctx context.Context, propertyID string) ([]Room, error) {
	var out []Room
	return out, c.ex.Do(ctx, http.MethodGet, RoomsPath(propertyID), nil, nil, &out)
}

func (c *Client) RatePlans(ctx context.Context, propertyID string) ([]RatePlan, error) {
	var out []RatePlan
	return out, c.ex.Do(ctx, http.MethodGet, RatePlansPath(propertyID), nil, nil, &out)
}

func (c *Client) Reservation(ctx context.Context, reservationID string) (Reservation, error) {
	var out Reservation
	return out, c.ex.Do(ctx, http.MethodGet, ReservationPath(reservationID), nil, nil, &out)
}

func (c *Client) CreateReservation(ctx context.Context, propertyID string, r Reservation) (Reservation, error) {
	var out Reservation
	return out, c.ex.Do(ctx, http.MethodPost, ReservationsPath(propertyID), nil, r, &out)
}

func (c *Client) UpdateReservation(ctx context.Context, reservationID string, r Reservation) (Reservation, error) {
	var out Reservation
	return out, c.ex.Do(ctx, http.MethodPut, ReservationPath(reservationID), nil, r, &out)
}

func (c *Client) CancelReservation(ctx context.Context, reservationID string) error {
	return c.ex.Do(ctx, http.MethodDelete, ReservationPath(reservationID), nil, nil, nil)
}

// UpdateAvailability pushes one batch of dates for a single room.
func (c *Client) UpdateAvailability(ctx context.Context, propertyID, roomID string, batch []Availability) error {
	return c.ex.Do(ctx, http.MethodPut, AvailabilityPath(propertyID, roomID), nil, batch, nil)
}

// UpdateRates pushes one batch of dates for a single (room, rate plan) pair.
func (c *Client) UpdateRates(ctx context.Context, propertyID, roomID, ratePlanID string, batch []Rate) error {
	return c.ex.Do(ctx, http.MethodPut, RatesPath(propertyID, roomID, ratePlanID), nil, batch, nil)
}
