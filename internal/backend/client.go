package backend

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"seat-booking-companion/internal/gateway"
)

// Doer is the part of the gateway the typed endpoints need.
type Doer interface {
	Do(ctx context.Context, req gateway.Request, out any) error
}

// Client exposes the booking backend's REST endpoints as typed calls.
type Client struct {
	gw Doer
}

// New creates a typed backend client on top of the gateway.
func New(gw Doer) *Client {
	return &Client{gw: gw}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	return c.gw.Do(ctx, gateway.Request{Method: http.MethodGet, Path: path, Query: query}, out)
}

func (c *Client) send(ctx context.Context, method, path string, body, out any) error {
	return c.gw.Do(ctx, gateway.Request{Method: method, Path: path, Body: body}, out)
}

// --- auth ---

// Login exchanges a username and password for a token. It never goes through 401 recovery.
func (c *Client) Login(ctx context.Context, creds Credentials) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.gw.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/api/v1/auth/login",
		Body:      creds,
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// FeishuCallback exchanges a Feishu authorization code for a token.
func (c *Client) FeishuCallback(ctx context.Context, code string) (*LoginResponse, error) {
	var resp LoginResponse
	err := c.gw.Do(ctx, gateway.Request{
		Method:    http.MethodPost,
		Path:      "/api/v1/auth/feishu/callback",
		Body:      map[string]string{"code": code},
		Anonymous: true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Logout invalidates the current token on the backend.
func (c *Client) Logout(ctx context.Context) error {
	return c.send(ctx, http.MethodPost, "/api/v1/auth/logout", nil, nil)
}

// --- users ---

func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.get(ctx, "/api/v1/users/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) Credits(ctx context.Context) (*Credits, error) {
	var cr Credits
	if err := c.get(ctx, "/api/v1/users/me/credits", nil, &cr); err != nil {
		return nil, err
	}
	return &cr, nil
}

func (c *Client) Transactions(ctx context.Context) (*TransactionList, error) {
	var tl TransactionList
	if err := c.get(ctx, "/api/v1/users/me/transactions", nil, &tl); err != nil {
		return nil, err
	}
	return &tl, nil
}

// SearchUsers looks users up by name for partner invitations.
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	q := url.Values{"query": {query}}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var users []User
	if err := c.get(ctx, "/api/v1/users/search", q, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// --- seats ---

// SeatMap lists areas with their seats. areaID 0 means every area.
func (c *Client) SeatMap(ctx context.Context, areaID int64) (*SeatMap, error) {
	var q url.Values
	if areaID > 0 {
		q = url.Values{"areaId": {strconv.FormatInt(areaID, 10)}}
	}
	var m SeatMap
	if err := c.get(ctx, "/api/v1/seats/map", q, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (c *Client) Areas(ctx context.Context) ([]Area, error) {
	var areas []Area
	if err := c.get(ctx, "/api/v1/seats/areas", nil, &areas); err != nil {
		return nil, err
	}
	return areas, nil
}

func (c *Client) TimeSlots(ctx context.Context) ([]TimeSlot, error) {
	var slots []TimeSlot
	if err := c.get(ctx, "/api/v1/seats/timeslots", nil, &slots); err != nil {
		return nil, err
	}
	return slots, nil
}

// Availability queries one (date, slot, area) combination. AreaID 0 is omitted.
func (c *Client) Availability(ctx context.Context, q AvailabilityQuery) ([]SeatAvailability, error) {
	params := url.Values{
		"bookingDate": {q.BookingDate},
		"timeSlotId":  {strconv.FormatInt(q.TimeSlotID, 10)},
	}
	if q.AreaID > 0 {
		params.Set("areaId", strconv.FormatInt(q.AreaID, 10))
	}
	var seats []SeatAvailability
	if err := c.get(ctx, "/api/v1/seats/availability", params, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

// BatchAvailability queries several combinations in one round trip.
func (c *Client) BatchAvailability(ctx context.Context, queries []AvailabilityQuery) ([]BatchAvailabilityItem, error) {
	var items []BatchAvailabilityItem
	body := map[string]any{"queries": queries}
	if err := c.send(ctx, http.MethodPost, "/api/v1/seats/availability", body, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// --- bookings ---

func (c *Client) CreateBooking(ctx context.Context, req CreateBookingRequest) (*CreateBookingResponse, error) {
	var resp CreateBookingResponse
	if err := c.send(ctx, http.MethodPost, "/api/v1/bookings", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Bookings(ctx context.Context) (*BookingList, error) {
	var bl BookingList
	if err := c.get(ctx, "/api/v1/bookings", nil, &bl); err != nil {
		return nil, err
	}
	return &bl, nil
}

func (c *Client) CancelBooking(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodDelete, fmt.Sprintf("/api/v1/bookings/%d", id), nil, nil)
}

func (c *Client) SwapSeat(ctx context.Context, req SwapSeatRequest) (*SwapSeatResponse, error) {
	var resp SwapSeatResponse
	if err := c.send(ctx, http.MethodPut, "/api/v1/bookings/swap-seat", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// --- invitations ---

func (c *Client) UpcomingInvitations(ctx context.Context) ([]Invitation, error) {
	var invs []Invitation
	if err := c.get(ctx, "/api/v1/partner-invitations/upcoming", nil, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

func (c *Client) AcceptInvitation(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/api/v1/partner-invitations/%d/accept", id), nil, nil)
}

func (c *Client) DeclineInvitation(ctx context.Context, id int64) error {
	return c.send(ctx, http.MethodPost, fmt.Sprintf("/api/v1/partner-invitations/%d/decline", id), nil, nil)
}
