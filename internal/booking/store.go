package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/cache"
	"seat-booking-companion/internal/gateway"
)

const (
	MaxSlots    = 4
	MaxPartners = 3
)

var (
	ErrNoSeat          = errors.New("a seat is required")
	ErrNoSlots         = errors.New("at least one time slot is required")
	ErrTooManySlots    = fmt.Errorf("at most %d time slots can be booked at once", MaxSlots)
	ErrTooManyPartners = fmt.Errorf("at most %d partners can be invited", MaxPartners)
)

// API is the slice of the backend the booking store needs.
type API interface {
	CreateBooking(ctx context.Context, req backend.CreateBookingRequest) (*backend.CreateBookingResponse, error)
	Bookings(ctx context.Context) (*backend.BookingList, error)
	CancelBooking(ctx context.Context, id int64) error
	SwapSeat(ctx context.Context, req backend.SwapSeatRequest) (*backend.SwapSeatResponse, error)
	Credits(ctx context.Context) (*backend.Credits, error)
	Transactions(ctx context.Context) (*backend.TransactionList, error)
}

// State is a snapshot of the user's bookings for the UI.
type State struct {
	Bookings     []backend.Booking     `json:"bookings"`
	Total        int                   `json:"total"`
	Credits      *int                  `json:"credits,omitempty"`
	Transactions []backend.Transaction `json:"transactions"`
	Loading      bool                  `json:"loading"`
	Error        string                `json:"error,omitempty"`
}

// Store holds the signed-in user's bookings, credits and transactions.
type Store struct {
	api   API
	cache *cache.Manager
	loc   *time.Location
	now   func() time.Time

	mu           sync.RWMutex
	bookings     []backend.Booking
	total        int
	credits      *int
	transactions []backend.Transaction
	loading      bool
	err          string
}

// NewStore creates a booking store. loc is the venue timezone used for expiry checks.
func NewStore(api API, c *cache.Manager, loc *time.Location) *Store {
	if loc == nil {
		loc = time.Local
	}
	return &Store{api: api, cache: c, loc: loc, now: time.Now}
}

// State returns a copy of the booking state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		Bookings:     append([]backend.Booking(nil), s.bookings...),
		Total:        s.total,
		Transactions: append([]backend.Transaction(nil), s.transactions...),
		Loading:      s.loading,
		Error:        s.err,
	}
	if s.credits != nil {
		c := *s.credits
		st.Credits = &c
	}
	return st
}

// Bookings returns a copy of the loaded bookings.
func (s *Store) Bookings() []backend.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]backend.Booking(nil), s.bookings...)
}

func (s *Store) start() {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()
}

func (s *Store) finish(prefix string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.err = prefix + gateway.Message(err)
		log.Warnf("%s%v", prefix, err)
	}
}

// invalidate drops the cached user data that a booking mutation makes stale.
func (s *Store) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, key := range []string{cache.KeyUserBookings, cache.KeyUserCredits, cache.KeyUserTransactions} {
		s.cache.Delete(ctx, key)
	}
}

func validateCreate(req backend.CreateBookingRequest) error {
	switch {
	case req.SeatID == 0:
		return ErrNoSeat
	case len(req.TimeSlots) == 0:
		return ErrNoSlots
	case len(req.TimeSlots) > MaxSlots:
		return ErrTooManySlots
	case len(req.InvitePartners) > MaxPartners:
		return ErrTooManyPartners
	}
	for _, slot := range req.TimeSlots {
		if slot.BookingDate == "" {
			return fmt.Errorf("time slot %d: booking date is required", slot.TimeSlotID)
		}
	}
	return nil
}

// Create books a seat for one or more slots, optionally inviting partners. On success
// the booking list and the credit balance are refreshed.
func (s *Store) Create(ctx context.Context, req backend.CreateBookingRequest) (*backend.CreateBookingResponse, error) {
	if err := validateCreate(req); err != nil {
		s.mu.Lock()
		s.err = err.Error()
		s.mu.Unlock()
		return nil, err
	}

	s.start()
	resp, err := s.api.CreateBooking(ctx, req)
	s.finish("预订失败: ", err)
	if err != nil {
		return nil, err
	}
	log.Infof("Booked seat %d for %d slot(s), booking %d", req.SeatID, len(req.TimeSlots), resp.BookingID)

	s.invalidate(ctx)
	if err := s.Load(ctx); err != nil {
		log.Warnf("Failed to refresh bookings after create: %v", err)
	}
	s.LoadCredits(ctx)
	return resp, nil
}

// Load fetches the booking list.
func (s *Store) Load(ctx context.Context) error {
	s.start()
	list, err := s.api.Bookings(ctx)
	s.finish("加载预订失败: ", err)
	if err != nil {
		return err
	}
	s.apply(list)
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.KeyUserBookings, list, cache.TTLShort); err != nil {
			log.Warnf("Failed to cache bookings: %v", err)
		}
	}
	return nil
}

// LoadWithCache serves the booking list from the cache while it is fresh.
func (s *Store) LoadWithCache(ctx context.Context) error {
	if s.cache != nil {
		var cached backend.BookingList
		if s.cache.Get(ctx, cache.KeyUserBookings, &cached) {
			s.apply(&cached)
			return nil
		}
	}
	return s.Load(ctx)
}

func (s *Store) apply(list *backend.BookingList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if list == nil {
		s.bookings, s.total = nil, 0
		return
	}
	s.bookings = list.Bookings
	s.total = list.Total
}

// Cancel cancels a booking and drops it from the local list.
func (s *Store) Cancel(ctx context.Context, id int64) error {
	s.start()
	err := s.api.CancelBooking(ctx, id)
	s.finish("取消预订失败: ", err)
	if err != nil {
		return err
	}

	s.mu.Lock()
	kept := s.bookings[:0:0]
	for _, b := range s.bookings {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	if removed := len(s.bookings) - len(kept); removed > 0 && s.total >= removed {
		s.total -= removed
	}
	s.bookings = kept
	s.mu.Unlock()

	s.invalidate(ctx)
	log.Infof("Cancelled booking %d", id)
	return nil
}

// SwapSeat moves a booking to another seat and reloads the list.
func (s *Store) SwapSeat(ctx context.Context, req backend.SwapSeatRequest) (*backend.SwapSeatResponse, error) {
	if req.BookingID == 0 || req.NewSeatID == 0 {
		return nil, errors.New("booking id and new seat id are required")
	}
	if len(req.InvitePartners) > MaxPartners {
		return nil, ErrTooManyPartners
	}

	s.start()
	resp, err := s.api.SwapSeat(ctx, req)
	s.finish("换座失败: ", err)
	if err != nil {
		return nil, err
	}

	s.invalidate(ctx)
	if err := s.Load(ctx); err != nil {
		log.Warnf("Failed to refresh bookings after seat swap: %v", err)
	}
	return resp, nil
}

// LoadCredits refreshes the credit balance. A failure is logged and the previous
// balance is kept.
func (s *Store) LoadCredits(ctx context.Context) {
	c, err := s.api.Credits(ctx)
	if err != nil {
		log.Warnf("Failed to load credits: %v", err)
		return
	}
	s.mu.Lock()
	v := c.Credits
	s.credits = &v
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.KeyUserCredits, c, cache.TTLShort); err != nil {
			log.Warnf("Failed to cache credits: %v", err)
		}
	}
}

// LoadTransactions refreshes the credit transactions. A failure is logged and the
// previous list is kept.
func (s *Store) LoadTransactions(ctx context.Context) {
	list, err := s.api.Transactions(ctx)
	if err != nil {
		log.Warnf("Failed to load transactions: %v", err)
		return
	}
	s.mu.Lock()
	s.transactions = list.Transactions
	s.mu.Unlock()
	if s.cache != nil {
		if err := s.cache.Set(ctx, cache.KeyUserTransactions, list, cache.TTLMedium); err != nil {
			log.Warnf("Failed to cache transactions: %v", err)
		}
	}
}

// Restore fills credits and transactions from the cache, e.g. right after startup.
func (s *Store) Restore(ctx context.Context) {
	if s.cache == nil {
		return
	}
	var c backend.Credits
	if s.cache.Get(ctx, cache.KeyUserCredits, &c) {
		s.mu.Lock()
		s.credits = &c.Credits
		s.mu.Unlock()
	}
	var list backend.TransactionList
	if s.cache.Get(ctx, cache.KeyUserTransactions, &list) {
		s.mu.Lock()
		s.transactions = list.Transactions
		s.mu.Unlock()
	}
}

// Reset forgets everything, used on sign-out.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings, s.total, s.credits, s.transactions, s.err = nil, 0, nil, nil, ""
}

// Expired reports whether a booking's first slot has already started.
func (s *Store) Expired(b backend.Booking) bool {
	date, start := b.BookingDate, b.StartTime
	if len(b.TimeSlotDetails) > 0 {
		date, start = b.TimeSlotDetails[0].BookingDate, b.TimeSlotDetails[0].StartTime
	}
	return IsExpired(date, start, s.now(), s.loc)
}

// Upcoming returns the bookings that have not started yet.
func (s *Store) Upcoming() []backend.Booking {
	var out []backend.Booking
	for _, b := range s.Bookings() {
		if !s.Expired(b) {
			out = append(out, b)
		}
	}
	return out
}
