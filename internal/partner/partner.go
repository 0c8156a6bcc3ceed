package partner

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/gateway"
	"seat-booking-companion/internal/venue"
)

const (
	// MinQueryLength is the shortest query sent to the user search, in characters.
	MinQueryLength = 2
	SearchLimit    = 10
	DebounceDelay  = 500 * time.Millisecond
)

// Searcher looks up users to invite.
type Searcher interface {
	SearchUsers(ctx context.Context, query string, limit int) ([]backend.User, error)
}

// Venue is what the partner store reads from the venue store.
type Venue interface {
	Seats() []venue.Seat
	Availability() []backend.SeatAvailability
}

// Booked is someone holding a seat in the latest availability query.
type Booked struct {
	ID     string `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Table  string `json:"table"`
	Seat   string `json:"seat"`
	SeatID int64  `json:"seatId"`
}

// SearchState is the invite search as the UI shows it.
type SearchState struct {
	Query     string         `json:"query"`
	Results   []backend.User `json:"results"`
	Searching bool           `json:"searching"`
	Error     string         `json:"error,omitempty"`
}

// Store backs the invite-partner search and the find-partner view.
type Store struct {
	api      Searcher
	venue    Venue
	debounce time.Duration

	mu        sync.Mutex
	query     string
	results   []backend.User
	searching bool
	err       string
	seq       uint64
	timer     *time.Timer
}

func NewStore(api Searcher, v Venue) *Store {
	return &Store{api: api, venue: v, debounce: DebounceDelay}
}

// SearchState returns the current invite search.
func (s *Store) SearchState() SearchState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SearchState{
		Query:     s.query,
		Results:   append([]backend.User(nil), s.results...),
		Searching: s.searching,
		Error:     s.err,
	}
}

// Search looks up users matching query. Queries shorter than MinQueryLength clear the
// results without a request. A failure clears the results and records the error.
func (s *Store) Search(ctx context.Context, query string) ([]backend.User, error) {
	query = strings.TrimSpace(query)

	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.query = query
	if utf8.RuneCountInString(query) < MinQueryLength {
		s.results = nil
		s.err = ""
		s.searching = false
		s.mu.Unlock()
		return nil, nil
	}
	s.searching = true
	s.err = ""
	s.mu.Unlock()

	users, err := s.api.SearchUsers(ctx, query, SearchLimit)

	s.mu.Lock()
	defer s.mu.Unlock()
	if seq != s.seq {
		// A newer search superseded this one.
		return users, err
	}
	s.searching = false
	if err != nil {
		s.results = nil
		s.err = "搜索用户失败: " + gateway.Message(err)
		log.Warnf("User search for %q failed: %v", query, err)
		return nil, err
	}
	s.results = users
	return users, nil
}

// SearchDebounced runs Search once no further call has arrived for the debounce delay.
func (s *Store) SearchDebounced(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if _, err := s.Search(context.Background(), query); err != nil {
			log.Debugf("Debounced user search failed: %v", err)
		}
	})
}

// Stop cancels a pending debounced search.
func (s *Store) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Booked lists the occupants named by the latest availability records, joined with
// the seat they hold.
func (s *Store) Booked() []Booked {
	seats := make(map[int64]venue.Seat)
	for _, seat := range s.venue.Seats() {
		seats[seat.ID] = seat
	}

	var out []Booked
	for _, rec := range s.venue.Availability() {
		occ := rec.BookingUserInfo
		if occ == nil {
			continue
		}
		seat, ok := seats[rec.SeatID]
		if !ok {
			continue
		}
		name := occ.FullName
		if name == "" {
			name = occ.UserName
		}
		out = append(out, Booked{
			ID:     strconv.FormatInt(occ.UserID, 10),
			UserID: occ.UserID,
			Name:   name,
			Table:  seat.Table,
			Seat:   seat.Number,
			SeatID: seat.ID,
		})
	}
	return out
}

// FindBooked filters booked partners by a case-insensitive name fragment. An empty
// query returns everyone.
func (s *Store) FindBooked(query string) []Booked {
	return FilterByName(s.Booked(), query)
}

// FilterByName keeps the partners whose name contains query, ignoring case.
func FilterByName(list []Booked, query string) []Booked {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return list
	}
	var out []Booked
	for _, p := range list {
		if strings.Contains(strings.ToLower(p.Name), query) {
			out = append(out, p)
		}
	}
	return out
}

// BookedAtTable returns the booked partners sitting at table.
func (s *Store) BookedAtTable(table string) []Booked {
	var out []Booked
	for _, p := range s.Booked() {
		if p.Table == table {
			out = append(out, p)
		}
	}
	return out
}

// TableSeats returns the seats of one table, left side first, each side by index.
func (s *Store) TableSeats(table string) []venue.Seat {
	var out []venue.Seat
	for _, seat := range s.venue.Seats() {
		if seat.Table == table {
			out = append(out, seat)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position == venue.Left
		}
		return out[i].Index < out[j].Index
	})
	return out
}
