package venue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/cache"
	"seat-booking-companion/internal/gateway"
)

var (
	ErrEmptyDate         = errors.New("booking date is required")
	ErrNoQueries         = errors.New("at least one availability query is required")
	ErrSeatNotFound      = errors.New("seat not found")
	ErrSeatNotSelectable = errors.New("only available seats can be selected")
)

// API is the slice of the backend the venue store needs.
type API interface {
	Areas(ctx context.Context) ([]backend.Area, error)
	SeatMap(ctx context.Context, areaID int64) (*backend.SeatMap, error)
	TimeSlots(ctx context.Context) ([]backend.TimeSlot, error)
	Availability(ctx context.Context, q backend.AvailabilityQuery) ([]backend.SeatAvailability, error)
	BatchAvailability(ctx context.Context, queries []backend.AvailabilityQuery) ([]backend.BatchAvailabilityItem, error)
}

// UserSource tells the store who is signed in.
type UserSource interface {
	CurrentUserID() int64
}

// State is a snapshot of the venue for the UI.
type State struct {
	Areas               []backend.Area             `json:"areas"`
	Seats               []Seat                     `json:"seats"`
	TimeSlots           []TimeSlot                 `json:"timeSlots"`
	Availability        []backend.SeatAvailability `json:"availability"`
	SelectedSeatID      int64                      `json:"selectedSeatId,omitempty"`
	AvailableCount      int                        `json:"availableCount"`
	Loading             bool                       `json:"loading"`
	LoadingAreas        bool                       `json:"loadingAreas"`
	LoadingTimeSlots    bool                       `json:"loadingTimeSlots"`
	LoadingAvailability bool                       `json:"loadingAvailability"`
	Error               string                     `json:"error,omitempty"`
}

// Store holds areas, seats, time slots and the availability overlay.
type Store struct {
	api   API
	users UserSource
	cache *cache.Manager

	// generation is shared by single and batch availability queries; only a
	// response whose generation is still current may touch state.
	generation atomic.Uint64

	mu                  sync.RWMutex
	areas               []backend.Area
	seats               []Seat
	timeSlots           []TimeSlot
	availability        []backend.SeatAvailability
	selected            int64
	loading             bool
	loadingAreas        bool
	loadingTimeSlots    bool
	loadingAvailability bool
	err                 string
}

// NewStore creates a venue store. c may be nil, in which case the cached loaders
// always go to the backend.
func NewStore(api API, users UserSource, c *cache.Manager) *Store {
	return &Store{api: api, users: users, cache: c}
}

// State returns a copy of the venue state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Areas:               append([]backend.Area(nil), s.areas...),
		Seats:               append([]Seat(nil), s.seats...),
		TimeSlots:           append([]TimeSlot(nil), s.timeSlots...),
		Availability:        append([]backend.SeatAvailability(nil), s.availability...),
		SelectedSeatID:      s.selected,
		AvailableCount:      s.availableCountLocked(),
		Loading:             s.loading,
		LoadingAreas:        s.loadingAreas,
		LoadingTimeSlots:    s.loadingTimeSlots,
		LoadingAvailability: s.loadingAvailability,
		Error:               s.err,
	}
}

// Seats returns a copy of the seat view-models.
func (s *Store) Seats() []Seat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Seat(nil), s.seats...)
}

// Availability returns the records of the latest successful availability query.
func (s *Store) Availability() []backend.SeatAvailability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]backend.SeatAvailability(nil), s.availability...)
}

// Areas returns the loaded areas.
func (s *Store) Areas() []backend.Area {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]backend.Area(nil), s.areas...)
}

// Seat returns one seat by backend id.
func (s *Store) Seat(id int64) (Seat, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, seat := range s.seats {
		if seat.ID == id {
			return seat, true
		}
	}
	return Seat{}, false
}

func (s *Store) setError(prefix string, err error) {
	s.err = prefix + gateway.Message(err)
	log.Warnf("%s%v", prefix, err)
}

// LoadAreas fetches the area list.
func (s *Store) LoadAreas(ctx context.Context) ([]backend.Area, error) {
	s.mu.Lock()
	s.loadingAreas = true
	s.mu.Unlock()

	areas, err := s.api.Areas(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingAreas = false
	if err != nil {
		s.setError("加载区域列表失败: ", err)
		return nil, err
	}
	s.areas = areas
	return areas, nil
}

// LoadAreasWithCache serves the area list from the cache when it holds a non-empty one.
// Only non-empty results are cached.
func (s *Store) LoadAreasWithCache(ctx context.Context) ([]backend.Area, error) {
	if s.cache != nil {
		var cached []backend.Area
		if s.cache.Get(ctx, cache.KeySeatAreas, &cached) && len(cached) > 0 {
			s.mu.Lock()
			s.areas = cached
			s.mu.Unlock()
			return cached, nil
		}
	}

	areas, err := s.LoadAreas(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(areas) > 0 {
		if err := s.cache.Set(ctx, cache.KeySeatAreas, areas, cache.TTLLong); err != nil {
			log.Warnf("Failed to cache areas: %v", err)
		}
	}
	return areas, nil
}

// LoadSeatMap fetches the seat listing of one area (0 for all) and rebuilds the seats.
// A failure leaves no seats behind.
func (s *Store) LoadSeatMap(ctx context.Context, areaID int64) (*backend.SeatMap, error) {
	s.mu.Lock()
	s.loading = true
	s.err = ""
	s.mu.Unlock()

	m, err := s.api.SeatMap(ctx, areaID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.setError("加载座位图失败: ", err)
		s.seats = nil
		s.selected = 0
		return nil, err
	}
	s.applySeatMapLocked(m)
	return m, nil
}

func (s *Store) applySeatMapLocked(m *backend.SeatMap) {
	s.seats = SeatsFromMap(m)
	s.selected = 0
}

// LoadSeatMapWithCache serves the seat map from the cache when it lists at least one area.
func (s *Store) LoadSeatMapWithCache(ctx context.Context, areaID int64) (*backend.SeatMap, error) {
	key := cache.SeatMapKey(areaID)
	if s.cache != nil {
		var cached backend.SeatMap
		if s.cache.Get(ctx, key, &cached) && len(cached.Areas) > 0 {
			s.mu.Lock()
			s.applySeatMapLocked(&cached)
			s.mu.Unlock()
			return &cached, nil
		}
	}

	m, err := s.LoadSeatMap(ctx, areaID)
	if err != nil {
		return nil, err
	}
	if s.cache != nil && len(m.Areas) > 0 {
		if err := s.cache.Set(ctx, key, m, cache.TTLLong); err != nil {
			log.Warnf("Failed to cache seat map: %v", err)
		}
	} else {
		log.Warn("Seat map is empty, not caching it")
	}
	return m, nil
}

// LoadTimeSlots fetches the bookable time slots.
func (s *Store) LoadTimeSlots(ctx context.Context) ([]TimeSlot, error) {
	return s.loadTimeSlots(ctx, func(ctx context.Context) ([]backend.TimeSlot, error) {
		return s.api.TimeSlots(ctx)
	})
}

// LoadTimeSlotsWithCache is LoadTimeSlots behind the cache.
func (s *Store) LoadTimeSlotsWithCache(ctx context.Context) ([]TimeSlot, error) {
	if s.cache == nil {
		return s.LoadTimeSlots(ctx)
	}
	return s.loadTimeSlots(ctx, func(ctx context.Context) ([]backend.TimeSlot, error) {
		return cache.GetOrFetch(ctx, s.cache, cache.KeySeatTimeSlots, cache.TTLVeryLong, s.api.TimeSlots)
	})
}

func (s *Store) loadTimeSlots(ctx context.Context, fetch func(context.Context) ([]backend.TimeSlot, error)) ([]TimeSlot, error) {
	s.mu.Lock()
	s.loadingTimeSlots = true
	s.mu.Unlock()

	raw, err := fetch(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loadingTimeSlots = false
	if err != nil {
		s.setError("加载时间段失败: ", err)
		return nil, err
	}
	s.timeSlots = timeSlotsFrom(raw)
	return append([]TimeSlot(nil), s.timeSlots...), nil
}

// Initialize loads areas, the seat map of every area and the time slots.
func (s *Store) Initialize(ctx context.Context) error {
	var errs []error
	if _, err := s.LoadAreasWithCache(ctx); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.LoadSeatMapWithCache(ctx, 0); err != nil {
		errs = append(errs, err)
	}
	if _, err := s.LoadTimeSlotsWithCache(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Reload drops the cached venue data and loads it again from the backend.
func (s *Store) Reload(ctx context.Context) error {
	if s.cache != nil {
		keys := []string{cache.KeySeatAreas, cache.KeySeatTimeSlots, cache.SeatMapKey(0)}
		for _, a := range s.Areas() {
			keys = append(keys, cache.SeatMapKey(a.ID))
		}
		for _, k := range keys {
			s.cache.Delete(ctx, k)
		}
	}
	return s.Initialize(ctx)
}

func (s *Store) defaultAreaID(areaID int64) int64 {
	if areaID > 0 {
		return areaID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.areas) > 0 {
		return s.areas[0].ID
	}
	return 0
}

// begin stamps a new availability query and marks availability as loading.
func (s *Store) begin() uint64 {
	gen := s.generation.Add(1)
	s.mu.Lock()
	s.loadingAvailability = true
	s.mu.Unlock()
	return gen
}

// QueryAvailability fetches availability for one (date, slot, area) and reconciles
// the seats. areaID 0 means the first loaded area. A response (or failure) that has
// been superseded by a newer query is dropped without touching state, and nil is
// returned for it.
func (s *Store) QueryAvailability(ctx context.Context, date string, timeSlotID, areaID int64) error {
	if date == "" {
		log.Warn("Availability query rejected: booking date is empty")
		return ErrEmptyDate
	}

	q := backend.AvailabilityQuery{BookingDate: date, TimeSlotID: timeSlotID, AreaID: s.defaultAreaID(areaID)}
	gen := s.begin()
	records, err := s.api.Availability(ctx, q)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation.Load() {
		log.Debugf("Dropping superseded availability result (generation %d)", gen)
		return nil
	}
	s.loadingAvailability = false
	if err != nil {
		s.availability = nil
		s.setError("查询座位可用性失败: ", err)
		return err
	}

	s.err = ""
	s.availability = records
	s.reconcileLocked(indexRecords(records))
	return nil
}

// QueryBatchAvailability queries several slots for a multi-slot booking. A seat is
// available only if it is available in every slot. Occupant details come from the
// slot naming the current user when there is one.
func (s *Store) QueryBatchAvailability(ctx context.Context, queries []backend.AvailabilityQuery) error {
	if len(queries) == 0 {
		return ErrNoQueries
	}
	qs := make([]backend.AvailabilityQuery, len(queries))
	for i, q := range queries {
		if q.BookingDate == "" {
			return ErrEmptyDate
		}
		q.AreaID = s.defaultAreaID(q.AreaID)
		qs[i] = q
	}

	gen := s.begin()
	items, err := s.api.BatchAvailability(ctx, qs)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation.Load() {
		log.Debugf("Dropping superseded batch availability result (generation %d)", gen)
		return nil
	}
	s.loadingAvailability = false
	if err != nil {
		s.availability = nil
		s.setError("查询座位可用性失败: ", err)
		return err
	}

	merged := mergeBatch(items, s.currentUserID())
	s.err = ""
	s.availability = merged
	s.reconcileLocked(indexRecords(merged))
	return nil
}

func (s *Store) currentUserID() int64 {
	if s.users == nil {
		return 0
	}
	return s.users.CurrentUserID()
}

func indexRecords(records []backend.SeatAvailability) map[int64]backend.SeatAvailability {
	byID := make(map[int64]backend.SeatAvailability, len(records))
	for _, r := range records {
		byID[r.SeatID] = r
	}
	return byID
}

// mergeBatch ANDs availability per seat across slots, keeping seats in first-seen order.
func mergeBatch(items []backend.BatchAvailabilityItem, me int64) []backend.SeatAvailability {
	var order []int64
	merged := make(map[int64]*backend.SeatAvailability)

	for _, item := range items {
		for _, rec := range item.Seats {
			m, ok := merged[rec.SeatID]
			if !ok {
				r := rec
				merged[rec.SeatID] = &r
				order = append(order, rec.SeatID)
				continue
			}
			m.IsAvailable = m.IsAvailable && rec.IsAvailable
			if rec.BookingUserInfo == nil {
				continue
			}
			mine := me != 0 && rec.BookingUserInfo.UserID == me
			alreadyMine := m.BookingUserInfo != nil && me != 0 && m.BookingUserInfo.UserID == me
			if m.BookingUserInfo == nil || (mine && !alreadyMine) {
				m.BookingUserInfo = rec.BookingUserInfo
				m.BookingID = rec.BookingID
				m.GroupID = rec.GroupID
			}
		}
	}

	out := make([]backend.SeatAvailability, 0, len(order))
	for _, id := range order {
		out = append(out, *merged[id])
	}
	return out
}

// reconcileLocked overlays availability records on the seats.
func (s *Store) reconcileLocked(records map[int64]backend.SeatAvailability) {
	me := s.currentUserID()
	for i := range s.seats {
		seat := &s.seats[i]
		rec, ok := records[seat.ID]

		if !ok || rec.IsAvailable {
			if seat.Status == StatusSelected && seat.ID == s.selected {
				seat.Status = StatusSelected
			} else {
				seat.Status = StatusAvailable
			}
			seat.OccupiedBy = ""
			seat.BookedByMe = false
			seat.BookingID = nil
			continue
		}

		seat.Status = StatusOccupied
		seat.OccupiedBy = occupiedPlaceholder
		seat.BookedByMe = false
		seat.BookingID = nil
		if occ := rec.BookingUserInfo; occ != nil {
			switch {
			case occ.FullName != "":
				seat.OccupiedBy = occ.FullName
			case occ.UserName != "":
				seat.OccupiedBy = occ.UserName
			}
			seat.BookedByMe = me != 0 && occ.UserID == me
			if seat.BookedByMe {
				seat.BookingID = rec.BookingID
				if seat.BookingID == nil {
					seat.BookingID = occ.BookingID
				}
			}
		}
		if seat.ID == s.selected {
			s.selected = 0
		}
	}
}

// SelectSeat selects an available seat. Any previously selected seat becomes available.
func (s *Store) SelectSeat(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := -1
	for i := range s.seats {
		if s.seats[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrSeatNotFound
	}
	if s.seats[idx].Status != StatusAvailable {
		return ErrSeatNotSelectable
	}

	for i := range s.seats {
		if s.seats[i].Status == StatusSelected {
			s.seats[i].Status = StatusAvailable
		}
	}
	s.seats[idx].Status = StatusSelected
	s.selected = id
	return nil
}

// ClearSelection deselects whatever seat is selected.
func (s *Store) ClearSelection() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.seats {
		if s.seats[i].Status == StatusSelected {
			s.seats[i].Status = StatusAvailable
		}
	}
	s.selected = 0
}

// SelectedSeat returns the selected seat, if any.
func (s *Store) SelectedSeat() (Seat, bool) {
	s.mu.RLock()
	id := s.selected
	s.mu.RUnlock()
	if id == 0 {
		return Seat{}, false
	}
	return s.Seat(id)
}

// SeatsByTable returns the seats on one side of a table.
func (s *Store) SeatsByTable(table string, pos Position) []Seat {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Seat
	for _, seat := range s.seats {
		if seat.Table == table && seat.Position == pos {
			out = append(out, seat)
		}
	}
	return out
}

// AvailableCount returns how many seats are available.
func (s *Store) AvailableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.availableCountLocked()
}

func (s *Store) availableCountLocked() int {
	n := 0
	for _, seat := range s.seats {
		if seat.Status == StatusAvailable {
			n++
		}
	}
	return n
}
