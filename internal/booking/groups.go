package booking

import (
	"sort"

	"seat-booking-companion/internal/backend"
)

// Group is a set of bookings made together, e.g. one multi-slot booking with invited partners.
type Group struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	MemberIDs  []int64           `json:"memberIds"`
	BookingIDs []int64           `json:"bookingIds"`
	FirstDate  string            `json:"firstDate"`
	Bookings   []backend.Booking `json:"bookings"`
}

// Groups returns the loaded bookings grouped by group id.
func (s *Store) Groups() []Group {
	return GroupBookings(s.Bookings())
}

// GroupBookings groups bookings by GroupID, falling back to the booking id, and orders
// the groups by the date of their first slot.
func GroupBookings(bookings []backend.Booking) []Group {
	byID := make(map[int64]*Group)
	var order []int64

	for _, b := range bookings {
		gid := b.ID
		if b.GroupID != nil && *b.GroupID != 0 {
			gid = *b.GroupID
		}
		g, ok := byID[gid]
		if !ok {
			g = &Group{ID: gid, Name: b.SeatNumber + "组"}
			byID[gid] = g
			order = append(order, gid)
		}
		g.Bookings = append(g.Bookings, b)
		g.BookingIDs = append(g.BookingIDs, b.ID)
		g.MemberIDs = appendUnique(g.MemberIDs, b.UserID)
		for _, p := range b.Partners {
			g.MemberIDs = appendUnique(g.MemberIDs, p.PartnerUserID)
		}
		if d := firstSlotKey(b); g.FirstDate == "" || (d != "" && d < g.FirstDate) {
			g.FirstDate = d
		}
	}

	out := make([]Group, 0, len(order))
	for _, id := range order {
		out = append(out, *byID[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FirstDate < out[j].FirstDate })
	for i := range out {
		if len(out[i].FirstDate) > len(dateLayout) {
			out[i].FirstDate = out[i].FirstDate[:len(dateLayout)]
		}
	}
	return out
}

// firstSlotKey is "<date> <start>" of the earliest slot of b, so slots on the same day
// order by start time.
func firstSlotKey(b backend.Booking) string {
	key := join(b.BookingDate, b.StartTime)
	for _, d := range b.TimeSlotDetails {
		if k := join(d.BookingDate, d.StartTime); k != "" && (key == "" || k < key) {
			key = k
		}
	}
	return key
}

func join(date, start string) string {
	if date == "" {
		return ""
	}
	if start == "" {
		return date
	}
	return date + " " + start
}

func appendUnique(ids []int64, id int64) []int64 {
	if id == 0 {
		return ids
	}
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
