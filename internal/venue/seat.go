package venue

import (
	"encoding/json"
	"strings"

	log "github.com/sirupsen/logrus"

	"seat-booking-companion/internal/backend"
	"seat-booking-companion/internal/parse"
)

// Status is a seat's state in the booking UI.
type Status string

const (
	StatusAvailable Status = "available"
	StatusOccupied  Status = "occupied"
	StatusSelected  Status = "selected"
)

// Position is the side of the table a seat is on.
type Position string

const (
	Left  Position = "left"
	Right Position = "right"
)

// occupiedPlaceholder is shown when the backend reports a seat taken without naming anyone.
const occupiedPlaceholder = "已预订"

// Seat is the view-model of one seat. ID is the backend seat id and is the only
// identity used for selection and reconciliation; Number ("A-01") is a label.
type Seat struct {
	ID         int64             `json:"id"`
	Number     string            `json:"number"`
	AreaID     int64             `json:"areaId"`
	Table      string            `json:"table"`
	Position   Position          `json:"position"`
	Index      int               `json:"index"`
	Status     Status            `json:"status"`
	OccupiedBy string            `json:"occupiedBy,omitempty"`
	BookedByMe bool              `json:"bookedByMe"`
	BookingID  *int64            `json:"bookingId,omitempty"`
	Geometry   *backend.Geometry `json:"geometry,omitempty"`
}

// TimeSlot is a bookable window with a display label.
type TimeSlot struct {
	ID    int64  `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
	Label string `json:"label"`
}

// SeatsFromMap turns the backend seat listing into seat view-models.
func SeatsFromMap(m *backend.SeatMap) []Seat {
	if m == nil {
		return nil
	}
	var seats []Seat
	for _, area := range m.Areas {
		for _, bs := range area.Seats {
			seat := Seat{
				ID:       bs.SeatID,
				Number:   bs.SeatNumber,
				AreaID:   area.ID,
				Table:    seatTable(bs, area),
				Position: Right,
				Status:   StatusAvailable,
				Geometry: parseGeometry(bs),
			}
			if bs.ColumnNum != nil && *bs.ColumnNum == 1 {
				seat.Position = Left
			}
			if bs.RowNum != nil {
				seat.Index = *bs.RowNum
			}
			if !bs.IsAvailable || bs.BookingUserInfo != nil {
				seat.Status = StatusOccupied
				seat.OccupiedBy = occupiedPlaceholder
				if bs.BookingUserInfo != nil && bs.BookingUserInfo.UserName != "" {
					seat.OccupiedBy = bs.BookingUserInfo.UserName
				}
			}
			seats = append(seats, seat)
		}
	}
	return seats
}

func seatTable(bs backend.Seat, area backend.Area) string {
	if bs.Table != nil && strings.TrimSpace(*bs.Table) != "" {
		return *bs.Table
	}
	if n, err := parse.ParseSeatNumber(bs.SeatNumber); err == nil {
		return n.Table
	}
	return area.Name
}

func parseGeometry(bs backend.Seat) *backend.Geometry {
	if bs.Description == nil || strings.TrimSpace(*bs.Description) == "" {
		return nil
	}
	var g backend.Geometry
	if err := json.Unmarshal([]byte(*bs.Description), &g); err != nil {
		log.Warnf("Failed to parse description of seat %d: %v", bs.SeatID, err)
		return nil
	}
	return &g
}

// timeSlotsFrom labels backend slots. Slots without explicit times fall back to their name.
func timeSlotsFrom(slots []backend.TimeSlot) []TimeSlot {
	out := make([]TimeSlot, 0, len(slots))
	for _, ts := range slots {
		st := parse.SlotTime{Start: ts.StartTime, End: ts.EndTime}
		if st.Start == "" || st.End == "" {
			parsed, err := parse.ParseSlotLabel(ts.Name)
			if err != nil {
				log.Warnf("Time slot %d has no usable times: %v", ts.ID, err)
			} else {
				st = parsed
			}
		}
		label := st.Label()
		if st.Start == "" {
			label = ts.Name
		}
		out = append(out, TimeSlot{ID: ts.ID, Start: st.Start, End: st.End, Label: label})
	}
	return out
}
