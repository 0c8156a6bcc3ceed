package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seat-booking-companion/internal/backend"
)

func TestGroupBookings(t *testing.T) {
	group := int64(10)
	bookings := []backend.Booking{
		{ID: 3, UserID: 1, SeatNumber: "B-01", BookingDate: "2025-12-03", StartTime: "09:00"},
		{ID: 1, UserID: 1, SeatNumber: "A-01", BookingDate: "2025-12-02", StartTime: "14:00", GroupID: &group,
			Partners: []backend.Partner{{PartnerUserID: 7}, {PartnerUserID: 8}}},
		{ID: 2, UserID: 1, SeatNumber: "A-01", BookingDate: "2025-12-02", StartTime: "09:00", GroupID: &group,
			Partners: []backend.Partner{{PartnerUserID: 7}}},
		{ID: 4, UserID: 1, SeatNumber: "C-02",
			TimeSlotDetails: []backend.TimeSlotDetail{
				{BookingDate: "2025-12-05", StartTime: "09:00"},
				{BookingDate: "2025-12-01", StartTime: "14:00"},
			}},
	}

	groups := GroupBookings(bookings)
	require.Len(t, groups, 3)

	assert.Equal(t, int64(4), groups[0].ID, "ordered by earliest slot date")
	assert.Equal(t, "2025-12-01", groups[0].FirstDate)

	assert.Equal(t, int64(10), groups[1].ID)
	assert.Equal(t, "A-01组", groups[1].Name)
	assert.Equal(t, []int64{1, 2}, groups[1].BookingIDs)
	assert.Equal(t, []int64{1, 7, 8}, groups[1].MemberIDs)
	assert.Equal(t, "2025-12-02", groups[1].FirstDate)

	assert.Equal(t, int64(3), groups[2].ID, "falls back to the booking id")
	assert.Equal(t, []int64{1}, groups[2].MemberIDs)

	assert.Empty(t, GroupBookings(nil))
}
