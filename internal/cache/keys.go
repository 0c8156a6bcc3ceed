package cache

import (
	"fmt"
	"time"
)

// TTL presets.
const (
	TTLShort    = time.Minute
	TTLMedium   = 5 * time.Minute
	TTLLong     = 30 * time.Minute
	TTLVeryLong = 24 * time.Hour
)

// Fixed keys.
const (
	KeyUserInfo         = "user_info"
	KeyUserCredits      = "user_credits"
	KeySeatAreas        = "seat_areas"
	KeySeatTimeSlots    = "seat_time_slots"
	KeyUserBookings     = "user_bookings"
	KeyUserInvitations  = "user_invitations"
	KeyUserTransactions = "user_transactions"
)

// SeatMapKey returns the key of one area's seat map; 0 means all areas.
func SeatMapKey(areaID int64) string {
	return "seat_map_" + areaPart(areaID)
}

func areaPart(areaID int64) string {
	if areaID <= 0 {
		return "all"
	}
	return fmt.Sprint(areaID)
}
