package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var slotRangeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*[-~－至]\s*(\d{1,2}):(\d{2})`)

// Named slots used by the venue when the backend only sends a label.
var (
	MorningSlot   = SlotTime{Start: "09:00", End: "12:00"}
	AfternoonSlot = SlotTime{Start: "14:00", End: "17:00"}
)

// SlotTime is a time-slot window in HH:mm form.
type SlotTime struct {
	Start string
	End   string
}

// Label renders the window the way the booking UI shows it.
func (s SlotTime) Label() string {
	return s.Start + " - " + s.End
}

// ParseSlotLabel extracts the window from labels such as "09:00-12:00", "9:00 - 12:00"
// or the named "上午时段"/"下午时段".
func ParseSlotLabel(label string) (SlotTime, error) {
	if m := slotRangeRe.FindStringSubmatch(label); m != nil {
		start, err := clock(m[1], m[2])
		if err != nil {
			return SlotTime{}, fmt.Errorf("invalid start in %q: %w", label, err)
		}
		end, err := clock(m[3], m[4])
		if err != nil {
			return SlotTime{}, fmt.Errorf("invalid end in %q: %w", label, err)
		}
		return SlotTime{Start: start, End: end}, nil
	}

	switch {
	case strings.Contains(label, "上午"):
		return MorningSlot, nil
	case strings.Contains(label, "下午"):
		return AfternoonSlot, nil
	}
	return SlotTime{}, fmt.Errorf("unable to parse time slot: %q", label)
}

// ParseClock returns the minutes since midnight for an "HH:mm" (or "HH:mm:ss") value.
func ParseClock(value string) (int, error) {
	parts := strings.Split(strings.TrimSpace(value), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock value: %q", value)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", value)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", value)
	}
	return h*60 + m, nil
}

func clock(hour, minute string) (string, error) {
	v := hour + ":" + minute
	mins, err := ParseClock(v)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60), nil
}
