package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var seatNumberRe = regexp.MustCompile(`^\s*([A-Za-z]+)\s*-?\s*(\d+)\s*$`)

// SeatNumber holds the structured data parsed from a seat's display code such as "A-01".
type SeatNumber struct {
	Table string
	Index int
}

func (s SeatNumber) String() string {
	return FormatSeatNumber(s.Table, s.Index)
}

// ParseSeatNumber extracts the table letter(s) and the 1-based index from a display code.
// "A-01", "a01" and "B 7" are accepted; the table is upper-cased.
func ParseSeatNumber(raw string) (SeatNumber, error) {
	// Accept full-width hyphens.
	s := strings.ReplaceAll(raw, "－", "-")
	m := seatNumberRe.FindStringSubmatch(s)
	if m == nil {
		return SeatNumber{}, fmt.Errorf("unable to parse seat number: %q", raw)
	}

	idx, err := strconv.Atoi(m[2])
	if err != nil || idx <= 0 {
		return SeatNumber{}, fmt.Errorf("invalid seat index in %q", raw)
	}
	return SeatNumber{Table: strings.ToUpper(m[1]), Index: idx}, nil
}

// FormatSeatNumber renders the canonical display code, e.g. ("A", 1) -> "A-01".
func FormatSeatNumber(table string, index int) string {
	return fmt.Sprintf("%s-%02d", table, index)
}
