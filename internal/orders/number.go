package orders

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Order numbers are a date-prefixed daily sequence: ORD-20260829-0001.
// The next number is derived from the latest order created since local
// midnight. Two concurrent checkouts can read the same latest order and
// both mint the same number; the source system carries the same race.

const orderNumberPrefix = "ORD"

// NextOrderNumber returns the order number following last for the day of
// now. last is the number of the most recent order created since local
// midnight, or the empty string when today has no orders yet. A last value
// from a different day (or malformed) restarts the sequence at 1.
func NextOrderNumber(last string, now time.Time) string {
	day := now.Format("20060102")
	seq := 1
	if prev, ok := parseOrderNumber(last, day); ok {
		seq = prev + 1
	}
	return fmt.Sprintf("%s-%s-%04d", orderNumberPrefix, day, seq)
}

// StartOfDay returns local midnight for the given time.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func parseOrderNumber(s, day string) (int, bool) {
	parts := strings.Split(s, "-")
	if len(parts) != 3 || parts[0] != orderNumberPrefix || parts[1] != day {
		return 0, false
	}
	seq, err := strconv.Atoi(parts[2])
	if err != nil || seq < 1 {
		return 0, false
	}
	return seq, true
}
