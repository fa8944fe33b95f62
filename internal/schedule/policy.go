// Package schedule holds the clinic's fixed slot policy and the date/time
// value types used across booking.
package schedule

// Capacity classes. A double slot falls where the morning and afternoon
// shifts overlap.
const (
	CapacitySingle = 1
	CapacityDouble = 2
)

var catalog = []Clock{
	MustClock("07:00"),
	MustClock("08:00"),
	MustClock("09:00"),
	MustClock("10:00"),
	MustClock("11:00"),
	MustClock("13:00"),
	MustClock("14:00"),
	MustClock("15:00"),
	MustClock("16:00"),
	MustClock("17:00"),
	MustClock("18:00"),
}

var doubleSlots = map[Clock]bool{
	MustClock("10:00"): true,
	MustClock("11:00"): true,
	MustClock("13:00"): true,
	MustClock("14:00"): true,
	MustClock("15:00"): true,
}

// Catalog returns the bookable times of a day in order. The slice is a copy.
func Catalog() []Clock {
	out := make([]Clock, len(catalog))
	copy(out, catalog)
	return out
}

// IsBookableTime reports whether c is one of the catalog times.
func IsBookableTime(c Clock) bool {
	for _, t := range catalog {
		if t == c {
			return true
		}
	}
	return false
}

// CapacityFor returns how many concurrent appointments one specialty may hold
// at c, or 0 when c is not a catalog time.
func CapacityFor(c Clock) int {
	if !IsBookableTime(c) {
		return 0
	}
	if doubleSlots[c] {
		return CapacityDouble
	}
	return CapacitySingle
}
