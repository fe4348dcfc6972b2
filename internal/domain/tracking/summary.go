package tracking

import "time"

// Summary counts an outlet's orders by workflow position for one day.
type Summary struct {
	Pending    int
	ToProcess  int
	InProgress int
	Taken      int
}

// Summarize aggregates one day of activity. Entries of each activity must
// be in ledger order.
//
//   - Pending: the latest operational entry of the day is Order Created and the order is unpaid.
//   - ToProcess: the same, but the order is paid.
//   - InProgress: the order has an In Progress entry that day.
//   - Taken: the order has a Taken entry that day.
func Summarize(day []DayActivity) Summary {
	var s Summary
	for _, a := range day {
		var latest Status
		for _, e := range a.Entries {
			if e.Status.operational() {
				latest = e.Status
			}
		}
		if latest == StatusOrderCreated {
			switch {
			case a.Unpaid:
				s.Pending++
			case a.Paid:
				s.ToProcess++
			}
		}
		if Has(a.Entries, StatusInProgress) {
			s.InProgress++
		}
		if Has(a.Entries, StatusTaken) {
			s.Taken++
		}
	}
	return s
}

// DayBounds returns the half-open interval [from, to) of the calendar day
// containing t in loc.
func DayBounds(t time.Time, loc *time.Location) (from, to time.Time) {
	t = t.In(loc)
	from = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return from, from.AddDate(0, 0, 1)
}
