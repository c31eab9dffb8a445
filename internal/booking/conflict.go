package booking

import "time"

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval has a positive duration.
func (i Interval) Valid() bool {
	return !i.Start.IsZero() && !i.End.IsZero() && i.End.After(i.Start)
}

// Duration returns the span covered by the interval.
func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Back-to-back intervals, where one ends exactly as the other starts,
// do not overlap.
func (i Interval) Overlaps(other Interval) bool {
	return i.Start.Before(other.End) && other.Start.Before(i.End)
}

// Committed identifies a session that currently occupies an interpreter's
// calendar. Only CONFIRMED or IN_PROGRESS sessions that have not been
// superseded by a reschedule belong in the committed set; assembling that
// set is the caller's responsibility.
type Committed struct {
	SessionID string
	Interval  Interval
}

// Verdict is the outcome of a bookability check.
type Verdict struct {
	Bookable      bool
	ConflictsWith string
}

// Check decides whether the candidate interval can be booked against the
// committed set. excludeSessionID removes one session from consideration so a
// reschedule can re-check an interval against everything except the session
// being replaced. When several committed sessions overlap the candidate, the
// earliest-starting one is reported.
func Check(existing []Committed, candidate Interval, excludeSessionID string) Verdict {
	var conflict *Committed
	for idx := range existing {
		current := &existing[idx]
		if excludeSessionID != "" && current.SessionID == excludeSessionID {
			continue
		}
		if !current.Interval.Overlaps(candidate) {
			continue
		}
		if conflict == nil || current.Interval.Start.Before(conflict.Interval.Start) {
			conflict = current
		}
	}

	if conflict == nil {
		return Verdict{Bookable: true}
	}
	return Verdict{ConflictsWith: conflict.SessionID}
}
