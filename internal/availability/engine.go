package availability

import (
	"errors"
	"sort"
	"time"
)

// Window is a recurring weekly stretch during which an interpreter accepts
// bookings, expressed in minutes from local midnight.
type Window struct {
	Weekday     time.Weekday
	StartMinute int
	EndMinute   int
}

// Rule describes an interpreter's recurring weekly availability.
type Rule struct {
	ID             string
	InterpreterID  string
	Windows        []Window
	EffectiveFrom  time.Time
	EffectiveUntil *time.Time
}

// Slot is a concrete bookable stretch generated from a rule.
type Slot struct {
	InterpreterID string
	RuleID        string
	Start         time.Time
	End           time.Time
}

// Engine expands availability rules into concrete slots.
type Engine struct {
	location *time.Location
}

// NewEngine constructs an Engine that normalizes results to the provided
// location. If loc is nil, UTC is used.
func NewEngine(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.UTC
	}
	return &Engine{location: loc}
}

// ErrInvalidRange indicates the expansion range is unbounded or inverted.
var ErrInvalidRange = errors.New("availability: range requires ordered bounds")

// ErrInvalidWindow indicates a rule window is malformed.
var ErrInvalidWindow = errors.New("availability: window must end after it starts within one day")

const minutesPerDay = 24 * 60

// Expand produces the concrete slots a rule yields within [rangeStart, rangeEnd).
// Slots are clipped to the rule's effective bounds and returned ordered by start.
func (e *Engine) Expand(rule Rule, rangeStart, rangeEnd time.Time) ([]Slot, error) {
	loc := e.location
	if loc == nil {
		loc = time.UTC
	}

	if rangeStart.IsZero() || rangeEnd.IsZero() || !rangeEnd.After(rangeStart) {
		return nil, ErrInvalidRange
	}

	for _, window := range rule.Windows {
		if window.StartMinute < 0 || window.EndMinute > minutesPerDay || window.EndMinute <= window.StartMinute {
			return nil, ErrInvalidWindow
		}
	}

	lower := rangeStart.In(loc)
	if effective := rule.EffectiveFrom.In(loc); !rule.EffectiveFrom.IsZero() && effective.After(lower) {
		lower = effective
	}
	upper := rangeEnd.In(loc)
	if rule.EffectiveUntil != nil {
		if until := rule.EffectiveUntil.In(loc); until.Before(upper) {
			upper = until
		}
	}
	if !upper.After(lower) {
		return nil, nil
	}

	byWeekday := make(map[time.Weekday][]Window, len(rule.Windows))
	for _, window := range rule.Windows {
		byWeekday[window.Weekday] = append(byWeekday[window.Weekday], window)
	}

	slots := make([]Slot, 0)
	day := time.Date(lower.Year(), lower.Month(), lower.Day(), 0, 0, 0, 0, loc)
	for day.Before(upper) {
		for _, window := range byWeekday[day.Weekday()] {
			start := day.Add(time.Duration(window.StartMinute) * time.Minute)
			end := day.Add(time.Duration(window.EndMinute) * time.Minute)
			if !start.Before(upper) || !end.After(lower) {
				continue
			}
			if start.Before(lower) {
				start = lower
			}
			if end.After(upper) {
				end = upper
			}
			slots = append(slots, Slot{
				InterpreterID: rule.InterpreterID,
				RuleID:        rule.ID,
				Start:         start,
				End:           end,
			})
		}
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})

	return slots, nil
}

// ExpandAll expands several rules and merges their slots in start order.
func (e *Engine) ExpandAll(rules []Rule, rangeStart, rangeEnd time.Time) ([]Slot, error) {
	merged := make([]Slot, 0)
	for _, rule := range rules {
		slots, err := e.Expand(rule, rangeStart, rangeEnd)
		if err != nil {
			return nil, err
		}
		merged = append(merged, slots...)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Start.Equal(merged[j].Start) {
			return merged[i].RuleID < merged[j].RuleID
		}
		return merged[i].Start.Before(merged[j].Start)
	})

	return merged, nil
}
