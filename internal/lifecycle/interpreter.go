package lifecycle

import (
	"time"

	"github.com/example/interpreter-brokerage/internal/pricing"
	"github.com/example/interpreter-brokerage/internal/rating"
)

// InterpreterStatus reflects whether an interpreter may take on work.
type InterpreterStatus string

const (
	InterpreterActive    InterpreterStatus = "ACTIVE"
	InterpreterInactive  InterpreterStatus = "INACTIVE"
	InterpreterSuspended InterpreterStatus = "SUSPENDED"
)

// AvailabilityStatus is the interpreter's self-reported availability.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "AVAILABLE"
	AvailabilityBusy      AvailabilityStatus = "BUSY"
	AvailabilityOffline   AvailabilityStatus = "OFFLINE"
)

// InterpreterStats is the running statistics block maintained through
// RecomputeInterpreterStats effects.
type InterpreterStats struct {
	TotalSessionsCompleted int
	AverageRating          float64
	TotalRatings           int
	TotalEarnings          float64
}

// Aggregate returns the rating view of the stats block.
func (s InterpreterStats) Aggregate() rating.Aggregate {
	return rating.Aggregate{Average: s.AverageRating, Total: s.TotalRatings}
}

// Interpreter is the aggregate profile over which scheduling conflicts are
// evaluated. Its committed sessions form the conflict domain.
type Interpreter struct {
	ID     string
	UserID string
	Name   string

	Status       InterpreterStatus
	Availability AvailabilityStatus

	// Supported language pairs as "from>to" keys, plus specializations and
	// the session types the interpreter accepts.
	Languages       []string
	Specializations []string
	SessionTypes    []SessionType

	Rates pricing.RateStructure
	Stats InterpreterStats

	CreatedAt time.Time
	UpdatedAt time.Time
}
