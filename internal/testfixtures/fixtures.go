package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/pricing"
)

var (
	sessionCounter     uint64
	requestCounter     uint64
	interpreterCounter uint64
)

var referenceTime = time.Date(2025, time.June, 2, 9, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// SessionFixture builds lifecycle sessions with sensible defaults.
type SessionFixture struct {
	Session lifecycle.Session
}

// SessionOption mutates a session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture constructs a session fixture. Defaults describe a one-hour
// confirmed video session starting at the reference time.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	n := atomic.AddUint64(&sessionCounter, 1)
	f := SessionFixture{Session: lifecycle.Session{
		ID:             fmt.Sprintf("ses-%d", n),
		RequestID:      fmt.Sprintf("req-%d", n),
		ClientID:       "client-1",
		InterpreterID:  "int-1",
		Type:           lifecycle.SessionTypeVideo,
		Specialization: "medical",
		LanguageFrom:   "en",
		LanguageTo:     "es",
		Status:         lifecycle.SessionConfirmed,
		ScheduledStart: referenceTime,
		ScheduledEnd:   referenceTime.Add(time.Hour),
		HourlyRate:     50,
		CreatedAt:      referenceTime.Add(-24 * time.Hour),
		UpdatedAt:      referenceTime.Add(-24 * time.Hour),
	}}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithSessionID overrides the session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) { f.Session.ID = id }
}

// WithSessionStatus overrides the session status.
func WithSessionStatus(status lifecycle.SessionStatus) SessionOption {
	return func(f *SessionFixture) { f.Session.Status = status }
}

// WithSessionInterval overrides the scheduled interval.
func WithSessionInterval(start, end time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.Session.ScheduledStart = start
		f.Session.ScheduledEnd = end
	}
}

// WithSessionParties overrides the client and interpreter.
func WithSessionParties(clientID, interpreterID string) SessionOption {
	return func(f *SessionFixture) {
		f.Session.ClientID = clientID
		f.Session.InterpreterID = interpreterID
	}
}

// WithSessionType overrides the session type.
func WithSessionType(t lifecycle.SessionType) SessionOption {
	return func(f *SessionFixture) { f.Session.Type = t }
}

// RequestFixture builds service requests with sensible defaults.
type RequestFixture struct {
	Request lifecycle.ServiceRequest
}

// RequestOption mutates a request fixture.
type RequestOption func(*RequestFixture)

// NewRequestFixture constructs a pending phone interpretation request.
func NewRequestFixture(opts ...RequestOption) RequestFixture {
	n := atomic.AddUint64(&requestCounter, 1)
	start := referenceTime
	end := referenceTime.Add(time.Hour)
	f := RequestFixture{Request: lifecycle.ServiceRequest{
		ID:             fmt.Sprintf("req-%d", n),
		ClientID:       "client-1",
		Type:           lifecycle.SessionTypePhone,
		Specialization: "legal",
		LanguageFrom:   "en",
		LanguageTo:     "fr",
		PreferredStart: &start,
		PreferredEnd:   &end,
		Urgency:        lifecycle.UrgencyStandard,
		Status:         lifecycle.RequestPending,
		CreatedAt:      referenceTime.Add(-time.Hour),
		UpdatedAt:      referenceTime.Add(-time.Hour),
	}}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithRequestStatus overrides the request status.
func WithRequestStatus(status lifecycle.RequestStatus) RequestOption {
	return func(f *RequestFixture) { f.Request.Status = status }
}

// WithRequestClient overrides the requesting client.
func WithRequestClient(clientID string) RequestOption {
	return func(f *RequestFixture) { f.Request.ClientID = clientID }
}

// InterpreterFixture builds interpreter profiles with sensible defaults.
type InterpreterFixture struct {
	Interpreter lifecycle.Interpreter
}

// InterpreterOption mutates an interpreter fixture.
type InterpreterOption func(*InterpreterFixture)

// NewInterpreterFixture constructs an active interpreter with hourly and
// per-word rates.
func NewInterpreterFixture(opts ...InterpreterOption) InterpreterFixture {
	n := atomic.AddUint64(&interpreterCounter, 1)
	f := InterpreterFixture{Interpreter: lifecycle.Interpreter{
		ID:              fmt.Sprintf("int-%d", n),
		UserID:          fmt.Sprintf("user-%d", n),
		Name:            fmt.Sprintf("Interpreter %d", n),
		Status:          lifecycle.InterpreterActive,
		Availability:    lifecycle.AvailabilityAvailable,
		Languages:       []string{"en>es"},
		Specializations: []string{"medical"},
		SessionTypes:    []lifecycle.SessionType{lifecycle.SessionTypeVideo, lifecycle.SessionTypePhone},
		Rates: pricing.RateStructure{
			HourlyRate:      50,
			MinimumHours:    1,
			RatePerWord:     0.12,
			Specializations: map[string]float64{"medical": 1.25},
		},
		CreatedAt: referenceTime.Add(-30 * 24 * time.Hour),
		UpdatedAt: referenceTime.Add(-30 * 24 * time.Hour),
	}}
	for _, opt := range opts {
		opt(&f)
	}
	return f
}

// WithInterpreterID overrides the interpreter ID.
func WithInterpreterID(id string) InterpreterOption {
	return func(f *InterpreterFixture) { f.Interpreter.ID = id }
}

// WithInterpreterStatus overrides the interpreter status.
func WithInterpreterStatus(status lifecycle.InterpreterStatus) InterpreterOption {
	return func(f *InterpreterFixture) { f.Interpreter.Status = status }
}

// WithInterpreterRates overrides the rate structure.
func WithInterpreterRates(rates pricing.RateStructure) InterpreterOption {
	return func(f *InterpreterFixture) { f.Interpreter.Rates = rates }
}
