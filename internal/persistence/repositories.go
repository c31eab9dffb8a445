package persistence

import (
	"context"
	"time"

	"github.com/example/interpreter-brokerage/internal/availability"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
)

// SessionFilter narrows session queries.
type SessionFilter struct {
	ClientID      string
	InterpreterID string
	Statuses      []lifecycle.SessionStatus
	StartsAfter   *time.Time
	EndsBefore    *time.Time
}

// SessionRepository stores interpreter sessions. Sessions are never deleted;
// terminal and superseded sessions stay queryable for history.
type SessionRepository interface {
	CreateSession(ctx context.Context, session lifecycle.Session) error
	UpdateSession(ctx context.Context, session lifecycle.Session) error
	GetSession(ctx context.Context, id string) (lifecycle.Session, error)
	ListSessions(ctx context.Context, filter SessionFilter) ([]lifecycle.Session, error)
	// CommittedSessions returns the interpreter's CONFIRMED and IN_PROGRESS
	// sessions that have not been superseded by a reschedule, ordered by
	// scheduled start. This is the conflict domain for the interpreter.
	CommittedSessions(ctx context.Context, interpreterID string) ([]lifecycle.Session, error)
}

// RequestFilter narrows service request queries.
type RequestFilter struct {
	ClientID string
	Statuses []lifecycle.RequestStatus
}

// RequestRepository stores service requests.
type RequestRepository interface {
	CreateRequest(ctx context.Context, request lifecycle.ServiceRequest) error
	UpdateRequest(ctx context.Context, request lifecycle.ServiceRequest) error
	GetRequest(ctx context.Context, id string) (lifecycle.ServiceRequest, error)
	ListRequests(ctx context.Context, filter RequestFilter) ([]lifecycle.ServiceRequest, error)
}

// InterpreterRepository stores interpreter profiles and their running statistics.
type InterpreterRepository interface {
	CreateInterpreter(ctx context.Context, interpreter lifecycle.Interpreter) error
	UpdateInterpreter(ctx context.Context, interpreter lifecycle.Interpreter) error
	GetInterpreter(ctx context.Context, id string) (lifecycle.Interpreter, error)
	// GetInterpreterByUserID resolves the profile owned by a platform user.
	GetInterpreterByUserID(ctx context.Context, userID string) (lifecycle.Interpreter, error)
	ListInterpreters(ctx context.Context) ([]lifecycle.Interpreter, error)
	// UpdateStats replaces the interpreter's statistics block.
	UpdateStats(ctx context.Context, interpreterID string, stats lifecycle.InterpreterStats) error
}

// AvailabilityRepository stores recurring weekly availability rules.
type AvailabilityRepository interface {
	UpsertRule(ctx context.Context, rule availability.Rule) error
	ListRulesForInterpreter(ctx context.Context, interpreterID string) ([]availability.Rule, error)
	DeleteRule(ctx context.Context, id string) error
}

// UserRepository stores platform accounts and their credentials.
type UserRepository interface {
	CreateUser(ctx context.Context, creds UserCredentials) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// AuthSessionRepository stores revocable authentication session state.
type AuthSessionRepository interface {
	CreateAuthSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetAuthSession(ctx context.Context, id string) (AuthSession, error)
	RevokeAuthSession(ctx context.Context, id string, revokedAt time.Time) (AuthSession, error)
	DeleteExpiredAuthSessions(ctx context.Context, reference time.Time) error
}
