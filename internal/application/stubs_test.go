package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/example/interpreter-brokerage/internal/availability"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/persistence"
)

type stubSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]lifecycle.Session
}

func newStubSessionRepo() *stubSessionRepo {
	return &stubSessionRepo{sessions: make(map[string]lifecycle.Session)}
}

func (r *stubSessionRepo) CreateSession(_ context.Context, session lifecycle.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *stubSessionRepo) UpdateSession(_ context.Context, session lifecycle.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[session.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.sessions[session.ID] = session
	return nil
}

func (r *stubSessionRepo) GetSession(_ context.Context, id string) (lifecycle.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return lifecycle.Session{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *stubSessionRepo) ListSessions(_ context.Context, filter persistence.SessionFilter) ([]lifecycle.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lifecycle.Session
	for _, session := range r.sessions {
		if filter.ClientID != "" && session.ClientID != filter.ClientID {
			continue
		}
		if filter.InterpreterID != "" && session.InterpreterID != filter.InterpreterID {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if session.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out, nil
}

func (r *stubSessionRepo) CommittedSessions(_ context.Context, interpreterID string) ([]lifecycle.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lifecycle.Session
	for _, session := range r.sessions {
		if session.InterpreterID == interpreterID && session.Committed() {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledStart.Before(out[j].ScheduledStart) })
	return out, nil
}

type stubRequestRepo struct {
	mu       sync.Mutex
	requests map[string]lifecycle.ServiceRequest
}

func newStubRequestRepo() *stubRequestRepo {
	return &stubRequestRepo{requests: make(map[string]lifecycle.ServiceRequest)}
}

func (r *stubRequestRepo) CreateRequest(_ context.Context, request lifecycle.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.requests[request.ID] = request
	return nil
}

func (r *stubRequestRepo) UpdateRequest(_ context.Context, request lifecycle.ServiceRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.requests[request.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.requests[request.ID] = request
	return nil
}

func (r *stubRequestRepo) GetRequest(_ context.Context, id string) (lifecycle.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	request, ok := r.requests[id]
	if !ok {
		return lifecycle.ServiceRequest{}, persistence.ErrNotFound
	}
	return request, nil
}

func (r *stubRequestRepo) ListRequests(_ context.Context, filter persistence.RequestFilter) ([]lifecycle.ServiceRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lifecycle.ServiceRequest
	for _, request := range r.requests {
		if filter.ClientID != "" && request.ClientID != filter.ClientID {
			continue
		}
		if len(filter.Statuses) > 0 {
			matched := false
			for _, status := range filter.Statuses {
				if request.Status == status {
					matched = true
					break
				}
			}
			if !matched {
				continue
			}
		}
		out = append(out, request)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type stubInterpreterRepo struct {
	mu           sync.Mutex
	interpreters map[string]lifecycle.Interpreter
}

func newStubInterpreterRepo() *stubInterpreterRepo {
	return &stubInterpreterRepo{interpreters: make(map[string]lifecycle.Interpreter)}
}

func (r *stubInterpreterRepo) CreateInterpreter(_ context.Context, interpreter lifecycle.Interpreter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.interpreters[interpreter.ID]; ok {
		return persistence.ErrDuplicate
	}
	r.interpreters[interpreter.ID] = interpreter
	return nil
}

func (r *stubInterpreterRepo) UpdateInterpreter(_ context.Context, interpreter lifecycle.Interpreter) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.interpreters[interpreter.ID]; !ok {
		return persistence.ErrNotFound
	}
	r.interpreters[interpreter.ID] = interpreter
	return nil
}

func (r *stubInterpreterRepo) GetInterpreter(_ context.Context, id string) (lifecycle.Interpreter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	interpreter, ok := r.interpreters[id]
	if !ok {
		return lifecycle.Interpreter{}, persistence.ErrNotFound
	}
	return interpreter, nil
}

func (r *stubInterpreterRepo) GetInterpreterByUserID(_ context.Context, userID string) (lifecycle.Interpreter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, interpreter := range r.interpreters {
		if interpreter.UserID == userID {
			return interpreter, nil
		}
	}
	return lifecycle.Interpreter{}, persistence.ErrNotFound
}

func (r *stubInterpreterRepo) ListInterpreters(_ context.Context) ([]lifecycle.Interpreter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []lifecycle.Interpreter
	for _, interpreter := range r.interpreters {
		out = append(out, interpreter)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubInterpreterRepo) UpdateStats(_ context.Context, interpreterID string, stats lifecycle.InterpreterStats) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	interpreter, ok := r.interpreters[interpreterID]
	if !ok {
		return persistence.ErrNotFound
	}
	interpreter.Stats = stats
	r.interpreters[interpreterID] = interpreter
	return nil
}

type stubAvailabilityRepo struct {
	mu    sync.Mutex
	rules map[string]availability.Rule
}

func newStubAvailabilityRepo() *stubAvailabilityRepo {
	return &stubAvailabilityRepo{rules: make(map[string]availability.Rule)}
}

func (r *stubAvailabilityRepo) UpsertRule(_ context.Context, rule availability.Rule) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rules[rule.ID] = rule
	return nil
}

func (r *stubAvailabilityRepo) ListRulesForInterpreter(_ context.Context, interpreterID string) ([]availability.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []availability.Rule
	for _, rule := range r.rules {
		if rule.InterpreterID == interpreterID {
			out = append(out, rule)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *stubAvailabilityRepo) DeleteRule(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rules[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(r.rules, id)
	return nil
}

type stubCredentialStore struct {
	mu    sync.Mutex
	users map[string]persistence.UserCredentials
}

func newStubCredentialStore() *stubCredentialStore {
	return &stubCredentialStore{users: make(map[string]persistence.UserCredentials)}
}

func (r *stubCredentialStore) CreateUser(_ context.Context, creds persistence.UserCredentials) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.User.Email == creds.User.Email {
			return persistence.ErrDuplicate
		}
	}
	r.users[creds.User.ID] = creds
	return nil
}

func (r *stubCredentialStore) GetUser(_ context.Context, id string) (persistence.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	creds, ok := r.users[id]
	if !ok {
		return persistence.User{}, persistence.ErrNotFound
	}
	return creds.User, nil
}

func (r *stubCredentialStore) GetUserCredentialsByEmail(_ context.Context, email string) (persistence.UserCredentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, creds := range r.users {
		if creds.User.Email == email {
			return creds, nil
		}
	}
	return persistence.UserCredentials{}, persistence.ErrNotFound
}

type stubAuthSessionStore struct {
	mu       sync.Mutex
	sessions map[string]persistence.AuthSession
}

func newStubAuthSessionStore() *stubAuthSessionStore {
	return &stubAuthSessionStore{sessions: make(map[string]persistence.AuthSession)}
}

func (r *stubAuthSessionStore) CreateAuthSession(_ context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = session
	return session, nil
}

func (r *stubAuthSessionStore) GetAuthSession(_ context.Context, id string) (persistence.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	return session, nil
}

func (r *stubAuthSessionStore) RevokeAuthSession(_ context.Context, id string, revokedAt time.Time) (persistence.AuthSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	if session.RevokedAt == nil {
		session.RevokedAt = &revokedAt
		r.sessions[id] = session
	}
	return session, nil
}

func (r *stubAuthSessionStore) DeleteExpiredAuthSessions(_ context.Context, reference time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, session := range r.sessions {
		if session.ExpiresAt.Before(reference) {
			delete(r.sessions, id)
		}
	}
	return nil
}

type capturedEvent struct {
	Event   string
	Payload map[string]string
}

type captureNotifier struct {
	mu     sync.Mutex
	events []capturedEvent
}

func (n *captureNotifier) Publish(_ context.Context, event string, payload map[string]string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, capturedEvent{Event: event, Payload: payload})
	return nil
}

func (n *captureNotifier) Events() []capturedEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]capturedEvent, len(n.events))
	copy(out, n.events)
	return out
}

type captureInvoices struct {
	mu          sync.Mutex
	invalidated []string
}

func (c *captureInvoices) Invalidate(_ context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, sessionID)
	return nil
}
