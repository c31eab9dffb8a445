package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/rating"
	"github.com/example/interpreter-brokerage/internal/testfixtures"
)

type sessionHarness struct {
	service      *SessionService
	sessions     *stubSessionRepo
	interpreters *stubInterpreterRepo
	notifier     *captureNotifier
	invoices     *captureInvoices
	clock        *testfixtures.Clock
}

func newSessionHarness(t *testing.T) *sessionHarness {
	t.Helper()

	sessions := newStubSessionRepo()
	interpreters := newStubInterpreterRepo()
	notifier := &captureNotifier{}
	invoices := &captureInvoices{}
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("new")

	executor := NewEffectExecutor(sessions, newStubRequestRepo(), interpreters, notifier, invoices, nil)
	service := NewSessionService(sessions, interpreters, nil, executor, ids.NextFunc(), clock.NowFunc())

	return &sessionHarness{
		service:      service,
		sessions:     sessions,
		interpreters: interpreters,
		notifier:     notifier,
		invoices:     invoices,
		clock:        clock,
	}
}

func (h *sessionHarness) seedInterpreter(t *testing.T, opts ...testfixtures.InterpreterOption) lifecycle.Interpreter {
	t.Helper()
	interpreter := testfixtures.NewInterpreterFixture(append([]testfixtures.InterpreterOption{testfixtures.WithInterpreterID("int-1")}, opts...)...).Interpreter
	if err := h.interpreters.CreateInterpreter(context.Background(), interpreter); err != nil {
		t.Fatalf("seed interpreter: %v", err)
	}
	return interpreter
}

func (h *sessionHarness) seedSession(t *testing.T, opts ...testfixtures.SessionOption) lifecycle.Session {
	t.Helper()
	session := testfixtures.NewSessionFixture(opts...).Session
	if err := h.sessions.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return session
}

func clientPrincipal(id string) Principal {
	return Principal{UserID: id, Role: lifecycle.RoleClient}
}

func TestSessionServiceCreateSession(t *testing.T) {
	t.Run("books a requested session with the interpreter's rate", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t)

		start := testfixtures.ReferenceTime().Add(48 * time.Hour)
		session, err := h.service.CreateSession(context.Background(), CreateSessionParams{
			Principal: clientPrincipal("client-1"),
			Input: SessionInput{
				ClientID:       "client-1",
				InterpreterID:  "int-1",
				Type:           lifecycle.SessionTypeVideo,
				LanguageFrom:   "en",
				LanguageTo:     "es",
				ScheduledStart: start,
				ScheduledEnd:   start.Add(time.Hour),
			},
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		if session.Status != lifecycle.SessionRequested {
			t.Errorf("status = %s, want REQUESTED", session.Status)
		}
		if session.HourlyRate != 50 {
			t.Errorf("hourly rate = %v, want interpreter default 50", session.HourlyRate)
		}
		if _, err := h.sessions.GetSession(context.Background(), session.ID); err != nil {
			t.Errorf("session not persisted: %v", err)
		}
	})

	t.Run("back-links the originating request", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t)

		requests := newStubRequestRepo()
		request := testfixtures.NewRequestFixture().Request
		if err := requests.CreateRequest(context.Background(), request); err != nil {
			t.Fatalf("seed request: %v", err)
		}
		h.service.requests = NewRequestService(requests, nil, nil, h.clock.NowFunc())

		start := testfixtures.ReferenceTime().Add(48 * time.Hour)
		session, err := h.service.CreateSession(context.Background(), CreateSessionParams{
			Principal: clientPrincipal("client-1"),
			Input: SessionInput{
				RequestID:      request.ID,
				ClientID:       "client-1",
				InterpreterID:  "int-1",
				Type:           lifecycle.SessionTypeVideo,
				LanguageFrom:   "en",
				LanguageTo:     "es",
				ScheduledStart: start,
				ScheduledEnd:   start.Add(time.Hour),
			},
		})
		if err != nil {
			t.Fatalf("CreateSession: %v", err)
		}
		linked, err := requests.GetRequest(context.Background(), request.ID)
		if err != nil {
			t.Fatalf("GetRequest: %v", err)
		}
		if linked.SessionID != session.ID {
			t.Errorf("request session link = %q, want %q", linked.SessionID, session.ID)
		}
	})

	t.Run("rejects malformed input", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t)

		_, err := h.service.CreateSession(context.Background(), CreateSessionParams{
			Principal: clientPrincipal("client-1"),
			Input: SessionInput{
				InterpreterID: "int-1",
				Type:          lifecycle.SessionType("CARRIER_PIGEON"),
			},
		})
		var vErr *lifecycle.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		for _, field := range []string{"client_id", "type", "languages"} {
			if _, ok := vErr.FieldErrors[field]; !ok {
				t.Errorf("missing field error for %q", field)
			}
		}
	})

	t.Run("rejects inactive interpreters", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t, testfixtures.WithInterpreterStatus(lifecycle.InterpreterSuspended))

		start := testfixtures.ReferenceTime().Add(48 * time.Hour)
		_, err := h.service.CreateSession(context.Background(), CreateSessionParams{
			Principal: clientPrincipal("client-1"),
			Input: SessionInput{
				ClientID:       "client-1",
				InterpreterID:  "int-1",
				Type:           lifecycle.SessionTypeVideo,
				LanguageFrom:   "en",
				LanguageTo:     "es",
				ScheduledStart: start,
				ScheduledEnd:   start.Add(time.Hour),
			},
		})
		if lifecycle.ErrorCode(err) != lifecycle.CodeValidation {
			t.Fatalf("expected VAL_INVALID, got %v", err)
		}
	})
}

func TestSessionServiceApplyAction(t *testing.T) {
	t.Run("confirm persists, notifies, and invalidates the invoice draft", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t)
		session := h.seedSession(t, testfixtures.WithSessionStatus(lifecycle.SessionRequested))

		confirmed, err := h.service.ApplyAction(context.Background(), SessionActionParams{
			Principal: clientPrincipal("client-1"),
			SessionID: session.ID,
			Action:    lifecycle.ActionConfirm,
		})
		if err != nil {
			t.Fatalf("ApplyAction: %v", err)
		}
		if confirmed.Status != lifecycle.SessionConfirmed {
			t.Errorf("status = %s, want CONFIRMED", confirmed.Status)
		}
		if confirmed.TotalCost == 0 {
			t.Error("cost not finalized at confirmation")
		}

		stored, err := h.sessions.GetSession(context.Background(), session.ID)
		if err != nil {
			t.Fatalf("stored session: %v", err)
		}
		if stored.Status != lifecycle.SessionConfirmed {
			t.Errorf("stored status = %s, want CONFIRMED", stored.Status)
		}

		events := h.notifier.Events()
		if len(events) != 1 || events[0].Event != lifecycle.EventSessionConfirmed {
			t.Errorf("events = %+v, want one session.confirmed", events)
		}
		if len(h.invoices.invalidated) != 1 || h.invoices.invalidated[0] != session.ID {
			t.Errorf("invoice invalidations = %v, want [%s]", h.invoices.invalidated, session.ID)
		}
	})

	t.Run("confirm reports the committed session it collides with", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t)
		busy := h.seedSession(t, testfixtures.WithSessionID("ses-busy"))
		candidate := h.seedSession(t,
			testfixtures.WithSessionID("ses-candidate"),
			testfixtures.WithSessionStatus(lifecycle.SessionRequested),
			testfixtures.WithSessionInterval(busy.ScheduledStart.Add(30*time.Minute), busy.ScheduledEnd.Add(30*time.Minute)),
		)

		_, err := h.service.ApplyAction(context.Background(), SessionActionParams{
			Principal: clientPrincipal("client-1"),
			SessionID: candidate.ID,
			Action:    lifecycle.ActionConfirm,
		})
		var cErr *lifecycle.ConflictError
		if !errors.As(err, &cErr) {
			t.Fatalf("expected conflict error, got %v", err)
		}
		if cErr.ConflictsWith != busy.ID {
			t.Errorf("conflicts with = %s, want %s", cErr.ConflictsWith, busy.ID)
		}
	})

	t.Run("complete folds earnings into interpreter stats", func(t *testing.T) {
		h := newSessionHarness(t)
		h.seedInterpreter(t)
		session := h.seedSession(t, testfixtures.WithSessionStatus(lifecycle.SessionInProgress))

		end := session.ScheduledStart.Add(90 * time.Minute)
		completed, err := h.service.ApplyAction(context.Background(), SessionActionParams{
			Principal: clientPrincipal("client-1"),
			SessionID: session.ID,
			Action:    lifecycle.ActionComplete,
			ActualEnd: &end,
		})
		if err != nil {
			t.Fatalf("ApplyAction: %v", err)
		}

		interpreter, err := h.interpreters.GetInterpreter(context.Background(), "int-1")
		if err != nil {
			t.Fatalf("interpreter: %v", err)
		}
		if interpreter.Stats.TotalSessionsCompleted != 1 {
			t.Errorf("completed = %d, want 1", interpreter.Stats.TotalSessionsCompleted)
		}
		if interpreter.Stats.TotalEarnings != completed.TotalCost {
			t.Errorf("earnings = %v, want %v", interpreter.Stats.TotalEarnings, completed.TotalCost)
		}
	})

	t.Run("unknown session maps to ErrNotFound", func(t *testing.T) {
		h := newSessionHarness(t)
		_, err := h.service.ApplyAction(context.Background(), SessionActionParams{
			Principal: clientPrincipal("client-1"),
			SessionID: "missing",
			Action:    lifecycle.ActionConfirm,
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestSessionServiceReschedule(t *testing.T) {
	h := newSessionHarness(t)
	h.seedInterpreter(t)
	session := h.seedSession(t)

	newStart := session.ScheduledStart.Add(24 * time.Hour)
	result, err := h.service.Reschedule(context.Background(), RescheduleSessionParams{
		Principal: clientPrincipal("client-1"),
		SessionID: session.ID,
		NewStart:  newStart,
		NewEnd:    newStart.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("Reschedule: %v", err)
	}

	old, err := h.sessions.GetSession(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("old session: %v", err)
	}
	if old.RescheduledSessionID != result.New.ID {
		t.Errorf("old successor link = %s, want %s", old.RescheduledSessionID, result.New.ID)
	}
	if old.EffectiveStatus() != lifecycle.SessionRescheduled {
		t.Errorf("old effective status = %s, want RESCHEDULED", old.EffectiveStatus())
	}

	successor, err := h.sessions.GetSession(context.Background(), result.New.ID)
	if err != nil {
		t.Fatalf("successor not persisted: %v", err)
	}
	if successor.OriginalSessionID != session.ID {
		t.Errorf("successor origin link = %s, want %s", successor.OriginalSessionID, session.ID)
	}

	// Superseded sessions are terminal for every action.
	_, err = h.service.ApplyAction(context.Background(), SessionActionParams{
		Principal: clientPrincipal("client-1"),
		SessionID: session.ID,
		Action:    lifecycle.ActionStart,
	})
	if lifecycle.ErrorCode(err) != lifecycle.CodeSessionInvalidState {
		t.Errorf("acting on superseded session = %v, want SES_INVALID_STATE", err)
	}
}

func TestSessionServiceRate(t *testing.T) {
	h := newSessionHarness(t)
	h.seedInterpreter(t)
	session := h.seedSession(t, testfixtures.WithSessionStatus(lifecycle.SessionCompleted))

	score := rating.Score{Overall: 4, Punctuality: 5, Professionalism: 4, Accuracy: 4, Communication: 5}
	rated, err := h.service.Rate(context.Background(), RateSessionParams{
		Principal: clientPrincipal(session.ClientID),
		SessionID: session.ID,
		Score:     score,
	})
	if err != nil {
		t.Fatalf("Rate: %v", err)
	}
	if rated.ClientRating == nil || rated.ClientRating.Overall != 4 {
		t.Errorf("client rating = %+v, want overall 4", rated.ClientRating)
	}

	interpreter, err := h.interpreters.GetInterpreter(context.Background(), "int-1")
	if err != nil {
		t.Fatalf("interpreter: %v", err)
	}
	if interpreter.Stats.TotalRatings != 1 || interpreter.Stats.AverageRating != 4 {
		t.Errorf("stats = %+v, want one rating averaging 4", interpreter.Stats)
	}

	_, err = h.service.Rate(context.Background(), RateSessionParams{
		Principal: clientPrincipal(session.ClientID),
		SessionID: session.ID,
		Score:     score,
	})
	if lifecycle.ErrorCode(err) != lifecycle.CodeDuplicateRating {
		t.Errorf("second rating = %v, want SES_DUPLICATE_RATING", err)
	}

	// The interpreter rates through their user account; the service resolves
	// it to the profile ID the session references.
	rated, err = h.service.Rate(context.Background(), RateSessionParams{
		Principal: Principal{UserID: interpreter.UserID, Role: lifecycle.RoleInterpreter},
		SessionID: session.ID,
		Score:     rating.Score{Overall: 5},
	})
	if err != nil {
		t.Fatalf("interpreter rating: %v", err)
	}
	if rated.InterpreterRating == nil || rated.InterpreterRating.Overall != 5 {
		t.Errorf("interpreter rating = %+v, want overall 5", rated.InterpreterRating)
	}

	interpreter, err = h.interpreters.GetInterpreter(context.Background(), "int-1")
	if err != nil {
		t.Fatalf("interpreter: %v", err)
	}
	if interpreter.Stats.TotalRatings != 1 {
		t.Errorf("total ratings = %d, want 1; interpreter scores stay off the running average", interpreter.Stats.TotalRatings)
	}
}

func TestSessionServiceCheckConflict(t *testing.T) {
	h := newSessionHarness(t)
	h.seedInterpreter(t)
	busy := h.seedSession(t)

	verdict, err := h.service.CheckConflict(context.Background(), "int-1", booking.Interval{
		Start: busy.ScheduledStart.Add(30 * time.Minute),
		End:   busy.ScheduledEnd.Add(30 * time.Minute),
	}, "")
	if err != nil {
		t.Fatalf("CheckConflict: %v", err)
	}
	if verdict.Bookable || verdict.ConflictsWith != busy.ID {
		t.Errorf("verdict = %+v, want conflict with %s", verdict, busy.ID)
	}

	verdict, err = h.service.CheckConflict(context.Background(), "int-1", booking.Interval{
		Start: busy.ScheduledEnd,
		End:   busy.ScheduledEnd.Add(time.Hour),
	}, "")
	if err != nil {
		t.Fatalf("CheckConflict back-to-back: %v", err)
	}
	if !verdict.Bookable {
		t.Errorf("back-to-back verdict = %+v, want bookable", verdict)
	}

	if _, err := h.service.CheckConflict(context.Background(), "int-1", booking.Interval{
		Start: busy.ScheduledEnd,
		End:   busy.ScheduledStart,
	}, ""); lifecycle.ErrorCode(err) != lifecycle.CodeInvalidInterval {
		t.Errorf("inverted interval = %v, want VAL_INVALID_INTERVAL", err)
	}
}

func TestSessionServiceListSessionsScoping(t *testing.T) {
	h := newSessionHarness(t)
	interpreter := h.seedInterpreter(t)
	h.seedSession(t, testfixtures.WithSessionID("ses-mine"), testfixtures.WithSessionParties("client-1", "int-1"))
	h.seedSession(t, testfixtures.WithSessionID("ses-other"), testfixtures.WithSessionParties("client-2", "int-1"))

	mine, err := h.service.ListSessions(context.Background(), ListSessionsParams{
		Principal: clientPrincipal("client-1"),
	})
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(mine) != 1 || mine[0].ID != "ses-mine" {
		t.Errorf("client listing = %+v, want only ses-mine", mine)
	}

	all, err := h.service.ListSessions(context.Background(), ListSessionsParams{
		Principal: Principal{UserID: "admin-1", Role: lifecycle.RoleAdmin},
	})
	if err != nil {
		t.Fatalf("ListSessions admin: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("admin listing count = %d, want 2", len(all))
	}

	// Interpreter principals are scoped by their profile ID, resolved from
	// the user account on the token.
	theirs, err := h.service.ListSessions(context.Background(), ListSessionsParams{
		Principal: Principal{UserID: interpreter.UserID, Role: lifecycle.RoleInterpreter},
	})
	if err != nil {
		t.Fatalf("ListSessions interpreter: %v", err)
	}
	if len(theirs) != 2 {
		t.Errorf("interpreter listing count = %d, want 2", len(theirs))
	}

	none, err := h.service.ListSessions(context.Background(), ListSessionsParams{
		Principal: Principal{UserID: "user-without-profile", Role: lifecycle.RoleInterpreter},
	})
	if err != nil {
		t.Fatalf("ListSessions without profile: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("profile-less interpreter listing count = %d, want 0", len(none))
	}
}
