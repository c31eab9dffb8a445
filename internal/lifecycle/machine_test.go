package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
	"github.com/example/interpreter-brokerage/internal/pricing"
	"github.com/example/interpreter-brokerage/internal/rating"
)

var testReference = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testReference }

func testSession(status SessionStatus) Session {
	return Session{
		ID:             "ses-1",
		RequestID:      "req-1",
		ClientID:       "client-1",
		InterpreterID:  "interp-1",
		Type:           SessionTypeVideo,
		Specialization: "medical",
		LanguageFrom:   "en",
		LanguageTo:     "ja",
		Status:         status,
		ScheduledStart: testReference.Add(1 * time.Hour),
		ScheduledEnd:   testReference.Add(2 * time.Hour),
		HourlyRate:     50,
		CreatedAt:      testReference,
		UpdatedAt:      testReference,
	}
}

func testRates() pricing.RateStructure {
	return pricing.RateStructure{
		HourlyRate:   50,
		MinimumHours: 1,
		RatePerWord:  0.1,
	}
}

func findEffect[T Effect](t *testing.T, effects []Effect) T {
	t.Helper()
	for _, effect := range effects {
		if typed, ok := effect.(T); ok {
			return typed
		}
	}
	var zero T
	t.Fatalf("expected effect %T, got %#v", zero, effects)
	return zero
}

func hasEffect[T Effect](effects []Effect) bool {
	for _, effect := range effects {
		if _, ok := effect.(T); ok {
			return true
		}
	}
	return false
}

func TestMachineApply_ForwardTransitions(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)
	actor := Actor{ID: "client-1", Role: RoleClient}

	session := testSession(SessionRequested)
	env := Env{Rates: testRates()}

	confirmed, err := machine.Apply(session, ActionConfirm, actor, ActionParams{}, env)
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Session.Status != SessionConfirmed {
		t.Fatalf("status = %s, want CONFIRMED", confirmed.Session.Status)
	}

	started, err := machine.Apply(confirmed.Session, ActionStart, actor, ActionParams{}, env)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if started.Session.Status != SessionInProgress {
		t.Fatalf("status = %s, want IN_PROGRESS", started.Session.Status)
	}
	if started.Session.ActualStart == nil {
		t.Fatalf("expected actual start to be stamped")
	}

	ended := testReference.Add(2*time.Hour + 30*time.Minute)
	completed, err := machine.Apply(started.Session, ActionComplete, actor, ActionParams{ActualEnd: &ended}, env)
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Session.Status != SessionCompleted {
		t.Fatalf("status = %s, want COMPLETED", completed.Session.Status)
	}
	if completed.Session.ActualDurationMinutes <= 0 {
		t.Fatalf("ActualDurationMinutes = %d, want positive", completed.Session.ActualDurationMinutes)
	}
}

func TestMachineApply_RejectsIllegalTransitions(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)
	actor := Actor{ID: "client-1", Role: RoleClient}
	env := Env{Rates: testRates()}

	cases := []struct {
		name   string
		status SessionStatus
		action Action
	}{
		{"cannot start a requested session", SessionRequested, ActionStart},
		{"cannot complete a requested session", SessionRequested, ActionComplete},
		{"cannot confirm twice", SessionConfirmed, ActionConfirm},
		{"cannot complete before starting", SessionConfirmed, ActionComplete},
		{"cannot confirm an in-progress session", SessionInProgress, ActionConfirm},
		{"cannot mark an in-progress session as no-show", SessionInProgress, ActionMarkNoShow},
		{"cannot start a completed session", SessionCompleted, ActionStart},
		{"cannot cancel a completed session", SessionCompleted, ActionCancel},
		{"cannot cancel a cancelled session", SessionCancelled, ActionCancel},
		{"cannot start a no-show session", SessionNoShow, ActionStart},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := machine.Apply(testSession(tc.status), tc.action, actor, ActionParams{}, env)
			var itErr *InvalidTransitionError
			if !errors.As(err, &itErr) {
				t.Fatalf("expected InvalidTransitionError, got %v", err)
			}
			if itErr.Current != string(tc.status) {
				t.Fatalf("Current = %s, want %s", itErr.Current, tc.status)
			}
			if ErrorCode(err) != CodeSessionInvalidState {
				t.Fatalf("ErrorCode = %s, want %s", ErrorCode(err), CodeSessionInvalidState)
			}
		})
	}
}

func TestMachineApply_SupersededSessionIsTerminal(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	session := testSession(SessionConfirmed)
	session.RescheduledSessionID = "ses-2"

	for _, action := range []Action{ActionConfirm, ActionStart, ActionComplete, ActionCancel, ActionMarkNoShow} {
		_, err := machine.Apply(session, action, Actor{ID: "client-1"}, ActionParams{}, Env{})
		var itErr *InvalidTransitionError
		if !errors.As(err, &itErr) {
			t.Fatalf("action %s: expected InvalidTransitionError, got %v", action, err)
		}
		if itErr.Current != string(SessionRescheduled) {
			t.Fatalf("action %s: Current = %s, want RESCHEDULED", action, itErr.Current)
		}
	}
}

func TestMachineApply_ConfirmRunsConflictCheck(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)
	session := testSession(SessionRequested)

	env := Env{
		Rates: testRates(),
		Committed: []booking.Committed{{
			SessionID: "ses-existing",
			Interval: booking.Interval{
				Start: session.ScheduledStart.Add(30 * time.Minute),
				End:   session.ScheduledEnd.Add(30 * time.Minute),
			},
		}},
	}

	_, err := machine.Apply(session, ActionConfirm, Actor{ID: "client-1"}, ActionParams{}, env)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ConflictsWith != "ses-existing" {
		t.Fatalf("ConflictsWith = %s, want ses-existing", conflict.ConflictsWith)
	}
	if ErrorCode(err) != CodeSchedulingConflict {
		t.Fatalf("ErrorCode = %s, want %s", ErrorCode(err), CodeSchedulingConflict)
	}
}

func TestMachineApply_ConfirmFinalizesCost(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	session := testSession(SessionRequested)
	session.ScheduledEnd = session.ScheduledStart.Add(90 * time.Minute)

	result, err := machine.Apply(session, ActionConfirm, Actor{ID: "client-1"}, ActionParams{}, Env{Rates: testRates()})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	// 90 minutes bills two hours at 50/h.
	if result.Session.TotalCost != 100 {
		t.Fatalf("TotalCost = %v, want 100", result.Session.TotalCost)
	}
	if result.Session.QuotedAt == nil {
		t.Fatalf("expected QuotedAt to be stamped on confirmation")
	}
	if !hasEffect[InvalidateInvoiceDraft](result.Effects) {
		t.Fatalf("expected InvalidateInvoiceDraft effect")
	}
}

func TestMachineApply_ZeroCostQuoteIsNotRepriced(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	// A pro-bono booking quotes to zero at confirmation and must stay there.
	session := testSession(SessionRequested)
	session.HourlyRate = 0

	confirmed, err := machine.Apply(session, ActionConfirm, Actor{ID: "client-1"}, ActionParams{}, Env{})
	if err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	if confirmed.Session.TotalCost != 0 || confirmed.Session.QuotedAt == nil {
		t.Fatalf("expected a zero quote stamped at confirmation, got cost %v", confirmed.Session.TotalCost)
	}

	inProgress := confirmed.Session
	inProgress.Status = SessionInProgress
	started := inProgress.ScheduledStart
	inProgress.ActualStart = &started
	ended := inProgress.ScheduledEnd

	completed, err := machine.Apply(inProgress, ActionComplete, Actor{ID: "interp-1", Role: RoleInterpreter}, ActionParams{ActualEnd: &ended}, Env{Rates: testRates()})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if completed.Session.TotalCost != 0 {
		t.Fatalf("TotalCost = %v, want 0 preserved from confirmation", completed.Session.TotalCost)
	}
}

func TestMachineApply_ConfirmRejectsInvalidInterval(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	session := testSession(SessionRequested)
	session.ScheduledEnd = session.ScheduledStart.Add(-time.Hour)

	_, err := machine.Apply(session, ActionConfirm, Actor{ID: "client-1"}, ActionParams{}, Env{Rates: testRates()})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if ErrorCode(err) != CodeInvalidInterval {
		t.Fatalf("ErrorCode = %s, want %s", ErrorCode(err), CodeInvalidInterval)
	}
}

func TestMachineApply_CompleteRequiresActualEnd(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	_, err := machine.Apply(testSession(SessionInProgress), ActionComplete, Actor{ID: "client-1"}, ActionParams{}, Env{Rates: testRates()})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["actual_end"]; !ok {
		t.Fatalf("expected actual_end field error, got %v", vErr.FieldErrors)
	}
}

func TestMachineApply_CompleteRejectsNegativeDuration(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	session := testSession(SessionInProgress)
	started := testReference.Add(2 * time.Hour)
	session.ActualStart = &started
	ended := testReference.Add(1 * time.Hour)

	_, err := machine.Apply(session, ActionComplete, Actor{ID: "client-1"}, ActionParams{ActualEnd: &ended}, Env{Rates: testRates()})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, ok := vErr.FieldErrors["actual_duration"]; !ok {
		t.Fatalf("expected actual_duration field error, got %v", vErr.FieldErrors)
	}
}

func TestMachineApply_CompleteEmitsStatsEffect(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	session := testSession(SessionInProgress)
	session.BaseCost = 100
	session.TotalCost = 100
	quoted := testReference
	session.QuotedAt = &quoted
	started := session.ScheduledStart
	session.ActualStart = &started
	ended := session.ScheduledEnd

	result, err := machine.Apply(session, ActionComplete, Actor{ID: "interp-1", Role: RoleInterpreter}, ActionParams{ActualEnd: &ended}, Env{Rates: testRates()})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}

	stats := findEffect[RecomputeInterpreterStats](t, result.Effects)
	if stats.InterpreterID != "interp-1" {
		t.Fatalf("InterpreterID = %s, want interp-1", stats.InterpreterID)
	}
	if stats.CompletedDelta != 1 {
		t.Fatalf("CompletedDelta = %d, want 1", stats.CompletedDelta)
	}
	if stats.EarningsDelta != 100 {
		t.Fatalf("EarningsDelta = %v, want 100", stats.EarningsDelta)
	}
	// Cost was already finalized at confirmation; completion must not change it.
	if result.Session.TotalCost != 100 {
		t.Fatalf("TotalCost = %v, want 100", result.Session.TotalCost)
	}
}

func TestMachineApply_CancelFromNonTerminalStates(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	for _, status := range []SessionStatus{SessionRequested, SessionConfirmed, SessionInProgress} {
		result, err := machine.Apply(testSession(status), ActionCancel, Actor{ID: "client-1", Role: RoleClient}, ActionParams{
			Cancellation: &Cancellation{Reason: "client unavailable", Category: CancellationByClient},
		}, Env{})
		if err != nil {
			t.Fatalf("cancel from %s failed: %v", status, err)
		}
		if result.Session.Status != SessionCancelled {
			t.Fatalf("status = %s, want CANCELLED", result.Session.Status)
		}
		if result.Session.Cancellation == nil {
			t.Fatalf("expected cancellation metadata")
		}
		if result.Session.Cancellation.CancelledBy != "client-1" {
			t.Fatalf("CancelledBy = %s, want client-1", result.Session.Cancellation.CancelledBy)
		}
		if result.Session.Cancellation.CancelledAt.IsZero() {
			t.Fatalf("expected cancellation timestamp")
		}
	}
}

func TestMachineApply_CancelRequiresReasonAndCategory(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	_, err := machine.Apply(testSession(SessionConfirmed), ActionCancel, Actor{ID: "client-1"}, ActionParams{
		Cancellation: &Cancellation{},
	}, Env{})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if len(vErr.FieldErrors) != 2 {
		t.Fatalf("expected reason and category errors, got %v", vErr.FieldErrors)
	}
}

func TestMachineApply_NoShowOnlyFromConfirmed(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)

	result, err := machine.Apply(testSession(SessionConfirmed), ActionMarkNoShow, Actor{ID: "interp-1"}, ActionParams{}, Env{})
	if err != nil {
		t.Fatalf("no-show from CONFIRMED failed: %v", err)
	}
	if result.Session.Status != SessionNoShow {
		t.Fatalf("status = %s, want NO_SHOW", result.Session.Status)
	}

	for _, status := range []SessionStatus{SessionRequested, SessionInProgress, SessionCompleted, SessionCancelled} {
		if _, err := machine.Apply(testSession(status), ActionMarkNoShow, Actor{ID: "interp-1"}, ActionParams{}, Env{}); err == nil {
			t.Fatalf("expected no-show from %s to fail", status)
		}
	}
}

func TestMachineRate(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)
	score := rating.Score{Overall: 5, Punctuality: 4, Accuracy: 5}

	t.Run("client rating feeds interpreter stats", func(t *testing.T) {
		result, err := machine.Rate(testSession(SessionCompleted), Actor{ID: "client-1", Role: RoleClient}, score, Env{})
		if err != nil {
			t.Fatalf("rate failed: %v", err)
		}
		if result.Session.ClientRating == nil || result.Session.ClientRating.Overall != 5 {
			t.Fatalf("expected client rating to be recorded")
		}

		stats := findEffect[RecomputeInterpreterStats](t, result.Effects)
		if stats.Rating == nil || *stats.Rating != 5 {
			t.Fatalf("expected rating fold effect with overall 5")
		}
	})

	t.Run("interpreter rating stays on the session", func(t *testing.T) {
		result, err := machine.Rate(testSession(SessionCompleted), Actor{ID: "interp-1", Role: RoleInterpreter}, score, Env{})
		if err != nil {
			t.Fatalf("rate failed: %v", err)
		}
		if result.Session.InterpreterRating == nil {
			t.Fatalf("expected interpreter rating to be recorded")
		}
		if hasEffect[RecomputeInterpreterStats](result.Effects) {
			t.Fatalf("interpreter rating must not change interpreter stats")
		}
	})

	t.Run("second rating from the same actor fails", func(t *testing.T) {
		session := testSession(SessionCompleted)
		recorded := score
		session.ClientRating = &recorded

		_, err := machine.Rate(session, Actor{ID: "client-1", Role: RoleClient}, score, Env{})
		var dup *DuplicateRatingError
		if !errors.As(err, &dup) {
			t.Fatalf("expected DuplicateRatingError, got %v", err)
		}
		if ErrorCode(err) != CodeDuplicateRating {
			t.Fatalf("ErrorCode = %s, want %s", ErrorCode(err), CodeDuplicateRating)
		}
	})

	t.Run("rating before completion fails", func(t *testing.T) {
		_, err := machine.Rate(testSession(SessionInProgress), Actor{ID: "client-1", Role: RoleClient}, score, Env{})
		var itErr *InvalidTransitionError
		if !errors.As(err, &itErr) {
			t.Fatalf("expected InvalidTransitionError, got %v", err)
		}
	})

	t.Run("out of range overall is rejected", func(t *testing.T) {
		bad := score
		bad.Overall = 6
		_, err := machine.Rate(testSession(SessionCompleted), Actor{ID: "client-1", Role: RoleClient}, bad, Env{})
		if ErrorCode(err) != CodeRatingOutOfRange {
			t.Fatalf("ErrorCode = %s, want %s", ErrorCode(err), CodeRatingOutOfRange)
		}
	})

	t.Run("strangers may not rate", func(t *testing.T) {
		_, err := machine.Rate(testSession(SessionCompleted), Actor{ID: "someone-else", Role: RoleClient}, score, Env{})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})
}

func TestMachineApplyRequest(t *testing.T) {
	t.Parallel()
	machine := NewMachine(fixedNow)
	actor := Actor{ID: "admin-1", Role: RoleAdmin}

	newRequest := func(status RequestStatus) ServiceRequest {
		return ServiceRequest{ID: "req-1", ClientID: "client-1", Type: SessionTypePhone, Status: status}
	}

	t.Run("forward chain", func(t *testing.T) {
		request := newRequest(RequestPending)
		for _, step := range []struct {
			action RequestAction
			want   RequestStatus
		}{
			{RequestActionConfirm, RequestConfirmed},
			{RequestActionStart, RequestInProgress},
			{RequestActionComplete, RequestCompleted},
		} {
			result, err := machine.ApplyRequest(request, step.action, actor, ActionParams{}, Env{})
			if err != nil {
				t.Fatalf("%s failed: %v", step.action, err)
			}
			if result.Request.Status != step.want {
				t.Fatalf("status = %s, want %s", result.Request.Status, step.want)
			}
			request = result.Request
		}
	})

	t.Run("reject only while pending", func(t *testing.T) {
		result, err := machine.ApplyRequest(newRequest(RequestPending), RequestActionReject, actor, ActionParams{RejectionReason: "no interpreter available"}, Env{})
		if err != nil {
			t.Fatalf("reject failed: %v", err)
		}
		if result.Request.Status != RequestRejected {
			t.Fatalf("status = %s, want REJECTED", result.Request.Status)
		}
		if result.Request.RejectionReason == "" {
			t.Fatalf("expected rejection reason to be recorded")
		}

		if _, err := machine.ApplyRequest(newRequest(RequestConfirmed), RequestActionReject, actor, ActionParams{}, Env{}); err == nil {
			t.Fatalf("expected reject from CONFIRMED to fail")
		}
	})

	t.Run("cancel from any non-terminal state", func(t *testing.T) {
		for _, status := range []RequestStatus{RequestPending, RequestConfirmed, RequestInProgress} {
			result, err := machine.ApplyRequest(newRequest(status), RequestActionCancel, actor, ActionParams{}, Env{})
			if err != nil {
				t.Fatalf("cancel from %s failed: %v", status, err)
			}
			if result.Request.Status != RequestCancelled {
				t.Fatalf("status = %s, want CANCELLED", result.Request.Status)
			}
		}
		for _, status := range []RequestStatus{RequestCompleted, RequestCancelled, RequestRejected} {
			if _, err := machine.ApplyRequest(newRequest(status), RequestActionCancel, actor, ActionParams{}, Env{}); err == nil {
				t.Fatalf("expected cancel from %s to fail", status)
			}
			if _, err := machine.ApplyRequest(newRequest(status), RequestActionCancel, actor, ActionParams{}, Env{}); ErrorCode(err) != CodeRequestInvalidState {
				t.Fatalf("expected %s code", CodeRequestInvalidState)
			}
		}
	})
}
