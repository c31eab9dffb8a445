package lifecycle

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/example/interpreter-brokerage/internal/booking"
)

func testTracker() *RescheduleTracker {
	counter := 0
	return NewRescheduleTracker(func() string {
		counter++
		return fmt.Sprintf("resched-%d", counter)
	}, fixedNow)
}

func TestReschedule_CreatesLinkedSuccessor(t *testing.T) {
	t.Parallel()
	tracker := testTracker()

	old := testSession(SessionConfirmed)
	old.BaseCost = 50
	old.TotalCost = 50
	newInterval := booking.Interval{
		Start: testReference.Add(24 * time.Hour),
		End:   testReference.Add(25 * time.Hour),
	}

	result, err := tracker.Reschedule(old, newInterval, Actor{ID: "client-1"}, Env{Rates: testRates()})
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}

	if result.Old.RescheduledSessionID != result.New.ID {
		t.Fatalf("old session does not link to successor")
	}
	if result.New.OriginalSessionID != old.ID {
		t.Fatalf("successor does not link back to original")
	}
	if result.New.RescheduledCount != 1 {
		t.Fatalf("RescheduledCount = %d, want 1", result.New.RescheduledCount)
	}
	if result.Old.Status != SessionConfirmed {
		t.Fatalf("old status was overwritten to %s", result.Old.Status)
	}
	if result.Old.EffectiveStatus() != SessionRescheduled {
		t.Fatalf("old effective status = %s, want RESCHEDULED", result.Old.EffectiveStatus())
	}
	if result.New.Status != SessionConfirmed {
		t.Fatalf("successor status = %s, want CONFIRMED", result.New.Status)
	}
	if !result.New.ScheduledStart.Equal(newInterval.Start) || !result.New.ScheduledEnd.Equal(newInterval.End) {
		t.Fatalf("successor interval mismatch")
	}
	if result.New.ClientID != old.ClientID || result.New.InterpreterID != old.InterpreterID || result.New.Type != old.Type {
		t.Fatalf("immutable fields were not carried over")
	}

	persisted := 0
	for _, effect := range result.Effects {
		if _, ok := effect.(PersistSession); ok {
			persisted++
		}
	}
	if persisted != 2 {
		t.Fatalf("expected both chain ends to be persisted, got %d", persisted)
	}
}

func TestReschedule_SecondRescheduleFails(t *testing.T) {
	t.Parallel()
	tracker := testTracker()

	old := testSession(SessionConfirmed)
	old.RescheduledSessionID = "ses-2"

	_, err := tracker.Reschedule(old, booking.Interval{
		Start: testReference.Add(24 * time.Hour),
		End:   testReference.Add(25 * time.Hour),
	}, Actor{ID: "client-1"}, Env{})

	var arErr *AlreadyRescheduledError
	if !errors.As(err, &arErr) {
		t.Fatalf("expected AlreadyRescheduledError, got %v", err)
	}
	if arErr.SuccessorID != "ses-2" {
		t.Fatalf("SuccessorID = %s, want ses-2", arErr.SuccessorID)
	}
	if ErrorCode(err) != CodeAlreadyRescheduled {
		t.Fatalf("ErrorCode = %s, want %s", ErrorCode(err), CodeAlreadyRescheduled)
	}
}

func TestReschedule_ConflictOnNewInterval(t *testing.T) {
	t.Parallel()
	tracker := testTracker()

	old := testSession(SessionConfirmed)
	target := booking.Interval{
		Start: testReference.Add(24 * time.Hour),
		End:   testReference.Add(25 * time.Hour),
	}
	env := Env{
		Rates: testRates(),
		Committed: []booking.Committed{
			// The session being moved is part of the committed set but must
			// be excluded from its own re-check.
			{SessionID: old.ID, Interval: old.Interval()},
			{SessionID: "ses-other", Interval: target},
		},
	}

	_, err := tracker.Reschedule(old, target, Actor{ID: "client-1"}, env)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if conflict.ConflictsWith != "ses-other" {
		t.Fatalf("ConflictsWith = %s, want ses-other", conflict.ConflictsWith)
	}

	// Moving back onto its own old slot is allowed.
	if _, err := tracker.Reschedule(old, old.Interval(), Actor{ID: "client-1"}, Env{
		Rates:     testRates(),
		Committed: []booking.Committed{{SessionID: old.ID, Interval: old.Interval()}},
	}); err != nil {
		t.Fatalf("expected exclusion of the old session, got %v", err)
	}
}

func TestReschedule_TerminalStatesRejected(t *testing.T) {
	t.Parallel()
	tracker := testTracker()

	for _, status := range []SessionStatus{SessionInProgress, SessionCompleted, SessionCancelled, SessionNoShow} {
		_, err := tracker.Reschedule(testSession(status), booking.Interval{
			Start: testReference.Add(24 * time.Hour),
			End:   testReference.Add(25 * time.Hour),
		}, Actor{ID: "client-1"}, Env{})
		var itErr *InvalidTransitionError
		if !errors.As(err, &itErr) {
			t.Fatalf("status %s: expected InvalidTransitionError, got %v", status, err)
		}
	}
}

func TestReschedule_PaidCostIsCarriedVerbatim(t *testing.T) {
	t.Parallel()
	tracker := testTracker()

	old := testSession(SessionConfirmed)
	old.BaseCost = 80
	old.FeeTotal = 20
	old.TotalCost = 100
	old.IsPaid = true
	old.PaymentID = "pay-1"

	// The new slot is three hours; an unpaid session would be re-quoted.
	result, err := tracker.Reschedule(old, booking.Interval{
		Start: testReference.Add(24 * time.Hour),
		End:   testReference.Add(27 * time.Hour),
	}, Actor{ID: "client-1"}, Env{Rates: testRates()})
	if err != nil {
		t.Fatalf("reschedule failed: %v", err)
	}
	if result.New.TotalCost != 100 || result.New.BaseCost != 80 || result.New.FeeTotal != 20 {
		t.Fatalf("paid cost was not carried verbatim: %+v", result.New)
	}
	if !result.New.IsPaid || result.New.PaymentID != "pay-1" {
		t.Fatalf("payment linkage was not carried")
	}
}

func TestReschedule_ChainInvariant(t *testing.T) {
	t.Parallel()
	tracker := testTracker()

	const hops = 4
	sessions := map[string]Session{}

	current := testSession(SessionConfirmed)
	sessions[current.ID] = current

	for i := 0; i < hops; i++ {
		offset := time.Duration(24*(i+1)) * time.Hour
		result, err := tracker.Reschedule(current, booking.Interval{
			Start: testReference.Add(offset),
			End:   testReference.Add(offset + time.Hour),
		}, Actor{ID: "client-1"}, Env{Rates: testRates()})
		if err != nil {
			t.Fatalf("hop %d failed: %v", i, err)
		}
		sessions[result.Old.ID] = result.Old
		sessions[result.New.ID] = result.New
		current = result.New
	}

	// Exactly one session in the chain has no successor.
	active := 0
	for _, session := range sessions {
		if !session.Superseded() {
			active++
		}
	}
	if active != 1 {
		t.Fatalf("active sessions = %d, want 1", active)
	}

	// Following OriginalSessionID links from the active session reaches the
	// root in exactly `hops` hops.
	walked := 0
	cursor := current
	for cursor.OriginalSessionID != "" {
		cursor = sessions[cursor.OriginalSessionID]
		walked++
	}
	if walked != hops {
		t.Fatalf("chain length = %d, want %d", walked, hops)
	}
	if cursor.ID != "ses-1" {
		t.Fatalf("chain root = %s, want ses-1", cursor.ID)
	}
	if current.RescheduledCount != hops {
		t.Fatalf("RescheduledCount = %d, want %d", current.RescheduledCount, hops)
	}
}
