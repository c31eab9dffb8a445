package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/interpreter-brokerage/internal/lifecycle"
	"github.com/example/interpreter-brokerage/internal/testfixtures"
)

func newRequestService(t *testing.T) (*RequestService, *stubRequestRepo, *captureNotifier) {
	t.Helper()

	requests := newStubRequestRepo()
	notifier := &captureNotifier{}
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	ids := testfixtures.NewIDGenerator("newreq")

	executor := NewEffectExecutor(newStubSessionRepo(), requests, newStubInterpreterRepo(), notifier, nil, nil)
	return NewRequestService(requests, executor, ids.NextFunc(), clock.NowFunc()), requests, notifier
}

func TestRequestServiceCreateRequest(t *testing.T) {
	t.Run("opens a pending request", func(t *testing.T) {
		service, requests, _ := newRequestService(t)

		start := testfixtures.ReferenceTime()
		end := start.Add(time.Hour)
		request, err := service.CreateRequest(context.Background(), CreateRequestParams{
			Principal: clientPrincipal("client-1"),
			Input: RequestInput{
				ClientID:       "client-1",
				Type:           lifecycle.SessionTypePhone,
				LanguageFrom:   "en",
				LanguageTo:     "fr",
				PreferredStart: &start,
				PreferredEnd:   &end,
			},
		})
		if err != nil {
			t.Fatalf("CreateRequest: %v", err)
		}
		if request.Status != lifecycle.RequestPending {
			t.Errorf("status = %s, want PENDING", request.Status)
		}
		if request.Urgency != lifecycle.UrgencyStandard {
			t.Errorf("urgency = %s, want STANDARD default", request.Urgency)
		}
		if _, err := requests.GetRequest(context.Background(), request.ID); err != nil {
			t.Errorf("request not persisted: %v", err)
		}
	})

	t.Run("translation requests need a word count, not a schedule", func(t *testing.T) {
		service, _, _ := newRequestService(t)

		_, err := service.CreateRequest(context.Background(), CreateRequestParams{
			Principal: clientPrincipal("client-1"),
			Input: RequestInput{
				ClientID:     "client-1",
				Type:         lifecycle.SessionTypeTranslation,
				LanguageFrom: "en",
				LanguageTo:   "de",
			},
		})
		var vErr *lifecycle.ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected validation error, got %v", err)
		}
		if _, ok := vErr.FieldErrors["word_count"]; !ok {
			t.Errorf("field errors = %v, want word_count", vErr.FieldErrors)
		}

		request, err := service.CreateRequest(context.Background(), CreateRequestParams{
			Principal: clientPrincipal("client-1"),
			Input: RequestInput{
				ClientID:     "client-1",
				Type:         lifecycle.SessionTypeTranslation,
				LanguageFrom: "en",
				LanguageTo:   "de",
				WordCount:    2500,
			},
		})
		if err != nil {
			t.Fatalf("CreateRequest with word count: %v", err)
		}
		if request.PreferredStart != nil {
			t.Errorf("preferred start = %v, want nil", request.PreferredStart)
		}
	})
}

func TestRequestServiceApplyAction(t *testing.T) {
	seed := func(t *testing.T, requests *stubRequestRepo, opts ...testfixtures.RequestOption) lifecycle.ServiceRequest {
		t.Helper()
		request := testfixtures.NewRequestFixture(opts...).Request
		if err := requests.CreateRequest(context.Background(), request); err != nil {
			t.Fatalf("seed request: %v", err)
		}
		return request
	}

	t.Run("walks the forward chain and notifies", func(t *testing.T) {
		service, requests, notifier := newRequestService(t)
		request := seed(t, requests)

		for _, step := range []struct {
			action lifecycle.RequestAction
			want   lifecycle.RequestStatus
		}{
			{lifecycle.RequestActionConfirm, lifecycle.RequestConfirmed},
			{lifecycle.RequestActionStart, lifecycle.RequestInProgress},
			{lifecycle.RequestActionComplete, lifecycle.RequestCompleted},
		} {
			updated, err := service.ApplyAction(context.Background(), RequestActionParams{
				Principal: clientPrincipal("client-1"),
				RequestID: request.ID,
				Action:    step.action,
			})
			if err != nil {
				t.Fatalf("%s: %v", step.action, err)
			}
			if updated.Status != step.want {
				t.Fatalf("%s status = %s, want %s", step.action, updated.Status, step.want)
			}
		}

		if events := notifier.Events(); len(events) != 3 {
			t.Errorf("event count = %d, want 3", len(events))
		}
	})

	t.Run("reject requires a reason and a pending request", func(t *testing.T) {
		service, requests, _ := newRequestService(t)
		request := seed(t, requests)

		_, err := service.ApplyAction(context.Background(), RequestActionParams{
			Principal: clientPrincipal("client-1"),
			RequestID: request.ID,
			Action:    lifecycle.RequestActionReject,
		})
		if lifecycle.ErrorCode(err) != lifecycle.CodeValidation {
			t.Fatalf("reject without reason = %v, want VAL_INVALID", err)
		}

		rejected, err := service.ApplyAction(context.Background(), RequestActionParams{
			Principal:       clientPrincipal("client-1"),
			RequestID:       request.ID,
			Action:          lifecycle.RequestActionReject,
			RejectionReason: "no interpreter for this language pair",
		})
		if err != nil {
			t.Fatalf("reject: %v", err)
		}
		if rejected.Status != lifecycle.RequestRejected || rejected.RejectionReason == "" {
			t.Errorf("rejected = %s %q", rejected.Status, rejected.RejectionReason)
		}

		confirmed := seed(t, requests, testfixtures.WithRequestStatus(lifecycle.RequestConfirmed))
		_, err = service.ApplyAction(context.Background(), RequestActionParams{
			Principal:       clientPrincipal("client-1"),
			RequestID:       confirmed.ID,
			Action:          lifecycle.RequestActionReject,
			RejectionReason: "too late",
		})
		if lifecycle.ErrorCode(err) != lifecycle.CodeRequestInvalidState {
			t.Errorf("reject confirmed request = %v, want REQ_INVALID_STATE", err)
		}
	})
}

func TestRequestServiceListRequestsScoping(t *testing.T) {
	service, requests, _ := newRequestService(t)
	mine := testfixtures.NewRequestFixture(testfixtures.WithRequestClient("client-1")).Request
	other := testfixtures.NewRequestFixture(testfixtures.WithRequestClient("client-2")).Request
	for _, r := range []lifecycle.ServiceRequest{mine, other} {
		if err := requests.CreateRequest(context.Background(), r); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	listed, err := service.ListRequests(context.Background(), ListRequestsParams{
		Principal: clientPrincipal("client-1"),
	})
	if err != nil {
		t.Fatalf("ListRequests: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != mine.ID {
		t.Errorf("listing = %+v, want only %s", listed, mine.ID)
	}
}
