package bridge

import (
	"context"
	"testing"
	"time"

	"forest/internal/domain"
)

func TestDelegateThenProcessResponseRoundTrips(t *testing.T) {
	b := New(time.Second)
	env := b.Delegate(domain.DelegateParams{
		System: "sys",
		User:   "user",
		Schema: &domain.Schema{Required: []string{"title"}},
	})
	if env.Type != "CLAUDE_INTELLIGENCE_REQUEST" {
		t.Fatalf("unexpected envelope type: %s", env.Type)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(5 * time.Millisecond)
		if _, err := b.ProcessResponse(env.RequestID, `{"title":"x"}`); err != nil {
			t.Errorf("process_response: %v", err)
		}
	}()

	resp, err := b.AwaitResponse(context.Background(), env.RequestID)
	if err != nil {
		t.Fatalf("await: %v", err)
	}
	if resp.Data["title"] != "x" {
		t.Fatalf("unexpected data: %v", resp.Data)
	}
	<-done
}

// TestProcessResponseRejectsMissingRequiredKey mirrors spec scenario S6:
// delegate with schema requiring title+description, respond with only
// title. process_response itself must fail the schema check and return
// ValidationError naming description — not just whoever is awaiting the
// response — and remove the pending delegation.
func TestProcessResponseRejectsMissingRequiredKey(t *testing.T) {
	b := New(time.Second)
	env := b.Delegate(domain.DelegateParams{
		Schema: &domain.Schema{Required: []string{"title", "description"}},
	})

	_, err := b.ProcessResponse(env.RequestID, `{"title":"x"}`)
	ve, ok := err.(domain.ValidationError)
	if !ok {
		t.Fatalf("expected ValidationError from process_response, got %v (%T)", err, err)
	}
	if ve.Key != "description" {
		t.Fatalf("expected key 'description', got %q", ve.Key)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected the delegation to be removed after a rejected response, got %d pending", b.Pending())
	}
}

// TestProcessResponseRejectionResolvesWaiter sends an incomplete response
// while a caller is awaiting it, confirms the waiter receives the
// ValidationError, and confirms a later response for the same request id is
// reported as Timeout.
func TestProcessResponseRejectionResolvesWaiter(t *testing.T) {
	b := New(time.Second)
	env := b.Delegate(domain.DelegateParams{
		Schema: &domain.Schema{Required: []string{"title", "description"}},
	})

	done := make(chan struct{})
	var awaitErr error
	var awaitResp *domain.ResponseEnvelope
	go func() {
		defer close(done)
		awaitResp, awaitErr = b.AwaitResponse(context.Background(), env.RequestID)
	}()

	time.Sleep(5 * time.Millisecond)
	if _, err := b.ProcessResponse(env.RequestID, `{"title":"x"}`); err == nil {
		t.Fatalf("expected the incomplete response to be rejected")
	}

	<-done
	if _, ok := awaitErr.(domain.ValidationError); !ok {
		t.Fatalf("expected the waiter to receive ValidationError, got %v (%T)", awaitErr, awaitErr)
	}
	if awaitResp != nil {
		t.Fatalf("unexpected envelope delivered to the waiter: %v", awaitResp.Data)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected pending entry removed once rejected, got %d pending", b.Pending())
	}

	_, err := b.ProcessResponse(env.RequestID, `{"title":"x","description":"y"}`)
	if _, ok := err.(domain.Timeout); !ok {
		t.Fatalf("expected Timeout for a response to an already-rejected request, got %v (%T)", err, err)
	}
}

func TestAwaitResponseTimesOutWhenNoResponseArrives(t *testing.T) {
	b := New(10 * time.Millisecond)
	env := b.Delegate(domain.DelegateParams{})

	_, err := b.AwaitResponse(context.Background(), env.RequestID)
	if _, ok := err.(domain.Timeout); !ok {
		t.Fatalf("expected Timeout, got %v (%T)", err, err)
	}
	if b.Pending() != 0 {
		t.Fatalf("expected pending entry removed after timeout")
	}
}

func TestProcessResponseForUnknownRequestIDReturnsTimeout(t *testing.T) {
	b := New(time.Second)
	_, err := b.ProcessResponse("does-not-exist", `{}`)
	if _, ok := err.(domain.Timeout); !ok {
		t.Fatalf("expected Timeout for unknown request id, got %v (%T)", err, err)
	}
}
