// Package bridge implements the Intelligence Bridge (C4): a request/response
// correlation layer that hands a structured completion request to an
// external actor and resumes the caller once a matching, schema-valid
// response arrives, or the deadline expires.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"forest/internal/domain"
	"forest/internal/logging"
)

// Bridge correlates delegate calls with later process_response calls by
// request id, mirroring the teacher's stdio transport's pendingReqs-map
// pattern but keyed by a generated request id instead of a JSON-RPC
// sequence number, since responses here arrive out of process.
type Bridge struct {
	mu      sync.Mutex
	pending map[string]pendingEntry
	timeout time.Duration
}

type pendingEntry struct {
	schema *domain.Schema
	ch     chan pendingResult
}

// pendingResult is what ProcessResponse hands to the waiting AwaitResponse
// call, once it has already validated the response against the schema.
type pendingResult struct {
	envelope *domain.ResponseEnvelope
	err      error
}

// New returns a Bridge whose delegations expire after timeout, or after 30
// seconds if timeout is not positive.
func New(timeout time.Duration) *Bridge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Bridge{pending: make(map[string]pendingEntry), timeout: timeout}
}

// Delegate registers a pending request and returns the envelope to hand to
// the external completer. The caller must follow with AwaitResponse using
// the same request id.
func (b *Bridge) Delegate(params domain.DelegateParams) domain.RequestEnvelope {
	id := uuid.NewString()

	b.mu.Lock()
	b.pending[id] = pendingEntry{schema: params.Schema, ch: make(chan pendingResult, 1)}
	b.mu.Unlock()

	logging.BridgeDebug("delegated request %s", id)

	return domain.RequestEnvelope{
		Type:      "CLAUDE_INTELLIGENCE_REQUEST",
		RequestID: id,
		Prompt: domain.PromptBody{
			System: params.System,
			User:   params.User,
			Schema: params.Schema,
		},
		ResponseFormat:          "structured_json",
		ProcessingInstructions:  "Respond with a single JSON object matching the schema, and nothing else.",
	}
}

// AwaitResponse blocks until process_response delivers a response for
// requestID, ctx is cancelled, or the bridge's timeout elapses — whichever
// comes first. On timeout the pending entry is removed and Timeout is
// returned (spec.md §5).
func (b *Bridge) AwaitResponse(ctx context.Context, requestID string) (*domain.ResponseEnvelope, error) {
	b.mu.Lock()
	entry, ok := b.pending[requestID]
	b.mu.Unlock()
	if !ok {
		return nil, domain.Timeout{RequestID: requestID}
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()

	select {
	case result := <-entry.ch:
		return result.envelope, result.err
	case <-ctx.Done():
		b.forget(requestID)
		return nil, domain.Timeout{RequestID: requestID}
	case <-timer.C:
		b.forget(requestID)
		logging.BridgeError("request %s timed out awaiting response", requestID)
		return nil, domain.Timeout{RequestID: requestID}
	}
}

// ProcessResponse validates response against the schema registered for
// requestID, removes the delegation, and resolves the matching
// AwaitResponse call with the envelope if the response passes or with the
// ValidationError if it fails. Responses for unknown or already-resolved
// request ids are reported as Timeout. A schema failure is also returned
// directly to the caller (spec.md §4.3: "Fails if request_id is unknown or
// the schema check fails"); a later response for the same request id is
// then reported as Timeout.
func (b *Bridge) ProcessResponse(requestID, response string) (*domain.ResponseEnvelope, error) {
	b.mu.Lock()
	entry, ok := b.pending[requestID]
	b.mu.Unlock()
	if !ok {
		return nil, domain.Timeout{RequestID: requestID}
	}

	envelope, err := decodeAgainstSchema(entry.schema, domain.ResponseInput{RequestID: requestID, Response: response})
	if err != nil {
		logging.BridgeError("request %s failed schema validation: %v", requestID, err)
		b.mu.Lock()
		entry, ok = b.pending[requestID]
		delete(b.pending, requestID)
		b.mu.Unlock()
		if ok {
			entry.ch <- pendingResult{err: err}
		}
		return nil, err
	}

	b.mu.Lock()
	entry, ok = b.pending[requestID]
	if !ok {
		b.mu.Unlock()
		return nil, domain.Timeout{RequestID: requestID}
	}
	delete(b.pending, requestID)
	b.mu.Unlock()

	entry.ch <- pendingResult{envelope: envelope}
	return envelope, nil
}

func (b *Bridge) forget(requestID string) {
	b.mu.Lock()
	delete(b.pending, requestID)
	b.mu.Unlock()
}

// Pending returns the number of outstanding delegations, used by
// current_status_forest.
func (b *Bridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func decodeAgainstSchema(schema *domain.Schema, input domain.ResponseInput) (*domain.ResponseEnvelope, error) {
	var data map[string]interface{}
	if err := json.Unmarshal([]byte(input.Response), &data); err != nil {
		if schema == nil {
			data = map[string]interface{}{"content": input.Response}
		} else {
			return nil, domain.ValidationError{Message: fmt.Sprintf("response is not valid JSON: %v", err)}
		}
	}
	if err := Validate(schema, data); err != nil {
		return nil, err
	}
	return &domain.ResponseEnvelope{
		Type: "INTELLIGENCE_RESPONSE",
		Data: data,
		Metadata: map[string]interface{}{
			"request_id": input.RequestID,
		},
	}, nil
}
