package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"syscall"

	"forest/internal/logging"
	"forest/internal/server"
)

// toolCall is one line read from stdin: a named tool plus its arguments.
type toolCall struct {
	ID   string         `json:"id,omitempty"`
	Tool string         `json:"tool"`
	Args map[string]any `json:"args"`
}

// toolResult is one line written to stdout in response.
type toolResult struct {
	ID     string `json:"id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// runStdioTransport frames each tool call/result as one JSON object per
// line (SPEC_FULL.md §6). It carries no domain logic of its own: every line
// read is handed straight to server.Dispatch, and its result or error is
// written straight back. One domain.Session is shared across the whole
// connection, matching "this server supports exactly one client at a time."
func runStdioTransport(ctx context.Context, srv *server.Server, in io.Reader, out io.Writer) error {
	sess := srv.NewSession()
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	enc := json.NewEncoder(out)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var call toolCall
		if err := json.Unmarshal(line, &call); err != nil {
			if done, writeErr := encodeResult(enc, toolResult{Error: "invalid request: " + err.Error()}); done {
				return writeErr
			}
			continue
		}

		result, dispatchErr := srv.Dispatch(ctx, sess, call.Tool, call.Args)
		res := toolResult{ID: call.ID, Result: result}
		if dispatchErr != nil {
			res.Result = nil
			res.Error = errorMessage(dispatchErr)
		}
		if done, err := encodeResult(enc, res); done {
			return err
		}
	}

	if err := scanner.Err(); err != nil {
		return err
	}
	return nil
}

// encodeResult writes one response line. A broken pipe means the client
// went away; that ends the transport loop cleanly rather than as a fatal
// error, matching the documented EPIPE-is-not-fatal exit-code rule.
func encodeResult(enc *json.Encoder, res toolResult) (done bool, err error) {
	if err := enc.Encode(res); err != nil {
		if errors.Is(err, syscall.EPIPE) {
			logging.BootDebug("stdout closed by client: %v", err)
			return true, nil
		}
		return true, err
	}
	return false, nil
}

// errorMessage renders a tagged domain error as a stable string for the
// wire, falling back to the plain Go error text for anything untagged.
func errorMessage(err error) string {
	var tagged interface{ Tag() string }
	if errors.As(err, &tagged) {
		return tagged.Tag() + ": " + err.Error()
	}
	return err.Error()
}
