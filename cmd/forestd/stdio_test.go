package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"forest/internal/config"
	"forest/internal/server"
)

func newTransportTestServer(t *testing.T) *server.Server {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DataDir = t.TempDir()
	cfg.Embedding.Provider = "deterministic"
	cfg.Embedding.Dim = 32
	srv, err := server.New(cfg)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	return srv
}

func TestStdioTransportRoundTrip(t *testing.T) {
	srv := newTransportTestServer(t)

	in := strings.NewReader(
		`{"id":"1","tool":"create_project_forest","args":{"goal":"learn Go"}}` + "\n" +
			`{"id":"2","tool":"list_projects_forest","args":{}}` + "\n",
	)
	var out bytes.Buffer

	if err := runStdioTransport(context.Background(), srv, in, &out); err != nil {
		t.Fatalf("transport: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 response lines, got %d: %q", len(lines), out.String())
	}

	var first toolResult
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("decode first response: %v", err)
	}
	if first.ID != "1" || first.Error != "" {
		t.Fatalf("expected a clean create_project_forest response, got %+v", first)
	}

	var second toolResult
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("decode second response: %v", err)
	}
	if second.ID != "2" || second.Error != "" {
		t.Fatalf("expected a clean list_projects_forest response, got %+v", second)
	}
}

func TestStdioTransportReportsUnknownTool(t *testing.T) {
	srv := newTransportTestServer(t)

	in := strings.NewReader(`{"id":"1","tool":"not_a_real_tool","args":{}}` + "\n")
	var out bytes.Buffer

	if err := runStdioTransport(context.Background(), srv, in, &out); err != nil {
		t.Fatalf("transport: %v", err)
	}

	var res toolResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if res.Error == "" {
		t.Fatalf("expected an error for an unknown tool, got %+v", res)
	}
}

func TestStdioTransportReportsMalformedLine(t *testing.T) {
	srv := newTransportTestServer(t)

	in := strings.NewReader("not json\n")
	var out bytes.Buffer

	if err := runStdioTransport(context.Background(), srv, in, &out); err != nil {
		t.Fatalf("transport: %v", err)
	}

	var res toolResult
	if err := json.Unmarshal(out.Bytes(), &res); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !strings.Contains(res.Error, "invalid request") {
		t.Fatalf("expected an invalid-request error, got %+v", res)
	}
}
