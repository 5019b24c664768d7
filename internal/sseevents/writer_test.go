package sseevents

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestEndpointEventShape(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, err := NewWriter(rec)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := sw.Endpoint("http://127.0.0.1:30440/messages?session_id=abc"); err != nil {
		t.Fatalf("Endpoint: %v", err)
	}
	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: endpoint\ndata: http://127.0.0.1:30440/messages?session_id=abc\n\n") {
		t.Fatalf("unexpected body: %q", body)
	}
}

func TestPingEventIDsIncrement(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, _ := NewWriter(rec)
	sw.Ping(0)
	sw.Ping(1)
	body := rec.Body.String()
	if !strings.Contains(body, "id: ping-0\n") || !strings.Contains(body, "id: ping-1\n") {
		t.Fatalf("expected both ping-0 and ping-1 in body: %q", body)
	}
}

func TestKeepAliveCommentFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	sw, _ := NewWriter(rec)
	sw.KeepAliveComment()
	if rec.Body.String() != ": keep-alive\n\n" {
		t.Fatalf("unexpected body: %q", rec.Body.String())
	}
}

func TestContentTypeHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	NewWriter(rec)
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type = %q", ct)
	}
}
