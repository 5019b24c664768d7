package jsonrpc

import (
	"encoding/json"
	"testing"
)

func TestIsCriticalMethod(t *testing.T) {
	cases := map[string]bool{
		"tools/call":      true,
		"resources/read":  true,
		"prompts/get":     true,
		"tools/list":      false,
		"tools/call_tool": false,
	}
	for method, want := range cases {
		if got := IsCriticalMethod(method); got != want {
			t.Errorf("IsCriticalMethod(%q) = %v, want %v", method, got, want)
		}
	}
}

func TestNewErrorResponseNilID(t *testing.T) {
	resp := NewErrorResponse(nil, CodeInternalError, "boom")
	if string(resp.ID) != "null" {
		t.Fatalf("expected null id, got %s", resp.ID)
	}
	if resp.Error.Code != CodeInternalError {
		t.Fatalf("expected code %d, got %d", CodeInternalError, resp.Error.Code)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     Request
		wantOK  bool
		wantMsg string
	}{
		{"valid", Request{JSONRPC: "2.0", Method: "tools/list"}, true, ""},
		{"bad version", Request{JSONRPC: "1.0", Method: "tools/list"}, false, "Invalid Request: jsonrpc must be \"2.0\""},
		{"missing method", Request{JSONRPC: "2.0"}, false, "Invalid Request: method is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, msg, ok := Validate(tt.req)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok && msg != tt.wantMsg {
				t.Fatalf("msg = %q, want %q", msg, tt.wantMsg)
			}
		})
	}
}

func TestCheckSize(t *testing.T) {
	if ok, _ := CheckSize(make([]byte, MaxRequestBytes)); !ok {
		t.Fatal("expected body at exactly the cap to pass")
	}
	ok, msg := CheckSize(make([]byte, MaxRequestBytes+1))
	if ok {
		t.Fatal("expected oversized body to fail")
	}
	if msg != bodyTooLargeMessage {
		t.Fatalf("msg = %q", msg)
	}
}

func TestExtractRequestIDValidJSON(t *testing.T) {
	id := ExtractRequestID([]byte(`{"jsonrpc":"2.0","id":42,"method":"tools/list"}`))
	if string(id) != "42" {
		t.Fatalf("id = %s, want 42", id)
	}
}

func TestExtractRequestIDMalformedJSON(t *testing.T) {
	id := ExtractRequestID([]byte(`{"jsonrpc":"2.0","id":"abc-123","method":"tools/list"`))
	var s string
	if err := json.Unmarshal(id, &s); err != nil {
		t.Fatalf("unmarshal recovered id: %v", err)
	}
	if s != "abc-123" {
		t.Fatalf("id = %s, want abc-123", s)
	}
}

func TestExtractRequestIDAbsent(t *testing.T) {
	if id := ExtractRequestID([]byte(`not json at all`)); id != nil {
		t.Fatalf("expected nil id, got %s", id)
	}
}
