package jsonrpc

import (
	"bytes"
	"encoding/json"
	"regexp"
)

// MaxRequestBytes is the hard cap on an inbound JSON-RPC request body,
// enforced before any parsing is attempted (spec §7, size budget).
const MaxRequestBytes = 1 << 20 // 1 MiB

// bodyTooLargeMessage is the message CheckSize returns when body exceeds
// MaxRequestBytes.
const bodyTooLargeMessage = "Request exceeds maximum size of 1MB"

// CheckSize reports whether body fits within MaxRequestBytes, returning the
// exact wire message to use in the 413 response body otherwise.
func CheckSize(body []byte) (ok bool, message string) {
	if len(body) > MaxRequestBytes {
		return false, bodyTooLargeMessage
	}
	return true, ""
}

// Validate checks structural requirements on an already-parsed Request:
// jsonrpc must be exactly "2.0", and method must be a non-empty string.
// It does not evaluate params — callers that need method-specific schema
// checking do so themselves and report CodeInvalidParams.
func Validate(req Request) (code int, message string, ok bool) {
	if req.JSONRPC != "2.0" {
		return CodeInvalidRequest, "Invalid Request: jsonrpc must be \"2.0\"", false
	}
	if req.Method == "" {
		return CodeInvalidRequest, "Invalid Request: method is required", false
	}
	return 0, "", true
}

// idFieldRE scans raw, malformed JSON for a top-level "id" field so a
// parse-error response can still echo back a request id when possible.
// This is a best-effort regex scan, not a parser — the input has already
// failed json.Unmarshal by the time this runs.
var idFieldRE = regexp.MustCompile(`"id"\s*:\s*(null|true|false|"(?:[^"\\]|\\.)*"|-?[0-9]+(?:\.[0-9]+)?)`)

// ExtractRequestID attempts to recover the "id" value from a raw request
// body that failed to parse as valid JSON, so CodeParseError responses can
// still carry the caller's id instead of always replying with null.
func ExtractRequestID(raw []byte) json.RawMessage {
	if json.Valid(raw) {
		var probe struct {
			ID json.RawMessage `json:"id"`
		}
		if err := json.Unmarshal(raw, &probe); err == nil && probe.ID != nil {
			return probe.ID
		}
	}
	m := idFieldRE.FindSubmatch(raw)
	if m == nil {
		return nil
	}
	return json.RawMessage(bytes.TrimSpace(m[1]))
}
