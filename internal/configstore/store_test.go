package configstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestSetGetClientInfoLastWriterWins(t *testing.T) {
	s := New("")
	s.SetClientInfo("sess-1", ClientInfo{Name: "agent-a", Version: "1.0"})
	s.SetClientInfo("sess-1", ClientInfo{Name: "agent-a", Version: "2.0"})

	info, ok := s.GetClientInfo("sess-1")
	if !ok {
		t.Fatal("expected client info to be present")
	}
	if info.Version != "2.0" {
		t.Fatalf("version = %q, want 2.0 (last writer should win)", info.Version)
	}
}

func TestGetClientInfoUnknownSession(t *testing.T) {
	s := New("")
	if _, ok := s.GetClientInfo("missing"); ok {
		t.Fatal("expected no client info for unknown session")
	}
}

func TestSetClientInfoPersistsBestEffort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clients.json")
	s := New(path)
	s.SetClientInfo("sess-1", ClientInfo{Name: "agent-a", Version: "1.0"})

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("expected client info persisted to %s: %v", path, err)
	}
	var onDisk map[string]ClientInfo
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("persisted file is not valid JSON: %v", err)
	}
	if onDisk["sess-1"].Name != "agent-a" {
		t.Fatalf("persisted entry = %+v, want name agent-a", onDisk["sess-1"])
	}

	s2 := New("")
	if _, ok := s2.GetClientInfo("sess-1"); ok {
		t.Fatal("sanity: fresh store should not see sess-1")
	}
}
