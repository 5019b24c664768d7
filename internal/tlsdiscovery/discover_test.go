package tlsdiscovery

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDiscoverNoneFound(t *testing.T) {
	p := Discover()
	// On a clean test environment no search directory should contain both
	// files, but we only assert the Found() contract holds either way.
	if p.Found() && (p.CertPath == "" || p.KeyPath == "") {
		t.Fatalf("Found() true but paths incomplete: %+v", p)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "x")
	if fileExists(f) {
		t.Fatal("expected missing file to report false")
	}
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if !fileExists(f) {
		t.Fatal("expected existing file to report true")
	}
	if fileExists(dir) {
		t.Fatal("expected a directory to not count as a file")
	}
}
