// Package tlsdiscovery implements the platform-specific certificate
// auto-discovery the Rust original performs once at daemon startup and
// shares across every category subprocess (spec §6, supplemented feature).
package tlsdiscovery

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	certFileName = "server.crt"
	keyFileName  = "server.key"
)

// Paths is a discovered TLS certificate/key pair, or the zero value if
// none was found (HTTP-only fallback).
type Paths struct {
	CertPath string
	KeyPath  string
}

// Found reports whether a usable cert/key pair was located.
func (p Paths) Found() bool { return p.CertPath != "" && p.KeyPath != "" }

// searchDirs returns the ordered, platform-specific directories to check,
// system location first then user-local, matching the original daemon's
// discover_certificate_paths.
func searchDirs() []string {
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "darwin":
		return []string{
			"/usr/local/etc/kodegen",
			"/opt/homebrew/etc/kodegen",
			filepath.Join(home, "Library", "Application Support", "kodegen"),
			filepath.Join(home, ".kodegen"),
		}
	case "windows":
		programData := os.Getenv("PROGRAMDATA")
		if programData == "" {
			programData = `C:\ProgramData`
		}
		appData := os.Getenv("APPDATA")
		return []string{
			filepath.Join(programData, "kodegen"),
			filepath.Join(appData, "kodegen"),
		}
	default: // linux and other unix-likes
		return []string{
			"/etc/kodegen",
			"/usr/local/etc/kodegen",
			filepath.Join(home, ".config", "kodegen"),
			filepath.Join(home, ".kodegen"),
		}
	}
}

// Discover checks each platform search directory, in order, for both
// server.crt and server.key; the first directory containing both wins.
// Discovery runs once at startup and the result is shared across all
// spawned category subprocesses.
func Discover() Paths {
	for _, dir := range searchDirs() {
		cert := filepath.Join(dir, certFileName)
		key := filepath.Join(dir, keyFileName)
		if fileExists(cert) && fileExists(key) {
			return Paths{CertPath: cert, KeyPath: key}
		}
	}
	return Paths{}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
