// Package supervisor implements the Category Supervisor (spec §4.5): the
// daemon that spawns, monitors, and staged-shuts-down one OS subprocess per
// category binary, sharing a single discovered TLS certificate pair across
// the whole fleet.
//
// Concurrency model: state changes are guarded by mu, process I/O (spawn,
// signal, wait) always happens outside the lock so a hung child cannot
// block an unrelated fleet operation.
package supervisor

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"runtime"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/kodegen/mcp-gateway/internal/catalog"
	"github.com/kodegen/mcp-gateway/internal/tlsdiscovery"
)

// gracefulShutdownWait and killWait match the original daemon's staged
// shutdown: SIGTERM, then up to 30s, then SIGKILL, then up to 5s before
// giving up and logging a fatal-but-non-panicking warning.
const (
	gracefulShutdownWait = 30 * time.Second
	killWait             = 5 * time.Second
)

// Child is one supervised category subprocess.
type Child struct {
	Name       string
	BinaryPath string
	Port       uint16
	Enabled    bool

	cmd *exec.Cmd
}

// Fleet owns the full set of category subprocesses.
type Fleet struct {
	mu        sync.Mutex
	children  map[string]*Child
	tlsPaths  tlsdiscovery.Paths
	workspace string
	topology  *Topology
}

// Topology is the optional service/topology file (spec's Rust original,
// mcp-daemon/src/config.rs, loads an equivalent service list): it lets an
// operator override which built-in categories are enabled and which port
// each one binds, without touching catalog.BuiltinCategories.
//
// Example file:
//
//	categories:
//	  git:
//	    enabled: false
//	  filesystem:
//	    port: 9001
type Topology struct {
	Categories map[string]CategoryOverride `yaml:"categories"`
}

// CategoryOverride holds the fields a topology file may override for one
// category. Nil pointers mean "use the catalog default".
type CategoryOverride struct {
	Enabled *bool   `yaml:"enabled"`
	Port    *uint16 `yaml:"port"`
}

// NewFleet discovers TLS certificates once (shared by every child) and
// returns an empty Fleet ready for AddCategory/SpawnAll.
func NewFleet(workspaceDir string) *Fleet {
	return &Fleet{
		children:  make(map[string]*Child),
		tlsPaths:  tlsdiscovery.Discover(),
		workspace: workspaceDir,
	}
}

// LoadTopologyFile parses a YAML topology file and applies it to every
// category added from this point on. Call it before AddCategory /
// AddBuiltinCategories. A missing file is not an error — the fleet simply
// runs with catalog defaults.
func (f *Fleet) LoadTopologyFile(path string) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("supervisor: read topology %s: %w", path, err)
	}

	var topo Topology
	if err := yaml.Unmarshal(data, &topo); err != nil {
		return fmt.Errorf("supervisor: parse topology %s: %w", path, err)
	}

	f.mu.Lock()
	f.topology = &topo
	f.mu.Unlock()
	log.Printf("[Supervisor] loaded topology file %s (%d category overrides)", path, len(topo.Categories))
	return nil
}

// AddCategory resolves category's binary on PATH and registers it as a
// fleet member, enabled by default. A category whose binary cannot be
// found on PATH is registered disabled rather than failing the whole
// fleet (spec §4.5: per-category failures are tolerated). A loaded
// Topology may further force a category disabled or rebind its port.
func (f *Fleet) AddCategory(category string) error {
	port, ok := catalog.Port(category)
	if !ok {
		return fmt.Errorf("supervisor: unknown category %q", category)
	}

	binary := catalog.Binary(category)
	path, err := exec.LookPath(binary)
	enabled := err == nil
	if err != nil {
		log.Printf("[Supervisor] binary %q not found on PATH; %q will stay disabled: %v", binary, category, err)
		path = binary
	}

	f.mu.Lock()
	if f.topology != nil {
		if override, ok := f.topology.Categories[category]; ok {
			if override.Port != nil {
				port = *override.Port
			}
			if override.Enabled != nil {
				if !*override.Enabled {
					log.Printf("[Supervisor] %q disabled by topology file", category)
				}
				enabled = enabled && *override.Enabled
			}
		}
	}
	if prev, ok := f.children[category]; ok {
		// Update in place so a running child's cmd survives a Reload.
		prev.BinaryPath, prev.Port, prev.Enabled = path, port, enabled
	} else {
		f.children[category] = &Child{Name: category, BinaryPath: path, Port: port, Enabled: enabled}
	}
	f.mu.Unlock()
	return nil
}

// AddBuiltinCategories registers every category in catalog.BuiltinCategories.
func (f *Fleet) AddBuiltinCategories() error {
	for _, category := range catalog.BuiltinCategories {
		if err := f.AddCategory(category); err != nil {
			return err
		}
	}
	return nil
}

// spawnArgs builds the argv for a category binary: --http bind address,
// plus --tls-cert/--tls-key only when both halves of the pair were
// discovered (spec §4.5: "TLS args are all-or-nothing").
func (f *Fleet) spawnArgs(c *Child) []string {
	args := []string{"--http", fmt.Sprintf("127.0.0.1:%d", c.Port)}
	if f.tlsPaths.Found() {
		args = append(args, "--tls-cert", f.tlsPaths.CertPath, "--tls-key", f.tlsPaths.KeyPath)
	}
	return args
}

// SpawnAll starts every enabled, not-yet-running child in parallel. Spawn
// failures are logged and counted but do not prevent other children from
// starting — mirroring the stdio proxy's per-category connect fan-out
// (internal/stdioproxy.ConnectAll), a single child's failure to launch
// never aborts the rest of the fleet.
func (f *Fleet) SpawnAll(ctx context.Context) (spawned int, errs []error) {
	f.mu.Lock()
	targets := make([]*Child, 0, len(f.children))
	for _, c := range f.children {
		if c.Enabled && c.cmd == nil {
			targets = append(targets, c)
		}
	}
	f.mu.Unlock()

	var (
		mu    sync.Mutex
		group errgroup.Group
	)
	for _, c := range targets {
		c := c
		group.Go(func() error {
			err := f.spawn(ctx, c)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("supervisor: spawn %q: %w", c.Name, err))
			} else {
				spawned++
			}
			return nil // never abort the group: a sibling's failure is independent
		})
	}
	_ = group.Wait()
	return spawned, errs
}

func (f *Fleet) spawn(ctx context.Context, c *Child) error {
	cmd := exec.CommandContext(ctx, c.BinaryPath, f.spawnArgs(c)...)
	cmd.Env = os.Environ()
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error { return nil } // staged shutdown below replaces ctx-cancel kill

	if err := cmd.Start(); err != nil {
		return err
	}

	f.mu.Lock()
	c.cmd = cmd
	f.mu.Unlock()

	log.Printf("[Supervisor] spawned %q (pid %d, port %d)", c.Name, cmd.Process.Pid, c.Port)

	go func() {
		err := cmd.Wait()
		f.mu.Lock()
		c.cmd = nil
		f.mu.Unlock()
		if err != nil {
			log.Printf("[Supervisor] %q exited: %v", c.Name, err)
		} else {
			log.Printf("[Supervisor] %q exited cleanly", c.Name)
		}
	}()

	return nil
}

// ShutdownAll performs the staged shutdown spec §4.5 mandates for every
// running child: POSIX sends SIGTERM, waits up to gracefulShutdownWait,
// then SIGKILL and waits up to killWait before logging (not panicking)
// that the child would not die; Windows has no graceful signal so it goes
// straight to the kill step.
func (f *Fleet) ShutdownAll() {
	f.mu.Lock()
	running := make([]*Child, 0, len(f.children))
	for _, c := range f.children {
		if c.cmd != nil {
			running = append(running, c)
		}
	}
	f.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range running {
		wg.Add(1)
		go func(c *Child) {
			defer wg.Done()
			f.shutdownOne(c)
		}(c)
	}
	wg.Wait()
}

func (f *Fleet) shutdownOne(c *Child) {
	f.mu.Lock()
	cmd := c.cmd
	f.mu.Unlock()
	if cmd == nil || cmd.Process == nil {
		return
	}

	if runtime.GOOS != "windows" {
		log.Printf("[Supervisor] sending SIGTERM to %q (pid %d)", c.Name, cmd.Process.Pid)
		_ = cmd.Process.Signal(syscall.SIGTERM)
		if waitWithTimeout(cmd, gracefulShutdownWait) {
			return
		}
		log.Printf("[Supervisor] %q did not exit within %s, escalating to SIGKILL", c.Name, gracefulShutdownWait)
	}

	_ = cmd.Process.Kill()
	if waitWithTimeout(cmd, killWait) {
		return
	}
	log.Printf("[Supervisor] WARNING: %q (pid %d) did not exit after SIGKILL within %s", c.Name, cmd.Process.Pid, killWait)
}

// waitWithTimeout polls whether cmd's process has exited, without calling
// Wait itself (the spawn goroutine already owns that call) — it just
// checks liveness via a zero-signal probe.
func waitWithTimeout(cmd *exec.Cmd, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cmd.Process.Signal(syscall.Signal(0)) != nil {
			return true // process is gone
		}
		time.Sleep(100 * time.Millisecond)
	}
	return cmd.Process.Signal(syscall.Signal(0)) != nil
}

// Status reports one child's port and current enabled/running state, as
// snapshotted by Statuses.
type Status struct {
	Name    string
	Port    uint16
	Enabled bool
	Running bool
}

// Statuses snapshots every fleet member.
func (f *Fleet) Statuses() []Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Status, 0, len(f.children))
	for _, category := range catalog.BuiltinCategories {
		c, ok := f.children[category]
		if !ok {
			continue
		}
		out = append(out, Status{Name: c.Name, Port: c.Port, Enabled: c.Enabled, Running: c.cmd != nil})
	}
	return out
}

// Reload re-reads topologyPath (if non-empty) and re-resolves every
// built-in category's enabled/port state against it, then starts any
// newly-enabled category and stops any newly-disabled one. Categories
// whose enabled state is unchanged are left running untouched — this is
// a hot reconfiguration, not a full daemon restart.
func (f *Fleet) Reload(ctx context.Context, topologyPath string) (spawned int, stopped int, errs []error) {
	if topologyPath != "" {
		if err := f.LoadTopologyFile(topologyPath); err != nil {
			return 0, 0, []error{err}
		}
	}

	for _, category := range catalog.BuiltinCategories {
		if err := f.AddCategory(category); err != nil {
			errs = append(errs, err)
		}
	}

	f.mu.Lock()
	var toStop []*Child
	for _, c := range f.children {
		if !c.Enabled && c.cmd != nil {
			toStop = append(toStop, c)
		}
	}
	f.mu.Unlock()

	for _, c := range toStop {
		log.Printf("[Supervisor] reload: stopping %q (disabled by topology)", c.Name)
		f.shutdownOne(c)
		stopped++
	}

	spawned, spawnErrs := f.SpawnAll(ctx)
	errs = append(errs, spawnErrs...)
	return spawned, stopped, errs
}
