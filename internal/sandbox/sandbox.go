// Package sandbox enforces capability manifests at runtime.
//
// Container-level isolation is replaced by an in-process
// capability-reference mechanism: tools never see ambient filesystem,
// network, or environment access. They hold a Guard bound to one
// manifest and every attempted I/O goes through it. A request outside
// the manifest fails with PermissionDeniedError and performs no I/O;
// there is no fallback to broader access.
package sandbox

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"spendwise/internal/logging"
	"spendwise/internal/manifest"
)

// Grant is any manifest grant (filesystem, network, or environment).
type Grant interface {
	Key() string
	String() string
}

// Prompter decides whether a grant's first use is allowed.
type Prompter interface {
	// Confirm asks for consent to use a grant. Called at most once per
	// (manifest, grant) pair per Runtime.
	Confirm(manifestName string, grant Grant) bool
}

// AutoApprove grants every in-manifest request without interaction.
// Used by headless runs (server, sync loop) where the manifest itself
// was reviewed at deploy time.
type AutoApprove struct{}

// Confirm always allows.
func (AutoApprove) Confirm(string, Grant) bool { return true }

// StdinPrompter asks the operator on the terminal.
type StdinPrompter struct {
	In  io.Reader
	Out io.Writer
}

// NewStdinPrompter prompts on stdin/stderr.
func NewStdinPrompter() *StdinPrompter {
	return &StdinPrompter{In: os.Stdin, Out: os.Stderr}
}

// Confirm prints the grant and reads a y/N answer.
func (p *StdinPrompter) Confirm(manifestName string, grant Grant) bool {
	fmt.Fprintf(p.Out, "Agent %q requests %s. Allow? [y/N]: ", manifestName, grant)
	reader := bufio.NewReader(p.In)
	line, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

type decisionKey struct {
	manifest string
	grant    string
}

// Runtime owns the permission decision cache for all manifests in the
// process. Decisions are keyed by (manifest name, grant key): the first
// use of a grant prompts, every later use reuses the cached answer, and
// a denial is sticky for the lifetime of the Runtime.
type Runtime struct {
	mu        sync.Mutex
	prompter  Prompter
	logger    *logging.Logger
	decisions map[decisionKey]bool
}

// NewRuntime creates a runtime with the given grant prompter.
func NewRuntime(prompter Prompter, logger *logging.Logger) *Runtime {
	if logger == nil {
		logger = logging.New()
	}
	return &Runtime{
		prompter:  prompter,
		logger:    logger.WithComponent("sandbox"),
		decisions: make(map[decisionKey]bool),
	}
}

// Bind returns the capability guard for one manifest. Guards bound to
// different manifests share the runtime but never each other's grants.
func (r *Runtime) Bind(m *manifest.Manifest) *Guard {
	return &Guard{rt: r, m: m}
}

// Decisions returns a snapshot of recorded decisions, keyed
// "manifest/grant", for auditing.
func (r *Runtime) Decisions() map[string]bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]bool, len(r.decisions))
	for k, v := range r.decisions {
		out[k.manifest+"/"+k.grant] = v
	}
	return out
}

// authorize checks the cached decision for a grant already known to be
// in the manifest, prompting on first use.
func (r *Runtime) authorize(manifestName string, grant Grant) error {
	key := decisionKey{manifest: manifestName, grant: grant.Key()}

	r.mu.Lock()
	allowed, seen := r.decisions[key]
	if !seen {
		// Prompt while holding the lock: concurrent first uses of the
		// same grant must not double-prompt.
		allowed = r.prompter.Confirm(manifestName, grant)
		r.decisions[key] = allowed
		r.logger.Info("permission_decision", map[string]interface{}{
			"manifest": manifestName,
			"grant":    grant.Key(),
			"allowed":  allowed,
		})
	}
	r.mu.Unlock()

	if !allowed {
		return &PermissionDeniedError{
			Manifest: manifestName,
			Grant:    grant.Key(),
			Reason:   "refused by operator",
		}
	}
	return nil
}

// Guard is the capability reference handed to one agent's tools.
type Guard struct {
	rt *Runtime
	m  *manifest.Manifest
}

// ManifestName returns the name of the bound manifest.
func (g *Guard) ManifestName() string { return g.m.Name() }

// Filesystem authorizes access to a path. write selects the read/write
// grant; a read-only grant never satisfies a write request.
func (g *Guard) Filesystem(path string, write bool) error {
	grant, ok := g.m.FindFS(path, write)
	if !ok {
		mode := "read"
		if write {
			mode = "write"
		}
		return &PermissionDeniedError{
			Manifest: g.m.Name(),
			Grant:    fmt.Sprintf("fs:%s:%s", path, mode),
			Reason:   "not in manifest",
		}
	}
	return g.rt.authorize(g.m.Name(), grant)
}

// Egress authorizes an outbound connection to domain:port.
func (g *Guard) Egress(domain string, port int) error {
	grant, ok := g.m.FindNet(domain, port)
	if !ok {
		return &PermissionDeniedError{
			Manifest: g.m.Name(),
			Grant:    fmt.Sprintf("net:%s:%d", domain, port),
			Reason:   "not in manifest",
		}
	}
	return g.rt.authorize(g.m.Name(), grant)
}

// Env authorizes and reads one environment variable.
func (g *Guard) Env(name string) (string, error) {
	grant, ok := g.m.FindEnv(name)
	if !ok {
		return "", &PermissionDeniedError{
			Manifest: g.m.Name(),
			Grant:    fmt.Sprintf("env:%s", name),
			Reason:   "not in manifest",
		}
	}
	if err := g.rt.authorize(g.m.Name(), grant); err != nil {
		return "", err
	}
	return os.Getenv(name), nil
}
