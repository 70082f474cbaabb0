package sandbox

import (
	"strings"
	"sync"
	"testing"

	"spendwise/internal/manifest"
)

// countingPrompter records every prompt and answers from a script.
type countingPrompter struct {
	mu      sync.Mutex
	answers map[string]bool
	calls   []string
}

func (p *countingPrompter) Confirm(manifestName string, grant Grant) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, manifestName+"/"+grant.Key())
	allowed, ok := p.answers[grant.Key()]
	if !ok {
		return true
	}
	return allowed
}

func (p *countingPrompter) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func mustManifest(t *testing.T, name string, fs []manifest.FSGrant, net []manifest.NetGrant, env []string) *manifest.Manifest {
	t.Helper()
	m, err := manifest.New(name, fs, net, env)
	if err != nil {
		t.Fatalf("manifest.New failed: %v", err)
	}
	return m
}

func TestOutOfManifestDeniedWithoutPrompt(t *testing.T) {
	prompter := &countingPrompter{}
	rt := NewRuntime(prompter, nil)
	guard := rt.Bind(mustManifest(t, "spending",
		[]manifest.FSGrant{{Path: "/data/ledger.db", Read: true}}, nil, nil))

	err := guard.Filesystem("/etc/passwd", false)
	if !IsPermissionDenied(err) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if err := guard.Egress("evil.example", 443); !IsPermissionDenied(err) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
	if _, err := guard.Env("HOME"); !IsPermissionDenied(err) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}

	// Requests outside the manifest never reach the prompter.
	if prompter.count() != 0 {
		t.Errorf("prompter called %d times for out-of-manifest requests", prompter.count())
	}
}

func TestReadOnlyGrantRejectsWrite(t *testing.T) {
	prompter := &countingPrompter{}
	rt := NewRuntime(prompter, nil)
	guard := rt.Bind(mustManifest(t, "spending",
		[]manifest.FSGrant{{Path: "/data/ledger.db", Read: true}}, nil, nil))

	if err := guard.Filesystem("/data/ledger.db", true); !IsPermissionDenied(err) {
		t.Fatalf("expected write to be denied on read-only grant, got %v", err)
	}
	if prompter.count() != 0 {
		t.Error("write against a read-only grant must not prompt")
	}
}

func TestPromptOnceThenCached(t *testing.T) {
	prompter := &countingPrompter{}
	rt := NewRuntime(prompter, nil)
	guard := rt.Bind(mustManifest(t, "stock", nil,
		[]manifest.NetGrant{{Domain: "bank.local", Port: 8081}}, nil))

	for i := 0; i < 5; i++ {
		if err := guard.Egress("bank.local", 8081); err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
	}

	if prompter.count() != 1 {
		t.Errorf("prompted %d times, want exactly 1", prompter.count())
	}
}

func TestDenialIsSticky(t *testing.T) {
	prompter := &countingPrompter{answers: map[string]bool{"net:bank.local:8081": false}}
	rt := NewRuntime(prompter, nil)
	guard := rt.Bind(mustManifest(t, "stock", nil,
		[]manifest.NetGrant{{Domain: "bank.local", Port: 8081}}, nil))

	for i := 0; i < 3; i++ {
		err := guard.Egress("bank.local", 8081)
		if !IsPermissionDenied(err) {
			t.Fatalf("request %d: expected denial, got %v", i, err)
		}
	}

	// The refused decision is cached; no re-prompting.
	if prompter.count() != 1 {
		t.Errorf("prompted %d times after denial, want exactly 1", prompter.count())
	}
}

func TestDecisionsIndependentAcrossManifests(t *testing.T) {
	prompter := &countingPrompter{answers: map[string]bool{"fs:/data/ledger.db:r": false}}
	rt := NewRuntime(prompter, nil)

	spendGrant := []manifest.FSGrant{{Path: "/data/ledger.db", Read: true}}
	spending := rt.Bind(mustManifest(t, "spending", spendGrant, nil, nil))
	insights := rt.Bind(mustManifest(t, "insights", spendGrant, nil, nil))

	if err := spending.Filesystem("/data/ledger.db", false); !IsPermissionDenied(err) {
		t.Fatalf("expected denial for spending, got %v", err)
	}

	// Same grant key, different manifest: prompted separately.
	prompter.mu.Lock()
	prompter.answers["fs:/data/ledger.db:r"] = true
	prompter.mu.Unlock()

	if err := insights.Filesystem("/data/ledger.db", false); err != nil {
		t.Fatalf("insights should get its own decision, got %v", err)
	}
	if prompter.count() != 2 {
		t.Errorf("prompted %d times, want one per manifest", prompter.count())
	}
}

func TestEnvReturnsValue(t *testing.T) {
	t.Setenv("SMS_API_KEY", "sk-test-123")
	rt := NewRuntime(AutoApprove{}, nil)
	guard := rt.Bind(mustManifest(t, "insights", nil, nil, []string{"SMS_API_KEY"}))

	got, err := guard.Env("SMS_API_KEY")
	if err != nil {
		t.Fatalf("Env failed: %v", err)
	}
	if got != "sk-test-123" {
		t.Errorf("Env() = %q, want sk-test-123", got)
	}
}

func TestConcurrentFirstUsePromptsOnce(t *testing.T) {
	prompter := &countingPrompter{}
	rt := NewRuntime(prompter, nil)
	guard := rt.Bind(mustManifest(t, "stock", nil,
		[]manifest.NetGrant{{Domain: "bank.local", Port: 8081}}, nil))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := guard.Egress("bank.local", 8081); err != nil {
				t.Errorf("Egress failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if prompter.count() != 1 {
		t.Errorf("prompted %d times under concurrency, want 1", prompter.count())
	}
}

func TestStdinPrompter(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"yes\n", true},
		{"Y\n", true},
		{"n\n", false},
		{"\n", false},
		{"whatever\n", false},
	}

	grant := manifest.NetGrant{Domain: "bank.local", Port: 8081}
	for _, tt := range tests {
		var out strings.Builder
		p := &StdinPrompter{In: strings.NewReader(tt.input), Out: &out}
		if got := p.Confirm("stock", grant); got != tt.want {
			t.Errorf("input %q: Confirm() = %v, want %v", tt.input, got, tt.want)
		}
		if !strings.Contains(out.String(), "stock") {
			t.Errorf("prompt output missing manifest name: %q", out.String())
		}
	}
}
