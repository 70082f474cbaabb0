package tools

import (
	"sort"
	"sync"
	"time"
)

// InvocationRecord captures one tool call for turn metadata.
type InvocationRecord struct {
	Agent    string
	Tool     string
	Duration time.Duration
	Err      error
}

// Usage collects tool invocations across one orchestrator turn. Safe
// for concurrent use.
type Usage struct {
	mu      sync.Mutex
	records []InvocationRecord
}

// Record appends one invocation.
func (u *Usage) Record(rec InvocationRecord) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.records = append(u.records, rec)
}

// Records returns a snapshot of all invocations.
func (u *Usage) Records() []InvocationRecord {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]InvocationRecord, len(u.records))
	copy(out, u.records)
	return out
}

// AgentsUsed returns the distinct agent ids marked as completed, in
// completion order. Tool records alone do not count: an agent that
// called tools and then failed is not listed.
func (u *Usage) AgentsUsed() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	seen := make(map[string]bool)
	var out []string
	for _, rec := range u.records {
		if rec.Agent == "" || rec.Tool != "" || seen[rec.Agent] {
			continue
		}
		seen[rec.Agent] = true
		out = append(out, rec.Agent)
	}
	return out
}

// MarkAgent records that an agent completed its task, even if it
// called no tools.
func (u *Usage) MarkAgent(agentID string) {
	u.Record(InvocationRecord{Agent: agentID})
}

// ToolCounts returns per-tool invocation counts.
func (u *Usage) ToolCounts() map[string]int {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make(map[string]int)
	for _, rec := range u.records {
		if rec.Tool != "" {
			out[rec.Tool]++
		}
	}
	return out
}

// ToolNames returns the distinct tool names, sorted.
func (u *Usage) ToolNames() []string {
	counts := u.ToolCounts()
	out := make([]string, 0, len(counts))
	for name := range counts {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
