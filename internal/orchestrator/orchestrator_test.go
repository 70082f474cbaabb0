package orchestrator

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"spendwise/internal/agent"
	"spendwise/internal/bank"
	"spendwise/internal/sandbox"
	"spendwise/internal/store"
)

// routingProvider answers router calls with a fixed reply and delegates
// agent calls to a hook.
type routingProvider struct {
	routeReply string
	routeErr   error
	agentFn    func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

func (p *routingProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(req.Messages) > 0 && strings.Contains(req.Messages[0].Content, "silent router") {
		if p.routeErr != nil {
			return nil, p.routeErr
		}
		return &llm.ChatResponse{Content: p.routeReply}, nil
	}
	if p.agentFn != nil {
		return p.agentFn(req)
	}
	return &llm.ChatResponse{Content: "ok"}, nil
}

func (p *routingProvider) ChatStream(ctx context.Context, req llm.ChatRequest, fn func(string)) (*llm.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *routingProvider) Name() string { return "routing" }

type noopSender struct{}

func (noopSender) Send(ctx context.Context, body string) error { return nil }

type noopStocks struct{}

func (noopStocks) Positions(ctx context.Context) ([]bank.Position, error)   { return nil, nil }
func (noopStocks) Quote(ctx context.Context, ticker string) (float64, error) { return 0, nil }
func (noopStocks) Buy(ctx context.Context, ticker string, amount float64) error {
	return nil
}
func (noopStocks) Sell(ctx context.Context, ticker string, amount float64) error {
	return nil
}

func testTiers(t *testing.T, provider llm.Provider) []*agent.Agent {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	d := agent.Deps{
		Runtime:     sandbox.NewRuntime(sandbox.AutoApprove{}, nil),
		Provider:    provider,
		Store:       s,
		DBPath:      dbPath,
		Stocks:      noopStocks{},
		Notify:      noopSender{},
		BankDomain:  "bank.local",
		BankPort:    8081,
		SMSDomain:   "sms.local",
		SMSPort:     9090,
		ToolTimeout: time.Second,
	}

	var agents []*agent.Agent
	for _, build := range []func(agent.Deps) (*agent.Agent, error){
		agent.NewSpending, agent.NewBudget, agent.NewInsights, agent.NewStock,
	} {
		a, err := build(d)
		if err != nil {
			t.Fatalf("tier construction failed: %v", err)
		}
		agents = append(agents, a)
	}
	return agents
}

func TestBudgetUtteranceRoutesOnlyBudgetTier(t *testing.T) {
	provider := &routingProvider{routeReply: "budget"}
	calls := 0
	provider.agentFn = func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		calls++
		if calls == 1 {
			return &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{
				ID:   "call_1",
				Name: "set_budget",
				Args: map[string]interface{}{"category": "Food & Dining", "amount": 200.0},
			}}}, nil
		}
		return &llm.ChatResponse{Content: "Food budget set to 200 CHF for this week."}, nil
	}

	o := New(provider, testTiers(t, provider), time.Minute, nil)
	resp := o.Handle(context.Background(), "Set food budget to 200 CHF")

	if !strings.Contains(resp.Message, "200") {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.Metadata.AgentsUsed) != 1 || resp.Metadata.AgentsUsed[0] != agent.TierBudget {
		t.Errorf("agents_used = %v, want exactly [budget]", resp.Metadata.AgentsUsed)
	}
	if resp.Metadata.Tools["set_budget"] != 1 {
		t.Errorf("tools = %v", resp.Metadata.Tools)
	}
}

func TestDirectAnswer(t *testing.T) {
	provider := &routingProvider{routeReply: "direct: Hi! Ask me about your spending."}
	o := New(provider, testTiers(t, provider), time.Minute, nil)

	resp := o.Handle(context.Background(), "hello")
	if resp.Message != "Hi! Ask me about your spending." {
		t.Errorf("message = %q", resp.Message)
	}
	if len(resp.Metadata.AgentsUsed) != 0 {
		t.Errorf("direct answers must not mark agents, got %v", resp.Metadata.AgentsUsed)
	}
}

func TestOffTopicFallback(t *testing.T) {
	provider := &routingProvider{routeReply: "weather-service"}
	o := New(provider, testTiers(t, provider), time.Minute, nil)

	resp := o.Handle(context.Background(), "what's the weather tomorrow?")
	if resp.Message != offTopicMessage {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestPartialFailureDegrades(t *testing.T) {
	provider := &routingProvider{routeReply: "spending, budget"}
	provider.agentFn = func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		if strings.Contains(req.Messages[0].Content, "spending analyst") {
			return nil, errors.New("provider overloaded")
		}
		return &llm.ChatResponse{Content: "Budget is 200 CHF."}, nil
	}

	o := New(provider, testTiers(t, provider), time.Minute, nil)
	resp := o.Handle(context.Background(), "how's my food spending and budget?")

	if !strings.Contains(resp.Message, "Budget is 200 CHF.") {
		t.Errorf("surviving output lost: %q", resp.Message)
	}
	if !strings.Contains(resp.Message, degradedSuffix) {
		t.Errorf("missing degraded notice: %q", resp.Message)
	}
	// Only the agent that completed is credited in the metadata.
	if len(resp.Metadata.AgentsUsed) != 1 || resp.Metadata.AgentsUsed[0] != agent.TierBudget {
		t.Errorf("agents_used = %v, want exactly [budget]", resp.Metadata.AgentsUsed)
	}
}

func TestAllAgentsFailing(t *testing.T) {
	provider := &routingProvider{routeReply: "spending"}
	provider.agentFn = func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		return nil, errors.New("provider down")
	}

	o := New(provider, testTiers(t, provider), time.Minute, nil)
	resp := o.Handle(context.Background(), "food spending?")
	if resp.Message != failureMessage {
		t.Errorf("message = %q", resp.Message)
	}
}

func TestTurnTimeoutFallback(t *testing.T) {
	slow := &routingProvider{routeReply: "spending"}
	slow.agentFn = func(req llm.ChatRequest) (*llm.ChatResponse, error) {
		time.Sleep(100 * time.Millisecond)
		return &llm.ChatResponse{Content: "too late"}, nil
	}
	base := testTiers(t, slow)

	o := New(&timeoutAwareProvider{inner: slow}, base, 30*time.Millisecond, nil)
	resp := o.Handle(context.Background(), "food spending?")
	if resp.Message != timeoutMessage && resp.Message != failureMessage {
		t.Errorf("message = %q, want a fallback", resp.Message)
	}
}

// timeoutAwareProvider blocks router calls until the turn deadline so
// the timeout path is exercised deterministically.
type timeoutAwareProvider struct {
	inner *routingProvider
}

func (p *timeoutAwareProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (p *timeoutAwareProvider) ChatStream(ctx context.Context, req llm.ChatRequest, fn func(string)) (*llm.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *timeoutAwareProvider) Name() string { return "timeout" }

func TestParseRoute(t *testing.T) {
	provider := &routingProvider{}
	o := New(provider, testTiers(t, provider), time.Minute, nil)

	tests := []struct {
		content string
		agents  []string
		direct  string
	}{
		{"budget", []string{"budget"}, ""},
		{"spending, insights", []string{"spending", "insights"}, ""},
		{"Budget", []string{"budget"}, ""},
		{"budget, budget", []string{"budget"}, ""},
		{"weather, budget", []string{"budget"}, ""},
		{"nonsense", nil, ""},
		{"direct: Hello there", nil, "Hello there"},
	}
	for _, tt := range tests {
		got := o.parseRoute(tt.content)
		if got.direct != tt.direct {
			t.Errorf("parseRoute(%q).direct = %q", tt.content, got.direct)
		}
		if len(got.agents) != len(tt.agents) {
			t.Errorf("parseRoute(%q).agents = %v, want %v", tt.content, got.agents, tt.agents)
			continue
		}
		for i := range tt.agents {
			if got.agents[i] != tt.agents[i] {
				t.Errorf("parseRoute(%q).agents = %v, want %v", tt.content, got.agents, tt.agents)
			}
		}
	}
}
