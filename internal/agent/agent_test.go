package agent

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"spendwise/internal/bank"
	"spendwise/internal/sandbox"
	"spendwise/internal/store"
	"spendwise/internal/tools"
)

// scriptedProvider replays canned responses and records every request.
type scriptedProvider struct {
	responses []*llm.ChatResponse
	requests  []llm.ChatRequest
	calls     int
}

func (p *scriptedProvider) Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.calls >= len(p.responses) {
		return &llm.ChatResponse{Content: "done"}, nil
	}
	resp := p.responses[p.calls]
	p.calls++
	return resp, nil
}

func (p *scriptedProvider) ChatStream(ctx context.Context, req llm.ChatRequest, fn func(string)) (*llm.ChatResponse, error) {
	return p.Chat(ctx, req)
}

func (p *scriptedProvider) Name() string { return "scripted" }

type fakeSender struct {
	sent []string
}

func (f *fakeSender) Send(ctx context.Context, body string) error {
	f.sent = append(f.sent, body)
	return nil
}

type fakeStocks struct{}

func (fakeStocks) Positions(ctx context.Context) ([]bank.Position, error) { return nil, nil }
func (fakeStocks) Quote(ctx context.Context, ticker string) (float64, error) {
	return 100, nil
}
func (fakeStocks) Buy(ctx context.Context, ticker string, amount float64) error  { return nil }
func (fakeStocks) Sell(ctx context.Context, ticker string, amount float64) error { return nil }

func testDeps(t *testing.T, provider llm.Provider) Deps {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	s, err := store.Open(dbPath)
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	return Deps{
		Runtime:     sandbox.NewRuntime(sandbox.AutoApprove{}, nil),
		Provider:    provider,
		Store:       s,
		DBPath:      dbPath,
		Stocks:      fakeStocks{},
		Notify:      &fakeSender{},
		BankDomain:  "bank.local",
		BankPort:    8081,
		SMSDomain:   "sms.local",
		SMSPort:     9090,
		ToolTimeout: time.Second,
	}
}

func TestSpendingAgentRunsToolLoop(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCallResponse{{
			ID:   "call_1",
			Name: "query_spending",
			Args: map[string]interface{}{"category": "Food & Dining", "period": "week"},
		}}},
		{Content: "You spent 45.80 CHF on food this week."},
	}}
	d := testDeps(t, provider)

	foodID, _ := d.Store.CategoryID("Food & Dining")
	d.Store.InsertTransaction(store.Transaction{
		ExternalID: "t1", Date: time.Now().UTC(), Amount: -45.80,
		Description: "MIGROS", Merchant: "MIGROS", CategoryID: &foodID,
	})

	a, err := NewSpending(d)
	if err != nil {
		t.Fatalf("NewSpending failed: %v", err)
	}

	usage := &tools.Usage{}
	out, err := a.Run(context.Background(), "How much did I spend on food this week?", usage)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !strings.Contains(out, "45.80") {
		t.Errorf("output = %q", out)
	}

	// Second request must carry the tool result back to the model.
	if len(provider.requests) != 2 {
		t.Fatalf("provider called %d times", len(provider.requests))
	}
	last := provider.requests[1].Messages
	toolMsg := last[len(last)-1]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message = %+v", toolMsg)
	}
	if !strings.Contains(toolMsg.Content, "45.8") {
		t.Errorf("tool result = %q", toolMsg.Content)
	}

	if agents := usage.AgentsUsed(); len(agents) != 1 || agents[0] != TierSpending {
		t.Errorf("agents = %v", agents)
	}
	if usage.ToolCounts()["query_spending"] != 1 {
		t.Errorf("counts = %v", usage.ToolCounts())
	}
}

func TestAgentFeedsToolErrorsBack(t *testing.T) {
	provider := &scriptedProvider{responses: []*llm.ChatResponse{
		{ToolCalls: []llm.ToolCallResponse{{
			ID:   "call_1",
			Name: "query_spending",
			Args: map[string]interface{}{"category": "Nonsense"},
		}}},
		{Content: "I don't know that category."},
	}}
	d := testDeps(t, provider)
	a, err := NewSpending(d)
	if err != nil {
		t.Fatalf("NewSpending failed: %v", err)
	}

	out, err := a.Run(context.Background(), "spending on Nonsense?", nil)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out == "" {
		t.Error("expected a final answer despite the tool error")
	}

	last := provider.requests[1].Messages
	toolMsg := last[len(last)-1]
	if !strings.HasPrefix(toolMsg.Content, "Error:") {
		t.Errorf("tool error not surfaced to the model: %q", toolMsg.Content)
	}
}

func TestAgentIterationCap(t *testing.T) {
	looping := &llm.ChatResponse{ToolCalls: []llm.ToolCallResponse{{
		ID:   "call_x",
		Name: "list_budgets",
		Args: map[string]interface{}{},
	}}}
	responses := make([]*llm.ChatResponse, maxIterations+2)
	for i := range responses {
		responses[i] = looping
	}
	provider := &scriptedProvider{responses: responses}
	d := testDeps(t, provider)
	a, err := NewBudget(d)
	if err != nil {
		t.Fatalf("NewBudget failed: %v", err)
	}

	usage := &tools.Usage{}
	_, err = a.Run(context.Background(), "budgets?", usage)
	if err == nil || !strings.Contains(err.Error(), "iterations") {
		t.Errorf("expected iteration cap error, got %v", err)
	}

	// A failed run records its tool calls but is never credited as a
	// completed agent.
	if agents := usage.AgentsUsed(); len(agents) != 0 {
		t.Errorf("agents = %v, want none for a failed run", agents)
	}
	if usage.ToolCounts()["list_budgets"] == 0 {
		t.Error("tool invocations of the failed run must still be recorded")
	}
}

func TestTierManifests(t *testing.T) {
	provider := &scriptedProvider{}
	d := testDeps(t, provider)

	spending, err := NewSpending(d)
	if err != nil {
		t.Fatalf("NewSpending failed: %v", err)
	}
	if _, ok := spending.Manifest.FindFS(d.DBPath, true); ok {
		t.Error("spending tier must not hold the write grant")
	}
	if len(spending.Manifest.Network()) != 0 {
		t.Error("spending tier must not hold network grants")
	}

	budget, err := NewBudget(d)
	if err != nil {
		t.Fatalf("NewBudget failed: %v", err)
	}
	if _, ok := budget.Manifest.FindFS(d.DBPath, true); !ok {
		t.Error("budget tier needs the read-write grant")
	}

	insights, err := NewInsights(d)
	if err != nil {
		t.Fatalf("NewInsights failed: %v", err)
	}
	if _, ok := insights.Manifest.FindNet("sms.local", 9090); !ok {
		t.Error("insights tier needs SMS egress")
	}
	if _, ok := insights.Manifest.FindNet("bank.local", 8081); ok {
		t.Error("insights tier must not reach the bank")
	}

	stock, err := NewStock(d)
	if err != nil {
		t.Fatalf("NewStock failed: %v", err)
	}
	if len(stock.Manifest.Filesystem()) != 0 {
		t.Error("stock tier must not touch the ledger file")
	}
	if _, ok := stock.Manifest.FindNet("bank.local", 8081); !ok {
		t.Error("stock tier needs bank egress")
	}

	importer, err := NewImporter(d)
	if err != nil {
		t.Fatalf("NewImporter failed: %v", err)
	}
	if _, ok := importer.Manifest.FindFS(d.DBPath, true); !ok {
		t.Error("importer tier needs the read-write grant")
	}
	if got := len(importer.Registry.Definitions()); got != 1 {
		t.Errorf("importer tools = %d, want only import_transaction", got)
	}
}

func TestImporterInstructionsCarryTaxonomy(t *testing.T) {
	provider := &scriptedProvider{}
	d := testDeps(t, provider)
	if _, err := NewImporter(d); err != nil {
		t.Fatalf("NewImporter failed: %v", err)
	}
	text := importerInstructions(d.Store)
	for _, name := range []string{"Food & Dining", "Investments", "Other"} {
		if !strings.Contains(text, name) {
			t.Errorf("instructions missing category %q", name)
		}
	}
}
