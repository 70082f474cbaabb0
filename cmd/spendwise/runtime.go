// Package main provides runtime assembly for the commands.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"

	"spendwise/internal/agent"
	"spendwise/internal/bank"
	"spendwise/internal/config"
	"spendwise/internal/logging"
	"spendwise/internal/notify"
	"spendwise/internal/orchestrator"
	"spendwise/internal/reconcile"
	"spendwise/internal/sandbox"
	"spendwise/internal/server"
	"spendwise/internal/store"
)

// runtime wires the application together.
type runtime struct {
	cfg    *config.Config
	logger *logging.Logger
	store  *store.Store
	bank   *bank.Client
	orch   *orchestrator.Orchestrator
	rec    *reconcile.Reconciler
	telem  telemetry.Exporter

	closers []func()
}

// newRuntime loads config and builds every component. prompter decides
// how first-use permission grants are confirmed.
func newRuntime(configPath string, prompter sandbox.Prompter) (*runtime, error) {
	rt := &runtime{logger: logging.New()}

	var err error
	if configPath != "" {
		rt.cfg, err = config.LoadFile(configPath)
		if err != nil {
			return nil, err
		}
	} else if rt.cfg, err = config.LoadDefault(); err != nil {
		rt.logger.Warn("no config file found, using defaults", nil)
		rt.cfg = config.New()
	}

	if err := rt.setupTelemetry(); err != nil {
		return nil, err
	}

	rt.store, err = store.Open(rt.cfg.Storage.Path)
	if err != nil {
		rt.close()
		return nil, err
	}
	rt.addCloser(func() { rt.store.Close() })

	rt.bank = bank.New(rt.cfg.Bank.BaseURL, rt.cfg.BankTimeout())

	provider, err := rt.createProvider()
	if err != nil {
		rt.close()
		return nil, err
	}

	sender := notify.NewHTTPSender(rt.cfg.Notify.Endpoint, rt.cfg.Notify.Recipient, rt.cfg.BankTimeout())
	deps := agent.Deps{
		Runtime:     sandbox.NewRuntime(prompter, rt.logger),
		Provider:    provider,
		Logger:      rt.logger,
		Store:       rt.store,
		DBPath:      rt.cfg.Storage.Path,
		Stocks:      rt.bank,
		Notify:      sender,
		BankDomain:  rt.cfg.Bank.Domain,
		BankPort:    rt.cfg.Bank.Port,
		SMSDomain:   rt.cfg.Notify.Domain,
		SMSPort:     rt.cfg.Notify.Port,
		ToolTimeout: rt.cfg.ToolTimeout(),
	}

	var tiers []*agent.Agent
	var importer, insights *agent.Agent
	for _, build := range []struct {
		fn   func(agent.Deps) (*agent.Agent, error)
		role string
	}{
		{agent.NewSpending, agent.TierSpending},
		{agent.NewBudget, agent.TierBudget},
		{agent.NewInsights, agent.TierInsights},
		{agent.NewStock, agent.TierStock},
		{agent.NewImporter, agent.TierImporter},
	} {
		a, err := build.fn(deps)
		if err != nil {
			rt.close()
			return nil, fmt.Errorf("building %s tier: %w", build.role, err)
		}
		switch build.role {
		case agent.TierImporter:
			importer = a
		case agent.TierInsights:
			insights = a
			tiers = append(tiers, a)
		default:
			tiers = append(tiers, a)
		}
	}

	rt.orch = orchestrator.New(provider, tiers, rt.cfg.TurnTimeout(), rt.logger)
	rt.rec = reconcile.New(rt.bank, rt.store, importer, insights, rt.cfg.SyncInterval(), rt.cfg.TurnTimeout(), rt.logger)
	return rt, nil
}

// createProvider creates the LLM provider from config.
func (rt *runtime) createProvider() (llm.Provider, error) {
	providerName := rt.cfg.LLM.Provider
	if providerName == "" {
		providerName = llm.InferProviderFromModel(rt.cfg.LLM.Model)
	}
	if providerName == "" && rt.cfg.LLM.Model == "" {
		return nil, fmt.Errorf("LLM model not configured")
	}

	provider, err := llm.NewProvider(llm.ProviderConfig{
		Provider:  providerName,
		Model:     rt.cfg.LLM.Model,
		APIKey:    rt.cfg.GetAPIKey(),
		MaxTokens: rt.cfg.LLM.MaxTokens,
		BaseURL:   rt.cfg.LLM.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("creating LLM provider: %w", err)
	}
	return provider, nil
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// close tears components down in reverse order.
func (rt *runtime) close() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
	rt.closers = nil
}

// signalContext cancels on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// Run starts the API server and the reconciler together.
func (c *ServeCmd) Run() error {
	rt, err := newRuntime(c.Config, sandbox.AutoApprove{})
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	go rt.rec.RunLoop(ctx)

	addr := c.Addr
	if addr == "" {
		addr = rt.cfg.Server.Addr
	}
	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(rt.orch, rt.store, rt.logger),
	}

	errCh := make(chan error, 1)
	go func() {
		rt.logger.Info("listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// Run starts only the reconciler loop (or one cycle with --once).
func (c *SyncCmd) Run() error {
	rt, err := newRuntime(c.Config, sandbox.AutoApprove{})
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	if c.Once {
		return rt.rec.RunCycle(ctx)
	}
	rt.rec.RunLoop(ctx)
	return nil
}

// Run executes one chat turn and prints the reply.
func (c *ChatCmd) Run() error {
	var prompter sandbox.Prompter = sandbox.NewStdinPrompter()
	if c.AutoApprove {
		prompter = sandbox.AutoApprove{}
	}
	rt, err := newRuntime(c.Config, prompter)
	if err != nil {
		return err
	}
	defer rt.close()

	ctx, cancel := signalContext()
	defer cancel()

	resp := rt.orch.Handle(ctx, c.Message)
	fmt.Println(resp.Message)
	if resp.Metadata != nil && len(resp.Metadata.AgentsUsed) > 0 {
		fmt.Printf("(agents: %v, tools: %v, took %s)\n",
			resp.Metadata.AgentsUsed, resp.Metadata.Tools, resp.Metadata.ExecutionTime)
	}
	return nil
}

// Run prints version information.
func (c *VersionCmd) Run() error {
	fmt.Printf("spendwise %s (commit %s, built %s)\n", version, commit, buildTime)
	return nil
}
