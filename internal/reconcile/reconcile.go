// Package reconcile keeps the local ledger converged with the bank
// feed. One cycle fetches the feed, diffs by external reference,
// imports new rows through the importer tier, and evaluates fresh rows
// for suspicion. Cycles are idempotent: replaying one changes nothing.
package reconcile

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"

	"spendwise/internal/bank"
	"spendwise/internal/logging"
	"spendwise/internal/store"
	"spendwise/internal/tools"
)

// State names one phase of a cycle, for logs and introspection.
type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateDiffing    State = "diffing"
	StateImporting  State = "importing"
	StateEvaluating State = "evaluating"
)

// Feed is the part of the bank client the reconciler uses.
type Feed interface {
	FetchTransactions(ctx context.Context) ([]bank.Transaction, error)
}

// Runner is a sub-agent the reconciler can hand a task to.
type Runner interface {
	Run(ctx context.Context, task string, usage *tools.Usage) (string, error)
}

// Reconciler syncs the ledger with the bank feed.
type Reconciler struct {
	feed        Feed
	store       *store.Store
	importer    Runner
	insights    Runner
	logger      *logging.Logger
	interval    time.Duration
	taskTimeout time.Duration

	cycleMu sync.Mutex

	stateMu sync.Mutex
	state   State
}

// New creates a reconciler. importer categorizes new transactions;
// insights phrases and sends alerts. taskTimeout bounds each agent
// invocation; a hung model call must fail the row, not stall the loop.
func New(feed Feed, st *store.Store, importer, insights Runner, interval, taskTimeout time.Duration, logger *logging.Logger) *Reconciler {
	if logger == nil {
		logger = logging.New()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if taskTimeout <= 0 {
		taskTimeout = 60 * time.Second
	}
	return &Reconciler{
		feed:        feed,
		store:       st,
		importer:    importer,
		insights:    insights,
		logger:      logger.WithComponent("reconcile"),
		interval:    interval,
		taskTimeout: taskTimeout,
		state:       StateIdle,
	}
}

// State returns the current cycle phase.
func (r *Reconciler) State() State {
	r.stateMu.Lock()
	defer r.stateMu.Unlock()
	return r.state
}

func (r *Reconciler) setState(s State) {
	r.stateMu.Lock()
	r.state = s
	r.stateMu.Unlock()
	r.logger.Debug("state", map[string]interface{}{"state": string(s)})
}

// RunLoop polls the feed until ctx is cancelled. A tick that arrives
// while a cycle is still running is skipped; cycle errors are logged
// and the loop carries on.
func (r *Reconciler) RunLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.logger.Info("loop_start", map[string]interface{}{"interval": r.interval.String()})
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("loop_stop", nil)
			return
		case <-ticker.C:
			if err := r.RunCycle(ctx); err != nil {
				r.logger.Error("cycle_error", map[string]interface{}{"error": err.Error()})
			}
		}
	}
}

// RunCycle runs one fetch-diff-import-evaluate cycle. Concurrent calls
// collapse: a cycle already in flight makes this call a no-op.
func (r *Reconciler) RunCycle(ctx context.Context) (err error) {
	if !r.cycleMu.TryLock() {
		return nil
	}
	defer r.cycleMu.Unlock()
	defer r.setState(StateIdle)
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("cycle panic: %v", rec)
		}
	}()

	ctx, span := telemetry.GetTracer().StartSpan(ctx, "reconcile.cycle")
	defer span.End()

	r.setState(StateFetching)
	remote, err := r.feed.FetchTransactions(ctx)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("fetch: %w", err)
	}

	r.setState(StateDiffing)
	local, err := r.store.ListExternalIDs()
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("diff: %w", err)
	}

	// An empty feed while the ledger has rows means the bank is not
	// answering properly; deleting everything locally would destroy the
	// ledger on every outage. Skip the cycle.
	if len(remote) == 0 && len(local) > 0 {
		r.logger.Warn("bank_unreachable", map[string]interface{}{"local_rows": len(local)})
		return nil
	}

	remoteSet := make(map[string]bool, len(remote))
	var fresh []bank.Transaction
	for _, tx := range remote {
		remoteSet[tx.ID] = true
		if !local[tx.ID] {
			fresh = append(fresh, tx)
		}
	}
	var stale []string
	for id := range local {
		if !remoteSet[id] {
			stale = append(stale, id)
		}
	}

	if len(stale) > 0 {
		deleted, err := r.store.DeleteByExternalIDs(stale)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("delete: %w", err)
		}
		r.logger.Info("deleted", map[string]interface{}{"count": deleted})
	}

	r.setState(StateImporting)
	imported := 0
	for _, tx := range fresh {
		if err := r.importOne(ctx, tx); err != nil {
			r.logger.Error("import_failed", map[string]interface{}{
				"reference": tx.ID,
				"error":     err.Error(),
			})
			continue
		}
		imported++
	}

	r.setState(StateEvaluating)
	for _, tx := range fresh {
		r.evaluate(ctx, tx)
	}

	span.SetAttributes(
		attribute.Int("cycle.fetched", len(remote)),
		attribute.Int("cycle.imported", imported),
		attribute.Int("cycle.deleted", len(stale)),
	)
	return nil
}

// importOne routes a new transaction through the importer tier. When
// the agent path fails, the row is still written atomically with a
// null category; the next budget question must not miss the spend.
func (r *Reconciler) importOne(ctx context.Context, tx bank.Transaction) error {
	task := fmt.Sprintf(
		"Import this bank transaction.\nexternal_id: %s\ndate: %s\namount: %.2f\ncurrency: %s\ndescription: %s",
		tx.ID, tx.Date.Format("2006-01-02"), tx.Amount, tx.Currency, tx.Description)

	runCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	_, agentErr := r.importer.Run(runCtx, task, nil)
	cancel()

	// Trust the ledger, not the agent's words.
	local, err := r.store.ListExternalIDs()
	if err != nil {
		return err
	}
	if local[tx.ID] {
		return nil
	}

	if agentErr != nil {
		r.logger.Warn("categorization_failed", map[string]interface{}{
			"reference": tx.ID,
			"error":     agentErr.Error(),
		})
	}
	_, err = r.store.InsertTransaction(store.Transaction{
		ExternalID:  tx.ID,
		Date:        tx.Date,
		Amount:      tx.Amount,
		Currency:    tx.Currency,
		Description: tx.Description,
		Merchant:    tools.Merchant(tx.Description),
		Source:      "bank-sync",
	})
	return err
}

// evaluate scores one freshly imported transaction and, when it looks
// suspicious, sends at most one alert for it ever. The dedup key is
// claimed before the send: a crash after claiming loses the alert
// rather than duplicating it.
func (r *Reconciler) evaluate(ctx context.Context, tx bank.Transaction) {
	rows, err := r.store.ListTransactions(store.ListFilter{Limit: 0})
	if err != nil {
		r.logger.Error("evaluate_failed", map[string]interface{}{"error": err.Error()})
		return
	}
	var row *store.Transaction
	for i := range rows {
		if rows[i].ExternalID == tx.ID {
			row = &rows[i]
			break
		}
	}
	if row == nil {
		return
	}

	var avg float64
	if row.CategoryID != nil {
		if a, err := r.store.CategoryAverage(*row.CategoryID); err == nil {
			avg = a
		}
	}
	score, reasons := Score(*row, avg)
	if score == 0 {
		return
	}

	key := "suspicious:" + tx.ID
	fresh, err := r.store.MarkAlerted(key)
	if err != nil {
		r.logger.Error("alert_mark_failed", map[string]interface{}{"key": key, "error": err.Error()})
		return
	}
	if !fresh {
		return
	}

	task := fmt.Sprintf(
		"Send an SMS alert about this suspicious transaction. Merchant %s, amount %.2f on %s. Flagged because: %s.",
		row.Merchant, row.Amount, row.Date.Format("2006-01-02"), strings.Join(reasons, "; "))
	runCtx, cancel := context.WithTimeout(ctx, r.taskTimeout)
	defer cancel()
	if _, err := r.insights.Run(runCtx, task, nil); err != nil {
		r.logger.Error("alert_send_failed", map[string]interface{}{
			"reference": tx.ID,
			"error":     err.Error(),
		})
	}
}
