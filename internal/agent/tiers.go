package agent

import (
	"fmt"
	"time"

	"github.com/vinayprograms/agentkit/llm"

	"spendwise/internal/logging"
	"spendwise/internal/manifest"
	"spendwise/internal/notify"
	"spendwise/internal/sandbox"
	"spendwise/internal/store"
	"spendwise/internal/tools"
)

// Agent tier ids. The orchestrator routes by these.
const (
	TierSpending = "spending"
	TierBudget   = "budget"
	TierInsights = "insights"
	TierStock    = "stock"
	TierImporter = "importer"
)

// Deps carries everything the tier constructors need. The sandbox
// runtime mints each tier's guard from its own manifest.
type Deps struct {
	Runtime     *sandbox.Runtime
	Provider    llm.Provider
	Logger      *logging.Logger
	Store       *store.Store
	DBPath      string
	Stocks      tools.StockClient
	Notify      notify.Sender
	BankDomain  string
	BankPort    int
	SMSDomain   string
	SMSPort     int
	ToolTimeout time.Duration
}

const answerStyle = "Answer in one or two short sentences with concrete numbers. No preamble, no offers of further help."

// NewSpending builds the read-only spending analyst.
func NewSpending(d Deps) (*Agent, error) {
	m, err := manifest.New(TierSpending,
		[]manifest.FSGrant{{Path: d.DBPath, Read: true}}, nil, nil)
	if err != nil {
		return nil, err
	}
	guard := d.Runtime.Bind(m)

	reg := tools.NewRegistry(TierSpending, d.Logger, d.ToolTimeout)
	reg.Register(tools.NewQuerySpending(guard, d.Store, d.DBPath))
	reg.Register(tools.NewListTransactions(guard, d.Store, d.DBPath))
	reg.Register(tools.NewSpendingSummary(guard, d.Store, d.DBPath))

	instructions := "You are the spending analyst for a personal finance assistant. " +
		"Use your tools to answer questions about past transactions and spending totals. " +
		"You have read-only access to the ledger and cannot change anything. " + answerStyle
	return New(TierSpending, "Answers questions about past spending and transactions.",
		m, reg, d.Provider, instructions, d.Logger), nil
}

// NewBudget builds the budget manager, the only tier that writes
// budgets.
func NewBudget(d Deps) (*Agent, error) {
	m, err := manifest.New(TierBudget,
		[]manifest.FSGrant{{Path: d.DBPath, Read: true, Write: true}}, nil, nil)
	if err != nil {
		return nil, err
	}
	guard := d.Runtime.Bind(m)

	reg := tools.NewRegistry(TierBudget, d.Logger, d.ToolTimeout)
	reg.Register(tools.NewSetBudget(guard, d.Store, d.DBPath))
	reg.Register(tools.NewListBudgets(guard, d.Store, d.DBPath))
	reg.Register(tools.NewListTransactions(guard, d.Store, d.DBPath))

	instructions := "You are the budget manager for a personal finance assistant. " +
		"Set and report weekly category budgets using your tools. " +
		"Budgets apply to the current week. " + answerStyle
	return New(TierBudget, "Sets and reports weekly category budgets.",
		m, reg, d.Provider, instructions, d.Logger), nil
}

// NewInsights builds the insights tier: read-only ledger plus the
// notification capability. It is the only tier that can send alerts.
func NewInsights(d Deps) (*Agent, error) {
	m, err := manifest.New(TierInsights,
		[]manifest.FSGrant{{Path: d.DBPath, Read: true}},
		[]manifest.NetGrant{{Domain: d.SMSDomain, Port: d.SMSPort}}, nil)
	if err != nil {
		return nil, err
	}
	guard := d.Runtime.Bind(m)

	reg := tools.NewRegistry(TierInsights, d.Logger, d.ToolTimeout)
	reg.Register(tools.NewQuerySpending(guard, d.Store, d.DBPath))
	reg.Register(tools.NewListTransactions(guard, d.Store, d.DBPath))
	reg.Register(tools.NewSpendingSummary(guard, d.Store, d.DBPath))
	reg.Register(tools.NewSendAlert(guard, d.Notify, d.SMSDomain, d.SMSPort))

	instructions := "You analyze spending patterns for a personal finance assistant and " +
		"alert the account owner about anything noteworthy. " +
		"When asked to send an alert, phrase it as one short factual SMS and send it with send_alert. " +
		"Send at most one alert per task. " + answerStyle
	return New(TierInsights, "Analyzes spending patterns and sends SMS alerts.",
		m, reg, d.Provider, instructions, d.Logger), nil
}

// NewStock builds the trading tier. Network only: it never touches the
// ledger file, the bank records resulting transactions itself.
func NewStock(d Deps) (*Agent, error) {
	m, err := manifest.New(TierStock, nil,
		[]manifest.NetGrant{{Domain: d.BankDomain, Port: d.BankPort}}, nil)
	if err != nil {
		return nil, err
	}
	guard := d.Runtime.Bind(m)

	reg := tools.NewRegistry(TierStock, d.Logger, d.ToolTimeout)
	reg.Register(tools.NewGetPortfolio(guard, d.Stocks, d.BankDomain, d.BankPort))
	reg.Register(tools.NewGetQuote(guard, d.Stocks, d.BankDomain, d.BankPort))
	reg.Register(tools.NewBuyStock(guard, d.Stocks, d.BankDomain, d.BankPort))
	reg.Register(tools.NewSellStock(guard, d.Stocks, d.BankDomain, d.BankPort))

	instructions := "You are the stock trading assistant. Use your tools to report the " +
		"portfolio, look up prices, and place buy or sell orders against the bank. " +
		"Confirm executed orders with ticker and amount. " + answerStyle
	return New(TierStock, "Reports the portfolio and places stock orders.",
		m, reg, d.Provider, instructions, d.Logger), nil
}

// NewImporter builds the categorization tier used by the reconciler.
func NewImporter(d Deps) (*Agent, error) {
	m, err := manifest.New(TierImporter,
		[]manifest.FSGrant{{Path: d.DBPath, Read: true, Write: true}}, nil, nil)
	if err != nil {
		return nil, err
	}
	guard := d.Runtime.Bind(m)

	reg := tools.NewRegistry(TierImporter, d.Logger, d.ToolTimeout)
	reg.Register(tools.NewImportTransaction(guard, d.Store, d.DBPath))

	instructions := importerInstructions(d.Store)
	return New(TierImporter, "Imports bank transactions with assigned categories.",
		m, reg, d.Provider, instructions, d.Logger), nil
}

// importerInstructions embeds the live taxonomy so the model can only
// pick real categories.
func importerInstructions(s *store.Store) string {
	names := ""
	if cats, err := s.ListCategories(); err == nil {
		for i, c := range cats {
			if i > 0 {
				names += ", "
			}
			names += c.Name
		}
	}
	return fmt.Sprintf("You import bank transactions into the ledger. "+
		"For each transaction, pick the best category from exactly this list: %s. "+
		"Descriptions starting with STOCK: are Investments; salary and refunds are Income. "+
		"Then call import_transaction once with the transaction fields and your category. "+
		"Reply with just the chosen category name.", names)
}
