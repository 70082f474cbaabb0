package tools

import (
	"context"

	"spendwise/internal/bank"
	"spendwise/internal/sandbox"
)

// StockClient is the part of the bank API the stock tier uses.
type StockClient interface {
	Positions(ctx context.Context) ([]bank.Position, error)
	Quote(ctx context.Context, ticker string) (float64, error)
	Buy(ctx context.Context, ticker string, amount float64) error
	Sell(ctx context.Context, ticker string, amount float64) error
}

type stockBase struct {
	guard  *sandbox.Guard
	client StockClient
	domain string
	port   int
}

func (b *stockBase) egress() error {
	return b.guard.Egress(b.domain, b.port)
}

// getPortfolioTool lists current positions.
type getPortfolioTool struct{ stockBase }

// NewGetPortfolio creates the get_portfolio tool.
func NewGetPortfolio(guard *sandbox.Guard, client StockClient, domain string, port int) Tool {
	return &getPortfolioTool{stockBase{guard, client, domain, port}}
}

func (t *getPortfolioTool) Name() string { return "get_portfolio" }

func (t *getPortfolioTool) Description() string {
	return "List current stock positions with share counts, prices, and values."
}

func (t *getPortfolioTool) Parameters() map[string]interface{} {
	return map[string]interface{}{"type": "object", "properties": map[string]interface{}{}}
}

func (t *getPortfolioTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	if err := t.egress(); err != nil {
		return nil, err
	}
	return t.client.Positions(ctx)
}

// getQuoteTool looks up one ticker's price.
type getQuoteTool struct{ stockBase }

// NewGetQuote creates the get_quote tool.
func NewGetQuote(guard *sandbox.Guard, client StockClient, domain string, port int) Tool {
	return &getQuoteTool{stockBase{guard, client, domain, port}}
}

func (t *getQuoteTool) Name() string { return "get_quote" }

func (t *getQuoteTool) Description() string {
	return "Current price for one ticker."
}

func (t *getQuoteTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": map[string]interface{}{"type": "string"},
		},
		"required": []string{"ticker"},
	}
}

func (t *getQuoteTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ticker, err := stringArg(t.Name(), args, "ticker")
	if err != nil {
		return nil, err
	}
	if err := t.egress(); err != nil {
		return nil, err
	}
	price, err := t.client.Quote(ctx, ticker)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"ticker": ticker, "price": price}, nil
}

// buyStockTool places a buy order.
type buyStockTool struct{ stockBase }

// NewBuyStock creates the buy_stock tool.
func NewBuyStock(guard *sandbox.Guard, client StockClient, domain string, port int) Tool {
	return &buyStockTool{stockBase{guard, client, domain, port}}
}

func (t *buyStockTool) Name() string { return "buy_stock" }

func (t *buyStockTool) Description() string {
	return "Buy a stock for the given amount of money. The bank records the matching transaction."
}

func (t *buyStockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": map[string]interface{}{"type": "string"},
			"amount": map[string]interface{}{"type": "number"},
		},
		"required": []string{"ticker", "amount"},
	}
}

func (t *buyStockTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ticker, err := stringArg(t.Name(), args, "ticker")
	if err != nil {
		return nil, err
	}
	amount, err := positiveArg(t.Name(), args, "amount")
	if err != nil {
		return nil, err
	}
	if err := t.egress(); err != nil {
		return nil, err
	}
	if err := t.client.Buy(ctx, ticker, amount); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ticker": ticker, "amount": amount, "order": "buy"}, nil
}

// sellStockTool places a sell order.
type sellStockTool struct{ stockBase }

// NewSellStock creates the sell_stock tool.
func NewSellStock(guard *sandbox.Guard, client StockClient, domain string, port int) Tool {
	return &sellStockTool{stockBase{guard, client, domain, port}}
}

func (t *sellStockTool) Name() string { return "sell_stock" }

func (t *sellStockTool) Description() string {
	return "Sell a stock for the given amount of money. The bank records the matching transaction."
}

func (t *sellStockTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ticker": map[string]interface{}{"type": "string"},
			"amount": map[string]interface{}{"type": "number"},
		},
		"required": []string{"ticker", "amount"},
	}
}

func (t *sellStockTool) Execute(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	ticker, err := stringArg(t.Name(), args, "ticker")
	if err != nil {
		return nil, err
	}
	amount, err := positiveArg(t.Name(), args, "amount")
	if err != nil {
		return nil, err
	}
	if err := t.egress(); err != nil {
		return nil, err
	}
	if err := t.client.Sell(ctx, ticker, amount); err != nil {
		return nil, err
	}
	return map[string]interface{}{"ticker": ticker, "amount": amount, "order": "sell"}, nil
}
