package types

// AccountInfo represents the current account state including balance, equity, and P&L information.
type AccountInfo struct {
	// Balance is the current cash balance (excluding unrealized P&L)
	Balance float64 `json:"balance" yaml:"balance"`
	// Equity is the total account value (balance + unrealized P&L). Zero means unknown.
	Equity float64 `json:"equity" yaml:"equity"`
	// Profit is the floating profit of the open positions
	Profit float64 `json:"profit" yaml:"profit"`
	// MarginUsed is the margin currently in use
	MarginUsed float64 `json:"margin_used" yaml:"margin_used"`
	// Currency is the account currency, when the broker reports one
	Currency string `json:"currency" yaml:"currency"`
}

// EquityOrBalance returns equity, falling back to balance when equity is unknown.
func (a AccountInfo) EquityOrBalance() float64 {
	if a.Equity == 0 {
		return a.Balance
	}

	return a.Equity
}
