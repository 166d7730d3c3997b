package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioEntry struct {
	ID        int64           `json:"id"`
	UserID    int64           `json:"user_id"`
	Symbol    string          `json:"symbol"`
	Value     decimal.Decimal `json:"value"`
	CreatedAt time.Time       `json:"created_at"`
}

// Funds holds the two funding pools of a user: the account balance gates
// purchase creation, the portfolio value gates approval.
type Funds struct {
	UserID         int64            `json:"user_id"`
	AccountBalance decimal.Decimal  `json:"account_balance"`
	PortfolioValue decimal.Decimal  `json:"portfolio_value"`
	Entries        []PortfolioEntry `json:"entries"`
}

func SumEntries(entries []PortfolioEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Value)
	}
	return total
}
