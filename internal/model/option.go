package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type CopytradeOption struct {
	ID                int64           `json:"id"`
	Title             string          `json:"title"`
	MinimumInvestment decimal.Decimal `json:"minimum_investment"`
	ProfitPercent     decimal.Decimal `json:"profit_percent"`
	WinRate           decimal.Decimal `json:"win_rate"`
	DurationDays      int             `json:"duration_days"`
	CreatedAt         time.Time       `json:"created_at"`
}

type OptionStats struct {
	OptionID      int64
	ProfitPercent decimal.Decimal
	WinRate       decimal.Decimal
}
