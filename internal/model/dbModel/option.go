package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type Option struct {
	OptionID          int64           `db:"option_id"`
	Title             string          `db:"title"`
	MinimumInvestment decimal.Decimal `db:"minimum_investment"`
	ProfitPercent     decimal.Decimal `db:"profit_percent"`
	WinRate           decimal.Decimal `db:"win_rate"`
	DurationDays      int             `db:"duration_days"`
	CreatedAt         time.Time       `db:"created_at"`
}
