package dbModel

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type Purchase struct {
	PurchaseID        int64           `db:"purchase_id"`
	UserID            int64           `db:"user_id"`
	OptionID          int64           `db:"option_id"`
	TradeTitle        string          `db:"trade_title"`
	InitialInvestment decimal.Decimal `db:"initial_investment"`
	CurrentValue      decimal.Decimal `db:"current_value"`
	ProfitLoss        decimal.Decimal `db:"profit_loss"`
	WinRate           decimal.Decimal `db:"win_rate"`
	ApprovedBy        sql.NullInt64   `db:"approved_by"`
	ApprovedAt        sql.NullTime    `db:"approved_at"`
	EndDate           sql.NullTime    `db:"end_date"`
	Status            string          `db:"status"`
	CreatedAt         time.Time       `db:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at"`
}
