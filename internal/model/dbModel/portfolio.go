package dbModel

import (
	"time"

	"github.com/shopspring/decimal"
)

type PortfolioEntry struct {
	EntryID   int64           `db:"entry_id"`
	UserID    int64           `db:"user_id"`
	Symbol    string          `db:"symbol"`
	Value     decimal.Decimal `db:"value"`
	CreatedAt time.Time       `db:"created_at"`
}
