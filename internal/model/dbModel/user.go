package dbModel

import "github.com/shopspring/decimal"

type User struct {
	UserID  int64           `db:"user_id"`
	Email   string          `db:"email"`
	Name    string          `db:"name"`
	Role    string          `db:"role"`
	Balance decimal.Decimal `db:"balance"`
}
