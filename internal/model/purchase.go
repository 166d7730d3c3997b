package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchaseStatusPending  PurchaseStatus = "pending"
	PurchaseStatusActive   PurchaseStatus = "active"
	PurchaseStatusRejected PurchaseStatus = "rejected"
)

func (s PurchaseStatus) Valid() bool {
	switch s {
	case PurchaseStatusPending, PurchaseStatusActive, PurchaseStatusRejected:
		return true
	}
	return false
}

type Purchase struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	OptionID          int64           `json:"option_id"`
	TradeTitle        string          `json:"trade_title"`
	InitialInvestment decimal.Decimal `json:"initial_investment"`
	CurrentValue      decimal.Decimal `json:"current_value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	WinRate           decimal.Decimal `json:"win_rate"`
	ApprovedBy        *int64          `json:"approved_by,omitempty"`
	ApprovedAt        *time.Time      `json:"approval_date,omitempty"`
	EndDate           *time.Time      `json:"end_date,omitempty"`
	Status            PurchaseStatus  `json:"trade_status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// PurchaseRequest is the input of purchase creation. Nil metrics are defaulted
// from the investment amount or the copytrade option.
type PurchaseRequest struct {
	UserID            int64
	OptionID          int64
	InitialInvestment decimal.Decimal
	CurrentValue      *decimal.Decimal
	ProfitLoss        *decimal.Decimal
	WinRate           *decimal.Decimal
	ApprovedAt        *time.Time
	EndDate           *time.Time
}

type PurchaseChanges struct {
	Status       *PurchaseStatus
	CurrentValue *decimal.Decimal
	ProfitLoss   *decimal.Decimal
	WinRate      *decimal.Decimal
	EndDate      *time.Time
}

func (c PurchaseChanges) HasMetrics() bool {
	return c.CurrentValue != nil || c.ProfitLoss != nil || c.WinRate != nil || c.EndDate != nil
}

type ApprovalMeta struct {
	ApprovedBy int64
	ApprovedAt time.Time
}

type Deduction struct {
	EntryID        int64           `json:"entryId"`
	AmountDeducted decimal.Decimal `json:"amountDeducted"`
}

type ApprovalResult struct {
	Purchase          Purchase
	Deductions        []Deduction
	NewAccountBalance decimal.Decimal
}

// PurchaseOutcome is what a purchase mutation reports back to the caller.
// Deductions and NewAccountBalance are set only when the purchase got approved.
type PurchaseOutcome struct {
	Purchase          Purchase         `json:"purchase"`
	Deductions        []Deduction      `json:"deductions,omitempty"`
	NewAccountBalance *decimal.Decimal `json:"newAccountBalance,omitempty"`
}

func OutcomeFromApproval(res ApprovalResult) PurchaseOutcome {
	balance := res.NewAccountBalance
	return PurchaseOutcome{
		Purchase:          res.Purchase,
		Deductions:        res.Deductions,
		NewAccountBalance: &balance,
	}
}

type PurchaseFilter struct {
	UserID *int64
	Status *PurchaseStatus
}

type PurchasesPage struct {
	Purchases   []Purchase `json:"purchases"`
	CurPage     int        `json:"page"`
	HasNextPage bool       `json:"has_next_page"`
}
