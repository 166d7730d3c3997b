package httpApi

import (
	"errors"
	"fmt"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/shopspring/decimal"
)

// суммы хранятся в NUMERIC(20, 2)
const moneyPlaces = 2

var errMoneyPrecision = fmt.Errorf("amounts allow at most %d decimal places", moneyPlaces)

func validMoney(amounts ...*decimal.Decimal) bool {
	for _, a := range amounts {
		if a != nil && !a.Equal(a.Round(moneyPlaces)) {
			return false
		}
	}
	return true
}

type createPurchaseRequest struct {
	OptionID          int64            `json:"option_id" binding:"required"`
	InitialInvestment decimal.Decimal  `json:"initial_investment"`
	CurrentValue      *decimal.Decimal `json:"current_value"`
	ProfitLoss        *decimal.Decimal `json:"profit_loss"`
	WinRate           *decimal.Decimal `json:"win_rate"`
	ApprovalDate      *time.Time       `json:"approval_date"`
	EndDate           *time.Time       `json:"end_date"`
}

func (r createPurchaseRequest) validate() error {
	if !r.InitialInvestment.IsPositive() {
		return errors.New("initial_investment must be positive")
	}
	if !validMoney(&r.InitialInvestment, r.CurrentValue, r.ProfitLoss) {
		return errMoneyPrecision
	}
	return nil
}

func (r createPurchaseRequest) toModel(userID int64) model.PurchaseRequest {
	return model.PurchaseRequest{
		UserID:            userID,
		OptionID:          r.OptionID,
		InitialInvestment: r.InitialInvestment,
		CurrentValue:      r.CurrentValue,
		ProfitLoss:        r.ProfitLoss,
		WinRate:           r.WinRate,
		ApprovedAt:        r.ApprovalDate,
		EndDate:           r.EndDate,
	}
}

type adminCreatePurchaseRequest struct {
	createPurchaseRequest
	UserID      int64 `json:"user_id" binding:"required"`
	AutoApprove bool  `json:"auto_approve"`
}

type updatePurchaseRequest struct {
	Status       *string          `json:"trade_status"`
	CurrentValue *decimal.Decimal `json:"current_value"`
	ProfitLoss   *decimal.Decimal `json:"profit_loss"`
	WinRate      *decimal.Decimal `json:"win_rate"`
	EndDate      *time.Time       `json:"end_date"`
}

func (r updatePurchaseRequest) toModel() (model.PurchaseChanges, error) {
	if !validMoney(r.CurrentValue, r.ProfitLoss) {
		return model.PurchaseChanges{}, errMoneyPrecision
	}

	changes := model.PurchaseChanges{
		CurrentValue: r.CurrentValue,
		ProfitLoss:   r.ProfitLoss,
		WinRate:      r.WinRate,
		EndDate:      r.EndDate,
	}

	if r.Status != nil {
		status := model.PurchaseStatus(*r.Status)
		if !status.Valid() {
			return model.PurchaseChanges{}, errors.New("unknown trade_status")
		}
		changes.Status = &status
	}

	return changes, nil
}

type purchasesQuery struct {
	Page   int    `form:"page"`
	Status string `form:"status"`
	UserID int64  `form:"user_id"`
}

func (q purchasesQuery) toFilter() (model.PurchaseFilter, error) {
	var filter model.PurchaseFilter

	if q.Status != "" {
		status := model.PurchaseStatus(q.Status)
		if !status.Valid() {
			return model.PurchaseFilter{}, errors.New("unknown status")
		}
		filter.Status = &status
	}
	if q.UserID > 0 {
		userID := q.UserID
		filter.UserID = &userID
	}

	return filter, nil
}
