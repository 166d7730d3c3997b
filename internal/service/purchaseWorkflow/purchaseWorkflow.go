// Package purchaseWorkflow holds the create/approve protocol of copytrade purchases.
//
// Every operation expects ctx to carry the caller's transaction (see postgres.WithinTransaction)
// and never opens or commits one itself, so operations compose inside a single transaction.
package purchaseWorkflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/service"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/shopspring/decimal"
)

type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (model.User, error)
	LockUser(ctx context.Context, userID int64) (model.User, error)
}

type OptionRepository interface {
	GetOption(ctx context.Context, optionID int64) (model.CopytradeOption, error)
}

type Ledger interface {
	GetPortfolioEntriesForUpdate(ctx context.Context, userID int64) ([]model.PortfolioEntry, error)
	DeductFromEntry(ctx context.Context, entryID int64, amount decimal.Decimal) (newValue decimal.Decimal, err error)
	GetPortfolioValue(ctx context.Context, userID int64) (decimal.Decimal, error)
}

type PurchaseRepository interface {
	InsertPurchase(ctx context.Context, purchase model.Purchase) (model.Purchase, error)
	SetPurchaseStatus(ctx context.Context, purchaseID int64, status model.PurchaseStatus, meta *model.ApprovalMeta) (model.Purchase, error)
}

type Workflow struct {
	users     UserRepository
	options   OptionRepository
	ledger    Ledger
	purchases PurchaseRepository
	now       func() time.Time
}

func New(users UserRepository, options OptionRepository, ledger Ledger, purchases PurchaseRepository) *Workflow {
	return &Workflow{
		users:     users,
		options:   options,
		ledger:    ledger,
		purchases: purchases,
		now:       time.Now,
	}
}

// MinimumInvestment returns the smallest amount that may be invested into option.
func MinimumInvestment(option model.CopytradeOption) decimal.Decimal {
	if option.MinimumInvestment.IsNegative() {
		return decimal.Zero
	}
	return option.MinimumInvestment
}

// CreatePurchase validates the request against the option minimum and the user's account balance
// and stores a pending purchase. Neither the balance nor the portfolio is touched.
func (w *Workflow) CreatePurchase(ctx context.Context, req model.PurchaseRequest) (purchase model.Purchase, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Workflow.CreatePurchase"

	slog.Debug(
		"CreatePurchase start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", req.UserID),
		slog.Int64("optionID", req.OptionID),
		slog.String("investment", req.InitialInvestment.String()),
	)
	defer func() {
		if err != nil {
			slog.Debug("CreatePurchase rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("CreatePurchase finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", purchase.ID))
		}
	}()

	option, err := w.options.GetOption(ctx, req.OptionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Purchase{}, service.NewOptionNotFound(req.OptionID)
		}
		return model.Purchase{}, fmt.Errorf("get option: %w", err)
	}

	minimum := MinimumInvestment(option)
	if req.InitialInvestment.LessThan(minimum) {
		return model.Purchase{}, service.NewBelowMinimumInvestment(minimum, req.InitialInvestment)
	}

	user, err := w.users.LockUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Purchase{}, service.NewUserNotFound(req.UserID)
		}
		return model.Purchase{}, fmt.Errorf("lock user: %w", err)
	}

	if user.Balance.LessThan(req.InitialInvestment) {
		return model.Purchase{}, service.NewInsufficientFunds(req.InitialInvestment, user.Balance)
	}

	purchase, err = w.purchases.InsertPurchase(ctx, w.newPendingPurchase(req, option))
	if err != nil {
		return model.Purchase{}, fmt.Errorf("insert purchase: %w", err)
	}

	return purchase, nil
}

func (w *Workflow) newPendingPurchase(req model.PurchaseRequest, option model.CopytradeOption) model.Purchase {
	purchase := model.Purchase{
		UserID:            req.UserID,
		OptionID:          option.ID,
		TradeTitle:        option.Title,
		InitialInvestment: req.InitialInvestment,
		CurrentValue:      req.InitialInvestment,
		ProfitLoss:        decimal.Zero,
		WinRate:           option.WinRate,
		ApprovedAt:        req.ApprovedAt,
		EndDate:           req.EndDate,
		Status:            model.PurchaseStatusPending,
	}

	if req.CurrentValue != nil {
		purchase.CurrentValue = *req.CurrentValue
	}
	if req.ProfitLoss != nil {
		purchase.ProfitLoss = *req.ProfitLoss
	}
	if req.WinRate != nil {
		purchase.WinRate = *req.WinRate
	}
	if purchase.EndDate == nil && option.DurationDays > 0 {
		endDate := w.now().AddDate(0, 0, option.DurationDays)
		purchase.EndDate = &endDate
	}

	return purchase
}

// ApprovePurchase moves a pending purchase to active and pays for it from the owner's
// portfolio entries, consuming them in entry order.
func (w *Workflow) ApprovePurchase(ctx context.Context, purchase model.Purchase, adminID int64) (res model.ApprovalResult, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Workflow.ApprovePurchase"

	slog.Debug(
		"ApprovePurchase start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("purchaseID", purchase.ID),
		slog.Int64("userID", purchase.UserID),
		slog.Int64("adminID", adminID),
	)
	defer func() {
		if err != nil {
			slog.Debug("ApprovePurchase rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug(
				"ApprovePurchase finished",
				slog.String("rqID", rqID),
				slog.String("op", op),
				slog.Any("deductions", res.Deductions),
				slog.String("newAccountBalance", res.NewAccountBalance.String()),
			)
		}
	}()

	if purchase.Status != model.PurchaseStatusPending {
		return model.ApprovalResult{}, service.NewInvalidStatusTransition(purchase.Status, model.PurchaseStatusActive)
	}

	entries, err := w.ledger.GetPortfolioEntriesForUpdate(ctx, purchase.UserID)
	if err != nil {
		return model.ApprovalResult{}, fmt.Errorf("get portfolio entries: %w", err)
	}

	if len(entries) == 0 {
		return model.ApprovalResult{}, service.NewNoPortfolioEntries(purchase.UserID)
	}

	available := model.SumEntries(entries)
	if available.LessThan(purchase.InitialInvestment) {
		return model.ApprovalResult{}, service.NewInsufficientPortfolioValue(purchase.InitialInvestment, available)
	}

	deductions := PlanDeductions(entries, purchase.InitialInvestment)

	for _, d := range deductions {
		_, err = w.ledger.DeductFromEntry(ctx, d.EntryID, d.AmountDeducted)
		if err != nil {
			return model.ApprovalResult{}, fmt.Errorf("deduct from entry %d: %w", d.EntryID, err)
		}
	}

	meta := &model.ApprovalMeta{ApprovedBy: adminID, ApprovedAt: w.now()}
	approved, err := w.purchases.SetPurchaseStatus(ctx, purchase.ID, model.PurchaseStatusActive, meta)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrStatusLocked):
			return model.ApprovalResult{}, service.NewInvalidStatusTransition(model.PurchaseStatusActive, model.PurchaseStatusActive)
		case errors.Is(err, repository.ErrNotFound):
			return model.ApprovalResult{}, service.ErrNotFound
		}
		return model.ApprovalResult{}, fmt.Errorf("set purchase status: %w", err)
	}

	newBalance, err := w.ledger.GetPortfolioValue(ctx, purchase.UserID)
	if err != nil {
		return model.ApprovalResult{}, fmt.Errorf("get portfolio value: %w", err)
	}

	return model.ApprovalResult{
		Purchase:          approved,
		Deductions:        deductions,
		NewAccountBalance: newBalance,
	}, nil
}

// AdminCreatePurchase creates a purchase on behalf of a non-admin user and, when autoApprove is set,
// approves it right away. Both steps share the transaction carried by ctx.
func (w *Workflow) AdminCreatePurchase(ctx context.Context, req model.PurchaseRequest, autoApprove bool, adminID int64) (model.PurchaseOutcome, error) {
	target, err := w.users.GetUser(ctx, req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.PurchaseOutcome{}, service.NewUserNotFound(req.UserID)
		}
		return model.PurchaseOutcome{}, fmt.Errorf("get user: %w", err)
	}

	if target.Role.IsAdmin() {
		return model.PurchaseOutcome{}, service.NewTargetIsAdmin(target.ID)
	}

	purchase, err := w.CreatePurchase(ctx, req)
	if err != nil {
		return model.PurchaseOutcome{}, err
	}

	if !autoApprove {
		return model.PurchaseOutcome{Purchase: purchase}, nil
	}

	res, err := w.ApprovePurchase(ctx, purchase, adminID)
	if err != nil {
		return model.PurchaseOutcome{}, err
	}

	return model.OutcomeFromApproval(res), nil
}

// PlanDeductions splits amount across entries in the given order, draining each entry before
// moving to the next. Entries with nothing to give are skipped. The caller guarantees that the
// entries hold at least amount in total.
func PlanDeductions(entries []model.PortfolioEntry, amount decimal.Decimal) []model.Deduction {
	deductions := make([]model.Deduction, 0, len(entries))
	remaining := amount

	for _, entry := range entries {
		if !remaining.IsPositive() {
			break
		}
		if !entry.Value.IsPositive() {
			continue
		}

		take := decimal.Min(entry.Value, remaining)
		deductions = append(deductions, model.Deduction{EntryID: entry.ID, AmountDeducted: take})
		remaining = remaining.Sub(take)
	}

	return deductions
}

// CheckStatusTransition rejects any status change away from active.
func CheckStatusTransition(from, to model.PurchaseStatus) error {
	if from == model.PurchaseStatusActive && to != model.PurchaseStatusActive {
		return service.NewInvalidStatusTransition(from, to)
	}
	return nil
}
