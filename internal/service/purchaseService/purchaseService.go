package purchaseService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/data/cache"
	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/service"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/purchaseWorkflow"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/shopspring/decimal"
)

type Transactor interface {
	WithinTransaction(ctx context.Context, tFunc func(ctx context.Context) error) error
}

type Workflow interface {
	CreatePurchase(ctx context.Context, req model.PurchaseRequest) (model.Purchase, error)
	ApprovePurchase(ctx context.Context, purchase model.Purchase, adminID int64) (model.ApprovalResult, error)
	AdminCreatePurchase(ctx context.Context, req model.PurchaseRequest, autoApprove bool, adminID int64) (model.PurchaseOutcome, error)
}

type Repository interface {
	GetUser(ctx context.Context, userID int64) (model.User, error)
	GetPortfolioEntries(ctx context.Context, userID int64) ([]model.PortfolioEntry, error)
	GetOptions(ctx context.Context) ([]model.CopytradeOption, error)
	GetPurchase(ctx context.Context, purchaseID int64) (model.Purchase, error)
	GetPurchaseForUpdate(ctx context.Context, purchaseID int64) (model.Purchase, error)
	GetPurchases(ctx context.Context, filter model.PurchaseFilter, limit, offset int) ([]model.Purchase, bool, error)
	GetActivePurchases(ctx context.Context) ([]model.Purchase, error)
	SetPurchaseStatus(ctx context.Context, purchaseID int64, status model.PurchaseStatus, meta *model.ApprovalMeta) (model.Purchase, error)
	UpdatePurchaseMetrics(ctx context.Context, purchaseID int64, changes model.PurchaseChanges) (model.Purchase, error)
	DeletePurchase(ctx context.Context, purchaseID int64) error
}

type Cache interface {
	GetFunds(ctx context.Context, userID int64) (model.Funds, error)
	SetFunds(ctx context.Context, funds model.Funds) error
}

type SideEffects interface {
	Notify(ctx context.Context, notification model.Notification)
	Record(ctx context.Context, entry model.AuditEntry)
}

type PurchaseService struct {
	cfg         *config.Config
	tx          Transactor
	workflow    Workflow
	repo        Repository
	cache       Cache
	sideEffects SideEffects
}

func New(cfg *config.Config, tx Transactor, workflow Workflow, repo Repository, cache Cache, sideEffects SideEffects) *PurchaseService {
	return &PurchaseService{
		cfg:         cfg,
		tx:          tx,
		workflow:    workflow,
		repo:        repo,
		cache:       cache,
		sideEffects: sideEffects,
	}
}

// CreatePurchase creates a pending purchase for the calling user.
func (s *PurchaseService) CreatePurchase(ctx context.Context, actor model.Actor, req model.PurchaseRequest) (outcome model.PurchaseOutcome, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PurchaseService.CreatePurchase"

	slog.Debug("CreatePurchase start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", actor.UserID))
	defer func() {
		slog.Debug("CreatePurchase finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", actor.UserID))
	}()

	req.UserID = actor.UserID

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		purchase, err := s.workflow.CreatePurchase(ctx, req)
		if err != nil {
			return err
		}
		outcome = model.PurchaseOutcome{Purchase: purchase}
		return nil
	})
	if err != nil {
		logFailure(ctx, op, err)
		return model.PurchaseOutcome{}, err
	}

	s.purchaseCreated(ctx, actor, outcome.Purchase)

	return outcome, nil
}

// AdminCreatePurchase creates a purchase on behalf of req.UserID, optionally approving it in the same transaction.
func (s *PurchaseService) AdminCreatePurchase(ctx context.Context, actor model.Actor, req model.PurchaseRequest, autoApprove bool) (outcome model.PurchaseOutcome, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PurchaseService.AdminCreatePurchase"

	slog.Debug(
		"AdminCreatePurchase start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("adminID", actor.UserID),
		slog.Int64("userID", req.UserID),
		slog.Bool("autoApprove", autoApprove),
	)
	defer func() {
		slog.Debug("AdminCreatePurchase finished", slog.String("rqID", rqID), slog.String("op", op))
	}()

	if !actor.IsAdmin() {
		return model.PurchaseOutcome{}, service.ErrForbidden
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		outcome, err = s.workflow.AdminCreatePurchase(ctx, req, autoApprove, actor.UserID)
		return err
	})
	if err != nil {
		logFailure(ctx, op, err)
		return model.PurchaseOutcome{}, err
	}

	s.purchaseCreated(ctx, actor, outcome.Purchase)
	if outcome.NewAccountBalance != nil {
		s.purchaseApproved(ctx, actor, outcome)
	}

	return outcome, nil
}

// UpdatePurchase applies status and metric changes to a purchase. Moving a pending purchase to
// active runs the approval; an active purchase keeps its status forever.
func (s *PurchaseService) UpdatePurchase(ctx context.Context, actor model.Actor, purchaseID int64, changes model.PurchaseChanges) (outcome model.PurchaseOutcome, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PurchaseService.UpdatePurchase"

	slog.Debug("UpdatePurchase start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", purchaseID))
	defer func() {
		slog.Debug("UpdatePurchase finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", purchaseID))
	}()

	if !actor.IsAdmin() {
		return model.PurchaseOutcome{}, service.ErrForbidden
	}

	var before model.Purchase
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.repo.GetPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrNotFound
			}
			return fmt.Errorf("get purchase: %w", err)
		}
		before = current

		statusChange := changes.Status != nil && *changes.Status != current.Status
		if statusChange {
			if err = purchaseWorkflow.CheckStatusTransition(current.Status, *changes.Status); err != nil {
				return err
			}
		}

		// у active меняются только current_value, profit_loss и win_rate
		if changes.EndDate != nil && current.Status == model.PurchaseStatusActive {
			return service.NewImmutableField("end_date", current.Status)
		}

		// метрики пишутся до смены статуса, пока end_date еще можно менять
		if changes.HasMetrics() {
			current, err = s.repo.UpdatePurchaseMetrics(ctx, purchaseID, changes)
			if err != nil {
				if errors.Is(err, repository.ErrStatusLocked) {
					return service.NewImmutableField("end_date", model.PurchaseStatusActive)
				}
				return fmt.Errorf("update purchase metrics: %w", err)
			}
		}

		if statusChange {
			if *changes.Status == model.PurchaseStatusActive {
				res, err := s.workflow.ApprovePurchase(ctx, current, actor.UserID)
				if err != nil {
					return err
				}
				outcome = model.OutcomeFromApproval(res)
				current = res.Purchase
			} else {
				current, err = s.repo.SetPurchaseStatus(ctx, purchaseID, *changes.Status, nil)
				if err != nil {
					if errors.Is(err, repository.ErrStatusLocked) {
						return service.NewInvalidStatusTransition(model.PurchaseStatusActive, *changes.Status)
					}
					if errors.Is(err, repository.ErrNotFound) {
						return service.ErrNotFound
					}
					return fmt.Errorf("set purchase status: %w", err)
				}
			}
		}

		outcome.Purchase = current
		return nil
	})
	if err != nil {
		logFailure(ctx, op, err)
		return model.PurchaseOutcome{}, err
	}

	switch {
	case outcome.NewAccountBalance != nil:
		s.purchaseApproved(ctx, actor, outcome)
	case before.Status != outcome.Purchase.Status && outcome.Purchase.Status == model.PurchaseStatusRejected:
		s.purchaseRejected(ctx, actor, before, outcome.Purchase)
	default:
		s.purchaseUpdated(ctx, actor, before, outcome.Purchase)
	}

	return outcome, nil
}

// DeletePurchase removes the purchase record. Portfolio deductions made on approval are not refunded.
func (s *PurchaseService) DeletePurchase(ctx context.Context, actor model.Actor, purchaseID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PurchaseService.DeletePurchase"

	slog.Debug("DeletePurchase start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", purchaseID))
	defer func() {
		slog.Debug("DeletePurchase finished", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", purchaseID))
	}()

	if !actor.IsAdmin() {
		return service.ErrForbidden
	}

	var deleted model.Purchase
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		purchase, err := s.repo.GetPurchaseForUpdate(ctx, purchaseID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return service.ErrNotFound
			}
			return fmt.Errorf("get purchase: %w", err)
		}

		if err = s.repo.DeletePurchase(ctx, purchaseID); err != nil {
			return fmt.Errorf("delete purchase: %w", err)
		}

		deleted = purchase
		return nil
	})
	if err != nil {
		logFailure(ctx, op, err)
		return err
	}

	s.purchaseDeleted(ctx, actor, deleted)

	return nil
}

func (s *PurchaseService) GetPurchase(ctx context.Context, actor model.Actor, purchaseID int64) (model.Purchase, error) {
	purchase, err := s.repo.GetPurchase(ctx, purchaseID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Purchase{}, service.ErrNotFound
		}
		return model.Purchase{}, err
	}

	if !actor.IsAdmin() && purchase.UserID != actor.UserID {
		// чужие покупки не светим
		return model.Purchase{}, service.ErrNotFound
	}

	return purchase, nil
}

// GetPurchases returns one page of purchases. Non-admins only ever see their own.
func (s *PurchaseService) GetPurchases(ctx context.Context, actor model.Actor, filter model.PurchaseFilter, page int) (model.PurchasesPage, error) {
	if page < 0 {
		page = 0
	}

	if !actor.IsAdmin() {
		userID := actor.UserID
		filter.UserID = &userID
	}

	limit := s.cfg.Pagination.PurchasesPerPage
	purchases, hasNextPage, err := s.repo.GetPurchases(ctx, filter, limit, page*limit)
	if err != nil {
		return model.PurchasesPage{}, err
	}

	return model.PurchasesPage{
		Purchases:   purchases,
		CurPage:     page,
		HasNextPage: hasNextPage,
	}, nil
}

// GetFunds returns both funding pools of a user, served from cache when possible.
func (s *PurchaseService) GetFunds(ctx context.Context, actor model.Actor, userID int64) (model.Funds, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PurchaseService.GetFunds"

	if !actor.IsAdmin() && actor.UserID != userID {
		return model.Funds{}, service.ErrForbidden
	}

	funds, err := s.cache.GetFunds(ctx, userID)
	if err == nil {
		return funds, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		slog.Warn("can't get funds from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.Funds{}, service.NewUserNotFound(userID)
		}
		return model.Funds{}, err
	}

	entries, err := s.repo.GetPortfolioEntries(ctx, userID)
	if err != nil {
		return model.Funds{}, err
	}

	funds = model.Funds{
		UserID:         userID,
		AccountBalance: user.Balance,
		PortfolioValue: model.SumEntries(entries),
		Entries:        entries,
	}

	if err = s.cache.SetFunds(ctx, funds); err != nil {
		slog.Warn("can't set funds to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return funds, nil
}

// RefreshActivePurchaseMetrics recomputes current value, profit/loss and win rate of every active
// purchase from its option's latest stats. Status is never touched.
func (s *PurchaseService) RefreshActivePurchaseMetrics(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "PurchaseService.RefreshActivePurchaseMetrics"

	options, err := s.repo.GetOptions(ctx)
	if err != nil {
		return fmt.Errorf("get options: %w", err)
	}

	optionsByID := make(map[int64]model.CopytradeOption, len(options))
	for _, o := range options {
		optionsByID[o.ID] = o
	}

	purchases, err := s.repo.GetActivePurchases(ctx)
	if err != nil {
		return fmt.Errorf("get active purchases: %w", err)
	}

	updated := 0
	for _, p := range purchases {
		option, ok := optionsByID[p.OptionID]
		if !ok {
			slog.Warn("option of active purchase not found", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", p.ID))
			continue
		}

		changes := MetricsFromOption(p, option)
		if _, err = s.repo.UpdatePurchaseMetrics(ctx, p.ID, changes); err != nil {
			slog.Error("can't update purchase metrics", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", p.ID), slog.String("err", err.Error()))
			continue
		}
		updated++
	}

	slog.Info("active purchase metrics refreshed", slog.String("rqID", rqID), slog.Int("updated", updated), slog.Int("total", len(purchases)))

	return nil
}

// MetricsFromOption derives purchase metrics from the option's profit percent and win rate.
func MetricsFromOption(purchase model.Purchase, option model.CopytradeOption) model.PurchaseChanges {
	hundred := decimal.NewFromInt(100)
	currentValue := purchase.InitialInvestment.Mul(hundred.Add(option.ProfitPercent)).Div(hundred).Round(2)
	profitLoss := currentValue.Sub(purchase.InitialInvestment)
	winRate := option.WinRate

	return model.PurchaseChanges{
		CurrentValue: &currentValue,
		ProfitLoss:   &profitLoss,
		WinRate:      &winRate,
	}
}

func logFailure(ctx context.Context, op string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	if de, ok := service.AsDomainError(err); ok {
		slog.Info("purchase operation rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("kind", de.Kind.String()), slog.Any("data", de.Data))
		return
	}
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrForbidden) {
		slog.Info("purchase operation rejected", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return
	}
	slog.Error("purchase operation failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
}
