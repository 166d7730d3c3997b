package purchaseService

import (
	"context"
	"fmt"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
)

const sideEffectsTimeout = 5 * time.Second

// afterCommit detaches side effects from the request context so a client disconnect
// does not drop audit records of an already committed change.
func afterCommit(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), sideEffectsTimeout)
}

func (s *PurchaseService) purchaseCreated(ctx context.Context, actor model.Actor, p model.Purchase) {
	ctx, cancel := afterCommit(ctx)
	defer cancel()

	metadata := map[string]any{
		"purchaseId":        p.ID,
		"tradeTitle":        p.TradeTitle,
		"initialInvestment": p.InitialInvestment.String(),
		"createdBy":         actor.UserID,
	}

	s.sideEffects.Notify(ctx, model.Notification{
		Action:   model.ActionPurchaseCreated,
		UserID:   p.UserID,
		Metadata: metadata,
	})

	s.sideEffects.Record(ctx, model.AuditEntry{
		ActorID:      actor.UserID,
		UserID:       p.UserID,
		Action:       model.ActionPurchaseCreated,
		ResourceType: model.ResourcePurchase,
		ResourceID:   p.ID,
		ResourceName: p.TradeTitle,
		Description:  fmt.Sprintf("copytrade purchase of %s in %q created", p.InitialInvestment.String(), p.TradeTitle),
		Metadata:     metadata,
	})
}

func (s *PurchaseService) purchaseApproved(ctx context.Context, actor model.Actor, outcome model.PurchaseOutcome) {
	ctx, cancel := afterCommit(ctx)
	defer cancel()

	p := outcome.Purchase
	metadata := map[string]any{
		"purchaseId":        p.ID,
		"tradeTitle":        p.TradeTitle,
		"initialInvestment": p.InitialInvestment.String(),
		"deductions":        outcome.Deductions,
		"newAccountBalance": outcome.NewAccountBalance.String(),
		"approvedBy":        actor.UserID,
	}

	s.sideEffects.Notify(ctx, model.Notification{
		Action:   model.ActionPurchaseApproved,
		UserID:   p.UserID,
		Metadata: metadata,
	})

	s.sideEffects.Record(ctx, model.AuditEntry{
		ActorID:      actor.UserID,
		UserID:       p.UserID,
		Action:       model.ActionPurchaseApproved,
		ResourceType: model.ResourcePurchase,
		ResourceID:   p.ID,
		ResourceName: p.TradeTitle,
		Description:  fmt.Sprintf("copytrade purchase %d approved, %s deducted from portfolio", p.ID, p.InitialInvestment.String()),
		Changes: map[string]any{
			"trade_status": map[string]any{"from": model.PurchaseStatusPending, "to": model.PurchaseStatusActive},
		},
		Metadata: metadata,
	})
}

func (s *PurchaseService) purchaseRejected(ctx context.Context, actor model.Actor, before, after model.Purchase) {
	ctx, cancel := afterCommit(ctx)
	defer cancel()

	s.sideEffects.Notify(ctx, model.Notification{
		Action: model.ActionPurchaseRejected,
		UserID: after.UserID,
		Metadata: map[string]any{
			"purchaseId": after.ID,
			"tradeTitle": after.TradeTitle,
		},
	})

	s.sideEffects.Record(ctx, model.AuditEntry{
		ActorID:      actor.UserID,
		UserID:       after.UserID,
		Action:       model.ActionPurchaseRejected,
		ResourceType: model.ResourcePurchase,
		ResourceID:   after.ID,
		ResourceName: after.TradeTitle,
		Description:  fmt.Sprintf("copytrade purchase %d rejected", after.ID),
		Changes:      diffPurchases(before, after),
	})
}

func (s *PurchaseService) purchaseUpdated(ctx context.Context, actor model.Actor, before, after model.Purchase) {
	changes := diffPurchases(before, after)
	if len(changes) == 0 {
		return
	}

	ctx, cancel := afterCommit(ctx)
	defer cancel()

	s.sideEffects.Record(ctx, model.AuditEntry{
		ActorID:      actor.UserID,
		UserID:       after.UserID,
		Action:       model.ActionPurchaseUpdated,
		ResourceType: model.ResourcePurchase,
		ResourceID:   after.ID,
		ResourceName: after.TradeTitle,
		Description:  fmt.Sprintf("copytrade purchase %d updated", after.ID),
		Changes:      changes,
	})
}

func (s *PurchaseService) purchaseDeleted(ctx context.Context, actor model.Actor, p model.Purchase) {
	ctx, cancel := afterCommit(ctx)
	defer cancel()

	s.sideEffects.Record(ctx, model.AuditEntry{
		ActorID:      actor.UserID,
		UserID:       p.UserID,
		Action:       model.ActionPurchaseDeleted,
		ResourceType: model.ResourcePurchase,
		ResourceID:   p.ID,
		ResourceName: p.TradeTitle,
		Description:  fmt.Sprintf("copytrade purchase %d (%s) deleted", p.ID, p.Status),
		Metadata: map[string]any{
			"trade_status":       p.Status,
			"initial_investment": p.InitialInvestment.String(),
		},
	})
}

func diffPurchases(before, after model.Purchase) map[string]any {
	changes := make(map[string]any)

	if before.Status != after.Status {
		changes["trade_status"] = map[string]any{"from": before.Status, "to": after.Status}
	}
	if !before.CurrentValue.Equal(after.CurrentValue) {
		changes["current_value"] = map[string]any{"from": before.CurrentValue.String(), "to": after.CurrentValue.String()}
	}
	if !before.ProfitLoss.Equal(after.ProfitLoss) {
		changes["profit_loss"] = map[string]any{"from": before.ProfitLoss.String(), "to": after.ProfitLoss.String()}
	}
	if !before.WinRate.Equal(after.WinRate) {
		changes["win_rate"] = map[string]any{"from": before.WinRate.String(), "to": after.WinRate.String()}
	}
	if !sameTime(before.EndDate, after.EndDate) {
		changes["end_date"] = map[string]any{"from": before.EndDate, "to": after.EndDate}
	}

	return changes
}

func sameTime(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
