// Package sideEffectNotifier emits audit records and notifications for committed purchase transitions.
// Failures are logged and swallowed: a committed change is never reported as failed because of them.
package sideEffectNotifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/google/uuid"
)

type Repository interface {
	InsertAuditLog(ctx context.Context, entry model.AuditEntry) error
	InsertNotification(ctx context.Context, notification model.Notification) error
}

type Cache interface {
	FlushFunds(ctx context.Context, userIDs ...int64) error
}

type AdminChannel interface {
	SendToAdmins(ctx context.Context, notification model.Notification) error
}

type Notifier struct {
	repo  Repository
	cache Cache
	admin AdminChannel
}

// New builds a Notifier. admin may be nil when no admin channel is configured.
func New(repo Repository, cache Cache, admin AdminChannel) *Notifier {
	return &Notifier{repo: repo, cache: cache, admin: admin}
}

var adminActions = map[string]bool{
	model.ActionPurchaseCreated: true,
}

func (n *Notifier) Notify(ctx context.Context, notification model.Notification) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Notifier.Notify"

	slog.Debug("Notify start", slog.String("rqID", rqID), slog.String("op", op), slog.String("action", notification.Action), slog.Int64("userID", notification.UserID))

	if err := n.repo.InsertNotification(ctx, notification); err != nil {
		slog.Error("can't store notification", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	if n.admin != nil && adminActions[notification.Action] {
		if err := n.admin.SendToAdmins(ctx, notification); err != nil {
			slog.Error("can't send notification to admins", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}
}

// Record stores an audit entry and invalidates the cached funds of the affected user.
func (n *Notifier) Record(ctx context.Context, entry model.AuditEntry) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Notifier.Record"

	slog.Debug("Record start", slog.String("rqID", rqID), slog.String("op", op), slog.String("action", entry.Action), slog.Int64("resourceID", entry.ResourceID))

	if entry.IdempotencyKey == "" {
		entry.IdempotencyKey = AuditKey(ctx, entry)
	}

	if err := n.repo.InsertAuditLog(ctx, entry); err != nil {
		slog.Error("can't store audit log", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	if entry.UserID != 0 {
		if err := n.cache.FlushFunds(ctx, entry.UserID); err != nil {
			slog.Warn("can't flush funds cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		}
	}
}

// AuditKey derives the idempotency key of an audit entry from the request that produced it,
// so a replayed side effect of the same request is stored once. Without a request id every
// entry gets a unique key.
func AuditKey(ctx context.Context, entry model.AuditEntry) string {
	rqID := utils.GetRequestIDFromCtx(ctx)
	if rqID == "" {
		rqID = uuid.NewString()
	}
	return fmt.Sprintf("%s:%s:%d:%s", entry.Action, entry.ResourceType, entry.ResourceID, rqID)
}
