package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
)

func (r *Postgres) InsertAuditLog(ctx context.Context, entry model.AuditEntry) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertAuditLog"
	query := `
		INSERT INTO audit_logs(actor_id, user_id, action, resource_type, resource_id, resource_name, description, changes, metadata, idempotency_key)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (idempotency_key) DO NOTHING
		`

	slog.Debug("InsertAuditLog start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("entry", entry), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertAuditLog failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertAuditLog completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	changes, err := marshalJSONB(entry.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}
	metadata, err := marshalJSONB(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.txOrDb(ctx).ExecContext(
		ctx,
		query,
		entry.ActorID,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.ResourceName,
		entry.Description,
		changes,
		metadata,
		nullIfEmpty(entry.IdempotencyKey),
	)

	return err
}

func (r *Postgres) InsertNotification(ctx context.Context, notification model.Notification) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertNotification"
	query := `
		INSERT INTO notifications(user_id, action, metadata)
		VALUES ($1, $2, $3)
		`

	slog.Debug("InsertNotification start", slog.String("rqID", rqID), slog.String("op", op), slog.Any("notification", notification), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("InsertNotification failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertNotification completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	metadata, err := marshalJSONB(notification.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	_, err = r.txOrDb(ctx).ExecContext(ctx, query, notification.UserID, notification.Action, metadata)
	return err
}

// marshalJSONB returns nil for an empty map so the column stays NULL.
func marshalJSONB(v map[string]any) (*string, error) {
	if len(v) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	s := string(b)
	return &s, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
