package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/converter/dbConverter"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/model/dbModel"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/jackc/pgx/v5/pgconn"
)

const purchaseColumns = `purchase_id, user_id, option_id, trade_title, initial_investment, current_value,
		profit_loss, win_rate, approved_by, approved_at, end_date, status, created_at, updated_at`

func (r *Postgres) InsertPurchase(ctx context.Context, purchase model.Purchase) (inserted model.Purchase, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.InsertPurchase"
	query := `
		INSERT INTO copytrade_purchases(user_id, option_id, trade_title, initial_investment, current_value,
			profit_loss, win_rate, approved_at, end_date, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + purchaseColumns

	slog.Debug(
		"InsertPurchase start",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.Int64("userID", purchase.UserID),
		slog.Int64("optionID", purchase.OptionID),
		slog.String("query", query),
	)
	defer func() {
		if err != nil {
			slog.Error("InsertPurchase failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("InsertPurchase completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("purchaseID", inserted.ID))
		}
	}()

	dbPurchase := dbModel.Purchase{}
	err = r.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		purchase.UserID,
		purchase.OptionID,
		purchase.TradeTitle,
		purchase.InitialInvestment,
		purchase.CurrentValue,
		purchase.ProfitLoss,
		purchase.WinRate,
		purchase.ApprovedAt,
		purchase.EndDate,
		string(purchase.Status),
	).StructScan(&dbPurchase)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23503" { // foreign_key_violation
				return model.Purchase{}, repository.ErrNotFound
			}
		}
		return model.Purchase{}, err
	}

	return dbConverter.ConvertPurchase(dbPurchase), nil
}

func (r *Postgres) getPurchase(ctx context.Context, op string, purchaseID int64, query string) (purchase model.Purchase, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("purchaseID", purchaseID))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPurchase := dbModel.Purchase{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, purchaseID).StructScan(&dbPurchase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Purchase{}, repository.ErrNotFound
		}
		return model.Purchase{}, err
	}

	return dbConverter.ConvertPurchase(dbPurchase), nil
}

func (r *Postgres) GetPurchase(ctx context.Context, purchaseID int64) (model.Purchase, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM copytrade_purchases
		WHERE purchase_id = $1
		`

	return r.getPurchase(ctx, "Postgres.GetPurchase", purchaseID, query)
}

func (r *Postgres) GetPurchaseForUpdate(ctx context.Context, purchaseID int64) (model.Purchase, error) {
	query := `SELECT ` + purchaseColumns + `
		FROM copytrade_purchases
		WHERE purchase_id = $1
		FOR UPDATE
		`

	return r.getPurchase(ctx, "Postgres.GetPurchaseForUpdate", purchaseID, query)
}

// SetPurchaseStatus changes the status of a purchase that is not active yet.
// Approval metadata is written only when meta is non-nil.
func (r *Postgres) SetPurchaseStatus(ctx context.Context, purchaseID int64, status model.PurchaseStatus, meta *model.ApprovalMeta) (purchase model.Purchase, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.SetPurchaseStatus"
	params := map[string]any{
		"purchaseID": purchaseID,
		"status":     status,
	}

	var approvedBy *int64
	var approvedAt *time.Time
	if meta != nil {
		approvedBy = &meta.ApprovedBy
		approvedAt = &meta.ApprovedAt
	}

	query := `
		UPDATE copytrade_purchases
		SET
			status = $1,
			approved_by = COALESCE($2, approved_by),
			approved_at = COALESCE($3, approved_at),
			updated_at = now()
		WHERE
			purchase_id = $4
			AND status <> 'active'
		RETURNING ` + purchaseColumns

	slog.Debug("SetPurchaseStatus start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("SetPurchaseStatus failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("SetPurchaseStatus completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPurchase := dbModel.Purchase{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, string(status), approvedBy, approvedAt, purchaseID).StructScan(&dbPurchase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// либо записи нет, либо она уже active
			return model.Purchase{}, r.lockedOrMissing(ctx, purchaseID)
		}
		return model.Purchase{}, err
	}

	return dbConverter.ConvertPurchase(dbPurchase), nil
}

// lockedOrMissing explains why a guarded update of purchaseID matched no row.
func (r *Postgres) lockedOrMissing(ctx context.Context, purchaseID int64) error {
	var exists bool
	err := r.txOrDb(ctx).QueryRowxContext(ctx, `SELECT EXISTS(SELECT 1 FROM copytrade_purchases WHERE purchase_id = $1)`, purchaseID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check purchase exists: %w", err)
	}
	if !exists {
		return repository.ErrNotFound
	}
	return repository.ErrStatusLocked
}

// UpdatePurchaseMetrics updates only the non-status fields. Nil fields keep their value.
// end_date of an active purchase is frozen: such an update returns repository.ErrStatusLocked.
func (r *Postgres) UpdatePurchaseMetrics(ctx context.Context, purchaseID int64, changes model.PurchaseChanges) (purchase model.Purchase, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdatePurchaseMetrics"
	params := map[string]any{
		"purchaseID": purchaseID,
	}

	query := `
		UPDATE copytrade_purchases
		SET
			current_value = COALESCE($1, current_value),
			profit_loss = COALESCE($2, profit_loss),
			win_rate = COALESCE($3, win_rate),
			end_date = COALESCE($4, end_date),
			updated_at = now()
		WHERE
			purchase_id = $5
			AND (status <> 'active' OR $4::timestamptz IS NULL)
		RETURNING ` + purchaseColumns

	slog.Debug("UpdatePurchaseMetrics start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) && !errors.Is(err, repository.ErrStatusLocked) {
			slog.Error("UpdatePurchaseMetrics failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdatePurchaseMetrics completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbPurchase := dbModel.Purchase{}
	err = r.txOrDb(ctx).QueryRowxContext(
		ctx,
		query,
		changes.CurrentValue,
		changes.ProfitLoss,
		changes.WinRate,
		changes.EndDate,
		purchaseID,
	).StructScan(&dbPurchase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Purchase{}, r.lockedOrMissing(ctx, purchaseID)
		}
		return model.Purchase{}, err
	}

	return dbConverter.ConvertPurchase(dbPurchase), nil
}

func (r *Postgres) DeletePurchase(ctx context.Context, purchaseID int64) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeletePurchase"
	query := `
		DELETE FROM copytrade_purchases
		WHERE purchase_id = $1
		`

	slog.Debug("DeletePurchase start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("purchaseID", purchaseID))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("DeletePurchase failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeletePurchase completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	res, err := r.txOrDb(ctx).ExecContext(ctx, query, purchaseID)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func (r *Postgres) GetPurchases(ctx context.Context, filter model.PurchaseFilter, limit, offset int) (purchases []model.Purchase, hasNextPage bool, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPurchases"

	conditions := make([]string, 0, 2)
	args := make([]any, 0, 4)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}

	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + purchaseColumns + `
		FROM copytrade_purchases`)
	if len(conditions) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(conditions, " AND "))
	}

	// выбираем на 1 больше, чтобы знать есть ли next page
	args = append(args, limit+1, offset)
	sb.WriteString(fmt.Sprintf("\n\t\tORDER BY purchase_id DESC\n\t\tLIMIT $%d\n\t\tOFFSET $%d", len(args)-1, len(args)))
	query := sb.String()

	slog.Debug("GetPurchases start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", args))
	defer func() {
		if err != nil {
			slog.Error("GetPurchases failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPurchases completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}

	defer rows.Close()

	i := 0
	purchases = make([]model.Purchase, 0, limit)
	for rows.Next() {
		i++
		if i > limit { // если на 1 больше лимита, значит есть next page
			hasNextPage = true
			break
		}

		var purchase dbModel.Purchase
		err = rows.StructScan(&purchase)
		if err != nil {
			return nil, false, err
		}
		purchases = append(purchases, dbConverter.ConvertPurchase(purchase))
	}

	if err = rows.Err(); err != nil {
		return nil, false, err
	}

	return purchases, hasNextPage, nil
}

func (r *Postgres) GetActivePurchases(ctx context.Context) (purchases []model.Purchase, err error) {
	return r.selectPurchases(ctx, "Postgres.GetActivePurchases", `SELECT `+purchaseColumns+`
		FROM copytrade_purchases
		WHERE status = 'active'
		ORDER BY purchase_id
		`)
}

func (r *Postgres) GetPurchasesCreatedSince(ctx context.Context, since time.Time) (purchases []model.Purchase, err error) {
	return r.selectPurchases(ctx, "Postgres.GetPurchasesCreatedSince", `SELECT `+purchaseColumns+`
		FROM copytrade_purchases
		WHERE created_at >= $1
		ORDER BY purchase_id
		`, since)
}

func (r *Postgres) selectPurchases(ctx context.Context, op string, query string, args ...any) (purchases []model.Purchase, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("purchases", len(purchases)))
		}
	}()

	var dbPurchases []dbModel.Purchase
	err = r.txOrDb(ctx).SelectContext(ctx, &dbPurchases, query, args...)
	if err != nil {
		return nil, err
	}

	purchases = make([]model.Purchase, 0, len(dbPurchases))
	for _, p := range dbPurchases {
		purchases = append(purchases, dbConverter.ConvertPurchase(p))
	}

	return purchases, nil
}
