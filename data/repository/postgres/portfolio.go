package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/converter/dbConverter"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/model/dbModel"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

func (r *Postgres) getPortfolioEntries(ctx context.Context, op string, userID int64, query string) (entries []model.PortfolioEntry, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("entries", len(entries)))
		}
	}()

	rows, err := r.txOrDb(ctx).QueryxContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}

	defer rows.Close()

	entries = make([]model.PortfolioEntry, 0)
	for rows.Next() {
		var entry dbModel.PortfolioEntry
		err = rows.StructScan(&entry)
		if err != nil {
			return nil, err
		}
		entries = append(entries, dbConverter.ConvertPortfolioEntry(entry))
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *Postgres) GetPortfolioEntries(ctx context.Context, userID int64) ([]model.PortfolioEntry, error) {
	query := `
		SELECT entry_id, user_id, symbol, value, created_at
		FROM portfolio_entries
		WHERE user_id = $1
		ORDER BY entry_id
		`

	return r.getPortfolioEntries(ctx, "Postgres.GetPortfolioEntries", userID, query)
}

// GetPortfolioEntriesForUpdate locks the user's entries in entry_id order until the surrounding
// transaction ends, so concurrent approvals for one user see either none or all of a deduction.
func (r *Postgres) GetPortfolioEntriesForUpdate(ctx context.Context, userID int64) ([]model.PortfolioEntry, error) {
	query := `
		SELECT entry_id, user_id, symbol, value, created_at
		FROM portfolio_entries
		WHERE user_id = $1
		ORDER BY entry_id
		FOR UPDATE
		`

	return r.getPortfolioEntries(ctx, "Postgres.GetPortfolioEntriesForUpdate", userID, query)
}

func (r *Postgres) DeductFromEntry(ctx context.Context, entryID int64, amount decimal.Decimal) (newValue decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.DeductFromEntry"
	params := map[string]any{
		"entryID": entryID,
		"amount":  amount.String(),
	}

	query := `
		UPDATE portfolio_entries
		SET value = value - $1
		WHERE entry_id = $2
		AND value >= $1
		RETURNING value
		`

	slog.Debug("DeductFromEntry start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Any("params", params))
	defer func() {
		if err != nil {
			slog.Error("DeductFromEntry failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("DeductFromEntry completed", slog.String("rqID", rqID), slog.String("op", op), slog.String("newValue", newValue.String()))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, amount, entryID).Scan(&newValue)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, repository.ErrEntryValueTooLow
		}
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == "23514" { // check_violation
				return decimal.Zero, repository.ErrEntryValueTooLow
			}
		}
		return decimal.Zero, err
	}

	return newValue, nil
}

func (r *Postgres) GetPortfolioValue(ctx context.Context, userID int64) (total decimal.Decimal, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetPortfolioValue"

	query := `
		SELECT COALESCE(SUM(value), 0)
		FROM portfolio_entries
		WHERE user_id = $1
		`

	slog.Debug("GetPortfolioValue start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil {
			slog.Error("GetPortfolioValue failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetPortfolioValue completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID).Scan(&total)
	if err != nil {
		return decimal.Zero, err
	}

	return total, nil
}
