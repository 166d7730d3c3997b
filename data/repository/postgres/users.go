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
)

func (r *Postgres) getUser(ctx context.Context, op string, userID int64, query string) (user model.User, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)

	slog.Debug(op+" start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("userID", userID))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error(op+" failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug(op+" completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbUser := dbModel.User{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, userID).StructScan(&dbUser)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, repository.ErrNotFound
		}
		return model.User{}, err
	}

	return dbConverter.ConvertUser(dbUser), nil
}

func (r *Postgres) GetUser(ctx context.Context, userID int64) (model.User, error) {
	query := `
		SELECT user_id, email, name, role, balance
		FROM users
		WHERE user_id = $1
		`

	return r.getUser(ctx, "Postgres.GetUser", userID, query)
}

// LockUser reads the user row and holds a row lock on it until the transaction ends.
func (r *Postgres) LockUser(ctx context.Context, userID int64) (model.User, error) {
	query := `
		SELECT user_id, email, name, role, balance
		FROM users
		WHERE user_id = $1
		FOR UPDATE
		`

	return r.getUser(ctx, "Postgres.LockUser", userID, query)
}
