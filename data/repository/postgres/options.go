package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/KotFed0t/copytrade_backoffice/data/repository"
	"github.com/KotFed0t/copytrade_backoffice/internal/converter/dbConverter"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/model/dbModel"
	"github.com/KotFed0t/copytrade_backoffice/utils"
)

func (r *Postgres) GetOption(ctx context.Context, optionID int64) (option model.CopytradeOption, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetOption"
	query := `
		SELECT option_id, title, minimum_investment, profit_percent, win_rate, duration_days, created_at
		FROM copytrade_options
		WHERE option_id = $1
		`

	slog.Debug("GetOption start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query), slog.Int64("optionID", optionID))
	defer func() {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			slog.Error("GetOption failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetOption completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	dbOption := dbModel.Option{}
	err = r.txOrDb(ctx).QueryRowxContext(ctx, query, optionID).StructScan(&dbOption)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.CopytradeOption{}, repository.ErrNotFound
		}
		return model.CopytradeOption{}, err
	}

	return dbConverter.ConvertOption(dbOption), nil
}

func (r *Postgres) GetOptions(ctx context.Context) (options []model.CopytradeOption, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.GetOptions"
	query := `
		SELECT option_id, title, minimum_investment, profit_percent, win_rate, duration_days, created_at
		FROM copytrade_options
		ORDER BY option_id
		`

	slog.Debug("GetOptions start", slog.String("rqID", rqID), slog.String("op", op), slog.String("query", query))
	defer func() {
		if err != nil {
			slog.Error("GetOptions failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("GetOptions completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	var dbOptions []dbModel.Option
	err = r.txOrDb(ctx).SelectContext(ctx, &dbOptions, query)
	if err != nil {
		return nil, err
	}

	options = make([]model.CopytradeOption, 0, len(dbOptions))
	for _, o := range dbOptions {
		options = append(options, dbConverter.ConvertOption(o))
	}

	return options, nil
}

// UpdateOptionsStats writes profit_percent and win_rate for every option in stats with one statement.
func (r *Postgres) UpdateOptionsStats(ctx context.Context, stats []model.OptionStats) (err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "Postgres.UpdateOptionsStats"

	if len(stats) == 0 {
		return nil
	}

	sb := strings.Builder{}
	args := make([]any, 0, len(stats)*3)

	sb.WriteString(`
		UPDATE copytrade_options o
		SET profit_percent = v.profit_percent, win_rate = v.win_rate
		FROM (VALUES `)

	for i, s := range stats {
		args = append(args, s.OptionID, s.ProfitPercent, s.WinRate)

		start := i*3 + 1
		sb.WriteString(fmt.Sprintf("($%d::bigint, $%d::numeric, $%d::numeric)", start, start+1, start+2))

		if i < len(stats)-1 {
			sb.WriteString(",")
		}
	}

	sb.WriteString(`) AS v(option_id, profit_percent, win_rate)
		WHERE o.option_id = v.option_id`)

	slog.Debug("UpdateOptionsStats start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("options", len(stats)))
	defer func() {
		if err != nil {
			slog.Error("UpdateOptionsStats failed", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		} else {
			slog.Debug("UpdateOptionsStats completed", slog.String("rqID", rqID), slog.String("op", op))
		}
	}()

	_, err = r.txOrDb(ctx).ExecContext(ctx, sb.String(), args...)
	return err
}
