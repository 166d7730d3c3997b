package copytradeApi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/internal/externalApi"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
)

const optionsStatsUrl = "/api/v1/options/stats"

type rawOptionsStats struct {
	Options []rawOptionStats `json:"options"`
}

type rawOptionStats struct {
	OptionID      int64           `json:"option_id"`
	ProfitPercent decimal.Decimal `json:"profit_percent"`
	WinRate       decimal.Decimal `json:"win_rate"`
}

// CopytradeApi reads performance stats of copytrade options from the trading platform.
type CopytradeApi struct {
	client *resty.Client
}

func New(cfg *config.Config) *CopytradeApi {
	client := resty.New().
		SetDebug(cfg.API.Debug).
		SetTimeout(cfg.API.Timeout).
		SetBaseURL(cfg.API.CopytradeApi.Url)
	return &CopytradeApi{client: client}
}

func (a *CopytradeApi) GetOptionsStats(ctx context.Context) ([]model.OptionStats, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "CopytradeApi.GetOptionsStats"

	slog.Debug("start CopytradeApi.GetOptionsStats request", slog.String("rqID", rqID), slog.String("op", op))

	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Accept", "application/json").
		SetHeader("X-Request-ID", rqID).
		Get(optionsStatsUrl)
	if err != nil {
		slog.Error("error while dialing CopytradeApi", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, externalApi.ErrNotFound
	default:
		slog.Error("unexpected CopytradeApi response", slog.String("rqID", rqID), slog.String("op", op), slog.Int("status", resp.StatusCode()))
		return nil, fmt.Errorf("%w: %d", externalApi.ErrUnexpectedStatus, resp.StatusCode())
	}

	raw := rawOptionsStats{}
	err = json.Unmarshal(resp.Body(), &raw)
	if err != nil {
		slog.Error("can't unmarshall response into rawOptionsStats", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	stats := make([]model.OptionStats, 0, len(raw.Options))
	for _, o := range raw.Options {
		stats = append(stats, model.OptionStats{
			OptionID:      o.OptionID,
			ProfitPercent: o.ProfitPercent,
			WinRate:       o.WinRate,
		})
	}

	slog.Debug("CopytradeApi.GetOptionsStats request complete", slog.String("rqID", rqID), slog.String("op", op), slog.Int("options", len(stats)))

	return stats, nil
}
