package optionService

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/data/cache"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
)

type Repository interface {
	GetOptions(ctx context.Context) ([]model.CopytradeOption, error)
	UpdateOptionsStats(ctx context.Context, stats []model.OptionStats) error
}

type Cache interface {
	GetOptions(ctx context.Context) ([]model.CopytradeOption, error)
	SetOptions(ctx context.Context, options []model.CopytradeOption) error
}

type StatsApi interface {
	GetOptionsStats(ctx context.Context) ([]model.OptionStats, error)
}

type OptionService struct {
	repo     Repository
	cache    Cache
	statsApi StatsApi
}

func New(repo Repository, cache Cache, statsApi StatsApi) *OptionService {
	return &OptionService{repo: repo, cache: cache, statsApi: statsApi}
}

func (s *OptionService) GetOptions(ctx context.Context) ([]model.CopytradeOption, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "OptionService.GetOptions"

	options, err := s.cache.GetOptions(ctx)
	if err == nil {
		return options, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		slog.Warn("can't get options from cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	options, err = s.repo.GetOptions(ctx)
	if err != nil {
		slog.Error("got error from repo.GetOptions", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	if err = s.cache.SetOptions(ctx, options); err != nil {
		slog.Warn("can't set options to cache", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
	}

	return options, nil
}

func (s *OptionService) FillOptionsCache(ctx context.Context) error {
	options, err := s.repo.GetOptions(ctx)
	if err != nil {
		return fmt.Errorf("get options: %w", err)
	}

	return s.cache.SetOptions(ctx, options)
}

// SyncOptionsStats pulls the latest option performance from the trading platform and refreshes the cache.
func (s *OptionService) SyncOptionsStats(ctx context.Context) error {
	rqID := utils.GetRequestIDFromCtx(ctx)

	stats, err := s.statsApi.GetOptionsStats(ctx)
	if err != nil {
		return fmt.Errorf("get options stats: %w", err)
	}

	if err = s.repo.UpdateOptionsStats(ctx, stats); err != nil {
		return fmt.Errorf("update options stats: %w", err)
	}

	slog.Info("options stats synced", slog.String("rqID", rqID), slog.Int("options", len(stats)))

	return s.FillOptionsCache(ctx)
}
