package optionService_test

import (
	"context"
	"errors"
	"testing"

	"github.com/KotFed0t/copytrade_backoffice/data/cache"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/internal/service/optionService"
	"github.com/KotFed0t/copytrade_backoffice/internal/testutil/memStore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type optionsCache struct {
	options []model.CopytradeOption
	getErr  error
	sets    int
}

func (c *optionsCache) GetOptions(_ context.Context) ([]model.CopytradeOption, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	if c.options == nil {
		return nil, cache.ErrNotFound
	}
	return c.options, nil
}

func (c *optionsCache) SetOptions(_ context.Context, options []model.CopytradeOption) error {
	c.options = options
	c.sets++
	return nil
}

type statsApi struct {
	stats []model.OptionStats
	err   error
}

func (a *statsApi) GetOptionsStats(_ context.Context) ([]model.OptionStats, error) {
	return a.stats, a.err
}

func TestGetOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("cache hit skips database", func(t *testing.T) {
		store := memStore.New()
		c := &optionsCache{options: []model.CopytradeOption{{ID: 1, Title: "cached"}}}

		options, err := optionService.New(store, c, &statsApi{}).GetOptions(ctx)
		require.NoError(t, err)

		assert.Equal(t, "cached", options[0].Title)
		assert.False(t, store.Called("GetOptions"))
	})

	t.Run("cache miss falls back to database", func(t *testing.T) {
		store := memStore.New()
		store.AddOption(1, "BTC scalper", "100")
		c := &optionsCache{}

		options, err := optionService.New(store, c, &statsApi{}).GetOptions(ctx)
		require.NoError(t, err)

		require.Len(t, options, 1)
		assert.Equal(t, "BTC scalper", options[0].Title)
		assert.Equal(t, 1, c.sets)
	})

	t.Run("broken cache still serves from database", func(t *testing.T) {
		store := memStore.New()
		store.AddOption(1, "BTC scalper", "100")

		options, err := optionService.New(store, &optionsCache{getErr: errors.New("redis down")}, &statsApi{}).GetOptions(ctx)
		require.NoError(t, err)

		assert.Len(t, options, 1)
	})
}

func TestSyncOptionsStats(t *testing.T) {
	ctx := context.Background()

	t.Run("stores stats and refreshes cache", func(t *testing.T) {
		store := memStore.New()
		store.AddOption(1, "BTC scalper", "100")
		c := &optionsCache{}
		api := &statsApi{stats: []model.OptionStats{{OptionID: 1, ProfitPercent: decimal.NewFromInt(7), WinRate: decimal.NewFromInt(80)}}}

		require.NoError(t, optionService.New(store, c, api).SyncOptionsStats(ctx))

		assert.True(t, decimal.NewFromInt(7).Equal(store.Options[1].ProfitPercent))
		require.Len(t, c.options, 1)
		assert.True(t, decimal.NewFromInt(80).Equal(c.options[0].WinRate))
	})

	t.Run("api failure", func(t *testing.T) {
		store := memStore.New()

		err := optionService.New(store, &optionsCache{}, &statsApi{err: errors.New("timeout")}).SyncOptionsStats(ctx)

		assert.Error(t, err)
		assert.False(t, store.Called("UpdateOptionsStats"))
	})
}
