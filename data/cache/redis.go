package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/KotFed0t/copytrade_backoffice/utils"
	"github.com/redis/go-redis/v9"
)

const (
	optionsKey      = "copytrade:options"
	fundsKeyPattern = "copytrade:funds:%d"
)

type RedisCache struct {
	redis *redis.Client
	cfg   *config.Config
}

func NewRedisCache(redisClient *redis.Client, cfg *config.Config) *RedisCache {
	return &RedisCache{redis: redisClient, cfg: cfg}
}

func fundsKey(userID int64) string {
	return fmt.Sprintf(fundsKeyPattern, userID)
}

func (r *RedisCache) SetOptions(ctx context.Context, options []model.CopytradeOption) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetOptions"
	slog.Debug("SetOptions start", slog.String("rqID", rqID), slog.String("op", op), slog.Int("options", len(options)))

	optionsJson, err := json.Marshal(options)
	if err != nil {
		slog.Error("can't marshall options", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return errors.New("can't marshall options")
	}

	err = r.redis.Set(ctx, optionsKey, optionsJson, r.cfg.Cache.OptionsExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetOptions completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (r *RedisCache) GetOptions(ctx context.Context) ([]model.CopytradeOption, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetOptions"
	slog.Debug("GetOptions start", slog.String("rqID", rqID), slog.String("op", op))

	res, err := r.redis.Get(ctx, optionsKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	var options []model.CopytradeOption
	err = json.Unmarshal([]byte(res), &options)
	if err != nil {
		slog.Error("can't unmarshall options", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, errors.New("can't unmarshall options")
	}

	slog.Debug("GetOptions finished", slog.String("rqID", rqID), slog.String("op", op))

	return options, nil
}

func (r *RedisCache) SetFunds(ctx context.Context, funds model.Funds) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.SetFunds"
	slog.Debug("SetFunds start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", funds.UserID))

	fundsJson, err := json.Marshal(funds)
	if err != nil {
		slog.Error("can't marshall funds", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return errors.New("can't marshall funds")
	}

	err = r.redis.Set(ctx, fundsKey(funds.UserID), fundsJson, r.cfg.Cache.FundsExpiration).Err()
	if err != nil {
		slog.Error("failed on redis.Set", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("SetFunds completed", slog.String("rqID", rqID), slog.String("op", op))

	return nil
}

func (r *RedisCache) GetFunds(ctx context.Context, userID int64) (model.Funds, error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.GetFunds"
	slog.Debug("GetFunds start", slog.String("rqID", rqID), slog.String("op", op), slog.Int64("userID", userID))

	res, err := r.redis.Get(ctx, fundsKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Funds{}, ErrNotFound
		}
		slog.Error("failed on redis.Get", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return model.Funds{}, err
	}

	funds := model.Funds{}
	err = json.Unmarshal([]byte(res), &funds)
	if err != nil {
		slog.Error(
			"can't unmarshall funds",
			slog.String("rqID", rqID),
			slog.String("op", op),
			slog.String("err", err.Error()),
			slog.String("resultFromRedis", res),
		)
		return model.Funds{}, errors.New("can't unmarshall funds")
	}

	slog.Debug("GetFunds finished", slog.String("rqID", rqID), slog.String("op", op))

	return funds, nil
}

// FlushFunds drops the cached funds snapshot of the given users.
func (r *RedisCache) FlushFunds(ctx context.Context, userIDs ...int64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "RedisCache.FlushFunds"

	if len(userIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, fundsKey(id))
	}

	err := r.redis.Del(ctx, keys...).Err()
	if err != nil {
		slog.Error("failed on redis.Del", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()), slog.Any("keys", keys))
		return err
	}

	slog.Debug("FlushFunds completed", slog.String("rqID", rqID), slog.String("op", op), slog.Any("keys", keys))

	return nil
}
