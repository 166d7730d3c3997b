package data

import (
	"context"
	"log/slog"
	"net"
	"strconv"

	"github.com/KotFed0t/copytrade_backoffice/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a client for the option and funds caches. Panics if the server does not answer PING.
func NewRedisClient(ctx context.Context, cfg *config.Config) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Redis.Host, strconv.Itoa(cfg.Redis.Port)),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.PingTimeout)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		slog.Error("redis is unreachable", slog.String("addr", rdb.Options().Addr), slog.String("err", err.Error()))
		panic(err)
	}
	slog.Info("redis connected", slog.String("addr", rdb.Options().Addr), slog.Int("db", cfg.Redis.DB))

	return rdb
}
