package db

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewRedisClient connects and names the connection so CLIENT LIST shows
// which process holds it.
func NewRedisClient(ctx context.Context, url, clientName string, log *zap.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	opts.ClientName = clientName

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	log.Info("redis connected",
		zap.String("addr", opts.Addr),
		zap.String("client_name", clientName))
	return client, nil
}
