package app

import (
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/trainwatch-backend/internal/clients/redis"
	"github.com/yungbote/trainwatch-backend/internal/platform/logger"
)

type Clients struct {
	// Redis is nil when REDIS_ADDR is unset.
	Redis *goredis.Client
}

func wireClients(log *logger.Logger, cfg Config) (Clients, error) {
	log.Info("Wiring clients...")

	var rdb *goredis.Client
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		c, err := redis.NewClient(log, cfg.RedisAddr)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		rdb = c
	} else {
		log.Warn("REDIS_ADDR not set; pseudonym reservation and repair queue stay in-process")
	}

	return Clients{Redis: rdb}, nil
}

func (c *Clients) Close() {
	if c == nil {
		return
	}
	if c.Redis != nil {
		_ = c.Redis.Close()
	}
}
