// 包 utils：Redis 连接工具
package utils

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"dashboard-ventas/internal/config"
	"dashboard-ventas/internal/logger"
)

// OpenRedis：按配置打开 Redis 客户端
// 约束：未启用或 Ping 失败时返回 nil，聚合缓存随之退回进程内实现
func OpenRedis(ctx context.Context, c config.Redis) *redis.Client {
	if !c.Enabled {
		logger.L().Info("redis_disabled")
		return nil
	}
	rc := redis.NewClient(&redis.Options{Addr: c.Addr(), Password: c.Pass, DB: c.DB})
	pctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rc.Ping(pctx).Err(); err != nil {
		logger.L().Error("redis_ping_error", "addr", c.Addr(), "err", err)
		_ = rc.Close()
		return nil
	}
	logger.L().Info("redis_ping_ok", "addr", c.Addr(), "db", c.DB)
	return rc
}
