// 包 cache：聚合结果的读穿缓存，键由筛选条件与聚合粒度组成
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
	"dashboard-ventas/internal/sales"
)

// KeyPrefix：聚合缓存键前缀
const KeyPrefix = "mapa:"

// Cache：聚合结果缓存
// 约束：Get 出错一律按未命中处理；并发的相同未命中可能各自计算并各自写入
type Cache interface {
	Get(ctx context.Context, key string) ([]sales.Row, bool)
	Set(ctx context.Context, key string, rows []sales.Row)
	Purge(ctx context.Context) error
}

// Key：mapa: + 规范 JSON（只含非空的允许字段，键有序）
func Key(f sales.Filters, by sales.GroupBy) string {
	m := map[string]string{"group_by": string(by)}
	for _, k := range sales.FilterFields {
		if v := strings.TrimSpace(f[k]); v != "" {
			m[k] = v
		}
	}
	// encoding/json 对 map 键排序输出，结果稳定
	b, _ := json.Marshal(m)
	return KeyPrefix + string(b)
}

// New：配置了 Redis 客户端时使用 Redis，否则使用进程内 LRU
func New(rc *redis.Client, size int, ttl time.Duration) Cache {
	if rc != nil {
		return NewRedis(rc, ttl)
	}
	return NewMemory(size, ttl)
}

// Memory：进程内实现
type Memory struct {
	lru *LRU[[]sales.Row]
}

func NewMemory(size int, ttl time.Duration) *Memory {
	return &Memory{lru: NewLRU[[]sales.Row](size, ttl)}
}

func (m *Memory) Get(_ context.Context, key string) ([]sales.Row, bool) {
	rows, ok := m.lru.Get(key)
	if ok {
		metrics.CacheHitsTotal.WithLabelValues("memory").Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues("memory").Inc()
	}
	return rows, ok
}

func (m *Memory) Set(_ context.Context, key string, rows []sales.Row) {
	m.lru.Set(key, rows)
}

func (m *Memory) Purge(context.Context) error {
	m.lru.Purge()
	return nil
}

// Redis：跨实例共享的实现
type Redis struct {
	rc  *redis.Client
	ttl time.Duration
}

func NewRedis(rc *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Redis{rc: rc, ttl: ttl}
}

func (r *Redis) Get(ctx context.Context, key string) ([]sales.Row, bool) {
	s, err := r.rc.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.L().Warn("aggregate_cache_get_error", "err", err)
		}
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return nil, false
	}
	var rows []sales.Row
	if err := json.Unmarshal([]byte(s), &rows); err != nil {
		metrics.CacheMissesTotal.WithLabelValues("redis").Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.WithLabelValues("redis").Inc()
	return rows, true
}

func (r *Redis) Set(ctx context.Context, key string, rows []sales.Row) {
	b, err := json.Marshal(rows)
	if err != nil {
		return
	}
	if err := r.rc.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logger.L().Warn("aggregate_cache_set_error", "err", err)
	}
}

// Purge：按前缀删除聚合键
func (r *Redis) Purge(ctx context.Context) error {
	iter := r.rc.Scan(ctx, 0, KeyPrefix+"*", 200).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)
	return r.rc.Del(ctx, keys...).Err()
}
