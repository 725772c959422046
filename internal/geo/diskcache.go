package geo

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
)

// diskEntry：持久缓存条目 {v, t, data}；t 为写入时间（Unix 毫秒）
type diskEntry struct {
	V    string          `json:"v"`
	T    int64           `json:"t"`
	Data json.RawMessage `json:"data"`
}

// DiskCache：边界数据的本地持久缓存，按层级一个文件
// 约束：版本不一致或超过 TTL 的条目视为不存在；写入经临时文件再改名，读方不会看到半截文件
type DiskCache struct {
	Dir     string
	Version string
	TTL     time.Duration
	now     func() time.Time
}

func NewDiskCache(dir, version string, ttl time.Duration) *DiskCache {
	if version == "" {
		version = "v1"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &DiskCache{Dir: dir, Version: version, TTL: ttl, now: time.Now}
}

func (c *DiskCache) path(level Level) string {
	return filepath.Join(c.Dir, strings.ReplaceAll(level.cacheKey(), ":", "_")+".json")
}

// Get：有效条目的数据
func (c *DiskCache) Get(level Level) ([]byte, bool) {
	b, err := os.ReadFile(c.path(level))
	if err != nil {
		return nil, false
	}
	var e diskEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return nil, false
	}
	if e.V != c.Version {
		return nil, false
	}
	if c.now().Sub(time.UnixMilli(e.T)) > c.TTL {
		return nil, false
	}
	return e.Data, len(e.Data) > 0
}

// Put：写入当前版本的条目
func (c *DiskCache) Put(level Level, data []byte) error {
	if err := os.MkdirAll(c.Dir, 0o755); err != nil {
		return err
	}
	b, err := json.Marshal(diskEntry{V: c.Version, T: c.now().UnixMilli(), Data: data})
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.Dir, ".geo-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	return os.Rename(name, c.path(level))
}

// Invalidate：删除某层级的条目
func (c *DiskCache) Invalidate(level Level) error {
	err := os.Remove(c.path(level))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// CachedFetcher：先查持久缓存，未命中再取上游并回写
type CachedFetcher struct {
	Cache    *DiskCache
	Upstream Fetcher
}

func (c CachedFetcher) Fetch(ctx context.Context, level Level) ([]byte, error) {
	if b, ok := c.Cache.Get(level); ok {
		metrics.GeoFetchTotal.WithLabelValues("disk", "hit").Inc()
		return b, nil
	}
	metrics.GeoFetchTotal.WithLabelValues("disk", "miss").Inc()
	b, err := c.Upstream.Fetch(ctx, level)
	if err != nil {
		return nil, err
	}
	if !json.Valid(b) {
		return b, nil
	}
	if err := c.Cache.Put(level, b); err != nil {
		logger.Component("geo").Warn("geo_cache_write_failed", "level", level, "err", err)
	}
	return b, nil
}
