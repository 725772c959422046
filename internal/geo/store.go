package geo

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"dashboard-ventas/internal/logger"
)

// Store：按层级懒加载的数据集注册表
// 背景：数据集首次使用时下载、解析、识别并标注；并发的首次请求共享同一次加载
type Store struct {
	fetcher Fetcher
	mu      sync.RWMutex
	sets    map[Level]*Dataset
	sf      singleflight.Group
}

func NewStore(f Fetcher) *Store {
	return &Store{fetcher: f, sets: map[Level]*Dataset{}}
}

// Get：已加载则直接返回，否则加载
// 约束：加载失败不缓存，下次调用重试
func (s *Store) Get(ctx context.Context, level Level) (*Dataset, error) {
	if level != LevelDepartment && level != LevelCity {
		return nil, ErrUnknownLevel
	}
	s.mu.RLock()
	ds := s.sets[level]
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}
	ch := s.sf.DoChan(string(level), func() (any, error) {
		return s.load(context.WithoutCancel(ctx), level)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Dataset), nil
	}
}

func (s *Store) load(ctx context.Context, level Level) (*Dataset, error) {
	s.mu.RLock()
	ds := s.sets[level]
	s.mu.RUnlock()
	if ds != nil {
		return ds, nil
	}
	start := time.Now()
	log := logger.Component("geo")
	data, err := s.fetcher.Fetch(ctx, level)
	if err != nil {
		log.Error("geo_load_failed", "level", level, "err", err)
		return nil, err
	}
	fc, err := Decode(data)
	if err != nil {
		log.Error("geo_decode_failed", "level", level, "err", err)
		return nil, err
	}
	ds = newDataset(level, fc)
	props := ds.Prepare()

	s.mu.Lock()
	s.sets[level] = ds
	s.mu.Unlock()
	log.Info("geo_load_ok", "level", level, "features", len(fc.Features),
		"dept_prop", props.Department, "city_prop", props.City,
		"duration_ms", time.Since(start).Milliseconds())
	return ds, nil
}

// Reload：丢弃已加载的数据集；识别结果随之重置，下次 Get 重新加载
func (s *Store) Reload(level Level) {
	s.mu.Lock()
	delete(s.sets, level)
	s.mu.Unlock()
}

// Preload：并发加载多个层级，任一失败即返回
func (s *Store) Preload(ctx context.Context, levels ...Level) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range levels {
		l := l
		g.Go(func() error {
			_, err := s.Get(gctx, l)
			return err
		})
	}
	return g.Wait()
}
