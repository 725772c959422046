package sales

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"dashboard-ventas/internal/logger"
)

// Source：按顺序流式遍历交易记录
// 约束：fn 返回错误时立即停止并原样返回；实现需响应 ctx 取消
type Source interface {
	Each(ctx context.Context, fn func(Record) error) error
}

// Snapshot：只读的内存记录集
type Snapshot struct {
	Records  []Record
	LoadedAt time.Time
}

func (s *Snapshot) Each(ctx context.Context, fn func(Record) error) error {
	for i, r := range s.Records {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

func (s *Snapshot) Len() int { return len(s.Records) }

// Collect：把数据源完整读入内存
func Collect(ctx context.Context, src Source) (*Snapshot, error) {
	snap := &Snapshot{}
	err := src.Each(ctx, func(r Record) error {
		snap.Records = append(snap.Records, r)
		return nil
	})
	if err != nil {
		return nil, err
	}
	snap.LoadedAt = time.Now()
	return snap, nil
}

// Chain：按顺序尝试多个数据源，第一个产出记录的源生效
// 约束：某个源已产出部分记录后出错时不再回退，直接返回错误
type Chain struct {
	list []Source
}

func NewChain(list ...Source) *Chain {
	return &Chain{list: list}
}

func (c *Chain) Each(ctx context.Context, fn func(Record) error) error {
	var lastErr error
	for i, s := range c.list {
		if s == nil {
			continue
		}
		n := 0
		err := s.Each(ctx, func(r Record) error {
			n++
			return fn(r)
		})
		if n > 0 {
			return err
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.L().Warn("sales_source_fallback", "index", i, "err", err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return lastErr
	}
	return ErrNoData
}

// Holder：记录只加载一次，之后只读共享
// 背景：并发的首次请求共享同一次加载；Reload 原子替换快照，读路径不加锁
type Holder struct {
	src  Source
	snap atomic.Pointer[Snapshot]
	sf   singleflight.Group
}

func NewHolder(src Source) *Holder {
	return &Holder{src: src}
}

// Snapshot：返回已加载快照，首次调用时加载
func (h *Holder) Snapshot(ctx context.Context) (*Snapshot, error) {
	if s := h.snap.Load(); s != nil {
		return s, nil
	}
	return h.load(ctx, false)
}

// Reload：重新读取数据源并替换快照
func (h *Holder) Reload(ctx context.Context) (*Snapshot, error) {
	return h.load(ctx, true)
}

func (h *Holder) load(ctx context.Context, force bool) (*Snapshot, error) {
	ch := h.sf.DoChan("load", func() (any, error) {
		if !force {
			if s := h.snap.Load(); s != nil {
				return s, nil
			}
		}
		start := time.Now()
		// 共享加载不随单个调用方取消
		s, err := Collect(context.WithoutCancel(ctx), h.src)
		if err != nil {
			logger.L().Error("sales_load_failed", "err", err)
			return nil, err
		}
		if s.Len() == 0 {
			return nil, ErrNoData
		}
		h.snap.Store(s)
		logger.L().Info("sales_load_ok", "rows", s.Len(), "duration_ms", time.Since(start).Milliseconds())
		return s, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*Snapshot), nil
	}
}

// Each：Holder 本身也是 Source，遍历当前快照
func (h *Holder) Each(ctx context.Context, fn func(Record) error) error {
	s, err := h.Snapshot(ctx)
	if err != nil {
		return err
	}
	return s.Each(ctx, fn)
}

// Loaded：快照是否已就绪
func (h *Holder) Loaded() (int, bool) {
	s := h.snap.Load()
	if s == nil {
		return 0, false
	}
	return s.Len(), true
}

// IsNoData：便于调用方区分"没有数据"与其它错误
func IsNoData(err error) bool { return errors.Is(err, ErrNoData) }
