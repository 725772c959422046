package render

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/geo"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
)

// State：分片任务的状态
type State int32

const (
	StateIdle State = iota
	StateScheduled
	StatePainting
	StateDone
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StatePainting:
		return "painting"
	case StateDone:
		return "done"
	case StateCancelled:
		return "cancelled"
	}
	return "unknown"
}

// 时间片内剩余空闲低于 lowIdle 时缩小批量
const (
	lowIdle    = 8 * time.Millisecond
	minBudget  = 8 * time.Millisecond
	idleMargin = 2 * time.Millisecond
	shrink     = 0.75
	grow       = 1.2
	slackRatio = 0.4
)

// Options：分片参数
type Options struct {
	MinBatch     int
	MaxBatch     int
	InitialBatch int
	SliceBudget  time.Duration
	// Tolerance：展示几何的平滑阈值，0 表示不平滑
	Tolerance float64
}

// DefaultOptions：批量 80，范围 [20,160]，单片预算 20ms
func DefaultOptions() Options {
	return Options{MinBatch: 20, MaxBatch: 160, InitialBatch: 80, SliceBudget: 20 * time.Millisecond}
}

func (o Options) normalized() Options {
	d := DefaultOptions()
	if o.MinBatch <= 0 {
		o.MinBatch = d.MinBatch
	}
	if o.MaxBatch < o.MinBatch {
		o.MaxBatch = max(o.MinBatch, d.MaxBatch)
	}
	if o.InitialBatch <= 0 {
		o.InitialBatch = d.InitialBatch
	}
	o.InitialBatch = min(o.MaxBatch, max(o.MinBatch, o.InitialBatch))
	if o.SliceBudget <= 0 {
		o.SliceBudget = d.SliceBudget
	}
	return o
}

// StyleFunc：要素的样式
type StyleFunc func(*geojson.Feature) Style

// EachFunc：要素加入图层时的回调（提示文本等）
type EachFunc func(*geojson.Feature, *Shape)

// ProgressFunc：每批之后的进度，范围 [0,1]
type ProgressFunc func(float64)

// Renderer：按自适应批量分片绘制要素
type Renderer struct {
	sched Scheduler
	opts  Options
	now   func() time.Time
}

func NewRenderer(s Scheduler, opts Options) *Renderer {
	return &Renderer{sched: s, opts: opts.normalized(), now: time.Now}
}

// Completion：一次分片绘制的结果句柄
type Completion struct {
	handle  *Handle
	layer   *Layer
	state   atomic.Int32
	batches []int
	aborted atomic.Bool
	stop    func() bool
}

func (c *Completion) cancelled() bool {
	return c.handle.Err() != nil || c.aborted.Load()
}

// State：当前状态
func (c *Completion) State() State { return State(c.state.Load()) }

// Cancel：请求取消；在下一个批次边界生效
func (c *Completion) Cancel() { c.handle.Cancel() }

// Batches：各批实际绘制的要素数（完成后读取）
func (c *Completion) Batches() []int {
	<-c.handle.Done()
	return c.batches
}

// Wait：等待结束；被取消时返回 ErrCancelled，部分构建的图层被丢弃
func (c *Completion) Wait(ctx context.Context) (*Layer, error) {
	select {
	case <-ctx.Done():
		c.Cancel()
		<-c.handle.Done()
	case <-c.handle.Done():
	}
	if c.stop != nil {
		c.stop()
	}
	if c.cancelled() {
		c.state.Store(int32(StateCancelled))
		return nil, ErrCancelled
	}
	c.state.Store(int32(StateDone))
	return c.layer, nil
}

// RenderChunked：提交分片绘制任务
// 约束：取消只在批次之间检查；ctx 结束等同于取消
func (r *Renderer) RenderChunked(ctx context.Context, level geo.Level, features []*geojson.Feature,
	style StyleFunc, onEach EachFunc, onProgress ProgressFunc) *Completion {
	c := &Completion{layer: newLayer(level, len(features))}
	c.state.Store(int32(StateIdle))
	opts := r.opts
	size := opts.InitialBatch
	i := 0
	n := len(features)

	work := func(d Deadline) bool {
		c.state.Store(int32(StatePainting))
		start := r.now()
		tr := d.TimeRemaining()
		if tr < lowIdle && size > opts.MinBatch {
			size = max(opts.MinBatch, int(float64(size)*shrink))
		}
		budget := min(opts.SliceBudget, max(minBudget, tr-idleMargin))

		for i < n {
			if d.Cancelled() || ctx.Err() != nil {
				c.aborted.Store(true)
				return true
			}
			end := min(i+size, n)
			for _, f := range features[i:end] {
				s := &Shape{Feature: f, Geometry: displayGeometry(f.Geometry, opts.Tolerance)}
				if style != nil {
					s.Style = style(f)
				}
				if onEach != nil {
					onEach(f, s)
				}
				c.layer.add(s)
			}
			c.batches = append(c.batches, end-i)
			metrics.RenderBatchesTotal.Inc()
			metrics.RenderBatchSize.Observe(float64(end - i))
			i = end
			if onProgress != nil {
				onProgress(float64(i) / float64(n))
			}
			elapsed := r.now().Sub(start)
			if elapsed >= budget || elapsed >= opts.SliceBudget {
				break
			}
			if float64(elapsed) < float64(budget)*slackRatio && size < opts.MaxBatch {
				size = min(opts.MaxBatch, int(float64(size)*grow))
			}
		}
		return i >= n
	}

	c.state.Store(int32(StateScheduled))
	c.handle = r.sched.Submit(work)
	c.stop = context.AfterFunc(ctx, c.handle.Cancel)
	go func() {
		<-c.handle.Done()
		if c.cancelled() {
			c.state.Store(int32(StateCancelled))
			metrics.RenderCancelledTotal.Inc()
			logger.Component("render").Debug("render_cancelled", "level", level, "drawn", c.layer.Len(), "total", n)
			return
		}
		c.state.Store(int32(StateDone))
	}()
	return c
}
