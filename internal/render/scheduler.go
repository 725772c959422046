// 包 render：把大量边界要素分片绘制成图层
// 背景：绘制在单个调度协程上按时间片推进，每片之间让出，取消只在片与片之间生效
package render

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCancelled：任务在完成前被取消
var ErrCancelled = errors.New("render: cancelled")

// Deadline：当前时间片的剩余空闲时间与取消标记
type Deadline interface {
	TimeRemaining() time.Duration
	Cancelled() bool
}

// Work：执行一个时间片；返回 true 表示任务结束（完成或已观察到取消）
type Work func(Deadline) bool

// Scheduler：提交工作单元，返回可取消的句柄
type Scheduler interface {
	Submit(Work) *Handle
}

// Handle：已提交任务的取消与完成通知
type Handle struct {
	mu        sync.Mutex
	cancelled bool
	done      chan struct{}
	err       error
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// Cancel：协作式取消；已结束的任务无影响
func (h *Handle) Cancel() {
	h.mu.Lock()
	h.cancelled = true
	h.mu.Unlock()
}

func (h *Handle) isCancelled() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cancelled
}

// Done：任务结束时关闭
func (h *Handle) Done() <-chan struct{} { return h.done }

// Err：结束后为 nil 或 ErrCancelled；未结束时为 nil
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *Handle) finish(err error) {
	h.mu.Lock()
	h.err = err
	h.mu.Unlock()
	close(h.done)
}

type task struct {
	work   Work
	handle *Handle
}

type sliceDeadline struct {
	end time.Time
	now func() time.Time
	h   *Handle
}

func (d sliceDeadline) TimeRemaining() time.Duration {
	if r := d.end.Sub(d.now()); r > 0 {
		return r
	}
	return 0
}

func (d sliceDeadline) Cancelled() bool { return d.h.isCancelled() }

// Loop：单协程协作式调度器
// 约束：同一时刻只执行一个时间片；未完成的任务排到队尾，多个任务轮转推进
type Loop struct {
	frame time.Duration
	now   func() time.Time

	mu    sync.Mutex
	queue []*task
	wake  chan struct{}
}

// NewLoop：frame 为每个时间片的空闲预算
func NewLoop(frame time.Duration) *Loop {
	if frame <= 0 {
		frame = 16 * time.Millisecond
	}
	return &Loop{frame: frame, now: time.Now, wake: make(chan struct{}, 1)}
}

func (l *Loop) Submit(w Work) *Handle {
	h := newHandle()
	l.mu.Lock()
	l.queue = append(l.queue, &task{work: w, handle: h})
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
	return h
}

func (l *Loop) pop() *task {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	t := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return t
}

func (l *Loop) push(t *task) {
	l.mu.Lock()
	l.queue = append(l.queue, t)
	l.mu.Unlock()
}

// Run：阻塞运行直到 ctx 结束；退出时仍在队列中的任务以 ErrCancelled 结束
func (l *Loop) Run(ctx context.Context) {
	defer l.drain()
	for {
		t := l.pop()
		if t == nil {
			select {
			case <-ctx.Done():
				return
			case <-l.wake:
				continue
			}
		}
		if ctx.Err() != nil {
			t.handle.finish(ErrCancelled)
			return
		}
		if t.handle.isCancelled() {
			t.handle.finish(ErrCancelled)
			continue
		}
		d := sliceDeadline{end: l.now().Add(l.frame), now: l.now, h: t.handle}
		finished := t.work(d)
		switch {
		case t.handle.isCancelled():
			t.handle.finish(ErrCancelled)
		case finished:
			t.handle.finish(nil)
		default:
			l.push(t)
		}
	}
}

func (l *Loop) drain() {
	for t := l.pop(); t != nil; t = l.pop() {
		t.handle.finish(ErrCancelled)
	}
}
