// 包 ingest：每周的离线数据刷新任务，运行在服务进程内的后台协程
package ingest

import (
	"context"
	"time"

	"dashboard-ventas/internal/logger"
)

// nextWeekdayAt：now 之后第一个 weekday 的 hour 整点
func nextWeekdayAt(now time.Time, weekday time.Weekday, hour int) time.Time {
	for i := 0; i <= 7; i++ {
		d := now.AddDate(0, 0, i)
		if d.Weekday() != weekday {
			continue
		}
		t := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
		if t.After(now) {
			return t
		}
	}
	d := now.AddDate(0, 0, 7)
	return time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, now.Location())
}

// StartWeekly：每周 weekday 的 hour 点执行 job，直到 ctx 取消
// 约束：job 失败只记录日志，下一周期照常调度
func StartWeekly(ctx context.Context, loc *time.Location, weekday time.Weekday, hour int, job func(context.Context) error) {
	l := logger.L()
	if loc == nil {
		loc = time.Local
	}
	go func() {
		for {
			next := nextWeekdayAt(time.Now().In(loc), weekday, hour)
			l.Info("ingest_scheduled", "next", next)
			t := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			l.Info("ingest_start")
			if err := job(ctx); err != nil {
				l.Error("ingest_error", "err", err)
			} else {
				l.Info("ingest_refresh_done")
			}
		}
	}()
}
