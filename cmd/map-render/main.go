// 地图渲染工具：执行一次完整的视图周期（边界加载、聚合、连接校正、分片绘制），输出带样式的 GeoJSON
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dashboard-ventas/internal/config"
	"dashboard-ventas/internal/geo"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/mapview"
	"dashboard-ventas/internal/render"
	"dashboard-ventas/internal/sales"
)

func main() {
	l := logger.Setup()
	var cfg config.MapRender
	if err := config.Parse(&cfg); err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	level, err := geo.ParseLevel(cfg.Level)
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loop := render.NewLoop(cfg.Render.FrameBudget)
	go loop.Run(ctx)
	renderer := render.NewRenderer(loop, render.Options{
		MinBatch:     cfg.Render.MinBatch,
		MaxBatch:     cfg.Render.MaxBatch,
		InitialBatch: cfg.Render.InitialBatch,
		SliceBudget:  cfg.Render.SliceBudget,
		Tolerance:    cfg.Geo.SimplifyTolerance,
	})

	polygons := geo.NewStore(fetcher(cfg.Geo))
	// 两个层级并行预热；失败的层级在 Render 中再次报告
	if err := polygons.Preload(ctx, geo.LevelDepartment, geo.LevelCity); err != nil {
		l.Warn("geo_preload_failed", "err", err)
	}

	ctrl := mapview.NewController(polygons, source(cfg), renderer, render.NewView())
	last := -1
	progress := func(p float64) {
		if pct := int(p * 100); pct/10 != last/10 {
			last = pct
			fmt.Fprintf(os.Stderr, "\rrender %3d%%", pct)
		}
	}
	out, err := ctrl.Render(ctx, level, sales.Filters(cfg.Filters), progress)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		l.Error("map_render_failed", "err", err)
		os.Exit(1)
	}
	if out.Cancelled {
		l.Warn("map_render_cancelled", "cycle", out.CycleID)
		os.Exit(130)
	}
	b, err := ctrl.View().Export()
	if err != nil {
		l.Error("map_export_failed", "err", err)
		os.Exit(1)
	}
	if err := os.WriteFile(cfg.Out, b, 0o644); err != nil {
		l.Error("map_write_failed", "path", cfg.Out, "err", err)
		os.Exit(1)
	}
	l.Info("map_render_ok",
		"cycle", out.CycleID,
		"level", out.Level,
		"out", cfg.Out,
		"matched", out.Report.Matched,
		"keys", out.Report.Total,
		"coverage", out.Report.Ratio,
		"max", render.FormatMillions(out.Max),
	)
	for _, k := range out.Report.Missing {
		l.Debug("map_missing_key", "key", k)
	}
}

// fetcher：磁盘缓存 → 远程 URL（带重试）→ 本地文件
func fetcher(c config.Geo) geo.Fetcher {
	var chain geo.FallbackFetcher
	urls := map[geo.Level]string{}
	if c.URLDept != "" {
		urls[geo.LevelDepartment] = c.URLDept
	}
	if c.URLCity != "" {
		urls[geo.LevelCity] = c.URLCity
	}
	if len(urls) > 0 {
		h := geo.NewHTTPFetcher(urls, c.FetchTimeout)
		if c.FetchAttempts > 0 {
			h.Attempts = c.FetchAttempts
		}
		chain = append(chain, h)
	}
	paths := map[geo.Level]string{}
	if c.PathDept != "" {
		paths[geo.LevelDepartment] = c.PathDept
	}
	if c.PathCity != "" {
		paths[geo.LevelCity] = c.PathCity
	}
	if len(paths) > 0 {
		chain = append(chain, geo.FileFetcher{Paths: paths})
	}
	if c.CacheDir == "" {
		return chain
	}
	return geo.CachedFetcher{Cache: geo.NewDiskCache(c.CacheDir, c.CacheVersion, c.CacheTTL), Upstream: chain}
}

// source：配置了 MAP_API_URL 时走 HTTP，否则直接聚合本地 CSV
func source(c config.MapRender) mapview.AggregateSource {
	if c.APIURL != "" {
		return mapview.NewHTTPSource(c.APIURL, 30*time.Second)
	}
	return mapview.LocalSource{Service: sales.NewService(sales.NewHolder(sales.CSVFile{Path: c.CSVPath}))}
}
