// Package mapview 把多边形数据集、销售聚合与分片渲染串成一次完整的地图刷新。
package mapview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"dashboard-ventas/internal/geo"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
	"dashboard-ventas/internal/render"
	"dashboard-ventas/internal/sales"
)

var tracer = otel.Tracer("dashboard-ventas/mapview")

// Outcome：一次刷新的结果
type Outcome struct {
	CycleID   string
	Level     geo.Level
	Cancelled bool
	Restyled  bool
	Rows      int
	Max       float64
	Report    geo.Report
	Legend    render.Legend
}

// Controller：地图刷新的唯一入口
// 约束：同一时刻只有一个有效周期；新周期开始即取消旧周期，旧周期的结果不会提交到视图
type Controller struct {
	store    *geo.Store
	source   AggregateSource
	renderer *render.Renderer
	view     *render.View

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

func NewController(store *geo.Store, source AggregateSource, renderer *render.Renderer, view *render.View) *Controller {
	return &Controller{store: store, source: source, renderer: renderer, view: view}
}

func (c *Controller) View() *render.View { return c.view }

// cell：要素在本周期的着色值、提示文本与导出属性快照
type cell struct {
	value float64
	title string
	props geojson.Properties
}

func (c *Controller) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	cctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	return cctx, c.gen
}

func (c *Controller) end(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

// Render：加载多边形、获取聚合、校正连接并绘制
// 多边形加载失败返回错误；聚合获取失败按空集合继续；被新周期取代时返回 Cancelled 且 error 为 nil
func (c *Controller) Render(ctx context.Context, level geo.Level, f sales.Filters, onProgress render.ProgressFunc) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{CycleID: uuid.NewString(), Level: level}
	log := logger.Component("mapview").With("cycle", out.CycleID, "level", level)

	cctx, gen := c.begin(ctx)
	defer c.end(gen)
	cctx, span := tracer.Start(cctx, "mapview.Render", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	span.SetAttributes(attribute.String("cycle", out.CycleID), attribute.String("level", string(level)))

	cancelled := func() (*Outcome, error) {
		span.SetAttributes(attribute.Bool("cancelled", true))
		log.Debug("map_cycle_cancelled")
		out.Cancelled = true
		return out, nil
	}

	ds, err := c.store.Get(cctx, level)
	if err != nil {
		if cctx.Err() != nil {
			return cancelled()
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "polygons unavailable")
		log.Error("map_polygons_failed", "err", err)
		return nil, err
	}

	rows, err := c.source.Aggregates(cctx, level, f)
	if err != nil {
		if cctx.Err() != nil {
			return cancelled()
		}
		log.Warn("map_aggregates_failed", "err", err)
		rows = nil
	}
	out.Rows = len(rows)

	rep := ds.Reconcile(rows)
	ix := geo.BuildIndex(level, rows)
	cells := c.snapshot(ds, ix, &rep)
	out.Report = rep
	out.Max = ix.Max()
	if cctx.Err() != nil {
		return cancelled()
	}

	scaleMax := out.Max
	if scaleMax <= 0 {
		scaleMax = 1
	}
	style := func(ft *geojson.Feature) render.Style {
		return render.FillStyle(render.ColorScale(cells[ft].value, scaleMax))
	}
	onEach := func(ft *geojson.Feature, s *render.Shape) {
		cl := cells[ft]
		s.Value = cl.value
		s.Title = cl.title + ": " + render.FormatMillions(cl.value)
		s.Props = cl.props
	}
	legend := render.NewLegend(out.Max, render.LegendTitle(level == geo.LevelCity))
	out.Legend = legend

	if c.restyle(gen, level, cells, style, onEach, legend) {
		out.Restyled = true
		metrics.RenderRestylesTotal.Inc()
		c.finish(log, out, start)
		return out, nil
	}

	comp := c.renderer.RenderChunked(cctx, level, ds.Features(), style, onEach, onProgress)
	layer, err := comp.Wait(cctx)
	if errors.Is(err, render.ErrCancelled) {
		return cancelled()
	}
	if err != nil {
		return nil, err
	}
	if !c.commit(gen, layer, legend) {
		return cancelled()
	}
	c.finish(log, out, start)
	return out, nil
}

// snapshot：在数据集锁内读取标注结果；渲染期间不再访问共享属性包
func (c *Controller) snapshot(ds *geo.Dataset, ix *geo.Index, rep *geo.Report) map[*geojson.Feature]cell {
	var cells map[*geojson.Feature]cell
	ds.Read(func(feats []*geojson.Feature, props geo.Props) {
		if len(ix.ShapeIDs()) > 0 {
			*rep = ix.Diagnose(feats)
		}
		cells = make(map[*geojson.Feature]cell, len(feats))
		for _, ft := range feats {
			cells[ft] = cell{
				value: ix.Value(ft),
				title: title(ft, props, ds.Level),
				props: exportProps(ft.Properties),
			}
		}
	})
	return cells
}

// restyle：层级一致且图层来自同一份数据集时只重新着色
func (c *Controller) restyle(gen uint64, level geo.Level, cells map[*geojson.Feature]cell,
	style render.StyleFunc, onEach render.EachFunc, legend render.Legend) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	l := c.view.Layer()
	if l == nil || l.Len() == 0 {
		return false
	}
	if _, ok := cells[l.Shapes[0].Feature]; !ok {
		return false
	}
	if !c.view.Restyle(level, style, onEach) {
		return false
	}
	c.view.SetLegend(legend)
	return true
}

// commit：只有仍是当前周期时才替换图层
func (c *Controller) commit(gen uint64, layer *render.Layer, legend render.Legend) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.view.Commit(layer)
	c.view.SetLegend(legend)
	return true
}

func (c *Controller) finish(log *slog.Logger, out *Outcome, start time.Time) {
	ms := float64(time.Since(start).Milliseconds())
	metrics.RenderDurationMs.WithLabelValues(string(out.Level)).Observe(ms)
	log.Info("map_cycle_done",
		"rows", out.Rows,
		"matched", out.Report.Matched,
		"total", out.Report.Total,
		"restyled", out.Restyled,
		"ms", ms,
	)
}

// title：部门层为部门名；城市层为 "城市 (部门)"
func title(f *geojson.Feature, props geo.Props, level geo.Level) string {
	dept := geo.DepartmentName(f, props, level)
	if level == geo.LevelDepartment {
		if dept == "" {
			return "Departamento"
		}
		return dept
	}
	city := geo.CityName(f, props)
	if city == "" {
		city = "Municipio"
	}
	if dept == "" {
		return city
	}
	return city + " (" + dept + ")"
}

func exportProps(p geojson.Properties) geojson.Properties {
	out := make(geojson.Properties, len(p))
	for k, v := range p {
		if !strings.HasPrefix(k, "__") {
			out[k] = v
		}
	}
	return out
}
