package mapview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-ventas/internal/geo"
	"dashboard-ventas/internal/render"
	"dashboard-ventas/internal/sales"
)

type staticFetcher map[geo.Level][]byte

func (s staticFetcher) Fetch(_ context.Context, level geo.Level) ([]byte, error) {
	b, ok := s[level]
	if !ok {
		return nil, errors.New("no polygons")
	}
	return b, nil
}

func polygons(t *testing.T, props ...map[string]any) []byte {
	t.Helper()
	fc := geojson.NewFeatureCollection()
	for i, p := range props {
		x := float64(i)
		f := geojson.NewFeature(orb.Polygon{orb.Ring{{x, 0}, {x + 1, 0}, {x + 1, 1}, {x, 1}, {x, 0}}})
		for k, v := range p {
			f.Properties[k] = v
		}
		fc.Append(f)
	}
	b, err := fc.MarshalJSON()
	require.NoError(t, err)
	return b
}

func fixtures(t *testing.T) staticFetcher {
	return staticFetcher{
		geo.LevelDepartment: polygons(t,
			map[string]any{"NAME_1": "Antioquia"},
			map[string]any{"NAME_1": "Meta"},
			map[string]any{"NAME_1": "Nariño"},
			map[string]any{"NAME_1": "Valle del Cauca"},
		),
		geo.LevelCity: polygons(t,
			map[string]any{"GID_2": "COL.1.1_1", "NAME_1": "Antioquia", "NAME_2": "Medellín"},
			map[string]any{"GID_2": "COL.1.2_1", "NAME_1": "Antioquia", "NAME_2": "Envigado"},
			map[string]any{"GID_2": "COL.2.1_1", "NAME_1": "Valle del Cauca", "NAME_2": "Cali"},
			map[string]any{"GID_2": "COL.3.1_1", "NAME_1": "Nariño", "NAME_2": "Pasto"},
		),
	}
}

// fakeSource：按层级与品牌返回固定聚合
type fakeSource struct {
	err   error
	calls atomic.Int32
}

func (s *fakeSource) Aggregates(_ context.Context, level geo.Level, f sales.Filters) ([]sales.Row, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	if level == geo.LevelCity {
		return []sales.Row{
			{Departamento: "Antioquia", Ciudad: "Medellín", Total: 80_000_000},
			{Departamento: "Valle del Cauca", Ciudad: "Cali", Total: 20_000_000},
		}, nil
	}
	if f[sales.FieldMarca] == "ACME" {
		return []sales.Row{{Departamento: "Meta", Total: 10_000_000}}, nil
	}
	return []sales.Row{
		{Departamento: "Antioquia", Total: 120_000_000},
		{Departamento: "META", Total: 60_000_000},
		{Departamento: "Amazonas", Total: 5_000_000},
	}, nil
}

func newController(t *testing.T, f geo.Fetcher, src AggregateSource) *Controller {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	loop := render.NewLoop(16 * time.Millisecond)
	go loop.Run(ctx)
	return NewController(geo.NewStore(f), src, render.NewRenderer(loop, render.DefaultOptions()), render.NewView())
}

func shapeBy(t *testing.T, l *render.Layer, key, name string) *render.Shape {
	t.Helper()
	for _, s := range l.Shapes {
		if s.Props[key] == name {
			return s
		}
	}
	t.Fatalf("no shape %s=%s", key, name)
	return nil
}

func TestRenderDepartments(t *testing.T) {
	c := newController(t, fixtures(t), &fakeSource{})
	var progress []float64
	out, err := c.Render(context.Background(), geo.LevelDepartment, nil, func(p float64) { progress = append(progress, p) })
	require.NoError(t, err)
	assert.False(t, out.Cancelled)
	assert.False(t, out.Restyled)
	assert.NotEmpty(t, out.CycleID)
	assert.Equal(t, 3, out.Rows)
	assert.Equal(t, 120_000_000.0, out.Max)
	assert.Equal(t, 2, out.Report.Matched)
	assert.Equal(t, 3, out.Report.Total)
	assert.Equal(t, []string{"amazonas"}, out.Report.Missing)
	require.NotEmpty(t, progress)
	assert.Equal(t, 1.0, progress[len(progress)-1])

	l := c.View().Layer()
	require.NotNil(t, l)
	require.Equal(t, 4, l.Len())
	ant := shapeBy(t, l, "NAME_1", "Antioquia")
	assert.Equal(t, "#c084fc", ant.Style.FillColor)
	assert.Equal(t, "Antioquia: $120 M", ant.Title)
	assert.Equal(t, "#6366f1", shapeBy(t, l, "NAME_1", "Meta").Style.FillColor)
	assert.Equal(t, render.NoDataColor, shapeBy(t, l, "NAME_1", "Nariño").Style.FillColor)
	assert.Equal(t, "Ventas por departamento (M COP)", c.View().Legend().Title)

	b, err := c.View().Export()
	require.NoError(t, err)
	var fc struct {
		Features []struct {
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(b, &fc))
	require.Len(t, fc.Features, 4)
	for _, f := range fc.Features {
		assert.NotContains(t, f.Properties, geo.PropCanonDept)
		assert.Contains(t, f.Properties, "fill")
	}
}

func TestRenderRestylesSameLevel(t *testing.T) {
	c := newController(t, fixtures(t), &fakeSource{})
	ctx := context.Background()
	_, err := c.Render(ctx, geo.LevelDepartment, nil, nil)
	require.NoError(t, err)
	first := c.View().Layer()

	out, err := c.Render(ctx, geo.LevelDepartment, sales.Filters{sales.FieldMarca: "ACME"}, nil)
	require.NoError(t, err)
	assert.True(t, out.Restyled)
	assert.Same(t, first, c.View().Layer())
	assert.Equal(t, "#c084fc", shapeBy(t, first, "NAME_1", "Meta").Style.FillColor)
	assert.Equal(t, render.NoDataColor, shapeBy(t, first, "NAME_1", "Antioquia").Style.FillColor)

	out, err = c.Render(ctx, geo.LevelCity, nil, nil)
	require.NoError(t, err)
	assert.False(t, out.Restyled)
	l := c.View().Layer()
	assert.Equal(t, geo.LevelCity, l.Level)
	assert.Equal(t, 2, out.Report.Matched)
	med := shapeBy(t, l, "NAME_2", "Medellín")
	assert.Equal(t, "Medellín (Antioquia): $80 M", med.Title)
	assert.Equal(t, 80_000_000.0, med.Value)
	assert.Equal(t, "Ventas por ciudad (M COP)", c.View().Legend().Title)
}

func TestRenderAggregateFailureDrawsEmpty(t *testing.T) {
	c := newController(t, fixtures(t), &fakeSource{err: errors.New("boom")})
	out, err := c.Render(context.Background(), geo.LevelDepartment, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, out.Rows)
	assert.Zero(t, out.Report.Total)
	for _, s := range c.View().Layer().Shapes {
		assert.Equal(t, render.NoDataColor, s.Style.FillColor)
	}
}

func TestRenderPolygonFailureIsFatal(t *testing.T) {
	f := fixtures(t)
	delete(f, geo.LevelCity)
	c := newController(t, f, &fakeSource{})
	out, err := c.Render(context.Background(), geo.LevelCity, nil, nil)
	assert.Error(t, err)
	assert.Nil(t, out)
	assert.Nil(t, c.View().Layer())
}

// blockingSource：第一次调用阻塞到被取消
type blockingSource struct {
	fakeSource
	entered chan struct{}
	n       atomic.Int32
}

func (b *blockingSource) Aggregates(ctx context.Context, level geo.Level, f sales.Filters) ([]sales.Row, error) {
	if b.n.Add(1) == 1 {
		close(b.entered)
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return b.fakeSource.Aggregates(ctx, level, f)
}

func TestNewCycleSupersedesOld(t *testing.T) {
	src := &blockingSource{entered: make(chan struct{})}
	c := newController(t, fixtures(t), src)

	type result struct {
		out *Outcome
		err error
	}
	ch := make(chan result, 1)
	go func() {
		out, err := c.Render(context.Background(), geo.LevelDepartment, nil, nil)
		ch <- result{out, err}
	}()
	<-src.entered

	out, err := c.Render(context.Background(), geo.LevelDepartment, nil, nil)
	require.NoError(t, err)
	assert.False(t, out.Cancelled)

	old := <-ch
	require.NoError(t, old.err)
	assert.True(t, old.out.Cancelled)
	assert.Equal(t, 4, c.View().Layer().Len())
}

func TestRenderCallerCancelled(t *testing.T) {
	c := newController(t, fixtures(t), &fakeSource{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out, err := c.Render(ctx, geo.LevelDepartment, nil, nil)
	require.NoError(t, err)
	assert.True(t, out.Cancelled)
	assert.Nil(t, c.View().Layer())
}

func TestHTTPSource(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := hits.Add(1)
		assert.Equal(t, "/api/ventas/mapa", r.URL.Path)
		if r.URL.Query().Get("marca") == "ROTA" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if n == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode([]sales.Row{{
			Departamento: "Antioquia",
			Ciudad:       "Medellín",
			Total:        42,
			ShapeID:      fmt.Sprintf("q-%s", r.URL.Query().Get("group_by")),
		}})
	}))
	defer srv.Close()

	s := NewHTTPSource(srv.URL+"/api/", time.Second)
	s.BaseDelay = time.Millisecond
	ctx := context.Background()

	assert.Equal(t, srv.URL+"/api/ventas/mapa?departamento=Meta&group_by=departamento",
		s.URL(geo.LevelDepartment, sales.Filters{"departamento": "Meta", "marca": ""}))

	rows, err := s.Aggregates(ctx, geo.LevelCity, nil)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "q-ciudad", rows[0].ShapeID)
	assert.Equal(t, int32(2), hits.Load())

	_, err = s.Aggregates(ctx, geo.LevelCity, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(2), hits.Load(), "served from cache")

	_, err = s.Aggregates(ctx, geo.LevelCity, sales.Filters{"marca": "ROTA"})
	assert.Error(t, err)
	assert.Equal(t, int32(3), hits.Load(), "4xx is not retried")
}
