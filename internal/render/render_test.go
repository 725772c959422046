package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dashboard-ventas/internal/geo"
)

func squares(n int) []*geojson.Feature {
	out := make([]*geojson.Feature, n)
	for i := range out {
		x := float64(i % 40)
		y := float64(i / 40)
		f := geojson.NewFeature(orb.Polygon{orb.Ring{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}})
		f.Properties["name"] = fmt.Sprintf("zona %d", i)
		f.Properties[geo.PropCanonDept] = "meta"
		out[i] = f
	}
	return out
}

// manualScheduler：测试中手动推进时间片
type manualScheduler struct {
	work Work
	h    *Handle
}

func (m *manualScheduler) Submit(w Work) *Handle {
	m.work, m.h = w, newHandle()
	return m.h
}

func (m *manualScheduler) step(d Deadline) bool {
	done := m.work(d)
	if m.h.isCancelled() {
		m.h.finish(ErrCancelled)
		return true
	}
	if done {
		m.h.finish(nil)
	}
	return done
}

type fakeDeadline struct {
	remaining time.Duration
	h         *Handle
}

func (d fakeDeadline) TimeRemaining() time.Duration { return d.remaining }
func (d fakeDeadline) Cancelled() bool              { return d.h.isCancelled() }

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func constStyle(*geojson.Feature) Style { return FillStyle(NoDataColor) }

func TestRenderChunkedGrowsWithSlack(t *testing.T) {
	ms := &manualScheduler{}
	clk := &fakeClock{t: time.Unix(0, 0)}
	r := NewRenderer(ms, DefaultOptions())
	r.now = clk.now

	var progress []float64
	c := r.RenderChunked(context.Background(), geo.LevelDepartment, squares(1000), constStyle, nil,
		func(p float64) { progress = append(progress, p) })
	assert.True(t, ms.step(fakeDeadline{remaining: 16 * time.Millisecond, h: ms.h}))

	layer, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000, layer.Len())
	assert.Equal(t, []int{80, 96, 115, 138, 160, 160, 160, 91}, c.Batches())
	require.Len(t, progress, 8)
	assert.Equal(t, 1.0, progress[len(progress)-1])
	assert.Equal(t, StateDone, c.State())
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{40, 25}}, layer.Bound)
}

func TestRenderChunkedShrinksUnderPressure(t *testing.T) {
	ms := &manualScheduler{}
	clk := &fakeClock{t: time.Unix(0, 0)}
	r := NewRenderer(ms, DefaultOptions())
	r.now = clk.now

	// 每个要素耗时 1ms，空闲只剩 5ms：每片只画一批，批量逐步缩小到下限
	style := func(f *geojson.Feature) Style {
		clk.advance(time.Millisecond)
		return FillStyle(NoDataColor)
	}
	var progress []float64
	c := r.RenderChunked(context.Background(), geo.LevelCity, squares(200), style, nil,
		func(p float64) { progress = append(progress, p) })

	slices := 0
	for !ms.step(fakeDeadline{remaining: 5 * time.Millisecond, h: ms.h}) {
		slices++
		require.Less(t, slices, 20)
		assert.Equal(t, StatePainting, c.State())
	}
	_, err := c.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{60, 45, 33, 24, 20, 18}, c.Batches())
	for i := 1; i < len(progress); i++ {
		assert.Greater(t, progress[i], progress[i-1])
	}
	assert.Equal(t, 1.0, progress[len(progress)-1])
}

func TestRenderChunkedCancelDiscardsPartialLayer(t *testing.T) {
	ms := &manualScheduler{}
	clk := &fakeClock{t: time.Unix(0, 0)}
	r := NewRenderer(ms, DefaultOptions())
	r.now = clk.now
	style := func(f *geojson.Feature) Style {
		clk.advance(time.Millisecond)
		return FillStyle(NoDataColor)
	}

	v := NewView()
	prev := newLayer(geo.LevelDepartment, 0)
	v.Commit(prev)

	c := r.RenderChunked(context.Background(), geo.LevelDepartment, squares(1000), style, nil, nil)
	assert.Equal(t, StateScheduled, c.State())
	assert.False(t, ms.step(fakeDeadline{remaining: 16 * time.Millisecond, h: ms.h}))
	c.Cancel()
	assert.True(t, ms.step(fakeDeadline{remaining: 16 * time.Millisecond, h: ms.h}))

	layer, err := c.Wait(context.Background())
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Nil(t, layer)
	assert.Equal(t, StateCancelled, c.State())
	assert.Equal(t, []int{80}, c.Batches())
	assert.Same(t, prev, v.Layer())
}

func TestLoopRendersAndCancels(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := NewLoop(16 * time.Millisecond)
	go loop.Run(ctx)
	r := NewRenderer(loop, DefaultOptions())

	t.Run("complete", func(t *testing.T) {
		c := r.RenderChunked(ctx, geo.LevelCity, squares(500), constStyle, func(f *geojson.Feature, s *Shape) {
			s.Title = f.Properties["name"].(string)
		}, nil)
		layer, err := c.Wait(ctx)
		require.NoError(t, err)
		require.Equal(t, 500, layer.Len())
		assert.Equal(t, "zona 0", layer.Shapes[0].Title)
		assert.Equal(t, geo.LevelCity, layer.Level)
	})

	t.Run("cancel", func(t *testing.T) {
		gate := make(chan struct{})
		var once sync.Once
		style := func(f *geojson.Feature) Style {
			once.Do(func() { <-gate })
			return FillStyle(NoDataColor)
		}
		c := r.RenderChunked(ctx, geo.LevelCity, squares(500), style, nil, nil)
		c.Cancel()
		close(gate)
		layer, err := c.Wait(ctx)
		assert.True(t, errors.Is(err, ErrCancelled))
		assert.Nil(t, layer)
	})

	t.Run("context", func(t *testing.T) {
		cctx, ccancel := context.WithCancel(ctx)
		gate := make(chan struct{})
		var once sync.Once
		style := func(f *geojson.Feature) Style {
			once.Do(func() { <-gate })
			return FillStyle(NoDataColor)
		}
		c := r.RenderChunked(cctx, geo.LevelCity, squares(500), style, nil, nil)
		ccancel()
		close(gate)
		_, err := c.Wait(context.Background())
		assert.ErrorIs(t, err, ErrCancelled)
	})
}

func TestLoopRoundRobin(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	var mu sync.Mutex
	var order []string
	mk := func(name string) Work {
		n := 0
		return func(Deadline) bool {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			n++
			return n == 3
		}
	}
	a := loop.Submit(mk("a"))
	b := loop.Submit(mk("b"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go loop.Run(ctx)
	<-a.Done()
	<-b.Done()
	assert.NoError(t, a.Err())
	assert.Equal(t, []string{"a", "b", "a", "b", "a", "b"}, order)
}

func TestLoopShutdownCancelsPending(t *testing.T) {
	loop := NewLoop(time.Millisecond)
	h := loop.Submit(func(Deadline) bool { return false })
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		loop.Run(ctx)
		close(done)
	}()
	cancel()
	<-h.Done()
	<-done
	assert.ErrorIs(t, h.Err(), ErrCancelled)
}

func TestViewRestyleAndExport(t *testing.T) {
	ms := &manualScheduler{}
	r := NewRenderer(ms, DefaultOptions())
	feats := squares(3)
	feats[0].ID = "COL-50"
	c := r.RenderChunked(context.Background(), geo.LevelDepartment, feats, constStyle, nil, nil)
	ms.step(fakeDeadline{remaining: 16 * time.Millisecond, h: ms.h})
	layer, err := c.Wait(context.Background())
	require.NoError(t, err)

	v := NewView()
	assert.False(t, v.Restyle(geo.LevelDepartment, constStyle, nil), "nothing displayed")
	v.Commit(layer)
	lvl, ok := v.Level()
	require.True(t, ok)
	assert.Equal(t, geo.LevelDepartment, lvl)

	assert.False(t, v.Restyle(geo.LevelCity, constStyle, nil), "level changed")
	red := func(*geojson.Feature) Style { return FillStyle("#c084fc") }
	require.True(t, v.Restyle(geo.LevelDepartment, red, func(f *geojson.Feature, s *Shape) { s.Value = 42 }))
	assert.Same(t, layer, v.Layer())
	assert.Equal(t, "#c084fc", layer.Shapes[2].Style.FillColor)

	b, err := v.Export()
	require.NoError(t, err)
	var out struct {
		Features []struct {
			ID         any            `json:"id"`
			Properties map[string]any `json:"properties"`
		} `json:"features"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	require.Len(t, out.Features, 3)
	p := out.Features[0].Properties
	assert.Equal(t, "COL-50", out.Features[0].ID)
	assert.Equal(t, "#c084fc", p["fill"])
	assert.Equal(t, "#0f172a", p["stroke"])
	assert.Equal(t, 0.92, p["fill-opacity"])
	assert.Equal(t, 42.0, p["value"])
	assert.Equal(t, "zona 0", p["name"])
	assert.NotContains(t, p, geo.PropCanonDept)

	v.Clear()
	assert.Nil(t, v.Layer())
}

func TestDisplayGeometryDoesNotMutateSource(t *testing.T) {
	ring := orb.Ring{{0, 0}, {1, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}
	src := orb.Polygon{ring}
	out := displayGeometry(src, 0.1)
	require.IsType(t, orb.Polygon{}, out)
	assert.Less(t, len(out.(orb.Polygon)[0]), 6)
	assert.Len(t, src[0], 6)
	assert.Equal(t, src, displayGeometry(src, 0))
}
