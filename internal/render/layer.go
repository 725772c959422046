package render

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"

	"dashboard-ventas/internal/geo"
)

// Shape：图层中已绘制的一个要素
type Shape struct {
	Feature  *geojson.Feature
	Geometry orb.Geometry
	Style    Style
	Title    string
	Value    float64
	// Props：导出用的属性快照；为空时读取 Feature.Properties
	Props geojson.Properties
}

// Layer：某一层级的一组已绘制要素
type Layer struct {
	Level  geo.Level
	Shapes []*Shape
	Bound  orb.Bound
	empty  bool
}

func newLayer(level geo.Level, capacity int) *Layer {
	return &Layer{Level: level, Shapes: make([]*Shape, 0, capacity), empty: true}
}

func (l *Layer) add(s *Shape) {
	l.Shapes = append(l.Shapes, s)
	if s.Geometry == nil {
		return
	}
	b := s.Geometry.Bound()
	if l.empty {
		l.Bound, l.empty = b, false
		return
	}
	l.Bound = l.Bound.Union(b)
}

// Len：已绘制的要素数
func (l *Layer) Len() int { return len(l.Shapes) }

// displayGeometry：tolerance > 0 时对副本做 Douglas-Peucker 平滑，原要素几何不变
func displayGeometry(g orb.Geometry, tolerance float64) orb.Geometry {
	if g == nil || tolerance <= 0 {
		return g
	}
	return simplify.DouglasPeucker(tolerance).Simplify(orb.Clone(g))
}
