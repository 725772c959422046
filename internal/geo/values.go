package geo

import (
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/canon"
	"dashboard-ventas/internal/sales"
)

// Index：聚合值按要素可用的连接方式建立的查找表
// 城市层优先级：shapeID > 仅城市名（要素无部门时）> city__department；部门层按部门键
type Index struct {
	Level   Level
	byShape map[string]float64
	byKey   map[string]float64
	byCity  map[string]float64
	max     float64
}

// BuildIndex：累计聚合行；Max 为所有累计中的最大值
func BuildIndex(level Level, rows []sales.Row) *Index {
	ix := &Index{
		Level:   level,
		byShape: map[string]float64{},
		byKey:   map[string]float64{},
		byCity:  map[string]float64{},
	}
	add := func(m map[string]float64, k string, v float64) {
		m[k] += v
		if m[k] > ix.max {
			ix.max = m[k]
		}
	}
	for _, r := range rows {
		if level == LevelCity && r.ShapeID != "" {
			add(ix.byShape, r.ShapeID, r.Total)
			continue
		}
		d := canon.Canonicalize(r.Departamento)
		if level == LevelDepartment {
			add(ix.byKey, d, r.Total)
			continue
		}
		c := canon.Canonicalize(r.Ciudad)
		if c == "" {
			continue
		}
		add(ix.byKey, canon.CompositeKey(c, canon.DepartmentForCity(c, d)), r.Total)
		add(ix.byCity, c, r.Total)
	}
	return ix
}

// Max：着色归一化使用的最大值
func (ix *Index) Max() float64 { return ix.max }

// Value：要素对应的聚合值；未命中为 0
func (ix *Index) Value(f *geojson.Feature) float64 {
	d, _ := f.Properties[PropCanonDept].(string)
	if ix.Level == LevelDepartment {
		return ix.byKey[d]
	}
	if len(ix.byShape) > 0 {
		if id := featureID(f); id != "" {
			return ix.byShape[id]
		}
	}
	c, _ := f.Properties[PropCanonCity].(string)
	if c == "" {
		return 0
	}
	if d == "" {
		return ix.byCity[c]
	}
	return ix.byKey[FeatureKey(f, LevelCity)]
}

// Keys：部门键或复合键
func (ix *Index) Keys() KeySet {
	out := make(KeySet, len(ix.byKey))
	for k := range ix.byKey {
		out[k] = struct{}{}
	}
	return out
}

// ShapeIDs：聚合行携带的要素标识
func (ix *Index) ShapeIDs() KeySet {
	out := make(KeySet, len(ix.byShape))
	for k := range ix.byShape {
		out[k] = struct{}{}
	}
	return out
}

// Diagnose：有 shapeID 时按标识比对，否则按规范键比对
func (ix *Index) Diagnose(features []*geojson.Feature) Report {
	if ix.Level == LevelCity && len(ix.byShape) > 0 {
		return DiagnoseShapeIDs(features, ix.ShapeIDs(), ix.Level)
	}
	return Diagnose(features, ix.Keys(), ix.Level)
}

// featureID：shapeID / __shapeID 属性或要素 id
func featureID(f *geojson.Feature) string {
	for _, k := range []string{"shapeID", "__shapeID"} {
		if s, ok := propString(f.Properties, k); ok {
			return s
		}
	}
	switch id := f.ID.(type) {
	case nil:
		return ""
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return fmt.Sprint(id)
	}
}
