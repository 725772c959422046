package geo

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// TopoJSON 拓扑：共享弧段 + 可选量化变换
type topology struct {
	Type      string                     `json:"type"`
	Transform *topoTransform             `json:"transform"`
	Arcs      [][][]float64              `json:"arcs"`
	Objects   map[string]json.RawMessage `json:"objects"`
}

type topoTransform struct {
	Scale     [2]float64 `json:"scale"`
	Translate [2]float64 `json:"translate"`
}

type topoGeometry struct {
	Type        string          `json:"type"`
	ID          any             `json:"id"`
	Properties  map[string]any  `json:"properties"`
	Arcs        json.RawMessage `json:"arcs"`
	Coordinates json.RawMessage `json:"coordinates"`
	Geometries  []topoGeometry  `json:"geometries"`
}

// decodeTopology：取名称字典序第一个对象转换为要素集
func decodeTopology(data []byte) (*geojson.FeatureCollection, error) {
	var t topology
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if len(t.Objects) == 0 {
		return nil, ErrEmptyDataset
	}
	names := make([]string, 0, len(t.Objects))
	for n := range t.Objects {
		names = append(names, n)
	}
	sort.Strings(names)
	var obj topoGeometry
	if err := json.Unmarshal(t.Objects[names[0]], &obj); err != nil {
		return nil, fmt.Errorf("object %q: %w", names[0], err)
	}

	arcs := t.decodeArcs()
	fc := geojson.NewFeatureCollection()
	if obj.Type == "GeometryCollection" {
		for i := range obj.Geometries {
			f, err := t.feature(&obj.Geometries[i], arcs)
			if err != nil {
				return nil, err
			}
			fc.Append(f)
		}
		return fc, nil
	}
	f, err := t.feature(&obj, arcs)
	if err != nil {
		return nil, err
	}
	fc.Append(f)
	return fc, nil
}

// decodeArcs：量化拓扑的弧段为差分编码，先累加再变换
func (t *topology) decodeArcs() [][]orb.Point {
	out := make([][]orb.Point, len(t.Arcs))
	for i, arc := range t.Arcs {
		pts := make([]orb.Point, 0, len(arc))
		var x, y float64
		for _, p := range arc {
			if len(p) < 2 {
				continue
			}
			if t.Transform == nil {
				pts = append(pts, orb.Point{p[0], p[1]})
				continue
			}
			x += p[0]
			y += p[1]
			pts = append(pts, orb.Point{
				x*t.Transform.Scale[0] + t.Transform.Translate[0],
				y*t.Transform.Scale[1] + t.Transform.Translate[1],
			})
		}
		out[i] = pts
	}
	return out
}

// position：点坐标不做差分，只做变换
func (t *topology) position(p []float64) orb.Point {
	if len(p) < 2 {
		return orb.Point{}
	}
	if t.Transform == nil {
		return orb.Point{p[0], p[1]}
	}
	return orb.Point{
		p[0]*t.Transform.Scale[0] + t.Transform.Translate[0],
		p[1]*t.Transform.Scale[1] + t.Transform.Translate[1],
	}
}

// line：按索引拼接弧段；负索引 ~i 表示反向使用第 i 条弧，相邻弧共享端点只保留一次
func line(arcs [][]orb.Point, idx []int) ([]orb.Point, error) {
	var out []orb.Point
	for _, i := range idx {
		j, rev := i, false
		if i < 0 {
			j, rev = ^i, true
		}
		if j >= len(arcs) {
			return nil, fmt.Errorf("arc index %d out of range", i)
		}
		arc := arcs[j]
		for k := range arc {
			p := arc[k]
			if rev {
				p = arc[len(arc)-1-k]
			}
			if k == 0 && len(out) > 0 {
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}

func polygon(arcs [][]orb.Point, rings [][]int) (orb.Polygon, error) {
	poly := make(orb.Polygon, 0, len(rings))
	for _, r := range rings {
		pts, err := line(arcs, r)
		if err != nil {
			return nil, err
		}
		poly = append(poly, orb.Ring(pts))
	}
	return poly, nil
}

func (t *topology) geometry(g *topoGeometry, arcs [][]orb.Point) (orb.Geometry, error) {
	switch g.Type {
	case "", "null":
		return nil, nil
	case "Point":
		var c []float64
		if err := json.Unmarshal(g.Coordinates, &c); err != nil {
			return nil, err
		}
		return t.position(c), nil
	case "MultiPoint":
		var cs [][]float64
		if err := json.Unmarshal(g.Coordinates, &cs); err != nil {
			return nil, err
		}
		mp := make(orb.MultiPoint, 0, len(cs))
		for _, c := range cs {
			mp = append(mp, t.position(c))
		}
		return mp, nil
	case "LineString":
		var idx []int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, err
		}
		pts, err := line(arcs, idx)
		return orb.LineString(pts), err
	case "MultiLineString":
		var idx [][]int
		if err := json.Unmarshal(g.Arcs, &idx); err != nil {
			return nil, err
		}
		mls := make(orb.MultiLineString, 0, len(idx))
		for _, l := range idx {
			pts, err := line(arcs, l)
			if err != nil {
				return nil, err
			}
			mls = append(mls, orb.LineString(pts))
		}
		return mls, nil
	case "Polygon":
		var rings [][]int
		if err := json.Unmarshal(g.Arcs, &rings); err != nil {
			return nil, err
		}
		return polygon(arcs, rings)
	case "MultiPolygon":
		var polys [][][]int
		if err := json.Unmarshal(g.Arcs, &polys); err != nil {
			return nil, err
		}
		mp := make(orb.MultiPolygon, 0, len(polys))
		for _, rings := range polys {
			p, err := polygon(arcs, rings)
			if err != nil {
				return nil, err
			}
			mp = append(mp, p)
		}
		return mp, nil
	case "GeometryCollection":
		coll := make(orb.Collection, 0, len(g.Geometries))
		for i := range g.Geometries {
			sub, err := t.geometry(&g.Geometries[i], arcs)
			if err != nil {
				return nil, err
			}
			if sub != nil {
				coll = append(coll, sub)
			}
		}
		return coll, nil
	}
	return nil, fmt.Errorf("unsupported topology geometry %q", g.Type)
}

func (t *topology) feature(g *topoGeometry, arcs [][]orb.Point) (*geojson.Feature, error) {
	geom, err := t.geometry(g, arcs)
	if err != nil {
		return nil, err
	}
	f := geojson.NewFeature(geom)
	f.ID = g.ID
	for k, v := range g.Properties {
		f.Properties[k] = v
	}
	return f, nil
}
