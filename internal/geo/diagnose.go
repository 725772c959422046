package geo

import (
	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/canon"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
	"dashboard-ventas/internal/sales"
)

// missingSample：报告中保留的未命中键样例数
const missingSample = 20

// Report：聚合键与要素键的连接情况
type Report struct {
	Level   Level
	Matched int
	Total   int
	Missing []string
	Ratio   float64
}

// Diagnose：统计聚合键中有多少能在已标注要素上找到
// 城市层没有部门名的要素按城市名连接，聚合键的城市部分命中即计入
func Diagnose(features []*geojson.Feature, keys KeySet, level Level) Report {
	present := KeySet{}
	cityOnly := KeySet{}
	for _, f := range features {
		k := FeatureKey(f, level)
		if k == "" {
			continue
		}
		if level == LevelCity {
			if d, _ := f.Properties[PropCanonDept].(string); d == "" {
				c, _ := f.Properties[PropCanonCity].(string)
				cityOnly[c] = struct{}{}
				continue
			}
		}
		present[k] = struct{}{}
	}
	return intersect(keys, present, cityOnly, level)
}

// DiagnoseShapeIDs：聚合行携带 shapeID 时按要素标识比对
func DiagnoseShapeIDs(features []*geojson.Feature, ids KeySet, level Level) Report {
	present := KeySet{}
	for _, f := range features {
		if id := featureID(f); id != "" {
			present[id] = struct{}{}
		}
	}
	return intersect(ids, present, nil, level)
}

func intersect(keys, present, cityOnly KeySet, level Level) Report {
	rep := Report{Level: level, Total: len(keys)}
	for _, k := range keys.Sorted() {
		hit := present.Has(k)
		if !hit && len(cityOnly) > 0 {
			c, _ := canon.SplitCompositeKey(k)
			hit = cityOnly.Has(c)
		}
		if hit {
			rep.Matched++
		} else if len(rep.Missing) < missingSample {
			rep.Missing = append(rep.Missing, k)
		}
	}
	if rep.Total > 0 {
		rep.Ratio = float64(rep.Matched) / float64(rep.Total)
	}
	metrics.CoverageRatio.WithLabelValues(string(level)).Set(rep.Ratio)
	return rep
}

// Reconcile：用聚合行校正城市列并诊断连接
// 背景：城市层先按覆盖率优化；优化后仍零命中且已有识别列时，强制重标注，
// 再尝试排名最高的备选列，备选列命中更多才保留，否则恢复原列
func (d *Dataset) Reconcile(rows []sales.Row) Report {
	keys := AggregateKeys(rows, d.Level)
	d.mu.Lock()
	defer d.mu.Unlock()
	feats := d.Collection.Features
	log := logger.Component("geo")

	if d.Level == LevelCity {
		if best, switched := optimizeKeys(feats, keys, d.props); switched {
			d.props.City = best
			Annotate(feats, d.Level, d.props)
		}
	}
	rep := Diagnose(feats, keys, d.Level)
	if d.Level != LevelCity || rep.Matched > 0 || rep.Total == 0 || d.props.City == "" {
		return rep
	}

	log.Warn("geo_coverage_zero", "prop", d.props.City, "keys", rep.Total, "missing", rep.Missing)
	Annotate(feats, d.Level, d.props)
	if rep = Diagnose(feats, keys, d.Level); rep.Matched > 0 {
		return rep
	}
	prev := d.props
	for _, c := range Rank(feats, keys, prev) {
		if c.Prop == prev.City || c.Score < 0 {
			continue
		}
		alt := Props{Department: prev.Department, City: c.Prop}
		Annotate(feats, d.Level, alt)
		if r := Diagnose(feats, keys, d.Level); r.Matched > rep.Matched {
			log.Info("geo_coverage_alternate", "from", prev.City, "to", c.Prop, "matched", r.Matched)
			d.props = alt
			return r
		}
		break
	}
	Annotate(feats, d.Level, prev)
	rep = Diagnose(feats, keys, d.Level)
	log.Warn("geo_coverage_failed", "prop", prev.City, "keys", rep.Total)
	return rep
}
