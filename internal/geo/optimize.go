package geo

import (
	"sort"

	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/canon"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
	"dashboard-ventas/internal/sales"
)

// optimizeSample：覆盖率评分最多扫描的要素数
const optimizeSample = 3000

// KeySet：规范键集合
type KeySet map[string]struct{}

func (s KeySet) Has(k string) bool {
	_, ok := s[k]
	return ok
}

// Sorted：字典序的键列表
func (s KeySet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Cities：复合键中的城市部分
func (s KeySet) Cities() KeySet {
	out := make(KeySet, len(s))
	for k := range s {
		if c, _ := canon.SplitCompositeKey(k); c != "" {
			out[c] = struct{}{}
		}
	}
	return out
}

// joinsCity：城市层要素能否连接到聚合键；要素没有部门名时只比对城市名，与着色取值一致
func joinsCity(keys, cities KeySet, c, d string) bool {
	if d == "" {
		return cities.Has(c)
	}
	return keys.Has(canon.CompositeKey(c, canon.DepartmentForCity(c, d)))
}

// AggregateKeys：聚合行对应的规范键
// 城市层为 city__deptForCity，部门层为部门键；空名称跳过
func AggregateKeys(rows []sales.Row, level Level) KeySet {
	keys := KeySet{}
	for _, r := range rows {
		d := canon.Canonicalize(r.Departamento)
		if level == LevelDepartment {
			if d != "" {
				keys[d] = struct{}{}
			}
			continue
		}
		c := canon.Canonicalize(r.Ciudad)
		if c == "" {
			continue
		}
		keys[canon.CompositeKey(c, canon.DepartmentForCity(c, d))] = struct{}{}
	}
	return keys
}

// Candidate：候选城市列及其覆盖率得分
type Candidate struct {
	Prop  string
	Score float64
}

// candidates：采样要素中出现过的属性名（首次出现顺序）加固定别名列表，去重保序
func candidates(features []*geojson.Feature) []string {
	seen := map[string]struct{}{}
	var out []string
	add := func(k string) {
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	for _, k := range orderedKeys(features, optimizeSample) {
		add(k)
	}
	for _, k := range cityFallback {
		add(k)
	}
	return out
}

// coverageScore：命中数 + 0.3·出现率 + 0.2·平均字母占比；门槛与识别器一致
// 部门名按"该列作为城市列"时的标注规则读取，得分与实际标注结果一致
func coverageScore(features []*geojson.Feature, prop string, keys, cities KeySet, props Props) float64 {
	if prop == "" || isDisallowed(prop) {
		return -1
	}
	n := min(len(features), optimizeSample)
	trial := Props{Department: props.Department, City: prop}
	var present, matches int
	var alpha float64
	for _, f := range features[:n] {
		s, ok := propString(f.Properties, prop)
		if !ok {
			continue
		}
		present++
		alpha += alphaRatio(s)
		c := canon.Canonicalize(s)
		if c == "" {
			continue
		}
		d := canon.Canonicalize(DepartmentName(f, trial, LevelCity))
		if joinsCity(keys, cities, c, d) {
			matches++
		}
	}
	if present == 0 {
		return -1
	}
	presence := float64(present) / float64(n)
	avgAlpha := alpha / float64(present)
	if presence < 0.5 || avgAlpha < 0.35 {
		return -1
	}
	return float64(matches) + 0.3*presence + 0.2*avgAlpha
}

// Rank：所有候选列按得分降序（稳定）
func Rank(features []*geojson.Feature, keys KeySet, props Props) []Candidate {
	list := candidates(features)
	cities := keys.Cities()
	out := make([]Candidate, 0, len(list))
	for _, k := range list {
		out = append(out, Candidate{Prop: k, Score: coverageScore(features, k, keys, cities, props)})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Optimize：按聚合覆盖率重新选择城市列
// 约束：只有严格更高的得分才替换当前列，绝不退化；没有聚合键时保持不变
func Optimize(features []*geojson.Feature, rows []sales.Row, props Props) (string, bool) {
	return optimizeKeys(features, AggregateKeys(rows, LevelCity), props)
}

func optimizeKeys(features []*geojson.Feature, keys KeySet, props Props) (string, bool) {
	if len(features) == 0 || len(keys) == 0 {
		return props.City, false
	}
	cities := keys.Cities()
	best, bestScore := props.City, -1.0
	if best != "" {
		bestScore = coverageScore(features, best, keys, cities, props)
	}
	for _, k := range candidates(features) {
		if sc := coverageScore(features, k, keys, cities, props); sc > bestScore {
			best, bestScore = k, sc
		}
	}
	if best == props.City {
		return best, false
	}
	logger.Component("geo").Info("geo_city_prop_coverage", "from", props.City, "to", best, "score", bestScore)
	metrics.OptimizerSwitchesTotal.WithLabelValues(string(LevelCity)).Inc()
	return best, true
}
