// 包 geo：行政边界数据集（部门 ADM1 / 城市 ADM2）的加载、名称属性识别与规范键标注
package geo

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb/geojson"
)

// Level：边界层级
type Level string

const (
	LevelDepartment Level = "departamento"
	LevelCity       Level = "ciudad"
)

// ParseLevel：未知值返回 ErrUnknownLevel
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDepartment:
		return LevelDepartment, nil
	case LevelCity:
		return LevelCity, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLevel, s)
}

// cacheKey：持久缓存中的条目名
func (l Level) cacheKey() string {
	if l == LevelDepartment {
		return "geo:dept"
	}
	return "geo:city"
}

var (
	ErrEmptyDataset = errors.New("geo: dataset has no features")
	ErrUnknownLevel = errors.New("geo: unknown level")
)

// 标注写入的派生属性名
const (
	PropCanonDept        = "__canon_dpto"
	PropCanonCity        = "__canon_city"
	PropCanonDeptForCity = "__canon_dpto_for_city"
)

// Props：某个数据集上识别出的名称属性；空串表示未识别
type Props struct {
	Department string
	City       string
}

// Dataset：一个已加载的边界数据集及其识别上下文
// 约束：标注、优化与诊断会改写共享要素的属性包，必须持有 mu
type Dataset struct {
	Level      Level
	Collection *geojson.FeatureCollection
	LoadedAt   time.Time

	mu    sync.Mutex
	props Props
}

func newDataset(level Level, fc *geojson.FeatureCollection) *Dataset {
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
	}
	return &Dataset{Level: level, Collection: fc, LoadedAt: time.Now()}
}

// Features：要素切片（共享，不复制）
func (d *Dataset) Features() []*geojson.Feature { return d.Collection.Features }

// Props：当前识别结果的副本
func (d *Dataset) Props() Props {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.props
}

// Read：持锁读取要素与识别结果，与重新标注互斥
func (d *Dataset) Read(fn func(features []*geojson.Feature, props Props)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(d.Collection.Features, d.props)
}

// propString：属性值的字符串形式；nil 与空白视为缺失
func propString(p geojson.Properties, key string) (string, bool) {
	v, ok := p[key]
	if !ok || v == nil {
		return "", false
	}
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case map[string]any, []any:
		return "", false
	default:
		s = fmt.Sprint(t)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// pick：按顺序返回第一个存在的属性值及其属性名
func pick(p geojson.Properties, keys []string, skip string) (string, string) {
	for _, k := range keys {
		if k == skip {
			continue
		}
		if s, ok := propString(p, k); ok {
			return s, k
		}
	}
	return "", ""
}

// sortedKeys：非派生属性名，字典序
func sortedKeys(p geojson.Properties) []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		if strings.HasPrefix(k, "__") {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// orderedKeys：按首次出现顺序收集前 n 个要素的属性名；同一要素内按字典序
func orderedKeys(features []*geojson.Feature, n int) []string {
	if n > len(features) {
		n = len(features)
	}
	seen := map[string]struct{}{}
	var out []string
	for _, f := range features[:n] {
		for _, k := range sortedKeys(f.Properties) {
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}
