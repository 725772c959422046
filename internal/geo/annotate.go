package geo

import (
	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/canon"
)

// cityName：城市展示名及其来源属性名
func cityName(f *geojson.Feature, props Props) (string, string) {
	if props.City != "" {
		if s, ok := propString(f.Properties, props.City); ok {
			return s, props.City
		}
	}
	return pick(f.Properties, cityFallback, "")
}

// CityName：城市展示名；优先识别出的列，其次历史列名
func CityName(f *geojson.Feature, props Props) string {
	s, _ := cityName(f, props)
	return s
}

// DepartmentName：部门展示名
// 约束：城市层数据集跳过提供城市名的那一列，缺少上级名称列时返回空串而不是重复城市名
func DepartmentName(f *geojson.Feature, props Props, level Level) string {
	skip := ""
	if level == LevelCity {
		_, skip = cityName(f, props)
	}
	if props.Department != "" && props.Department != skip {
		if s, ok := propString(f.Properties, props.Department); ok {
			return s
		}
	}
	s, _ := pick(f.Properties, deptFallback, skip)
	return s
}

// Annotate：写入 __canon_dpto / __canon_city / __canon_dpto_for_city
// 幂等覆盖，只改动要素的属性包
func Annotate(features []*geojson.Feature, level Level, props Props) {
	for _, f := range features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		d := canon.Canonicalize(DepartmentName(f, props, level))
		c := canon.Canonicalize(CityName(f, props))
		f.Properties[PropCanonDept] = d
		f.Properties[PropCanonCity] = c
		f.Properties[PropCanonDeptForCity] = canon.DepartmentForCity(c, d)
	}
}

// FeatureKey：要素在该层级上的连接键；未标注或无名称时为空
func FeatureKey(f *geojson.Feature, level Level) string {
	d, _ := f.Properties[PropCanonDept].(string)
	if level == LevelDepartment {
		return d
	}
	c, _ := f.Properties[PropCanonCity].(string)
	if c == "" {
		return ""
	}
	dfc, _ := f.Properties[PropCanonDeptForCity].(string)
	return canon.CompositeKey(c, dfc)
}

// Prepare：识别名称列并标注整个数据集；重新识别会丢弃之前的结果
func (d *Dataset) Prepare() Props {
	d.mu.Lock()
	defer d.mu.Unlock()
	feats := d.Collection.Features
	props := Props{
		Department: Detect(feats, LevelDepartment, DepartmentRules(), "").Property,
	}
	if d.Level == LevelCity {
		props.City = Detect(feats, LevelCity, CityRules(), props.Department).Property
	}
	d.props = props
	Annotate(feats, d.Level, props)
	return props
}

// SetProps：替换识别结果并重新标注
func (d *Dataset) SetProps(p Props) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.props = p
	Annotate(d.Collection.Features, d.Level, p)
}
