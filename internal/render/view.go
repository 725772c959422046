package render

import (
	"strings"
	"sync"

	"github.com/paulmach/orb/geojson"

	"dashboard-ventas/internal/geo"
)

// View：当前展示的图层与图例
// 约束：图层只能整体替换（Commit）或整体重着色（Restyle），不会出现只展示一半的图层
type View struct {
	mu     sync.RWMutex
	layer  *Layer
	legend Legend
}

func NewView() *View { return &View{} }

// Layer：当前图层；未展示时为 nil
func (v *View) Layer() *Layer {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.layer
}

// Level：当前图层的层级
func (v *View) Level() (geo.Level, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.layer == nil {
		return "", false
	}
	return v.layer.Level, true
}

// Restyle：层级一致时只对已绘制的要素重新着色
// 返回 false 表示没有可复用的图层，调用方需要重新分片绘制
func (v *View) Restyle(level geo.Level, style StyleFunc, onEach EachFunc) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.layer == nil || v.layer.Level != level || v.layer.Len() == 0 {
		return false
	}
	for _, s := range v.layer.Shapes {
		s.Style = style(s.Feature)
		if onEach != nil {
			onEach(s.Feature, s)
		}
	}
	return true
}

// Commit：替换为一个完整绘制的图层
func (v *View) Commit(l *Layer) {
	v.mu.Lock()
	v.layer = l
	v.mu.Unlock()
}

// Clear：移除当前图层与图例
func (v *View) Clear() {
	v.mu.Lock()
	v.layer = nil
	v.legend = Legend{}
	v.mu.Unlock()
}

func (v *View) SetLegend(l Legend) {
	v.mu.Lock()
	v.legend = l
	v.mu.Unlock()
}

func (v *View) Legend() Legend {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.legend
}

// Export：带样式属性的 GeoJSON（fill / stroke / stroke-width / fill-opacity / value / title）
// 派生的 __ 前缀属性不导出
func (v *View) Export() ([]byte, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	fc := geojson.NewFeatureCollection()
	if v.layer != nil {
		for _, s := range v.layer.Shapes {
			f := geojson.NewFeature(s.Geometry)
			f.ID = s.Feature.ID
			props := s.Props
			if props == nil {
				props = s.Feature.Properties
			}
			for k, val := range props {
				if strings.HasPrefix(k, "__") {
					continue
				}
				f.Properties[k] = val
			}
			f.Properties["fill"] = s.Style.FillColor
			f.Properties["stroke"] = s.Style.Color
			f.Properties["stroke-width"] = s.Style.Weight
			f.Properties["fill-opacity"] = s.Style.FillOpacity
			f.Properties["value"] = s.Value
			f.Properties["title"] = s.Title
			fc.Append(f)
		}
	}
	return fc.MarshalJSON()
}
