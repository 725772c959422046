package geo

import (
	"testing"

	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
)

func canonProps(f *geojson.Feature) [3]any {
	return [3]any{f.Properties[PropCanonDept], f.Properties[PropCanonCity], f.Properties[PropCanonDeptForCity]}
}

func TestAnnotateIdempotent(t *testing.T) {
	feats := []*geojson.Feature{
		feat(map[string]any{"NAME_1": "Cundinamarca", "NAME_2": "Bogotá, D.C."}),
		feat(map[string]any{"NAME_1": "Departamento de Antioquia", "NAME_2": "Municipio de Medellín"}),
	}
	props := Props{Department: "NAME_1", City: "NAME_2"}

	Annotate(feats, LevelCity, props)
	first := [][3]any{canonProps(feats[0]), canonProps(feats[1])}
	Annotate(feats, LevelCity, props)
	assert.Equal(t, first, [][3]any{canonProps(feats[0]), canonProps(feats[1])})

	assert.Equal(t, [3]any{"cundinamarca", "bogota dc", "bogota dc"}, first[0])
	assert.Equal(t, [3]any{"antioquia", "medellin", "antioquia"}, first[1])
}

func TestAnnotateFallbackNames(t *testing.T) {
	f := feat(map[string]any{"NOMBRE_DPT": "ATLÁNTICO", "NOMBRE_MPIO": "BARRANQUILLA", "OBJECTID": 7.0})
	Annotate([]*geojson.Feature{f}, LevelCity, Props{})
	assert.Equal(t, [3]any{"atlantico", "barranquilla", "atlantico"}, canonProps(f))

	// 识别列在该要素上缺失时回退到历史列名
	g := feat(map[string]any{"DPTO_CNMBR": "Meta", "MPIO_CNMBR": "Villavicencio"})
	Annotate([]*geojson.Feature{g}, LevelCity, Props{Department: "NAME_1", City: "NAME_2"})
	assert.Equal(t, "villavicencio__meta", FeatureKey(g, LevelCity))
}

func TestDepartmentNameSkipsCityColumn(t *testing.T) {
	f := feat(map[string]any{"shapeName": "Medellín", "shapeISO": "CO-ANT"})
	props := Props{Department: "shapeName", City: "shapeName"}
	assert.Equal(t, "Medellín", CityName(f, props))
	assert.Equal(t, "", DepartmentName(f, props, LevelCity))
	assert.Equal(t, "Medellín", DepartmentName(f, props, LevelDepartment))

	Annotate([]*geojson.Feature{f}, LevelCity, props)
	assert.Equal(t, "medellin__", FeatureKey(f, LevelCity))
}

func TestFeatureKeyUnannotated(t *testing.T) {
	f := feat(nil)
	assert.Equal(t, "", FeatureKey(f, LevelCity))
	assert.Equal(t, "", FeatureKey(f, LevelDepartment))
}
