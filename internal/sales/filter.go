package sales

import (
	"net/url"
	"strings"

	"dashboard-ventas/internal/canon"
)

// GroupBy：聚合粒度
type GroupBy string

const (
	GroupDepartment GroupBy = "departamento"
	GroupCity       GroupBy = "ciudad"
)

// ParseGroupBy：只有 "departamento" 选择部门粒度，其余一律按城市
func ParseGroupBy(s string) GroupBy {
	if strings.EqualFold(strings.TrimSpace(s), string(GroupDepartment)) {
		return GroupDepartment
	}
	return GroupCity
}

// Filters：等值筛选，键为 FilterFields 之一，空值视为未设置
type Filters map[string]string

// FiltersFromQuery：从查询参数提取允许的筛选字段
func FiltersFromQuery(q url.Values) Filters {
	f := Filters{}
	for _, k := range FilterFields {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			f[k] = v
		}
	}
	return f
}

// matcher：预先规范化后的筛选条件
// 约束：部门/城市按 canon.Canonicalize 比较，品类字段按 canon.Base 比较
type matcher struct {
	dept       string
	deptIsCap  bool
	city       string
	categories map[string]string
}

func newMatcher(f Filters) matcher {
	m := matcher{categories: map[string]string{}}
	for k, v := range f {
		if strings.TrimSpace(v) == "" {
			continue
		}
		switch k {
		case FieldDepartamento:
			m.dept = canon.Canonicalize(v)
			m.deptIsCap = canon.IsCapitalDistrict(m.dept)
		case FieldCiudad:
			m.city = canon.Canonicalize(v)
		case FieldMacrocategoria, FieldCategoria, FieldSubcategoria, FieldSegmento, FieldMarca:
			m.categories[k] = canon.Base(v)
		}
	}
	return m
}

// regionKeys：记录的城市键与有效部门键（首都特区城市归入特区）
func regionKeys(r Record) (cityKey, deptKey string) {
	cityKey = canon.Canonicalize(r.Ciudad)
	deptKey = canon.DepartmentForCity(cityKey, canon.Canonicalize(r.Departamento))
	return cityKey, deptKey
}

func (m matcher) match(r Record) bool {
	cityKey, deptKey := regionKeys(r)
	if m.dept != "" {
		if m.deptIsCap {
			// 首都特区筛选：特区城市、特区部门或包围省的记录都计入
			rawDept := canon.Canonicalize(r.Departamento)
			if !canon.IsCapitalDistrict(cityKey) &&
				!canon.IsCapitalDistrict(rawDept) &&
				rawDept != canon.CapitalSurrounding {
				return false
			}
		} else if deptKey != m.dept {
			return false
		}
	}
	if m.city != "" && cityKey != m.city {
		return false
	}
	for k, want := range m.categories {
		if canon.Base(r.Field(k)) != want {
			return false
		}
	}
	return true
}

// Match：记录是否通过筛选
func (f Filters) Match(r Record) bool {
	return newMatcher(f).match(r)
}
