// 包 sales：销售交易记录、筛选与按地区聚合
package sales

import "errors"

// 可筛选字段（查询参数名即字段名）
const (
	FieldDepartamento   = "departamento"
	FieldCiudad         = "ciudad"
	FieldMacrocategoria = "macrocategoria"
	FieldCategoria      = "categoria"
	FieldSubcategoria   = "subcategoria"
	FieldSegmento       = "segmento"
	FieldMarca          = "marca"
)

// FilterFields：允许的筛选字段，顺序即筛选项接口的输出顺序
var FilterFields = []string{
	FieldDepartamento,
	FieldCiudad,
	FieldMacrocategoria,
	FieldCategoria,
	FieldSubcategoria,
	FieldSegmento,
	FieldMarca,
}

// ErrNoData：数据源没有任何记录
var ErrNoData = errors.New("sales: no records available")

// Record：一条原始交易记录；金额保留原始文本，聚合时再解析
type Record struct {
	Ciudad         string `json:"ciudad"`
	Departamento   string `json:"departamento"`
	Macrocategoria string `json:"macrocategoria"`
	Categoria      string `json:"categoria"`
	Subcategoria   string `json:"subcategoria"`
	Segmento       string `json:"segmento"`
	Marca          string `json:"marca"`
	Total          string `json:"total"`
	Cantidad       string `json:"cantidad"`
	Fecha          string `json:"fecha"`
	ShapeID        string `json:"shapeID,omitempty"`
}

// Field：按字段名取值；未知字段返回空串
func (r Record) Field(name string) string {
	switch name {
	case FieldDepartamento:
		return r.Departamento
	case FieldCiudad:
		return r.Ciudad
	case FieldMacrocategoria:
		return r.Macrocategoria
	case FieldCategoria:
		return r.Categoria
	case FieldSubcategoria:
		return r.Subcategoria
	case FieldSegmento:
		return r.Segmento
	case FieldMarca:
		return r.Marca
	}
	return ""
}
