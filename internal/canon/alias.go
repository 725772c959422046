package canon

// 首都特区的登记写法（均为 Base 之后的形态）
var capitalSpellings = map[string]struct{}{
	"bogota":                  {},
	"bogota dc":               {},
	"bogota d c":              {},
	"bogota distrito capital": {},
	"santa fe de bogota":      {},
	"santafe de bogota":       {},
	"santa fe de bogota dc":   {},
	"santafe de bogota dc":    {},
	"santa fe de bogota d c":  {},
	"santafe de bogota d c":   {},
}

// 别名表：历史名称、港口城市的特区后缀、群岛部门的长名
// 约束：只读；目标值必须是 Canonicalize 的不动点
var aliases = buildAliases()

func buildAliases() map[string]string {
	m := map[string]string{
		"cartagena de indias":         "cartagena",
		"cartagena de indias d t y c": "cartagena",
		"cartagena d t y c":           "cartagena",
		"santa marta d t c h":         "santa marta",
		"santa marta dtch":            "santa marta",
		"barranquilla d e i p":        "barranquilla",
		"buenaventura d e":            "buenaventura",
		"san andres y providencia":    "san andres",
		"archipielago de san andres":  "san andres",

		"san andres providencia y santa catalina":                 "san andres",
		"archipielago de san andres providencia y santa catalina": "san andres",
	}
	for k := range capitalSpellings {
		m[k] = CapitalDistrict
	}
	return m
}
