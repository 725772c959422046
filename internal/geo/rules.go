package geo

import "regexp"

// Rule：按属性名匹配的加减分规则
type Rule struct {
	Name    string
	Pattern *regexp.Regexp
	Weight  float64
}

// RuleSet：某一层级的名称属性评分规则
// 背景：不同来源（geoBoundaries、GADM、DANE/IGAC 导出）的列名差异很大，规则以数据表形式维护，便于按来源增补
type RuleSet struct {
	// Priority：已知的名称列，命中加 PriorityWeight
	Priority       []string
	PriorityWeight float64
	// Rules：名称提示（加分）与不可用列（减分）
	Rules []Rule

	UniqWeight     float64
	PresenceWeight float64
	AlphaWeight    float64

	MinPresence float64
	MinAlpha    float64
	SampleSize  int
}

var disallowRule = Rule{
	Name:    "disallow",
	Pattern: regexp.MustCompile(`(?i)(objectid|shapeid|^id$|_id$|^gid$|code|cod|c_digo)`),
	Weight:  -2.0,
}

// looksLikeDept：典型的部门列名；城市层识别结果命中时需要纠正
var looksLikeDept = regexp.MustCompile(`(?i)shapeName|NAME_1|name_1|NOMBRE_DPT|NOMBRE_DEP|DEPARTAMEN|DPTO_CNMBR|DEPARTAMENTO|dpto|dpt`)

// cityOverrides：城市层纠正时按顺序查找的列名
var cityOverrides = []string{
	"NAME_2", "name_2", "NOMBRE_MPIO", "MPIO_CNMBR", "NOM_MPIO",
	"municipio", "MUNICIPIO", "ciudad", "CIUDAD", "NOMBRE_CIU",
}

// 标注时的回退列名（识别失败或要素缺少识别列时使用）
var (
	deptFallback = []string{
		"shapeName", "NAME_1", "name_1",
		"NOMBRE_DPT", "NOMBRE_DEP", "DEPARTAMEN", "DPTO_CNMBR",
		"departamento", "DEPARTAMENTO", "dpto", "dpt",
		"NAME", "name",
	}
	cityFallback = []string{
		"NAME_2", "name_2",
		"NOMBRE_MPIO", "MPIO_CNMBR", "NOM_MPIO",
		"municipio", "MUNICIPIO",
		"ciudad", "CIUDAD", "NOMBRE_CIU",
		"shapeName", "NAME", "name",
	}
)

func baseRuleSet() RuleSet {
	return RuleSet{
		PriorityWeight: 2.5,
		UniqWeight:     2.0,
		PresenceWeight: 1.0,
		AlphaWeight:    0.5,
		MinPresence:    0.5,
		MinAlpha:       0.35,
		SampleSize:     1000,
	}
}

// DepartmentRules：部门层默认规则
func DepartmentRules() RuleSet {
	rs := baseRuleSet()
	rs.Priority = []string{
		"NAME_1", "name_1", "NOMBRE_DPT", "NOMBRE_DEP", "DEPARTAMEN", "DPTO_CNMBR",
		"departamento", "DEPARTAMENTO", "dpto", "dpt", "shapeName", "NAME", "name",
	}
	rs.Rules = []Rule{
		{Name: "hint", Pattern: regexp.MustCompile(`(?i)(depart|dpto|name_1|adm1|prov|estado|shape|name)`), Weight: 1.5},
		disallowRule,
	}
	return rs
}

// CityRules：城市层默认规则
func CityRules() RuleSet {
	rs := baseRuleSet()
	rs.Priority = []string{
		"NAME_2", "name_2", "NOMBRE_MPIO", "MPIO_CNMBR", "NOM_MPIO",
		"municipio", "MUNICIPIO", "ciudad", "CIUDAD", "NOMBRE_CIU",
		"shapeName", "NAME", "name",
	}
	rs.Rules = []Rule{
		{Name: "hint", Pattern: regexp.MustCompile(`(?i)(ciud|mpio|municip|name_2|adm2|local|town|city|shape|name)`), Weight: 1.5},
		disallowRule,
	}
	return rs
}

// RulesFor：层级对应的默认规则
func RulesFor(l Level) RuleSet {
	if l == LevelDepartment {
		return DepartmentRules()
	}
	return CityRules()
}

func (rs RuleSet) isPriority(key string) bool {
	for _, p := range rs.Priority {
		if p == key {
			return true
		}
	}
	return false
}

// nameBonus：规则加减分之和
func (rs RuleSet) nameBonus(key string) float64 {
	var s float64
	if rs.isPriority(key) {
		s += rs.PriorityWeight
	}
	for _, r := range rs.Rules {
		if r.Pattern.MatchString(key) {
			s += r.Weight
		}
	}
	return s
}

func isDisallowed(key string) bool {
	return disallowRule.Pattern.MatchString(key)
}
