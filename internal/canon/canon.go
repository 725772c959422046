// 包 canon：地区名称规范化
// 背景：销售表、边界数据与筛选参数对同一地区的写法各不相同（大小写、重音、标点、行政前缀、历史别名），
// 聚合与着色都依赖同一套键，因此所有比较都必须经过本包。
package canon

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	// CapitalDistrict：首都特区的规范键
	CapitalDistrict = "bogota dc"
	// CapitalSurrounding：包围首都特区的省（部门）
	CapitalSurrounding = "cundinamarca"
	// CapitalDisplay：首都特区的展示名称
	CapitalDisplay = "Bogotá D.C."
	// KeySep：复合键分隔符 city__department
	KeySep = "__"
)

// 被替换为空格的标点子集；连字符保留
var punct = strings.NewReplacer(
	".", " ", ",", " ", "(", " ", ")", " ",
	"'", " ", "\"", " ", "’", " ", "‘", " ", "“", " ", "”", " ",
	"–", "-", "—", "-",
)

var prefixes = []string{
	"departamento del ",
	"departamento de ",
	"dpto del ",
	"dpto de ",
	"municipio de ",
	"ciudad de ",
}

var suffixes = []string{
	" departamento",
	" depto",
}

// stripDiacritics：NFD 分解后去掉组合附加符号再 NFC 合成
// 约束：transform.Chain 有内部状态，每次调用新建
func stripDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Base：小写、去重音、标点换空格、压缩空白
// 不做前缀剥离与别名映射；用于品类字段与表头名称
func Base(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		return ""
	}
	s = stripDiacritics(s)
	s = punct.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// Canonicalize：地区名称的规范键
// 约束：幂等；前后缀剥离重复执行直到不再变化，别名目标本身即为不动点
func Canonicalize(raw string) string {
	s := Base(raw)
	for {
		next := stripAffixes(s)
		if next == s {
			break
		}
		s = next
	}
	if a, ok := aliases[s]; ok {
		return a
	}
	return s
}

func stripAffixes(s string) string {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) && len(s) > len(p) {
			return strings.TrimSpace(s[len(p):])
		}
	}
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) && len(s) > len(suf) {
			return strings.TrimSpace(s[:len(s)-len(suf)])
		}
	}
	return s
}

// IsCapitalDistrict：键是否为首都特区的已登记写法之一
func IsCapitalDistrict(key string) bool {
	_, ok := capitalSpellings[key]
	return ok
}

// DepartmentForCity：城市所属部门键；首都特区城市强制归入特区自身
func DepartmentForCity(cityKey, deptKey string) string {
	if IsCapitalDistrict(cityKey) {
		return CapitalDistrict
	}
	return deptKey
}

// CompositeKey：city__department
func CompositeKey(cityKey, deptKey string) string {
	return cityKey + KeySep + deptKey
}

// SplitCompositeKey：CompositeKey 的逆操作；无分隔符时部门为空
func SplitCompositeKey(key string) (city, dept string) {
	if i := strings.Index(key, KeySep); i >= 0 {
		return key[:i], key[i+len(KeySep):]
	}
	return key, ""
}
