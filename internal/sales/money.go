package sales

import (
	"strings"

	"github.com/cockroachdb/apd/v3"
)

// 十进制运算上下文：金额累加不经过浮点
var decCtx = apd.BaseContext.WithPrecision(34)

// Amount：精确金额
type Amount struct {
	v apd.Decimal
}

// Add：返回 a+b
func (a Amount) Add(b Amount) Amount {
	var out Amount
	_, _ = decCtx.Add(&out.v, &a.v, &b.v)
	return out
}

// Cmp：与 b 比较，返回 -1/0/1
func (a Amount) Cmp(b Amount) int {
	return a.v.Cmp(&b.v)
}

func (a Amount) IsZero() bool { return a.v.IsZero() }

// Float64：用于 JSON 输出与着色
func (a Amount) Float64() float64 {
	f, err := a.v.Float64()
	if err != nil {
		return 0
	}
	return f
}

func (a Amount) String() string { return a.v.Text('f') }

// AmountFromFloat：由浮点构造（查询参数、测试）
func AmountFromFloat(f float64) Amount {
	var out Amount
	if _, err := out.v.SetFloat64(f); err != nil {
		return Amount{}
	}
	return out
}

// ParseAmount：宽松解析金额字符串，无法解析时返回 0
func ParseAmount(s string) float64 {
	return ParseAmountDecimal(s).Float64()
}

// ParseAmountDecimal：宽松解析金额字符串
// 规则：仅保留数字、'.'、','、前导 '-'；两种分隔符同时出现时靠右者为小数点；
// 只出现一种时第一个即小数点，读到同种的第二个分隔符为止（"1.000.000" 为 1，"1,234,567" 为 1.234）。
// 约束：单一分隔符的判读沿用历史数据的口径，改动会改变既有汇总结果
func ParseAmountDecimal(s string) Amount {
	a, _ := parseAmount(s)
	return a
}

// parseAmount：第二个返回值表示输入是否可解析；空串视为可解析的 0
func parseAmount(s string) (Amount, bool) {
	if strings.TrimSpace(s) == "" {
		return Amount{}, true
	}
	num, ok := normalizeAmount(s)
	if !ok {
		return Amount{}, false
	}
	var out Amount
	if _, _, err := out.v.SetString(num); err != nil {
		return Amount{}, false
	}
	return out, true
}

func normalizeAmount(s string) (string, bool) {
	var b strings.Builder
	neg := false
	seenDigit := false
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			seenDigit = true
			b.WriteRune(r)
		case r == '.' || r == ',':
			b.WriteRune(r)
		case r == '-':
			// 负号只允许出现在数字之前
			if seenDigit || neg || b.Len() > 0 {
				return "", false
			}
			neg = true
		}
	}
	if !seenDigit {
		return "", false
	}
	raw := b.String()
	lastDot := strings.LastIndexByte(raw, '.')
	lastComma := strings.LastIndexByte(raw, ',')
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			raw = strings.ReplaceAll(raw, ".", "")
			raw = strings.Replace(raw, ",", ".", 1)
		} else {
			raw = strings.ReplaceAll(raw, ",", "")
		}
		// 小数点右侧仍出现分隔符，如 "1,2.3,4"
		if strings.Count(raw, ".") > 1 || strings.ContainsRune(raw, ',') {
			return "", false
		}
	case lastComma >= 0:
		raw = strings.Replace(untilSecond(raw, ','), ",", ".", 1)
	case lastDot >= 0:
		raw = untilSecond(raw, '.')
	}
	if strings.HasPrefix(raw, ".") {
		raw = "0" + raw
	}
	if strings.HasSuffix(raw, ".") {
		raw = strings.TrimSuffix(raw, ".")
	}
	if neg {
		raw = "-" + raw
	}
	return raw, true
}

// untilSecond：截断到 sep 第二次出现之前
func untilSecond(s string, sep byte) string {
	i := strings.IndexByte(s, sep)
	if i < 0 {
		return s
	}
	if j := strings.IndexByte(s[i+1:], sep); j >= 0 {
		return s[:i+1+j]
	}
	return s
}
