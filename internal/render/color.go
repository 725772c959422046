package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// NoDataColor：没有销售或未匹配地区的中性色
const NoDataColor = "#9ca3af"

// 色阶：比例上界与颜色
var scale = []struct {
	upTo  float64
	color string
}{
	{0.15, "#1e3a8a"},
	{0.35, "#3b82f6"},
	{0.55, "#6366f1"},
	{0.75, "#8b5cf6"},
	{0.9, "#a855f7"},
}

const topColor = "#c084fc"

// ColorScale：value/max 映射到色阶；value ≤ 0 为中性色，max 至少按 1 处理
func ColorScale(value, max float64) string {
	if value <= 0 || math.IsNaN(value) {
		return NoDataColor
	}
	r := math.Max(0, math.Min(1, value/math.Max(1, max)))
	for _, s := range scale {
		if r <= s.upTo {
			return s.color
		}
	}
	return topColor
}

// Style：单个多边形的绘制样式
type Style struct {
	FillColor   string
	Color       string
	Weight      float64
	Opacity     float64
	FillOpacity float64
}

// FillStyle：默认描边下的填充样式
func FillStyle(fill string) Style {
	return Style{FillColor: fill, Color: "#0f172a", Weight: 0.9, Opacity: 1, FillOpacity: 0.92}
}

// LegendEntry：图例中的一档
type LegendEntry struct {
	From  float64
	To    float64
	Label string
	Color string
}

// Legend：色阶图例
type Legend struct {
	Title   string
	Max     float64
	Entries []LegendEntry
}

var legendStops = []float64{0, 0.15, 0.35, 0.55, 0.75, 0.9, 1}

// NewLegend：按分档上界取色，最后一档标记为 "90%+"
func NewLegend(max float64, title string) Legend {
	if max <= 0 {
		max = 1
	}
	lg := Legend{Title: title, Max: max}
	for i := 0; i < len(legendStops)-1; i++ {
		from, to := legendStops[i], legendStops[i+1]
		label := fmt.Sprintf("%d%%–%d%%", int(math.Round(from*100)), int(math.Round(to*100)))
		if to >= 1 {
			label = fmt.Sprintf("%d%%+", int(math.Round(from*100)))
		}
		lg.Entries = append(lg.Entries, LegendEntry{From: from, To: to, Label: label, Color: ColorScale(to*max, max)})
	}
	return lg
}

// LegendTitle：按层级的图例标题
func LegendTitle(city bool) string {
	if city {
		return "Ventas por ciudad (M COP)"
	}
	return "Ventas por departamento (M COP)"
}

// FormatMillions：以百万 COP 展示，如 "$1.234 M"、"$12,5 M"
// 约束：es-CO 格式，千分位为 "."、小数点为 ","；绝对值小于 100 时最多一位小数；五位及以上整数才分组
func FormatMillions(n float64) string {
	v := n / 1e6
	sign := ""
	if v < 0 {
		sign = "-"
	}
	abs := math.Abs(v)
	dec := 0
	if abs < 100 {
		dec = 1
	}
	s := strconv.FormatFloat(abs, 'f', dec, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	frac = strings.TrimRight(frac, "0")
	if len(intPart) >= 5 {
		intPart = group(intPart)
	}
	if frac != "" {
		intPart += "," + frac
	}
	return sign + "$" + intPart + " M"
}

func group(digits string) string {
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
