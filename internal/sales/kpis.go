package sales

import (
	"context"
	"math"
	"sort"
	"strings"
)

// KPIs：汇总指标
type KPIs struct {
	TotalVentas       float64 `json:"total_ventas"`
	UnidadesVendidas  int64   `json:"unidades_vendidas"`
	TicketPromedio    float64 `json:"ticket_promedio"`
	CategoriasActivas int     `json:"categorias_activas"`
	BaseTotalVentas   float64 `json:"base_total_ventas"`
	InversionTotal    float64 `json:"inversion_total"`
}

// Investment：投放金额（Meta / Google），参与销售额调整
type Investment struct {
	Meta   float64
	Google float64
}

func (i Investment) Total() float64 { return i.Meta + i.Google }

// ComputeKPIs：按筛选累计销售额、件数（每行四舍五入）与活跃品类数
// 约束：基础销售额为正时 total = base·(1 + inv/base)，否则 total = inv；件数为 0 时客单价为 0
func ComputeKPIs(ctx context.Context, src Source, f Filters, inv Investment) (*KPIs, error) {
	m := newMatcher(f)
	var base Amount
	var units int64
	cats := map[string]struct{}{}
	err := src.Each(ctx, func(r Record) error {
		if !m.match(r) {
			return nil
		}
		base = base.Add(ParseAmountDecimal(r.Total))
		units += int64(math.Round(ParseAmount(r.Cantidad)))
		if c := strings.TrimSpace(r.Categoria); c != "" {
			cats[c] = struct{}{}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	b := base.Float64()
	invTotal := inv.Total()
	total := invTotal
	if b > 0 {
		total = b * (1 + invTotal/b)
	}
	k := &KPIs{
		TotalVentas:       total,
		UnidadesVendidas:  units,
		CategoriasActivas: len(cats),
		BaseTotalVentas:   b,
		InversionTotal:    invTotal,
	}
	if units > 0 {
		k.TicketPromedio = total / float64(units)
	}
	return k, nil
}

// Point：时间序列上的一个点
type Point struct {
	Fecha string  `json:"fecha"`
	Total float64 `json:"total"`
}

// Series：按日期（'T' 之前的部分）累计销售额，日期升序
func Series(ctx context.Context, src Source, f Filters) ([]Point, error) {
	m := newMatcher(f)
	acc := map[string]Amount{}
	err := src.Each(ctx, func(r Record) error {
		if !m.match(r) {
			return nil
		}
		day, _, _ := strings.Cut(strings.TrimSpace(r.Fecha), "T")
		if day == "" {
			return nil
		}
		acc[day] = acc[day].Add(ParseAmountDecimal(r.Total))
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]Point, 0, len(acc))
	for d, a := range acc {
		out = append(out, Point{Fecha: d, Total: a.Float64()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fecha < out[j].Fecha })
	return out, nil
}
