package sales

import (
	"context"
	"sort"
	"strings"

	"dashboard-ventas/internal/canon"
	"dashboard-ventas/internal/metrics"
)

// Bucket：一个地区的累计
type Bucket struct {
	Key        string
	DeptKey    string
	CityKey    string
	Department string
	City       string
	ShapeID    string
	Total      Amount
	Count      int
}

// Result：一次聚合的结果；Max 为所有桶中的最大累计
type Result struct {
	GroupBy GroupBy
	Buckets map[string]*Bucket
	Max     Amount
	Scanned int
	Matched int
}

// Row：聚合接口的输出行
type Row struct {
	Departamento string  `json:"departamento"`
	Ciudad       string  `json:"ciudad,omitempty"`
	Total        float64 `json:"total"`
	ShapeID      string  `json:"shapeID,omitempty"`
}

func displayName(raw, key string) string {
	if canon.IsCapitalDistrict(key) {
		return canon.CapitalDisplay
	}
	if s := strings.TrimSpace(raw); s != "" {
		return s
	}
	return key
}

// Aggregate：流式遍历记录，按筛选条件累计到部门或 city__department 桶
// 约束：金额无法解析的记录按 0 计入；最大值随累计同步维护
func Aggregate(ctx context.Context, src Source, f Filters, by GroupBy) (*Result, error) {
	m := newMatcher(f)
	res := &Result{GroupBy: by, Buckets: map[string]*Bucket{}}
	malformed := 0
	err := src.Each(ctx, func(r Record) error {
		res.Scanned++
		if !m.match(r) {
			return nil
		}
		res.Matched++
		cityKey, deptKey := regionKeys(r)
		key := deptKey
		if by == GroupCity {
			key = canon.CompositeKey(cityKey, deptKey)
		}
		b, ok := res.Buckets[key]
		if !ok {
			b = &Bucket{
				Key:        key,
				DeptKey:    deptKey,
				Department: displayName(r.Departamento, deptKey),
			}
			if by == GroupCity {
				b.CityKey = cityKey
				b.City = displayName(r.Ciudad, cityKey)
			}
			res.Buckets[key] = b
		}
		if by == GroupCity && b.ShapeID == "" {
			b.ShapeID = strings.TrimSpace(r.ShapeID)
		}
		amt, ok := parseAmount(r.Total)
		if !ok {
			malformed++
		}
		b.Total = b.Total.Add(amt)
		b.Count++
		if b.Total.Cmp(res.Max) > 0 {
			res.Max = b.Total
		}
		return nil
	})
	metrics.RowsScanned.Add(float64(res.Scanned))
	if malformed > 0 {
		metrics.RowsMalformedAmount.Add(float64(malformed))
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Sorted：按累计降序、键升序排列的桶
func (r *Result) Sorted() []*Bucket {
	out := make([]*Bucket, 0, len(r.Buckets))
	for _, b := range r.Buckets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Key < out[j].Key
	})
	return out
}

// Rows：接口输出
func (r *Result) Rows() []Row {
	bs := r.Sorted()
	rows := make([]Row, 0, len(bs))
	for _, b := range bs {
		rows = append(rows, Row{
			Departamento: b.Department,
			Ciudad:       b.City,
			Total:        b.Total.Float64(),
			ShapeID:      b.ShapeID,
		})
	}
	return rows
}

// Total：所有桶的合计
func (r *Result) Total() Amount {
	var sum Amount
	for _, b := range r.Buckets {
		sum = sum.Add(b.Total)
	}
	return sum
}
