package sales

import (
	"context"
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"dashboard-ventas/internal/canon"
)

// Options：级联筛选项
// 背景：可选值取自通过全部已选筛选的记录，已选字段收窄为自身的取值。
// 约束：同一 Base 形态只保留首次出现的写法；按西班牙语排序规则排序。
func Options(ctx context.Context, src Source, f Filters) (map[string][]string, error) {
	m := newMatcher(f)
	seen := make(map[string]map[string]string, len(FilterFields))
	for _, k := range FilterFields {
		seen[k] = map[string]string{}
	}
	err := src.Each(ctx, func(r Record) error {
		if !m.match(r) {
			return nil
		}
		for _, k := range FilterFields {
			v := strings.TrimSpace(r.Field(k))
			if v == "" {
				continue
			}
			key := canon.Base(v)
			if _, ok := seen[k][key]; !ok {
				seen[k][key] = v
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	col := collate.New(language.Spanish, collate.IgnoreCase)
	out := make(map[string][]string, len(FilterFields))
	for _, k := range FilterFields {
		vals := make([]string, 0, len(seen[k]))
		for _, v := range seen[k] {
			vals = append(vals, v)
		}
		sort.SliceStable(vals, func(i, j int) bool { return col.CompareString(vals[i], vals[j]) < 0 })
		out[k] = vals
	}
	return out, nil
}
