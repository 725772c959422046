package mapview

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"dashboard-ventas/internal/cache"
	"dashboard-ventas/internal/geo"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/sales"
)

// AggregateSource：按层级与筛选条件提供聚合行
type AggregateSource interface {
	Aggregates(ctx context.Context, level geo.Level, f sales.Filters) ([]sales.Row, error)
}

func groupBy(level geo.Level) sales.GroupBy {
	if level == geo.LevelDepartment {
		return sales.GroupDepartment
	}
	return sales.GroupCity
}

// LocalSource：进程内直接调用聚合服务
type LocalSource struct {
	Service *sales.Service
}

func (s LocalSource) Aggregates(ctx context.Context, level geo.Level, f sales.Filters) ([]sales.Row, error) {
	return s.Service.Map(ctx, f, groupBy(level))
}

// HTTPSource：通过 /ventas/mapa 获取聚合行
// 约束：同一 URL 的响应在进程内缓存 30s；网络错误与 5xx 按退避重试
type HTTPSource struct {
	Base      string
	Client    *http.Client
	Attempts  int
	BaseDelay time.Duration
	cache     *cache.LRU[[]sales.Row]
}

func NewHTTPSource(base string, timeout time.Duration) *HTTPSource {
	return &HTTPSource{
		Base:      strings.TrimRight(base, "/"),
		Client:    &http.Client{Timeout: timeout},
		Attempts:  3,
		BaseDelay: 300 * time.Millisecond,
		cache:     cache.NewLRU[[]sales.Row](64, 30*time.Second),
	}
}

// URL：聚合请求地址；查询参数按键排序，可直接作缓存键
func (s *HTTPSource) URL(level geo.Level, f sales.Filters) string {
	q := url.Values{}
	for k, v := range f {
		if v != "" {
			q.Set(k, v)
		}
	}
	q.Set("group_by", string(groupBy(level)))
	return s.Base + "/ventas/mapa?" + q.Encode()
}

func (s *HTTPSource) Aggregates(ctx context.Context, level geo.Level, f sales.Filters) ([]sales.Row, error) {
	u := s.URL(level, f)
	if rows, ok := s.cache.Get(u); ok {
		return rows, nil
	}
	var rows []sales.Row
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		r, err := s.get(ctx, u)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		rows = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Component("mapview").Warn("mapa_fetch_retry", "url", u, "err", err, "wait_ms", wait.Milliseconds())
	}
	if err := backoff.RetryNotify(op, geo.NewRetryPolicy(ctx, s.Attempts, s.BaseDelay), notify); err != nil {
		return nil, fmt.Errorf("mapview: aggregates %s: %w", level, err)
	}
	s.cache.Set(u, rows)
	return rows, nil
}

func (s *HTTPSource) get(ctx context.Context, u string) ([]sales.Row, error) {
	ctx, span := tracer.Start(ctx, "mapview.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("url", u)),
	)
	defer span.End()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}
	var rows []sales.Row
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("decode: %w", err))
	}
	return rows, nil
}
