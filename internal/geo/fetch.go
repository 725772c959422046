package geo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"

	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
)

// Fetcher：按层级取回边界数据原始字节
type Fetcher interface {
	Fetch(ctx context.Context, level Level) ([]byte, error)
}

// HTTPFetcher：按层级 URL 下载，失败时指数退避重试
// 约束：ctx 取消与 4xx（429 除外）不重试
type HTTPFetcher struct {
	Client    *http.Client
	URLs      map[Level]string
	Attempts  int
	BaseDelay time.Duration
}

// NewHTTPFetcher：默认 5 次尝试，首个间隔 300ms，每次翻倍并带抖动
func NewHTTPFetcher(urls map[Level]string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTPFetcher{
		Client:    &http.Client{Timeout: timeout},
		URLs:      urls,
		Attempts:  5,
		BaseDelay: 300 * time.Millisecond,
	}
}

// NewRetryPolicy：300ms·2^i 加抖动，最多 attempts 次尝试，随 ctx 停止
func NewRetryPolicy(ctx context.Context, attempts int, base time.Duration) backoff.BackOff {
	if attempts < 1 {
		attempts = 1
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0.5
	b.MaxInterval = base << 5
	b.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

func (h *HTTPFetcher) Fetch(ctx context.Context, level Level) ([]byte, error) {
	url := h.URLs[level]
	if url == "" {
		return nil, fmt.Errorf("%w: no url for %q", ErrUnknownLevel, level)
	}
	var body []byte
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		b, err := h.get(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		body = b
		return nil
	}
	notify := func(err error, wait time.Duration) {
		logger.Component("geo").Warn("geo_fetch_retry", "level", level, "err", err, "wait_ms", wait.Milliseconds())
	}
	if err := backoff.RetryNotify(op, NewRetryPolicy(ctx, h.Attempts, h.BaseDelay), notify); err != nil {
		metrics.GeoFetchTotal.WithLabelValues("http", "error").Inc()
		return nil, fmt.Errorf("geo: fetch %s: %w", level, err)
	}
	metrics.GeoFetchTotal.WithLabelValues("http", "ok").Inc()
	return body, nil
}

// statusError：非 2xx 响应
type statusError struct{ code int }

func (e *statusError) Error() string { return fmt.Sprintf("unexpected status %d", e.code) }

func (h *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		serr := &statusError{code: resp.StatusCode}
		if resp.StatusCode/100 == 4 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, backoff.Permanent(serr)
		}
		return nil, serr
	}
	return io.ReadAll(resp.Body)
}

// FileFetcher：从本地文件读取
type FileFetcher struct {
	Paths map[Level]string
}

func (f FileFetcher) Fetch(ctx context.Context, level Level) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := f.Paths[level]
	if p == "" {
		return nil, fmt.Errorf("%w: no path for %q", ErrUnknownLevel, level)
	}
	b, err := os.ReadFile(p)
	if err != nil {
		metrics.GeoFetchTotal.WithLabelValues("file", "error").Inc()
		return nil, fmt.Errorf("geo: read %s: %w", p, err)
	}
	metrics.GeoFetchTotal.WithLabelValues("file", "ok").Inc()
	return b, nil
}

// FallbackFetcher：依次尝试，第一个成功的结果生效
type FallbackFetcher []Fetcher

func (fs FallbackFetcher) Fetch(ctx context.Context, level Level) ([]byte, error) {
	var errs []error
	for _, f := range fs {
		b, err := f.Fetch(ctx, level)
		if err == nil {
			return b, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, fmt.Errorf("%w: no source for %q", ErrUnknownLevel, level)
	}
	return nil, errors.Join(errs...)
}
