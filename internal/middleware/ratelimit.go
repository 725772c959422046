// 包 middleware：入口限流、跨域与管理接口来源白名单
package middleware

import (
	"net/http"
	"sync"
	"time"
)

// 文档注释：令牌桶限流（每秒）
// 背景：在流量峰值时对入口进行限速，避免聚合扫描把记录快照与缓存压垮。
// 约束：不做队列排队，超出即返回 429；每个自然秒整体补满。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	mu       sync.Mutex
	now      func() time.Time
}

func NewTokenBucket(qps int) *TokenBucket {
	if qps <= 0 {
		qps = 200
	}
	tb := &TokenBucket{capacity: qps, tokens: qps, now: time.Now}
	tb.lastSec = tb.now().Unix()
	return tb
}

func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// RateLimit：超出速率的请求直接返回 429
func RateLimit(tb *TokenBucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !tb.Allow() {
				w.Header().Set("content-type", "application/json; charset=utf-8")
				w.Header().Set("retry-after", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"demasiadas solicitudes"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Options：入口中间件配置
type Options struct {
	RateLimit  bool
	QPS        int
	CORSOrigin string
}

// Wrap：按配置组装入口中间件；CORS 在最外层，预检请求不消耗令牌
func Wrap(next http.Handler, o Options) http.Handler {
	h := next
	if o.RateLimit {
		h = RateLimit(NewTokenBucket(o.QPS))(h)
	}
	if o.CORSOrigin != "" {
		h = CORS(o.CORSOrigin)(h)
	}
	return h
}
