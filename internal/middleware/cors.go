package middleware

import (
	"net/http"
	"strings"
)

// CORS：允许浏览器端跨域读取 API
// origin 为 "*" 或逗号分隔的来源列表；不在列表中的来源不写入允许头
func CORS(origin string) func(http.Handler) http.Handler {
	allowAll := strings.TrimSpace(origin) == "*"
	allowed := map[string]struct{}{}
	for _, o := range strings.Split(origin, ",") {
		if o = strings.TrimSpace(o); o != "" && o != "*" {
			allowed[o] = struct{}{}
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			if allowAll {
				h.Set("access-control-allow-origin", "*")
			} else if o := r.Header.Get("origin"); o != "" {
				if _, ok := allowed[o]; ok {
					h.Set("access-control-allow-origin", o)
					h.Add("vary", "Origin")
				}
			}
			if r.Method == http.MethodOptions && r.Header.Get("access-control-request-method") != "" {
				h.Set("access-control-allow-methods", "GET, HEAD, POST, OPTIONS")
				h.Set("access-control-allow-headers", "content-type, x-admin-token")
				h.Set("access-control-max-age", "600")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
