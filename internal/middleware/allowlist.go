package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
)

// 文档注释：管理接口来源白名单（IP / CIDR）
// 背景：/reload 与 /metrics 只对运维网段开放；其它请求统一返回 403。
// 约束：支持 IPv4/IPv6；来源以 RemoteAddr 为准，指定 realIPHeader 时取该头的首个有效 IP。
type AllowList struct {
	l            *slog.Logger
	ips          map[string]struct{}
	cidrs        []*net.IPNet
	realIPHeader string
}

// NewAllowList：entries 为单 IP 或 CIDR；"local" 表示 127.0.0.1 与 ::1
func NewAllowList(l *slog.Logger, entries []string, realIPHeader string) (*AllowList, error) {
	a := &AllowList{l: l, ips: map[string]struct{}{}, realIPHeader: strings.TrimSpace(realIPHeader)}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		switch {
		case e == "":
		case e == "local":
			a.ips["127.0.0.1"] = struct{}{}
			a.ips["::1"] = struct{}{}
		case strings.Contains(e, "/"):
			_, n, err := net.ParseCIDR(e)
			if err != nil {
				return nil, fmt.Errorf("allowlist: %q: %w", e, err)
			}
			a.cidrs = append(a.cidrs, n)
		default:
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("allowlist: invalid ip %q", e)
			}
			a.ips[ip.String()] = struct{}{}
		}
	}
	return a, nil
}

// Empty：没有任何条目时 Wrap 不拦截
func (a *AllowList) Empty() bool { return len(a.ips) == 0 && len(a.cidrs) == 0 }

func (a *AllowList) Wrap(next http.Handler) http.Handler {
	if a.Empty() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := a.extractIP(r)
		if ip == nil || !a.allowed(ip) {
			a.l.Debug("allowlist_block", "remote", r.RemoteAddr, "path", r.URL.Path)
			w.Header().Set("content-type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"acceso denegado"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AllowList) allowed(ip net.IP) bool {
	if _, ok := a.ips[ip.String()]; ok {
		return true
	}
	for _, n := range a.cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// extractIP：解析请求来源 IP；优先指定头的首个有效 IP
func (a *AllowList) extractIP(r *http.Request) net.IP {
	if a.realIPHeader != "" {
		if raw := r.Header.Get(a.realIPHeader); raw != "" {
			first, _, _ := strings.Cut(raw, ",")
			if ip := net.ParseIP(strings.TrimSpace(first)); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}
