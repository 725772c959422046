// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"dashboard-ventas/internal/cache"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
	"dashboard-ventas/internal/sales"
)

// Paths：BuildRoutes 注册的全部路径，主入口按 API_BASE 逐个挂载
var Paths = []string{
	"/ventas/mapa", "/filtros", "/filters", "/kpis",
	"/ventas/series", "/timeseries", "/health", "/reload",
}

// errorBody：统一错误响应
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// fail：记录并返回 500；没有数据与其它错误使用不同的提示
func fail(w http.ResponseWriter, endpoint, msg string, err error) {
	metrics.QueryErrorsTotal.WithLabelValues(endpoint).Inc()
	logger.Component("api").Error("query_failed", "endpoint", endpoint, "err", err)
	if sales.IsNoData(err) {
		msg = "Error cargando datos"
	}
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: msg})
}

func onlyGET(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("allow", "GET, HEAD")
			writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "método no permitido"})
			return
		}
		h(w, r)
	}
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 API_BASE 前缀
// adminToken 为空时不开放 /reload
func BuildRoutes(svc *sales.Service, c cache.Cache, adminToken string) *http.ServeMux {
	mux := http.NewServeMux()

	mapa := onlyGET(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.MapaRequestsTotal.Inc()
		defer func() { metrics.MapaDurationMs.Observe(float64(time.Since(start).Milliseconds())) }()

		ctx := r.Context()
		q := r.URL.Query()
		by := sales.ParseGroupBy(q.Get("group_by"))
		f := sales.FiltersFromQuery(q)
		key := cache.Key(f, by)
		if rows, ok := c.Get(ctx, key); ok {
			writeJSON(w, http.StatusOK, rows)
			return
		}
		rows, err := svc.Map(ctx, f, by)
		if err != nil {
			fail(w, "mapa", "Error procesando datos de mapa", err)
			return
		}
		c.Set(ctx, key, rows)
		writeJSON(w, http.StatusOK, rows)
	})
	mux.HandleFunc("/ventas/mapa", mapa)

	filtros := onlyGET(func(w http.ResponseWriter, r *http.Request) {
		opts, err := svc.Options(r.Context(), sales.FiltersFromQuery(r.URL.Query()))
		if err != nil {
			fail(w, "filtros", "No se pudieron calcular filtros", err)
			return
		}
		writeJSON(w, http.StatusOK, opts)
	})
	mux.HandleFunc("/filtros", filtros)
	mux.HandleFunc("/filters", filtros)

	mux.HandleFunc("/kpis", onlyGET(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		inv := sales.Investment{
			Meta:   sales.ParseAmount(q.Get("inv_meta")),
			Google: sales.ParseAmount(q.Get("inv_google")),
		}
		k, err := svc.KPIs(r.Context(), sales.FiltersFromQuery(q), inv)
		if err != nil {
			fail(w, "kpis", "Error procesando KPIs", err)
			return
		}
		writeJSON(w, http.StatusOK, k)
	}))

	series := onlyGET(func(w http.ResponseWriter, r *http.Request) {
		pts, err := svc.Series(r.Context(), sales.FiltersFromQuery(r.URL.Query()))
		if err != nil {
			fail(w, "series", "Error procesando series", err)
			return
		}
		if pts == nil {
			pts = []sales.Point{}
		}
		writeJSON(w, http.StatusOK, pts)
	})
	mux.HandleFunc("/ventas/series", series)
	mux.HandleFunc("/timeseries", series)

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		n, ok := svc.Holder().Loaded()
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rows": n, "loaded": ok})
	})

	// 文档注释：重新加载记录快照并清空聚合缓存
	// 背景：导入新数据后无需重启进程；需要 x-admin-token
	mux.HandleFunc("/reload", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("allow", "POST")
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		t := r.Header.Get("x-admin-token")
		if adminToken == "" || t != adminToken {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		ctx := r.Context()
		snap, err := svc.Holder().Reload(ctx)
		if err != nil {
			fail(w, "reload", "Error cargando datos", err)
			return
		}
		if err := c.Purge(ctx); err != nil {
			logger.Component("api").Warn("cache_purge_failed", "err", err)
		}
		logger.Component("api").Info("snapshot_reloaded", "rows", snap.Len())
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rows": snap.Len()})
	})

	return mux
}
