// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"dashboard-ventas/internal/api"
	"dashboard-ventas/internal/cache"
	"dashboard-ventas/internal/config"
	"dashboard-ventas/internal/ingest"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
	"dashboard-ventas/internal/middleware"
	"dashboard-ventas/internal/migrate"
	"dashboard-ventas/internal/sales"
	"dashboard-ventas/internal/store"
	"dashboard-ventas/internal/utils"
	"dashboard-ventas/internal/version"
)

func main() {
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg, err := config.LoadServer()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)
	l.Debug("config_ui_dir", "dir", cfg.UIDist)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	csv := sales.NewChain(sales.CSVFile{Path: cfg.CSVPath}, sales.CSVFile{Path: cfg.CSVFallback})
	var src sales.Source = csv
	var db *sql.DB
	if cfg.DataSource == "postgres" {
		db = openDatabase(ctx, cfg, csv)
		if db != nil {
			defer db.Close()
			// 表为空或查询失败时仍可回退到 CSV
			src = sales.NewChain(store.AttachDB(db), csv)
		}
	}
	holder := sales.NewHolder(src)
	svc := sales.NewService(holder)
	go func() {
		if _, err := holder.Snapshot(ctx); err != nil {
			l.Error("sales_warmup_error", "err", err)
		}
	}()

	rc := utils.OpenRedis(ctx, cfg.Redis)
	if rc != nil {
		defer rc.Close()
	}
	aggCache := cache.New(rc, cfg.CacheSize, cfg.CacheTTL)

	if cfg.Refresh.Enabled {
		startRefresh(ctx, cfg.Refresh, db, csv, holder, aggCache)
	}

	allow, err := middleware.NewAllowList(logger.Component("middleware"), cfg.AdminAllow, cfg.RealIPHeader)
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	apiMux := api.BuildRoutes(svc, aggCache, cfg.AdminToken)
	base := cfg.APIBase
	for _, p := range api.Paths {
		var h http.Handler = apiMux
		if p == "/reload" {
			h = allow.Wrap(h)
		}
		mux.Handle(base+p, http.StripPrefix(base, h))
	}
	mux.Handle(base+"/metrics", allow.Wrap(metrics.Handler()))
	mux.Handle("/", http.FileServer(http.Dir(cfg.UIDist)))

	// NOTE: 向前端暴露 API 基础路径，避免硬编码；生产环境由后端统一提供
	mux.HandleFunc("/config.js", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "application/javascript; charset=utf-8")
		w.Header().Set("cache-control", "no-store")
		_, _ = w.Write([]byte("window.__API_BASE__='" + base + "'\n"))
		_, _ = w.Write([]byte("window.__COMMIT_SHA__='" + version.Commit + "'\n"))
	})

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, middleware.Options{
		RateLimit:  cfg.RateLimit,
		QPS:        cfg.RateLimitQPS,
		CORSOrigin: cfg.CORSOrigin,
	})
	s := &http.Server{Addr: cfg.Addr, Handler: handler}

	errc := make(chan error, 1)
	go func() {
		if cfg.TLSEnable {
			if err := utils.EnsureSelfSignedCert(cfg.TLSCertPath, cfg.TLSKeyPath, "dashboard-ventas.local"); err != nil {
				l.Error("tls_cert_error", "err", err)
			}
			if cfg.TLSRedirect {
				go redirectHTTPS(cfg)
			}
			l.Info("listening_tls", "addr", cfg.Addr, "cert", cfg.TLSCertPath, "commit", version.Commit)
			errc <- s.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
			return
		}
		l.Info("listening", "addr", cfg.Addr, "commit", version.Commit)
		errc <- s.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			l.Error("server_error", "err", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		l.Info("shutdown_begin")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := s.Shutdown(sctx); err != nil {
			l.Error("shutdown_error", "err", err)
		}
		l.Info("shutdown_done")
	}
}

// openDatabase：连接、建表并在空表时从 CSV 初始化；失败返回 nil，服务退回 CSV
func openDatabase(ctx context.Context, cfg config.Server, csv sales.Source) *sql.DB {
	l := logger.L()
	db, err := utils.OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		l.Error("db_open_error", "err", err)
		return nil
	}
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		_ = db.Close()
		return nil
	}
	n, err := ingest.EnsureInitialized(ctx, db, csv)
	if err != nil {
		l.Error("ingest_init_error", "err", err)
	} else if n > 0 {
		_ = store.AttachDB(db).RecordImport(ctx, "csv-init", n)
		l.Info("ingest_init_ok", "rows", n)
	}
	return db
}

// startRefresh：每周刷新记录快照；有数据库时先从 CSV 全量重新导入
func startRefresh(ctx context.Context, r config.Refresh, db *sql.DB, csv sales.Source, h *sales.Holder, c cache.Cache) {
	l := logger.L()
	wd, loc, err := r.Schedule()
	if err != nil {
		l.Error("refresh_config_error", "err", err)
		return
	}
	ingest.StartWeekly(ctx, loc, wd, r.Hour, func(ctx context.Context) error {
		if db != nil {
			n, err := ingest.Import(ctx, db, csv, ingest.Options{Truncate: true})
			if err != nil {
				return err
			}
			_ = store.AttachDB(db).RecordImport(ctx, "csv-weekly", n)
		}
		if _, err := h.Reload(ctx); err != nil {
			return err
		}
		return c.Purge(ctx)
	})
}

// redirectHTTPS：可选的 HTTP 到 HTTPS 跳转，不改变 HTTPS 运行端口
func redirectHTTPS(cfg config.Server) {
	l := logger.L()
	httpsPort := strings.TrimPrefix(cfg.Addr, ":")
	redir := http.NewServeMux()
	redir.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if i := strings.LastIndex(host, ":"); i != -1 {
			host = host[:i]
		}
		if httpsPort != "" {
			host += ":" + httpsPort
		}
		target := "https://" + host + r.URL.RequestURI()
		http.Redirect(w, r, target, http.StatusMovedPermanently)
	})
	l.Info("http_redirect_listening", "addr", cfg.TLSRedirectAddr, "to", "https"+cfg.Addr)
	if err := http.ListenAndServe(cfg.TLSRedirectAddr, logger.AccessMiddleware(l)(redir)); err != nil {
		l.Error("http_redirect_error", "err", err)
	}
}
