// 数据导入工具：把清洗后的销售 CSV 批量写入 PostgreSQL（_ventas）
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"dashboard-ventas/internal/config"
	"dashboard-ventas/internal/ingest"
	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/migrate"
	"dashboard-ventas/internal/sales"
	"dashboard-ventas/internal/store"
	"dashboard-ventas/internal/utils"
)

func main() {
	l := logger.Setup()
	var cfg config.Ingest
	if err := config.Parse(&cfg); err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := utils.OpenPostgres(ctx, cfg.Postgres)
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		os.Exit(1)
	}

	st := store.AttachDB(db)
	if last, err := st.LastImport(ctx); err == nil && last != nil {
		l.Info("ingest_last", "source", last.Source, "rows", last.Rows, "at", last.ImportedAt)
	}

	start := time.Now()
	l.Info("ingest_begin", "csv", cfg.CSV, "truncate", cfg.Truncate, "batch", cfg.Batch)
	n, err := ingest.Import(ctx, db, sales.CSVFile{Path: cfg.CSV}, ingest.Options{Batch: cfg.Batch, Truncate: cfg.Truncate})
	if err != nil {
		l.Error("ingest_error", "err", err, "committed", n)
		os.Exit(1)
	}
	_ = st.RecordImport(ctx, cfg.CSV, n)
	total, _ := st.Count(ctx)
	l.Info("ingest_success", "rows", n, "table_rows", total, "duration_ms", time.Since(start).Milliseconds())
}
