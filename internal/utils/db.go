package utils

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"

	"dashboard-ventas/internal/config"
	"dashboard-ventas/internal/logger"
)

// OpenPostgres：按配置打开连接池并做一次带超时的 Ping
// 约束：Ping 失败时关闭连接池并返回错误，调用方决定是否退回 CSV 数据源
func OpenPostgres(ctx context.Context, c config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", c.DSN())
	if err != nil {
		return nil, err
	}
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.L().Info("db_open_ok", "host", c.Host, "db", c.DB)
	return db, nil
}
