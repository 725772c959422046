package migrate

import (
	"context"
	"database/sql"

	"dashboard-ventas/internal/logger"
)

// 背景：首次运行自动创建销售记录表与索引
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；金额列保留原始文本，解析在聚合时进行
var stmts = []string{
	`CREATE TABLE IF NOT EXISTS _ventas (
		id SERIAL PRIMARY KEY,
		ciudad TEXT NOT NULL DEFAULT '',
		departamento TEXT NOT NULL DEFAULT '',
		macrocategoria TEXT NOT NULL DEFAULT '',
		categoria TEXT NOT NULL DEFAULT '',
		subcategoria TEXT NOT NULL DEFAULT '',
		segmento TEXT NOT NULL DEFAULT '',
		marca TEXT NOT NULL DEFAULT '',
		total TEXT NOT NULL DEFAULT '',
		cantidad TEXT NOT NULL DEFAULT '',
		fecha TEXT NOT NULL DEFAULT '',
		shape_id TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_ventas_departamento ON _ventas(departamento)`,
	`CREATE INDEX IF NOT EXISTS idx_ventas_ciudad ON _ventas(ciudad)`,
	`CREATE TABLE IF NOT EXISTS _ventas_imports (
		id SERIAL PRIMARY KEY,
		source TEXT NOT NULL,
		rows BIGINT NOT NULL DEFAULT 0,
		imported_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
