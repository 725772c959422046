// 包 store: 销售记录的 PostgreSQL 访问层
package store

import (
	"context"
	"database/sql"
	"time"

	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/sales"
)

// Store: 持有连接池；实现 sales.Source，按 id 顺序流式读出记录
type Store struct {
	db *sql.DB
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) DB() *sql.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

const selectVentas = `SELECT ciudad, departamento, macrocategoria, categoria, subcategoria,
	segmento, marca, total, cantidad, fecha, shape_id FROM _ventas ORDER BY id`

// Each: 逐行扫描，不在内存中缓冲整表
func (s *Store) Each(ctx context.Context, fn func(sales.Record) error) error {
	rows, err := s.db.QueryContext(ctx, selectVentas)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r sales.Record
		if err := rows.Scan(&r.Ciudad, &r.Departamento, &r.Macrocategoria, &r.Categoria, &r.Subcategoria,
			&r.Segmento, &r.Marca, &r.Total, &r.Cantidad, &r.Fecha, &r.ShapeID); err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Count: 记录总数
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM _ventas").Scan(&n)
	return n, err
}

// Import: 一次导入的登记信息
type Import struct {
	Source     string
	Rows       int64
	ImportedAt time.Time
}

// RecordImport: 登记一次导入
func (s *Store) RecordImport(ctx context.Context, source string, rows int64) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO _ventas_imports(source, rows) VALUES($1, $2)", source, rows)
	if err != nil {
		logger.L().Error("import_record_error", "err", err)
	}
	return err
}

// LastImport: 最近一次导入；从未导入时返回 nil
func (s *Store) LastImport(ctx context.Context) (*Import, error) {
	var im Import
	err := s.db.QueryRowContext(ctx,
		"SELECT source, rows, imported_at FROM _ventas_imports ORDER BY id DESC LIMIT 1",
	).Scan(&im.Source, &im.Rows, &im.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &im, nil
}
