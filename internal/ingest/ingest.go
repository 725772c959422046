// 包 ingest：CSV 销售记录批量导入 PostgreSQL，作为离线数据通道
package ingest

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/sales"
)

// DefaultBatch：每批提交的行数
const DefaultBatch = 5000

var columns = []string{
	"ciudad", "departamento", "macrocategoria", "categoria", "subcategoria",
	"segmento", "marca", "total", "cantidad", "fecha", "shape_id",
}

// Options：导入参数
type Options struct {
	Batch    int
	Truncate bool
}

// batch：一个事务内的 COPY 语句
type batch struct {
	tx   *sql.Tx
	stmt *sql.Stmt
	n    int
}

func begin(ctx context.Context, db *sql.DB) (*batch, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("_ventas", columns...))
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return &batch{tx: tx, stmt: stmt}, nil
}

// commit：刷新 COPY 缓冲后提交
func (b *batch) commit(ctx context.Context) error {
	if _, err := b.stmt.ExecContext(ctx); err != nil {
		_ = b.tx.Rollback()
		return err
	}
	if err := b.stmt.Close(); err != nil {
		_ = b.tx.Rollback()
		return err
	}
	return b.tx.Commit()
}

func (b *batch) rollback() {
	_ = b.stmt.Close()
	_ = b.tx.Rollback()
}

// Import：从 src 流式读取并通过 COPY 写入 _ventas，每 Batch 行提交一次
// 背景：COPY 比逐行 INSERT 少得多的往返；分批提交降低锁持有与 WAL 压力
// 异常：数据库错误直接返回，已提交的批次保留
func Import(ctx context.Context, db *sql.DB, src sales.Source, opts Options) (int64, error) {
	if opts.Batch <= 0 {
		opts.Batch = DefaultBatch
	}
	if opts.Truncate {
		if _, err := db.ExecContext(ctx, "TRUNCATE _ventas RESTART IDENTITY"); err != nil {
			return 0, err
		}
		logger.L().Info("ingest_truncate_ok")
	}
	b, err := begin(ctx, db)
	if err != nil {
		return 0, err
	}
	var count int64
	err = src.Each(ctx, func(r sales.Record) error {
		if _, err := b.stmt.ExecContext(ctx,
			r.Ciudad, r.Departamento, r.Macrocategoria, r.Categoria, r.Subcategoria,
			r.Segmento, r.Marca, r.Total, r.Cantidad, r.Fecha, r.ShapeID,
		); err != nil {
			return err
		}
		b.n++
		count++
		if b.n >= opts.Batch {
			if err := b.commit(ctx); err != nil {
				return err
			}
			b.n = 0
			logger.L().Info("ingest_progress", "count", count)
			nb, err := begin(ctx, db)
			if err != nil {
				return err
			}
			b = nb
		}
		return nil
	})
	if err != nil {
		b.rollback()
		return count - int64(b.n), err
	}
	if err := b.commit(ctx); err != nil {
		return count - int64(b.n), err
	}
	logger.L().Info("ingest_done", "count", count)
	return count, nil
}

// EnsureInitialized：表为空时执行一次导入
func EnsureInitialized(ctx context.Context, db *sql.DB, src sales.Source) (int64, error) {
	var c int64
	if err := db.QueryRowContext(ctx, "SELECT COUNT(1) FROM _ventas").Scan(&c); err != nil {
		return 0, err
	}
	if c > 0 {
		return 0, nil
	}
	n, err := Import(ctx, db, src, Options{})
	if errors.Is(err, sales.ErrNoData) {
		return n, nil
	}
	return n, err
}
