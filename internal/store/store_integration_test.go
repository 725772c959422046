//go:build integration

package store

import (
	"context"
	"database/sql"
	"testing"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"dashboard-ventas/internal/ingest"
	"dashboard-ventas/internal/migrate"
	"dashboard-ventas/internal/sales"
)

type PostgresStoreSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *sql.DB
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("ventas"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)
	s.db, err = sql.Open("postgres", dsn)
	s.Require().NoError(err)
	s.Require().NoError(s.db.PingContext(ctx))
	s.Require().NoError(migrate.EnsureSchema(ctx, s.db))
	// 第二次执行不应报错
	s.Require().NoError(migrate.EnsureSchema(ctx, s.db))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.db != nil {
		_ = s.db.Close()
	}
	if s.container != nil {
		_ = testcontainers.TerminateContainer(s.container)
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	_, err := s.db.Exec("TRUNCATE _ventas, _ventas_imports RESTART IDENTITY")
	s.Require().NoError(err)
}

func records() *sales.Snapshot {
	return &sales.Snapshot{Records: []sales.Record{
		{Ciudad: "Medellín", Departamento: "Antioquia", Categoria: "Hogar", Marca: "Acme", Total: "1.500.000", Cantidad: "2", Fecha: "2024-01-10"},
		{Ciudad: "Cali", Departamento: "Valle del Cauca", Categoria: "Hogar", Marca: "Zeta", Total: "750000", Cantidad: "1", Fecha: "2024-02-03"},
		{Ciudad: "Pasto", Departamento: "Nariño", Categoria: "Moda", Marca: "Acme", Total: "$ 320.000", Cantidad: "4", Fecha: "2024-02-20", ShapeID: "COL.21.3_1"},
	}}
}

func (s *PostgresStoreSuite) TestImportAndEach() {
	ctx := context.Background()
	n, err := ingest.Import(ctx, s.db, records(), ingest.Options{Batch: 2})
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	st := AttachDB(s.db)
	count, err := st.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)

	snap, err := sales.Collect(ctx, st)
	s.Require().NoError(err)
	s.Equal(records().Records, snap.Records)

	// 非空表不会重复初始化
	n, err = ingest.EnsureInitialized(ctx, s.db, records())
	s.Require().NoError(err)
	s.Zero(n)

	n, err = ingest.Import(ctx, s.db, records(), ingest.Options{Truncate: true})
	s.Require().NoError(err)
	s.Equal(int64(3), n)
	count, err = st.Count(ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), count)
}

func (s *PostgresStoreSuite) TestEnsureInitializedFillsEmptyTable() {
	ctx := context.Background()
	n, err := ingest.EnsureInitialized(ctx, s.db, records())
	s.Require().NoError(err)
	s.Equal(int64(3), n)

	n, err = ingest.EnsureInitialized(ctx, s.db, &sales.Snapshot{})
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *PostgresStoreSuite) TestImportRegistry() {
	ctx := context.Background()
	st := AttachDB(s.db)
	last, err := st.LastImport(ctx)
	s.Require().NoError(err)
	s.Nil(last)

	s.Require().NoError(st.RecordImport(ctx, "csv-init", 10))
	s.Require().NoError(st.RecordImport(ctx, "csv-weekly", 12))
	last, err = st.LastImport(ctx)
	s.Require().NoError(err)
	s.Require().NotNil(last)
	s.Equal("csv-weekly", last.Source)
	s.Equal(int64(12), last.Rows)
	s.False(last.ImportedAt.IsZero())
}
