package sales

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"dashboard-ventas/internal/logger"
	"dashboard-ventas/internal/metrics"
)

var tracer = otel.Tracer("dashboard-ventas/sales")

// Service：查询入口，记录来自只加载一次的 Holder
type Service struct {
	holder *Holder
}

func NewService(h *Holder) *Service {
	return &Service{holder: h}
}

// Holder：底层快照持有者
func (s *Service) Holder() *Holder { return s.holder }

// Map：地区聚合查询
func (s *Service) Map(ctx context.Context, f Filters, by GroupBy) ([]Row, error) {
	ctx, span := tracer.Start(ctx, "sales.Map")
	defer span.End()
	span.SetAttributes(attribute.String("group_by", string(by)), attribute.Int("filters", len(f)))

	start := time.Now()
	res, err := Aggregate(ctx, s.holder, f, by)
	metrics.MapaDurationMs.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate failed")
		return nil, err
	}
	rows := res.Rows()
	span.SetAttributes(attribute.Int("rows.scanned", res.Scanned), attribute.Int("buckets", len(rows)))
	logger.L().Debug("aggregate_done",
		"group_by", by,
		"scanned", res.Scanned,
		"matched", res.Matched,
		"buckets", len(rows),
		"max", res.Max.String(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return rows, nil
}

func (s *Service) Options(ctx context.Context, f Filters) (map[string][]string, error) {
	ctx, span := tracer.Start(ctx, "sales.Options")
	defer span.End()
	return Options(ctx, s.holder, f)
}

func (s *Service) KPIs(ctx context.Context, f Filters, inv Investment) (*KPIs, error) {
	ctx, span := tracer.Start(ctx, "sales.KPIs")
	defer span.End()
	return ComputeKPIs(ctx, s.holder, f, inv)
}

func (s *Service) Series(ctx context.Context, f Filters) ([]Point, error) {
	ctx, span := tracer.Start(ctx, "sales.Series")
	defer span.End()
	return Series(ctx, s.holder, f)
}
