package synclog

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/erpsync/internal/database"
	"github.com/Additional-Code/erpsync/internal/entity"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/erpsync/repository/synclog")

// Filter narrows List and Count. Zero Limit means no limit.
type Filter struct {
	OrderID *int64
	Kind    entity.LogKind
	Limit   int
	Offset  int
}

// Repository stores append-only sync log entries.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
	now    func() time.Time
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return newRepository(conns.Writer, conns.Reader)
}

func newRepository(writer, reader *bun.DB) *Repository {
	return &Repository{
		writer: writer,
		reader: reader,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Add appends an entry.
func (r *Repository) Add(ctx context.Context, entry *entity.SyncLog) error {
	if entry == nil {
		return errors.New("nil log entry")
	}
	if entry.Kind == "" {
		entry.Kind = entity.LogInfo
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = r.now()
	}
	_, err := r.writer.NewInsert().Model(entry).Exec(ctx)
	return err
}

// List returns entries newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]entity.SyncLog, error) {
	ctx, span := repoTracer.Start(ctx, "SyncLogRepository.List", trace.WithAttributes(attribute.String("log.kind", string(filter.Kind))))
	defer span.End()

	var out []entity.SyncLog
	q := applyFilter(r.reader.NewSelect().Model(&out), filter).OrderExpr("created_at DESC, id DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit).Offset(filter.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return out, nil
}

// Count returns the number of entries matching filter. Paging fields are ignored.
func (r *Repository) Count(ctx context.Context, filter Filter) (int, error) {
	return applyFilter(r.reader.NewSelect().Model((*entity.SyncLog)(nil)), filter).Count(ctx)
}

// CountByKind returns the number of entries of one kind.
func (r *Repository) CountByKind(ctx context.Context, kind entity.LogKind) (int, error) {
	return r.Count(ctx, Filter{Kind: kind})
}

// DeleteOlderThan removes entries created more than days ago.
func (r *Repository) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		return 0, errors.New("days must be positive")
	}
	ctx, span := repoTracer.Start(ctx, "SyncLogRepository.DeleteOlderThan", trace.WithAttributes(attribute.Int("log.days", days)))
	defer span.End()

	cutoff := r.now().AddDate(0, 0, -days)
	res, err := r.writer.NewDelete().
		Model((*entity.SyncLog)(nil)).
		Where("created_at < ?", cutoff).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAll truncates the log.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.writer.NewDelete().
		Model((*entity.SyncLog)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func applyFilter(q *bun.SelectQuery, filter Filter) *bun.SelectQuery {
	if filter.OrderID != nil {
		q = q.Where("source_order_id = ?", *filter.OrderID)
	}
	if filter.Kind != "" {
		q = q.Where("log_type = ?", filter.Kind)
	}
	return q
}
