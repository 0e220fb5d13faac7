package mapping

import (
	"context"
	"database/sql"
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

var repoTracer = otel.Tracer("github.com/Additional-Code/erpsync/repository/mapping")

// ErrNotFound is returned when no mapping exists for an order.
var ErrNotFound = errors.New("sync mapping not found")

// ListFilter narrows List results. Zero Limit means no limit.
type ListFilter struct {
	Status entity.SyncStatus
	Limit  int
	Offset int
}

// Repository persists one sync mapping per source order.
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

// Get returns the mapping for orderID or ErrNotFound.
func (r *Repository) Get(ctx context.Context, orderID int64) (*entity.SyncMapping, error) {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.Get", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	// Served by the writer so a sync attempt observes its own transitions.
	m := new(entity.SyncMapping)
	err := r.writer.NewSelect().Model(m).Where("source_order_id = ?", orderID).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return m, nil
}

// BeginProcessing atomically moves the mapping for orderID into processing.
// It creates the mapping when absent, and otherwise only transitions from
// pending, failed, or a success that never produced a remote order. The
// returned bool reports whether this caller performed the transition.
func (r *Repository) BeginProcessing(ctx context.Context, orderID int64, trigger string) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.BeginProcessing", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("sync.trigger", trigger),
	))
	defer span.End()

	now := r.now()
	m := &entity.SyncMapping{
		SourceOrderID: orderID,
		Status:        entity.SyncStatusProcessing,
		Trigger:       trigger,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	res, err := r.writer.NewInsert().Model(m).Ignore().Returning("NULL").Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		span.SetAttributes(attribute.Bool("sync.created", true))
		return true, nil
	}

	res, err = r.writer.NewUpdate().
		Model((*entity.SyncMapping)(nil)).
		Set("sync_status = ?", entity.SyncStatusProcessing).
		Set("sync_trigger = ?", trigger).
		Set("updated_at = ?", now).
		Where("source_order_id = ?", orderID).
		WhereGroup(" AND ", func(q *bun.UpdateQuery) *bun.UpdateQuery {
			return q.
				Where("sync_status IN (?)", bun.In([]entity.SyncStatus{entity.SyncStatusPending, entity.SyncStatusFailed})).
				WhereOr("sync_status = ? AND remote_order_id IS NULL", entity.SyncStatusSuccess)
		}).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecordCustomer stores the remote customer id as soon as it is known.
func (r *Repository) RecordCustomer(ctx context.Context, orderID, customerID int64) error {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.RecordCustomer", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model((*entity.SyncMapping)(nil)).
		Set("remote_customer_id = ?", customerID).
		Set("updated_at = ?", r.now()).
		Where("source_order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// MarkSuccess records both remote ids and clears any previous error.
func (r *Repository) MarkSuccess(ctx context.Context, orderID, customerID, remoteOrderID int64) error {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.MarkSuccess", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	_, err := r.writer.NewUpdate().
		Model((*entity.SyncMapping)(nil)).
		Set("sync_status = ?", entity.SyncStatusSuccess).
		Set("remote_customer_id = ?", customerID).
		Set("remote_order_id = ?", remoteOrderID).
		Set("error_message = NULL").
		Set("updated_at = ?", r.now()).
		Where("source_order_id = ?", orderID).
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// MarkFailed records the failure reason. Remote ids obtained so far are kept;
// a positive customerID is stored as well so a retry can reuse it.
func (r *Repository) MarkFailed(ctx context.Context, orderID, customerID int64, reason string) error {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.MarkFailed", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	q := r.writer.NewUpdate().
		Model((*entity.SyncMapping)(nil)).
		Set("sync_status = ?", entity.SyncStatusFailed).
		Set("error_message = ?", reason).
		Set("updated_at = ?", r.now())
	if customerID > 0 {
		q = q.Set("remote_customer_id = ?", customerID)
	}
	_, err := q.Where("source_order_id = ?", orderID).Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
	}
	return err
}

// SetInvoice stores the remote invoice id. It only applies once the remote
// order exists and reports whether a row was updated.
func (r *Repository) SetInvoice(ctx context.Context, orderID, invoiceID int64) (bool, error) {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.SetInvoice", trace.WithAttributes(attribute.Int64("order.id", orderID)))
	defer span.End()

	res, err := r.writer.NewUpdate().
		Model((*entity.SyncMapping)(nil)).
		Set("remote_invoice_id = ?", invoiceID).
		Set("updated_at = ?", r.now()).
		Where("source_order_id = ?", orderID).
		Where("remote_order_id IS NOT NULL").
		Exec(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns mappings newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]entity.SyncMapping, error) {
	ctx, span := repoTracer.Start(ctx, "MappingRepository.List")
	defer span.End()

	var out []entity.SyncMapping
	q := r.reader.NewSelect().Model(&out).OrderExpr("created_at DESC, id DESC")
	if filter.Status != "" {
		q = q.Where("sync_status = ?", filter.Status)
	}
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

// Count returns the number of mappings, optionally restricted to one status.
func (r *Repository) Count(ctx context.Context, status entity.SyncStatus) (int, error) {
	q := r.reader.NewSelect().Model((*entity.SyncMapping)(nil))
	if status != "" {
		q = q.Where("sync_status = ?", status)
	}
	return q.Count(ctx)
}

// CountByStatus returns mapping counts keyed by status.
func (r *Repository) CountByStatus(ctx context.Context) (map[entity.SyncStatus]int, error) {
	var rows []struct {
		Status entity.SyncStatus `bun:"sync_status"`
		Total  int               `bun:"total"`
	}
	err := r.reader.NewSelect().
		Model((*entity.SyncMapping)(nil)).
		Column("sync_status").
		ColumnExpr("COUNT(*) AS total").
		Group("sync_status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, err
	}

	out := map[entity.SyncStatus]int{
		entity.SyncStatusPending:    0,
		entity.SyncStatusProcessing: 0,
		entity.SyncStatusSuccess:    0,
		entity.SyncStatusFailed:     0,
	}
	for _, row := range rows {
		out[row.Status] = row.Total
	}
	return out, nil
}
