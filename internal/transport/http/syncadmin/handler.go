// Package syncadmin exposes the ERP sync administration endpoints.
package syncadmin

import (
	"context"
	"errors"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	"github.com/Additional-Code/erpsync/internal/dto"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/erp"
	"github.com/Additional-Code/erpsync/internal/presentation/http/request"
	"github.com/Additional-Code/erpsync/internal/presentation/http/response"
	"github.com/Additional-Code/erpsync/internal/repository/mapping"
	"github.com/Additional-Code/erpsync/internal/repository/synclog"
	"github.com/Additional-Code/erpsync/internal/service/erpsync"
	"github.com/Additional-Code/erpsync/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/erpsync/transport/http/syncadmin")

// Syncer runs sync attempts.
type Syncer interface {
	Enabled() bool
	SyncOrder(ctx context.Context, orderID int64, trigger string) bool
	CreateInvoice(ctx context.Context, orderID int64, trigger string) bool
}

// Mappings reads sync state.
type Mappings interface {
	Get(ctx context.Context, orderID int64) (*entity.SyncMapping, error)
	List(ctx context.Context, filter mapping.ListFilter) ([]entity.SyncMapping, error)
	Count(ctx context.Context, status entity.SyncStatus) (int, error)
	CountByStatus(ctx context.Context) (map[entity.SyncStatus]int, error)
}

// Logs reads and prunes the audit log.
type Logs interface {
	List(ctx context.Context, filter synclog.Filter) ([]entity.SyncLog, error)
	Count(ctx context.Context, filter synclog.Filter) (int, error)
	CountByKind(ctx context.Context, kind entity.LogKind) (int, error)
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// Remote fetches ERP records for display.
type Remote interface {
	GetOrder(ctx context.Context, id int64) (*erp.Response, error)
	GetInvoice(ctx context.Context, id int64) (*erp.Response, error)
	Ping(ctx context.Context) error
}

// Handler serves the sync administration API.
type Handler struct {
	syncer   Syncer
	mappings Mappings
	logs     Logs
	remote   Remote
}

// Params defines dependencies for constructing Handler through Fx.
type Params struct {
	fx.In

	Orchestrator *erpsync.Orchestrator
	Mappings     *mapping.Repository
	Logs         *synclog.Repository
	Client       *erp.Client
}

// NewHandler constructs a sync Handler.
func NewHandler(p Params) *Handler {
	return &Handler{syncer: p.Orchestrator, mappings: p.Mappings, logs: p.Logs, remote: p.Client}
}

// Module wires the sync admin endpoints.
var Module = fx.Options(
	fx.Provide(NewHandler),
	fx.Invoke(Register),
)

// Register routes with the provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/sync")
	g.POST("/orders/:id", h.syncOrder)
	g.POST("/orders/:id/invoice", h.createInvoice)
	g.GET("/mappings", h.listMappings)
	g.GET("/mappings/:orderId", h.getMapping)
	g.GET("/mappings/:orderId/remote-order", h.remoteOrder)
	g.GET("/mappings/:orderId/remote-invoice", h.remoteInvoice)
	g.GET("/logs", h.listLogs)
	g.DELETE("/logs", h.pruneLogs)
	g.GET("/stats", h.stats)
	g.GET("/erp/ping", h.ping)
}

func (h *Handler) syncOrder(c echo.Context) error {
	return h.run(c, "sync.order", h.syncer.SyncOrder)
}

func (h *Handler) createInvoice(c echo.Context) error {
	return h.run(c, "sync.invoice", h.syncer.CreateInvoice)
}

func (h *Handler) run(c echo.Context, spanName string, op func(context.Context, int64, string) bool) error {
	b := response.New(c)

	id, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	if !h.syncer.Enabled() {
		return b.WithError(errorbank.Conflict("ERP sync is disabled")).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), spanName, trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	ok := op(ctx, id, erpsync.TriggerManual)
	span.SetAttributes(attribute.Bool("sync.success", ok))

	result := dto.SyncResult{OrderID: id, Success: ok}
	m, err := h.mappings.Get(ctx, id)
	switch {
	case err == nil:
		result.Mapping = toMappingDTO(m)
	case !errors.Is(err, mapping.ErrNotFound):
		return b.WithError(errorbank.Internal("failed to load sync mapping", errorbank.WithCause(err))).Build()
	}
	return b.WithData(result).Build()
}

func (h *Handler) listMappings(c echo.Context) error {
	b := response.New(c)

	page, perPage, err := request.Page(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	status := entity.SyncStatus(c.QueryParam("status"))
	if status != "" && !status.Valid() {
		return b.WithError(errorbank.BadRequest("invalid status", errorbank.WithDetail("status", status))).Build()
	}

	ctx := c.Request().Context()
	rows, err := h.mappings.List(ctx, mapping.ListFilter{Status: status, Limit: perPage, Offset: (page - 1) * perPage})
	if err != nil {
		return b.WithError(errorbank.Internal("failed to list sync mappings", errorbank.WithCause(err))).Build()
	}
	total, err := h.mappings.Count(ctx, status)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to count sync mappings", errorbank.WithCause(err))).Build()
	}

	out := make([]dto.MappingResponse, 0, len(rows))
	for i := range rows {
		out = append(out, *toMappingDTO(&rows[i]))
	}
	return b.WithData(out).
		WithPage(page, perPage, total).
		Build()
}

func (h *Handler) getMapping(c echo.Context) error {
	b := response.New(c)

	m, err := h.loadMapping(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toMappingDTO(m)).Build()
}

func (h *Handler) remoteOrder(c echo.Context) error {
	b := response.New(c)

	m, err := h.loadMapping(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	if !m.HasRemoteOrder() {
		return b.WithError(errorbank.NotFound("order is not synced to ERP")).Build()
	}

	resp, err := h.remote.GetOrder(c.Request().Context(), *m.RemoteOrderID)
	if err != nil {
		return b.WithError(upstream(err)).Build()
	}
	return b.WithData(resp.Data).WithMeta("remote_order_id", *m.RemoteOrderID).Build()
}

func (h *Handler) remoteInvoice(c echo.Context) error {
	b := response.New(c)

	m, err := h.loadMapping(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	if m.RemoteInvoiceID == nil {
		return b.WithError(errorbank.NotFound("invoice is not created in ERP")).Build()
	}

	resp, err := h.remote.GetInvoice(c.Request().Context(), *m.RemoteInvoiceID)
	if err != nil {
		return b.WithError(upstream(err)).Build()
	}
	return b.WithData(resp.Data).WithMeta("remote_invoice_id", *m.RemoteInvoiceID).Build()
}

func (h *Handler) listLogs(c echo.Context) error {
	b := response.New(c)

	page, perPage, err := request.Page(c)
	if err != nil {
		return b.WithError(err).Build()
	}
	filter := synclog.Filter{Kind: entity.LogKind(c.QueryParam("kind"))}
	if filter.Kind != "" && !filter.Kind.Valid() {
		return b.WithError(errorbank.BadRequest("invalid kind", errorbank.WithDetail("kind", filter.Kind))).Build()
	}
	if raw := c.QueryParam("order_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return b.WithError(errorbank.BadRequest("invalid order_id", errorbank.WithDetail("order_id", raw))).Build()
		}
		filter.OrderID = &id
	}

	ctx := c.Request().Context()
	total, err := h.logs.Count(ctx, filter)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to count sync logs", errorbank.WithCause(err))).Build()
	}
	filter.Limit, filter.Offset = perPage, (page-1)*perPage
	rows, err := h.logs.List(ctx, filter)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to list sync logs", errorbank.WithCause(err))).Build()
	}

	out := make([]dto.LogResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, dto.LogResponse{
			ID:            row.ID,
			SourceOrderID: row.SourceOrderID,
			Kind:          string(row.Kind),
			Message:       row.Message,
			Payload:       row.Payload,
			CreatedAt:     row.CreatedAt,
		})
	}
	return b.WithData(out).
		WithPage(page, perPage, total).
		Build()
}

func (h *Handler) pruneLogs(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	var (
		deleted int64
		err     error
	)
	switch {
	case c.QueryParam("all") == "true":
		deleted, err = h.logs.DeleteAll(ctx)
	default:
		days, convErr := strconv.Atoi(c.QueryParam("days"))
		if convErr != nil || days <= 0 {
			return b.WithError(errorbank.BadRequest("days must be a positive integer")).Build()
		}
		deleted, err = h.logs.DeleteOlderThan(ctx, days)
	}
	if err != nil {
		return b.WithError(errorbank.Internal("failed to prune sync logs", errorbank.WithCause(err))).Build()
	}
	return b.WithData(dto.PruneResponse{Deleted: deleted}).Build()
}

func (h *Handler) stats(c echo.Context) error {
	b := response.New(c)
	ctx := c.Request().Context()

	byStatus, err := h.mappings.CountByStatus(ctx)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to count sync mappings", errorbank.WithCause(err))).Build()
	}
	errorsLogged, err := h.logs.CountByKind(ctx, entity.LogError)
	if err != nil {
		return b.WithError(errorbank.Internal("failed to count sync logs", errorbank.WithCause(err))).Build()
	}

	out := dto.StatsResponse{Mappings: make(map[string]int, len(byStatus)), Errors: errorsLogged}
	for status, n := range byStatus {
		out.Mappings[string(status)] = n
		out.Total += n
	}
	return b.WithData(out).Build()
}

func (h *Handler) ping(c echo.Context) error {
	b := response.New(c)

	ctx, span := httpTracer.Start(c.Request().Context(), "sync.ping")
	defer span.End()

	if err := h.remote.Ping(ctx); err != nil {
		span.RecordError(err)
		return b.WithError(upstream(err)).Build()
	}
	return b.WithData(dto.PingResponse{Connected: true}).Build()
}

func (h *Handler) loadMapping(c echo.Context) (*entity.SyncMapping, error) {
	id, err := request.PathID(c, "orderId")
	if err != nil {
		return nil, err
	}
	m, err := h.mappings.Get(c.Request().Context(), id)
	if errors.Is(err, mapping.ErrNotFound) {
		return nil, errorbank.NotFound("sync mapping not found")
	}
	if err != nil {
		return nil, errorbank.Internal("failed to load sync mapping", errorbank.WithCause(err))
	}
	return m, nil
}

func upstream(err error) error {
	return errorbank.Upstream(erp.Reason(err), errorbank.WithCause(err))
}

func toMappingDTO(m *entity.SyncMapping) *dto.MappingResponse {
	return &dto.MappingResponse{
		SourceOrderID:    m.SourceOrderID,
		RemoteCustomerID: m.RemoteCustomerID,
		RemoteOrderID:    m.RemoteOrderID,
		RemoteInvoiceID:  m.RemoteInvoiceID,
		Status:           string(m.Status),
		Trigger:          m.Trigger,
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}
