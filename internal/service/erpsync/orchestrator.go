package erpsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/catalog"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/erp"
	"github.com/Additional-Code/erpsync/internal/notify"
	"github.com/Additional-Code/erpsync/internal/repository/mapping"
	orderrepo "github.com/Additional-Code/erpsync/internal/repository/order"
)

// TriggerManual is recorded when a sync is started without an event.
const TriggerManual = "manual"

var (
	serviceTracer = otel.Tracer("github.com/Additional-Code/erpsync/service/erpsync")
	serviceMeter  = otel.Meter("github.com/Additional-Code/erpsync/service/erpsync")
)

// ErrNoValidItems is returned when an order has nothing the ERP can accept.
var ErrNoValidItems = errors.New("order has no valid items")

// OrderSource loads local orders with their items.
type OrderSource interface {
	GetByID(ctx context.Context, id int64) (*entity.Order, error)
}

// MappingStore persists per-order sync state.
type MappingStore interface {
	Get(ctx context.Context, orderID int64) (*entity.SyncMapping, error)
	BeginProcessing(ctx context.Context, orderID int64, trigger string) (bool, error)
	RecordCustomer(ctx context.Context, orderID, customerID int64) error
	MarkSuccess(ctx context.Context, orderID, customerID, remoteOrderID int64) error
	MarkFailed(ctx context.Context, orderID, customerID int64, reason string) error
	SetInvoice(ctx context.Context, orderID, invoiceID int64) (bool, error)
}

// LogSink stores audit entries.
type LogSink interface {
	Add(ctx context.Context, entry *entity.SyncLog) error
}

// Remote creates records in the ERP.
type Remote interface {
	CreateCustomer(ctx context.Context, customer erp.Customer) (int64, error)
	CreateOrder(ctx context.Context, order erp.Order) (int64, error)
	CreateInvoice(ctx context.Context, invoice erp.Invoice) (int64, error)
}

// Catalog resolves ERP lookup ids.
type Catalog interface {
	SaleTypeID(ctx context.Context) (*int64, error)
	CurrencyID(ctx context.Context, code string) (*int64, error)
	Items(ctx context.Context) (*catalog.ItemIndex, error)
}

// Notifier delivers administrative notifications.
type Notifier interface {
	Notify(ctx context.Context, msg notify.Notification)
}

// Deps groups the collaborators of an Orchestrator.
type Deps struct {
	Orders   OrderSource
	Mappings MappingStore
	Logs     LogSink
	Remote   Remote
	Catalog  Catalog
	Notifier Notifier
}

// Orchestrator drives orders through customer, order and invoice creation in
// the ERP and records the outcome of every attempt.
type Orchestrator struct {
	deps     Deps
	enabled  bool
	logger   *zap.Logger
	now      func() time.Time
	syncs    metric.Int64Counter
	invoices metric.Int64Counter
}

// New builds an Orchestrator. When enabled is false every operation is a no-op returning false.
func New(deps Deps, enabled bool, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		deps:    deps,
		enabled: enabled,
		logger:  logger.Named("erpsync"),
		now:     func() time.Time { return time.Now().UTC() },
	}

	var err error
	if o.syncs, err = serviceMeter.Int64Counter("erpsync.sync.attempts",
		metric.WithDescription("Order sync attempts by outcome"),
	); err != nil {
		o.logger.Warn("sync counter unavailable", zap.Error(err))
	}
	if o.invoices, err = serviceMeter.Int64Counter("erpsync.invoice.attempts",
		metric.WithDescription("Invoice creation attempts by outcome"),
	); err != nil {
		o.logger.Warn("invoice counter unavailable", zap.Error(err))
	}
	return o
}

// Enabled reports whether the integration is switched on.
func (o *Orchestrator) Enabled() bool {
	return o.enabled
}

// SyncOrder pushes the order to the ERP and reports whether the order is synced.
// A successful earlier sync makes this a no-op returning true.
func (o *Orchestrator) SyncOrder(ctx context.Context, orderID int64, trigger string) bool {
	if trigger == "" {
		trigger = TriggerManual
	}
	ctx, span := serviceTracer.Start(ctx, "Orchestrator.SyncOrder", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("sync.trigger", trigger),
	))
	defer span.End()

	if orderID <= 0 {
		return false
	}

	order, ok := o.loadOrder(ctx, orderID, "Order not found")
	if !ok {
		o.countSync(ctx, "not_found")
		return false
	}

	if !o.eligible(order) {
		o.audit(ctx, orderID, entity.LogInfo, "Order should not be synced (integration disabled or invalid order)", map[string]any{
			"status": order.Status,
		})
		o.countSync(ctx, "skipped")
		return false
	}

	current, err := o.deps.Mappings.Get(ctx, orderID)
	switch {
	case err == nil:
		if current.Status == entity.SyncStatusSuccess && current.HasRemoteOrder() {
			o.audit(ctx, orderID, entity.LogInfo, "Order already synced to ERP", nil)
			o.countSync(ctx, "already_synced")
			return true
		}
		if current.Status == entity.SyncStatusProcessing {
			o.audit(ctx, orderID, entity.LogInfo, "Order sync already in progress, skipping", nil)
			o.countSync(ctx, "in_progress")
			return false
		}
	case errors.Is(err, mapping.ErrNotFound):
		current = nil
	default:
		span.RecordError(err)
		o.audit(ctx, orderID, entity.LogError, "Failed to load sync mapping: "+err.Error(), nil)
		return false
	}

	won, err := o.deps.Mappings.BeginProcessing(ctx, orderID, trigger)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "begin processing")
		o.audit(ctx, orderID, entity.LogError, "Failed to update sync mapping: "+err.Error(), nil)
		return false
	}
	if !won {
		o.audit(ctx, orderID, entity.LogInfo, "Order sync already in progress, skipping", nil)
		o.countSync(ctx, "in_progress")
		return false
	}

	attempt := uuid.NewString()
	span.SetAttributes(attribute.String("sync.attempt", attempt))
	o.logger.Info("order sync started",
		zap.Int64("order_id", orderID),
		zap.String("trigger", trigger),
		zap.String("attempt", attempt),
	)

	customerID, remoteOrderID, err := o.push(ctx, order, current)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "sync failed")
		o.fail(ctx, orderID, customerID, err)
		o.countSync(ctx, "failed")
		return false
	}

	// The row stays processing if this write fails: marking it failed would
	// let a retry create a second remote order. The ids go to the sync log.
	if err := o.deps.Mappings.MarkSuccess(settled(ctx), orderID, customerID, remoteOrderID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "mark success")
		o.audit(ctx, orderID, entity.LogError, "Failed to record sync result: "+err.Error(), map[string]any{
			"remote_order_id":    remoteOrderID,
			"remote_customer_id": customerID,
		})
		o.countSync(ctx, "failed")
		return false
	}

	o.audit(ctx, orderID, entity.LogSuccess, "Order synced successfully to ERP", map[string]any{
		"remote_order_id":    remoteOrderID,
		"remote_customer_id": customerID,
		"attempt":            attempt,
	})
	o.notify(ctx, notify.SyncSucceeded(orderID, remoteOrderID))
	o.countSync(ctx, "success")
	return true
}

// CreateInvoice creates the ERP invoice for a paid order, syncing the order
// first when needed. It reports whether the invoice exists.
func (o *Orchestrator) CreateInvoice(ctx context.Context, orderID int64, trigger string) bool {
	if trigger == "" {
		trigger = TriggerManual
	}
	ctx, span := serviceTracer.Start(ctx, "Orchestrator.CreateInvoice", trace.WithAttributes(
		attribute.Int64("order.id", orderID),
		attribute.String("sync.trigger", trigger),
	))
	defer span.End()

	if orderID <= 0 {
		return false
	}

	order, ok := o.loadOrder(ctx, orderID, "Order not found for invoice creation")
	if !ok {
		o.countInvoice(ctx, "not_found")
		return false
	}
	if !o.enabled {
		o.countInvoice(ctx, "skipped")
		return false
	}
	if !order.IsPaid() {
		o.audit(ctx, orderID, entity.LogInfo, "Order is not paid yet, skipping invoice creation", nil)
		o.countInvoice(ctx, "skipped")
		return false
	}

	current := o.mappingOrNil(ctx, orderID)
	if !current.HasRemoteOrder() {
		o.SyncOrder(ctx, orderID, trigger)
		current = o.mappingOrNil(ctx, orderID)
	}
	if !current.HasRemoteOrder() {
		o.audit(ctx, orderID, entity.LogError, "Cannot create invoice: Order not synced to ERP", nil)
		o.countInvoice(ctx, "not_synced")
		return false
	}

	if current.RemoteInvoiceID != nil {
		o.audit(ctx, orderID, entity.LogInfo, "Invoice already created in ERP", map[string]any{
			"remote_invoice_id": *current.RemoteInvoiceID,
		})
		o.countInvoice(ctx, "already_created")
		return true
	}

	invoice := erp.Invoice{
		OrderID:    *current.RemoteOrderID,
		CustomerID: derefInt64(current.RemoteCustomerID),
		SaleTypeID: o.saleTypeID(ctx, orderID),
		CurrencyID: o.currencyID(ctx, orderID, order.Currency),
		Date:       order.PaidAt.Format(dateLayout),
	}

	invoiceID, err := o.deps.Remote.CreateInvoice(ctx, invoice)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create invoice")
		reason := "Failed to create invoice in ERP: " + erp.Reason(err)
		o.audit(ctx, orderID, entity.LogError, "Failed to create invoice: "+reason, map[string]any{
			"invoice_data": invoice,
		})
		o.notify(ctx, notify.InvoiceFailed(orderID, reason))
		o.countInvoice(ctx, "failed")
		return false
	}

	updated, err := o.deps.Mappings.SetInvoice(settled(ctx), orderID, invoiceID)
	if err != nil || !updated {
		if err == nil {
			err = errors.New("mapping has no remote order")
		}
		span.RecordError(err)
		o.audit(ctx, orderID, entity.LogError, "Failed to record invoice: "+err.Error(), map[string]any{
			"remote_invoice_id": invoiceID,
		})
		o.countInvoice(ctx, "failed")
		return false
	}

	o.audit(ctx, orderID, entity.LogSuccess, "Invoice created successfully in ERP", map[string]any{
		"remote_invoice_id": invoiceID,
	})
	o.countInvoice(ctx, "success")
	return true
}

func (o *Orchestrator) loadOrder(ctx context.Context, orderID int64, missingMessage string) (*entity.Order, bool) {
	order, err := o.deps.Orders.GetByID(ctx, orderID)
	if err == nil {
		return order, true
	}
	if errors.Is(err, orderrepo.ErrNotFound) {
		o.audit(ctx, orderID, entity.LogError, missingMessage, nil)
	} else {
		o.audit(ctx, orderID, entity.LogError, "Failed to load order: "+err.Error(), nil)
	}
	return nil, false
}

func (o *Orchestrator) mappingOrNil(ctx context.Context, orderID int64) *entity.SyncMapping {
	m, err := o.deps.Mappings.Get(ctx, orderID)
	if err != nil {
		if !errors.Is(err, mapping.ErrNotFound) {
			o.logger.Warn("load sync mapping failed", zap.Int64("order_id", orderID), zap.Error(err))
		}
		return nil
	}
	return m
}

func (o *Orchestrator) eligible(order *entity.Order) bool {
	if !o.enabled || order == nil || order.ID <= 0 {
		return false
	}
	switch order.Status {
	case entity.OrderStatusDraft, entity.OrderStatusAutoDraft, entity.OrderStatusTrash:
		return false
	}
	return true
}

// fail closes the attempt. customerID is stored when the customer step
// already succeeded so a retry reuses it.
func (o *Orchestrator) fail(ctx context.Context, orderID, customerID int64, err error) {
	reason := err.Error()
	if markErr := o.deps.Mappings.MarkFailed(settled(ctx), orderID, customerID, reason); markErr != nil {
		o.logger.Error("mark sync failed", zap.Int64("order_id", orderID), zap.Error(markErr))
	}
	var payload map[string]any
	var stepErr *stepError
	if errors.As(err, &stepErr) {
		payload = stepErr.payload
	}
	o.audit(ctx, orderID, entity.LogError, "Failed to sync order: "+reason, payload)
	o.notify(settled(ctx), notify.SyncFailed(orderID, reason))
}

// settled detaches writes that close an attempt from the caller's
// cancellation, so a stopping worker or a dropped HTTP client cannot leave a
// mapping in processing.
func settled(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}

func (o *Orchestrator) audit(ctx context.Context, orderID int64, kind entity.LogKind, message string, payload map[string]any) {
	fields := []zap.Field{zap.Int64("order_id", orderID), zap.String("kind", string(kind))}
	switch kind {
	case entity.LogError:
		o.logger.Error(message, fields...)
	case entity.LogWarning:
		o.logger.Warn(message, fields...)
	default:
		o.logger.Info(message, fields...)
	}

	if o.deps.Logs == nil {
		return
	}
	id := orderID
	entry := &entity.SyncLog{SourceOrderID: &id, Kind: kind, Message: message, Payload: payload}
	if err := o.deps.Logs.Add(settled(ctx), entry); err != nil {
		o.logger.Error("write sync log entry", zap.Int64("order_id", orderID), zap.Error(err))
	}
}

func (o *Orchestrator) notify(ctx context.Context, msg notify.Notification) {
	if o.deps.Notifier != nil {
		o.deps.Notifier.Notify(ctx, msg)
	}
}

func (o *Orchestrator) countSync(ctx context.Context, outcome string) {
	if o.syncs != nil {
		o.syncs.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (o *Orchestrator) countInvoice(ctx context.Context, outcome string) {
	if o.invoices != nil {
		o.invoices.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

// stepError carries the persisted failure text of a sync step and the
// request data worth keeping in the sync log.
type stepError struct {
	message string
	err     error
	payload map[string]any
}

func (e *stepError) Error() string { return e.message }

func (e *stepError) Unwrap() error { return e.err }

func stepFailed(prefix string, err error) *stepError {
	return &stepError{message: fmt.Sprintf("%s: %s", prefix, erp.Reason(err)), err: err}
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}
