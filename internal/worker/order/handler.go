package order

import (
	"context"
	"encoding/json"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/messaging"
	"github.com/Additional-Code/erpsync/internal/service/erpsync"
	ordersvc "github.com/Additional-Code/erpsync/internal/service/order"
	"github.com/Additional-Code/erpsync/internal/worker"
)

var workerTracer = otel.Tracer("github.com/Additional-Code/erpsync/worker/order")

// Module registers order-related worker handlers.
var Module = fx.Module("worker_order",
	fx.Provide(
		fx.Annotate(
			NewOrderEventHandler,
			fx.ResultTags(`group:"worker.handlers"`),
		),
	),
)

// Syncer is the part of the orchestrator driven by order events.
type Syncer interface {
	SyncOrder(ctx context.Context, orderID int64, trigger string) bool
	CreateInvoice(ctx context.Context, orderID int64, trigger string) bool
}

// Params defines dependencies for the order event handler.
type Params struct {
	fx.In

	Orchestrator *erpsync.Orchestrator
	Config       config.Config
	Logger       *zap.Logger
}

// Plan is what an order event asks of the sync pipeline.
type Plan struct {
	Sync    bool
	Invoice bool
}

// PlanFor maps an event type to sync work under the given trigger policy.
// Invoices follow payment regardless of policy.
func PlanFor(policy, eventType string) Plan {
	var plan Plan
	switch policy {
	case config.TriggerOrderCreated:
		plan.Sync = eventType == ordersvc.EventCreated
	case config.TriggerPaymentReceived:
		plan.Sync = eventType == ordersvc.EventPaymentCompleted || eventType == ordersvc.EventStatusProcessing
	case config.TriggerOrderCompleted:
		plan.Sync = eventType == ordersvc.EventStatusCompleted
	}
	plan.Invoice = eventType == ordersvc.EventPaymentCompleted || eventType == ordersvc.EventStatusProcessing
	return plan
}

// NewOrderEventHandler registers the order events topic handler.
func NewOrderEventHandler(p Params) worker.HandlerRegistration {
	return worker.HandlerRegistration{
		Topic:   p.Config.Messaging.Kafka.Topic,
		Handler: newHandler(p.Orchestrator, p.Config.Sync.Trigger, p.Logger),
	}
}

func newHandler(syncer Syncer, policy string, logger *zap.Logger) messaging.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, msg messaging.Message) error {
		ctx, span := workerTracer.Start(ctx, "worker.orders.process", trace.WithAttributes(
			attribute.String("messaging.topic", msg.Topic),
			attribute.Int64("messaging.offset", msg.Offset),
		))
		defer span.End()

		var event ordersvc.Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			logger.Error("failed to decode order event", zap.Error(err))

			span.RecordError(err)
			span.SetStatus(codes.Error, "decode error")
			return err
		}
		if event.OrderID <= 0 || event.Type == "" {
			err := errors.New("order event without order id or type")
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid event")
			return err
		}
		span.SetAttributes(
			attribute.Int64("order.id", event.OrderID),
			attribute.String("order.event", event.Type),
		)

		plan := PlanFor(policy, event.Type)
		if !plan.Sync && !plan.Invoice {
			logger.Debug("order event ignored", zap.String("type", event.Type), zap.Int64("order_id", event.OrderID))
			return nil
		}

		fields := []zap.Field{zap.String("type", event.Type), zap.Int64("order_id", event.OrderID)}
		if plan.Sync {
			synced := syncer.SyncOrder(ctx, event.OrderID, event.Type)
			logger.Info("order event synced", append(fields, zap.Bool("synced", synced))...)
		}
		if plan.Invoice {
			invoiced := syncer.CreateInvoice(ctx, event.OrderID, event.Type)
			logger.Info("order event invoiced", append(fields, zap.Bool("invoiced", invoiced))...)
		}

		// Outcomes are persisted on the mapping; retries go through the admin surface.
		return nil
	}
}
