package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/messaging"
)

// Kinds of administrative notification.
const (
	KindSyncSucceeded = "sync_succeeded"
	KindSyncFailed    = "sync_failed"
	KindInvoiceFailed = "invoice_failed"
)

// Notification is an email-style message for the store administrator.
// It is published on the bus; delivery is handled by a separate relay.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	OrderID   int64     `json:"order_id"`
	Kind      string    `json:"kind"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}

// SyncSucceeded builds the notification sent after an order reaches the ERP.
func SyncSucceeded(orderID, remoteOrderID int64) Notification {
	return Notification{
		OrderID: orderID,
		Kind:    KindSyncSucceeded,
		Subject: fmt.Sprintf("Order #%d synced to ERP", orderID),
		Body:    fmt.Sprintf("Order #%d has been successfully synced to ERP. Order ID: %d", orderID, remoteOrderID),
	}
}

// SyncFailed builds the notification sent when an order sync fails.
func SyncFailed(orderID int64, reason string) Notification {
	return Notification{
		OrderID: orderID,
		Kind:    KindSyncFailed,
		Subject: fmt.Sprintf("Error syncing order #%d to ERP", orderID),
		Body:    fmt.Sprintf("Error: %s", reason),
	}
}

// InvoiceFailed builds the notification sent when invoice creation fails.
func InvoiceFailed(orderID int64, reason string) Notification {
	return Notification{
		OrderID: orderID,
		Kind:    KindInvoiceFailed,
		Subject: fmt.Sprintf("Error creating invoice for order #%d in ERP", orderID),
		Body:    fmt.Sprintf("Error: %s", reason),
	}
}

// Params defines dependencies for constructing Notifier through Fx.
type Params struct {
	fx.In

	Publisher messaging.Client
	Config    config.Config
	Logger    *zap.Logger
}

// Module provides the notifier to Fx.
var Module = fx.Provide(func(p Params) *Notifier {
	return NewNotifier(p.Publisher, p.Config.Messaging.NotificationsTopic, p.Config.Sync.AdminEmail, p.Logger)
})

// Notifier publishes best-effort administrative notifications.
type Notifier struct {
	publisher messaging.Client
	topic     string
	recipient string
	logger    *zap.Logger
	now       func() time.Time
}

// NewNotifier builds a Notifier. An empty recipient disables delivery.
func NewNotifier(publisher messaging.Client, topic, recipient string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		publisher: publisher,
		topic:     topic,
		recipient: recipient,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Notify publishes msg. Failures are logged and never returned.
func (n *Notifier) Notify(ctx context.Context, msg Notification) {
	if n.recipient == "" || n.publisher == nil {
		n.logger.Debug("notification skipped; no recipient", zap.Int64("order_id", msg.OrderID), zap.String("kind", msg.Kind))
		return
	}

	msg.ID = uuid.NewString()
	msg.Recipient = n.recipient
	msg.CreatedAt = n.now()

	payload, err := json.Marshal(msg)
	if err != nil {
		n.logger.Error("marshal notification", zap.Error(err))
		return
	}
	key := []byte(fmt.Sprintf("order-%d", msg.OrderID))
	if err := n.publisher.PublishTo(ctx, n.topic, key, payload); err != nil {
		n.logger.Warn("publish notification failed",
			zap.Int64("order_id", msg.OrderID),
			zap.String("kind", msg.Kind),
			zap.Error(err),
		)
	}
}
