package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/cache"
	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/messaging"
	repo "github.com/Additional-Code/erpsync/internal/repository/order"
	"github.com/Additional-Code/erpsync/pkg/errorbank"
)

var serviceTracer = otel.Tracer("github.com/Additional-Code/erpsync/service/order")

var knownStatuses = map[string]bool{
	entity.OrderStatusPending:    true,
	entity.OrderStatusProcessing: true,
	entity.OrderStatusOnHold:     true,
	entity.OrderStatusCompleted:  true,
	entity.OrderStatusCancelled:  true,
	entity.OrderStatusRefunded:   true,
	entity.OrderStatusFailed:     true,
	entity.OrderStatusDraft:      true,
	entity.OrderStatusAutoDraft:  true,
	entity.OrderStatusTrash:      true,
}

// Service encapsulates business logic around orders.
type Service struct {
	repo      *repo.Repository
	cache     cache.Store
	cacheTTL  time.Duration
	logger    *zap.Logger
	publisher messaging.Client
	messaging messagingConfig
	now       func() time.Time
}

// messagingConfig contains messaging specific knobs we care about.
type messagingConfig struct {
	enabled bool
}

// Params defines dependencies for constructing Service.
type Params struct {
	fx.In

	Repository *repo.Repository
	Cache      cache.Store
	Config     config.Config
	Logger     *zap.Logger
	Publisher  messaging.Client
}

// NewService wires a new Service instance.
func NewService(p Params) *Service {
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      p.Repository,
		cache:     p.Cache,
		cacheTTL:  p.Config.Cache.DefaultTTL,
		logger:    logger,
		publisher: p.Publisher,
		messaging: messagingConfig{
			enabled: p.Config.Messaging.Enabled,
		},
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Get retrieves an order by id, consulting cache when available.
func (s *Service) Get(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.Get", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if order, err := s.getFromCache(ctx, id); err == nil {
		return order, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		s.logger.Warn("orders cache read failed", zap.Int64("id", id), zap.Error(err))
	}

	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repositoryError(span, err, "failed to load order")
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", id), zap.Error(err))
	}

	return order, nil
}

// Create validates and persists a new order with its items, then announces it.
func (s *Service) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errorbank.BadRequest("order payload is required")
	}
	if err := s.normalize(order); err != nil {
		return err
	}
	ctx, span := serviceTracer.Start(ctx, "OrderService.Create", trace.WithAttributes(attribute.String("order.number", order.Number)))
	defer span.End()

	if err := s.repo.Create(ctx, order); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "repository error")
		return errorbank.Internal("failed to create order", errorbank.WithCause(err))
	}

	if err := s.storeInCache(ctx, order); err != nil {
		s.logger.Warn("orders cache write failed", zap.Int64("id", order.ID), zap.Error(err))
	}

	s.publish(ctx, order, EventCreated)
	return nil
}

// MarkPaid records the payment and moves the order to processing. It
// announces both the payment and the status change.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := serviceTracer.Start(ctx, "OrderService.MarkPaid", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := s.repo.MarkPaid(ctx, id, s.now()); err != nil {
		return nil, s.repositoryError(span, err, "failed to mark order paid")
	}

	order, err := s.reload(ctx, span, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, order, EventPaymentCompleted)
	s.publish(ctx, order, EventStatusProcessing)
	return order, nil
}

// UpdateStatus moves the order to status and announces the change.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status string) (*entity.Order, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !knownStatuses[status] {
		return nil, errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", status))
	}

	ctx, span := serviceTracer.Start(ctx, "OrderService.UpdateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", status),
	))
	defer span.End()

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, s.repositoryError(span, err, "failed to update order status")
	}

	order, err := s.reload(ctx, span, id)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, order, StatusEvent(status))
	return order, nil
}

func (s *Service) normalize(order *entity.Order) error {
	order.Number = strings.TrimSpace(order.Number)
	if order.Number == "" {
		return errorbank.BadRequest("order number is required")
	}
	order.Currency = strings.ToUpper(strings.TrimSpace(order.Currency))
	if order.Currency == "" {
		return errorbank.BadRequest("order currency is required")
	}
	order.Status = strings.ToLower(strings.TrimSpace(order.Status))
	if order.Status == "" {
		order.Status = entity.OrderStatusPending
	}
	if !knownStatuses[order.Status] {
		return errorbank.BadRequest("unknown order status", errorbank.WithDetail("status", order.Status))
	}
	for i, item := range order.Items {
		if item == nil {
			return errorbank.BadRequest("order item is required", errorbank.WithDetail("index", i))
		}
	}
	if order.CreatedAt.IsZero() {
		now := s.now()
		order.CreatedAt = now
		order.UpdatedAt = now
	}
	return nil
}

// reload drops the cached copy and reads the order back from the store.
func (s *Service) reload(ctx context.Context, span trace.Span, id int64) (*entity.Order, error) {
	if s.cache != nil {
		if err := s.cache.Delete(ctx, s.cacheKey(id)); err != nil {
			s.logger.Warn("orders cache delete failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	order, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, s.repositoryError(span, err, "failed to load order")
	}
	return order, nil
}

func (s *Service) repositoryError(span trace.Span, err error, message string) error {
	if errors.Is(err, repo.ErrNotFound) {
		return errorbank.NotFound("order not found")
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "repository error")
	return errorbank.Internal(message, errorbank.WithCause(err))
}

func (s *Service) publish(ctx context.Context, order *entity.Order, eventType string) {
	if !s.messaging.enabled || s.publisher == nil {
		return
	}
	event := Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OrderID:    order.ID,
		Number:     order.Number,
		Status:     order.Status,
		OccurredAt: s.now(),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal order event", zap.String("type", eventType), zap.Error(err))
		return
	}
	if err := s.publisher.Publish(ctx, []byte(fmt.Sprintf("order-%d", order.ID)), payload); err != nil {
		s.logger.Error("publish order event",
			zap.String("type", eventType),
			zap.Int64("order_id", order.ID),
			zap.Error(err),
		)
	}
}

func (s *Service) cacheKey(id int64) string {
	return fmt.Sprintf("orders:%d", id)
}

func (s *Service) getFromCache(ctx context.Context, id int64) (*entity.Order, error) {
	if s.cache == nil {
		return nil, cache.ErrCacheMiss
	}
	bytes, err := s.cache.Get(ctx, s.cacheKey(id))
	if err != nil {
		return nil, err
	}
	var order entity.Order
	if err := json.Unmarshal(bytes, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Service) storeInCache(ctx context.Context, order *entity.Order) error {
	if s.cache == nil || order == nil {
		return nil
	}
	bytes, err := json.Marshal(order)
	if err != nil {
		return err
	}
	return s.cache.Set(ctx, s.cacheKey(order.ID), bytes, s.cacheTTL)
}
