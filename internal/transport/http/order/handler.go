package order

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/erpsync/internal/dto"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/presentation/http/request"
	"github.com/Additional-Code/erpsync/internal/presentation/http/response"
	service "github.com/Additional-Code/erpsync/internal/service/order"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/erpsync/transport/http/order")

// Service is the order behaviour exposed over HTTP.
type Service interface {
	Get(ctx context.Context, id int64) (*entity.Order, error)
	Create(ctx context.Context, order *entity.Order) error
	MarkPaid(ctx context.Context, id int64) (*entity.Order, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*entity.Order, error)
}

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc Service
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service) *Handler {
	return &Handler{svc: svc}
}

// Register routes with provided Echo group.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group("/orders")
	g.GET("/:id", h.getByID)
	g.POST("", h.create)
	g.POST("/:id/paid", h.markPaid)
	g.POST("/:id/status", h.updateStatus)
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CreateOrderRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	order := fromRequest(payload)

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(
		attribute.String("order.number", order.Number),
		attribute.Int("order.items", len(order.Items)),
	)
	defer span.End()

	if err := h.svc.Create(ctx, order); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(toDTO(order)).Build()
}

func (h *Handler) markPaid(c echo.Context) error {
	b := response.New(c)

	id, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.markPaid", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.MarkPaid(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func (h *Handler) updateStatus(c echo.Context) error {
	b := response.New(c)

	id, err := request.PathID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	var payload dto.UpdateStatusRequest
	if err := request.Bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.updateStatus", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.String("order.status", payload.Status),
	))
	defer span.End()

	order, err := h.svc.UpdateStatus(ctx, id, payload.Status)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(toDTO(order)).Build()
}

func fromRequest(req dto.CreateOrderRequest) *entity.Order {
	order := &entity.Order{
		Number:           req.Number,
		Status:           req.Status,
		Currency:         req.Currency,
		BillingFirstName: req.Billing.FirstName,
		BillingLastName:  req.Billing.LastName,
		BillingCompany:   req.Billing.Company,
		BillingPhone:     req.Billing.Phone,
		BillingEmail:     req.Billing.Email,
		BillingAddress:   req.Billing.Address,
		BillingCity:      req.Billing.City,
		BillingPostcode:  req.Billing.Postcode,
		BillingCountry:   req.Billing.Country,
		ShippingTotal:    req.ShippingTotal,
		TotalTax:         req.TotalTax,
	}
	for _, item := range req.Items {
		order.Items = append(order.Items, &entity.OrderItem{
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
			Total:     item.Total,
		})
	}
	return order
}

func toDTO(order *entity.Order) dto.OrderResponse {
	out := dto.OrderResponse{
		ID:       order.ID,
		Number:   order.Number,
		Status:   order.Status,
		Currency: order.Currency,
		Billing: dto.Billing{
			FirstName: order.BillingFirstName,
			LastName:  order.BillingLastName,
			Company:   order.BillingCompany,
			Phone:     order.BillingPhone,
			Email:     order.BillingEmail,
			Address:   order.BillingAddress,
			City:      order.BillingCity,
			Postcode:  order.BillingPostcode,
			Country:   order.BillingCountry,
		},
		ShippingTotal: order.ShippingTotal,
		TotalTax:      order.TotalTax,
		Items:         make([]dto.OrderItemResponse, 0, len(order.Items)),
		PaidAt:        order.PaidAt,
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	for _, item := range order.Items {
		out.Items = append(out.Items, dto.OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			SKU:       item.SKU,
			Name:      item.Name,
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal,
			Total:     item.Total,
		})
	}
	return out
}
