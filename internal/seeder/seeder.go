package seeder

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/database"
	"github.com/Additional-Code/erpsync/internal/entity"
	orderrepo "github.com/Additional-Code/erpsync/internal/repository/order"
)

// Module provides the seeder to Fx.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	orders *orderrepo.Repository
	logger *zap.Logger
	now    func() time.Time
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, orders *orderrepo.Repository, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, orders: orders, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// Orders seeds example orders with line items if they are missing. One order
// is paid so the invoice path can be exercised locally.
func (s *Seeder) Orders(ctx context.Context) (int, error) {
	now := s.now()
	paid := now.Add(-time.Hour)
	tea, mug := int64(1001), int64(1002)

	samples := []*entity.Order{
		{
			Number:           "ORDER-1000",
			Status:           entity.OrderStatusPending,
			Currency:         "USD",
			BillingFirstName: "Sara",
			BillingLastName:  "Ahmadi",
			BillingEmail:     "sara@example.com",
			BillingCity:      "Tehran",
			BillingCountry:   "IR",
			ShippingTotal:    decimal.NewFromInt(5),
			TotalTax:         decimal.Zero,
			CreatedAt:        now,
			UpdatedAt:        now,
			Items: []*entity.OrderItem{
				{ProductID: &tea, SKU: "TEA-GREEN", Name: "Green tea", Quantity: decimal.NewFromInt(2), Subtotal: decimal.NewFromInt(24), Total: decimal.NewFromInt(20)},
			},
		},
		{
			Number:         "ORDER-1001",
			Status:         entity.OrderStatusProcessing,
			Currency:       "USD",
			BillingCompany: "Acme Ltd",
			BillingEmail:   "orders@acme.example",
			ShippingTotal:  decimal.Zero,
			TotalTax:       decimal.RequireFromString("1.80"),
			PaidAt:         &paid,
			CreatedAt:      now,
			UpdatedAt:      now,
			Items: []*entity.OrderItem{
				{ProductID: &mug, SKU: "MUG-01", Name: "Mug", Quantity: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(18), Total: decimal.NewFromInt(18)},
				{SKU: "RETIRED", Name: "Discontinued item", Quantity: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(3), Total: decimal.NewFromInt(3)},
			},
		},
	}

	inserted := 0
	for _, order := range samples {
		exists, err := s.db.NewSelect().
			Model((*entity.Order)(nil)).
			Where("number = ?", order.Number).
			Exists(ctx)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		if err := s.orders.Create(ctx, order); err != nil {
			return inserted, err
		}
		inserted++
	}

	s.logger.Info("seeded orders", zap.Int("inserted", inserted), zap.Int("samples", len(samples)))
	return inserted, nil
}
