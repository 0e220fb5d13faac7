package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/erpsync/internal/database/dbtest"
	"github.com/Additional-Code/erpsync/internal/entity"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	db := dbtest.New(t, (*entity.Order)(nil), (*entity.OrderItem)(nil))
	return newRepository(db, db)
}

func sampleOrder() *entity.Order {
	productID := int64(501)
	return &entity.Order{
		Number:           "ORDER-1",
		Status:           entity.OrderStatusPending,
		Currency:         "IRR",
		BillingFirstName: "Sara",
		ShippingTotal:    decimal.NewFromInt(5),
		TotalTax:         decimal.Zero,
		CreatedAt:        time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Items: []*entity.OrderItem{
			{ProductID: &productID, SKU: "SKU-1", Name: "Tea", Quantity: decimal.NewFromInt(2), Subtotal: decimal.NewFromInt(20), Total: decimal.NewFromInt(18)},
			{SKU: "SKU-2", Name: "Gone", Quantity: decimal.NewFromInt(1), Subtotal: decimal.NewFromInt(3), Total: decimal.NewFromInt(3)},
		},
	}
}

func TestCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	order := sampleOrder()
	require.NoError(t, repo.Create(ctx, order))
	require.NotZero(t, order.ID)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", got.Number)
	assert.True(t, got.ShippingTotal.Equal(decimal.NewFromInt(5)))
	require.Len(t, got.Items, 2)
	assert.Equal(t, "SKU-1", got.Items[0].SKU)
	require.NotNil(t, got.Items[0].ProductID)
	assert.EqualValues(t, 501, *got.Items[0].ProductID)
	assert.Nil(t, got.Items[1].ProductID)
	assert.True(t, got.Items[0].Subtotal.Equal(decimal.NewFromInt(20)))
	assert.False(t, got.IsPaid())
}

func TestGetByID_NotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetByID(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkPaid(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	order := sampleOrder()
	require.NoError(t, repo.Create(ctx, order))

	paidAt := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	require.NoError(t, repo.MarkPaid(ctx, order.ID, paidAt))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, got.IsPaid())
	assert.Equal(t, entity.OrderStatusProcessing, got.Status)
	assert.True(t, paidAt.Equal(*got.PaidAt))

	assert.ErrorIs(t, repo.MarkPaid(ctx, 999, paidAt), ErrNotFound)
}

func TestUpdateStatus(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	order := sampleOrder()
	require.NoError(t, repo.Create(ctx, order))
	require.NoError(t, repo.UpdateStatus(ctx, order.ID, entity.OrderStatusCompleted))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.OrderStatusCompleted, got.Status)

	assert.ErrorIs(t, repo.UpdateStatus(ctx, 999, "completed"), ErrNotFound)
}
