package erpsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/catalog"
	"github.com/Additional-Code/erpsync/internal/entity"
	"github.com/Additional-Code/erpsync/internal/erp"
)

const dateLayout = "2006-01-02"

// push creates the customer (unless an earlier attempt already did) and the
// order. The customer id is returned even when order creation fails.
func (o *Orchestrator) push(ctx context.Context, order *entity.Order, current *entity.SyncMapping) (int64, int64, error) {
	customerID, err := o.ensureCustomer(ctx, order, current)
	if err != nil {
		return 0, 0, err
	}

	payload, err := o.buildOrder(ctx, order, customerID)
	if err != nil {
		return customerID, 0, err
	}

	remoteOrderID, err := o.deps.Remote.CreateOrder(ctx, payload)
	if err != nil {
		return customerID, 0, stepFailed("Failed to create order in ERP", err)
	}
	return customerID, remoteOrderID, nil
}

func (o *Orchestrator) ensureCustomer(ctx context.Context, order *entity.Order, current *entity.SyncMapping) (int64, error) {
	if current != nil && current.RemoteCustomerID != nil && *current.RemoteCustomerID > 0 {
		o.logger.Debug("reusing remote customer",
			zap.Int64("order_id", order.ID),
			zap.Int64("remote_customer_id", *current.RemoteCustomerID),
		)
		return *current.RemoteCustomerID, nil
	}

	customer := buildCustomer(order)
	customerID, err := o.deps.Remote.CreateCustomer(ctx, customer)
	if err != nil {
		stepErr := stepFailed("Failed to create customer in ERP", err)
		stepErr.payload = map[string]any{"customer_data": customer}
		return 0, stepErr
	}

	// MarkSuccess and MarkFailed store the id too, so a lost write here is
	// only logged.
	if err := o.deps.Mappings.RecordCustomer(settled(ctx), order.ID, customerID); err != nil {
		o.logger.Warn("record remote customer failed",
			zap.Int64("order_id", order.ID),
			zap.Int64("remote_customer_id", customerID),
			zap.Error(err),
		)
	}
	return customerID, nil
}

func buildCustomer(order *entity.Order) erp.Customer {
	first := strings.TrimSpace(order.BillingFirstName)
	last := strings.TrimSpace(order.BillingLastName)
	switch {
	case first == "" && last == "":
		first = "Customer"
		last = fmt.Sprintf("#%d", order.ID)
	case first == "":
		first = last
	case last == "":
		last = first
	}

	return erp.Customer{
		FirstName:   first,
		LastName:    last,
		Mobile:      strings.TrimSpace(order.BillingPhone),
		Email:       strings.TrimSpace(order.BillingEmail),
		Address:     strings.TrimSpace(order.BillingAddress),
		City:        strings.TrimSpace(order.BillingCity),
		PostalCode:  strings.TrimSpace(order.BillingPostcode),
		Country:     strings.TrimSpace(order.BillingCountry),
		CompanyName: strings.TrimSpace(order.BillingCompany),
	}
}

func (o *Orchestrator) buildOrder(ctx context.Context, order *entity.Order, customerID int64) (erp.Order, error) {
	saleTypeID := o.saleTypeID(ctx, order.ID)
	currencyID := o.currencyID(ctx, order.ID, order.Currency)

	lines := o.buildLines(ctx, order)
	if len(lines) == 0 {
		return erp.Order{}, &stepError{message: "Order has no valid items to sync", err: ErrNoValidItems}
	}

	created := order.CreatedAt
	if created.IsZero() {
		created = o.now()
	}

	payload := erp.Order{
		CustomerID:  customerID,
		SaleTypeID:  saleTypeID,
		CurrencyID:  currencyID,
		Date:        created.Format(dateLayout),
		Items:       lines,
		Description: fmt.Sprintf("Order #%d", order.ID),
	}
	if order.ShippingTotal.IsPositive() {
		v := order.ShippingTotal.InexactFloat64()
		payload.ShippingCost = &v
	}
	if order.TotalTax.IsPositive() {
		v := order.TotalTax.InexactFloat64()
		payload.Tax = &v
	}
	return payload, nil
}

// buildLines keeps items with a product and a positive quantity. Unit price
// and discount are never negative.
func (o *Orchestrator) buildLines(ctx context.Context, order *entity.Order) []erp.OrderLine {
	var (
		index *catalog.ItemIndex
		lines []erp.OrderLine
	)
	for _, item := range order.Items {
		if item == nil || item.ProductID == nil || !item.Quantity.IsPositive() {
			continue
		}
		if index == nil {
			index = o.itemIndex(ctx, order.ID)
		}

		unitPrice := decimal.Max(decimal.Zero, item.Subtotal.Div(item.Quantity))
		discount := decimal.Max(decimal.Zero, item.Subtotal.Sub(item.Total))

		lines = append(lines, erp.OrderLine{
			ItemID:    index.Resolve(itemIdentifier(item)),
			Quantity:  item.Quantity.InexactFloat64(),
			UnitPrice: unitPrice.InexactFloat64(),
			Discount:  discount.InexactFloat64(),
		})
	}
	return lines
}

func itemIdentifier(item *entity.OrderItem) string {
	if sku := strings.TrimSpace(item.SKU); sku != "" {
		return sku
	}
	return strconv.FormatInt(*item.ProductID, 10)
}

// Lookup failures degrade to "unknown" so the ERP applies its defaults.
func (o *Orchestrator) saleTypeID(ctx context.Context, orderID int64) *int64 {
	id, err := o.deps.Catalog.SaleTypeID(ctx)
	if err != nil {
		o.logger.Warn("sale type lookup failed", zap.Int64("order_id", orderID), zap.Error(err))
		return nil
	}
	return id
}

func (o *Orchestrator) currencyID(ctx context.Context, orderID int64, code string) *int64 {
	id, err := o.deps.Catalog.CurrencyID(ctx, code)
	if err != nil {
		o.logger.Warn("currency lookup failed", zap.Int64("order_id", orderID), zap.String("currency", code), zap.Error(err))
		return nil
	}
	return id
}

func (o *Orchestrator) itemIndex(ctx context.Context, orderID int64) *catalog.ItemIndex {
	index, err := o.deps.Catalog.Items(ctx)
	if err != nil {
		o.logger.Warn("item lookup failed", zap.Int64("order_id", orderID), zap.Error(err))
	}
	if index == nil {
		index = &catalog.ItemIndex{}
	}
	return index
}
