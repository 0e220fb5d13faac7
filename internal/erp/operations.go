package erp

import (
	"context"
	"fmt"
	"net/http"
)

// Endpoint paths. The trailing fragments are part of the ERP routing
// convention and never reach the wire.
const (
	pathCustomers = "/Customers#109"
	pathCustomer  = "/Customers/%d#109"
	pathOrders    = "/Orders#109"
	pathOrder     = "/Orders/%d#109"
	pathDelete    = "/Orders/%d"
	pathInvoices  = "/Invoices#109"
	pathInvoice   = "/Invoices/%d#109"
	pathItems     = "/Items"
	pathCurrency  = "/Currencies"
	pathSaleTypes = "/SaleTypes#108"
	pathStocks    = "/Stocks"
	pathUnits     = "/Units"
)

// Customer is the payload for creating a customer.
type Customer struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Mobile      string `json:"mobile"`
	Email       string `json:"email"`
	Address     string `json:"address"`
	City        string `json:"city"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country"`
	CompanyName string `json:"companyName,omitempty"`
}

// OrderLine is a single line of an ERP order.
type OrderLine struct {
	ItemID    int64   `json:"itemID"`
	Quantity  float64 `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Discount  float64 `json:"discount"`
}

// Order is the payload for creating an order.
type Order struct {
	CustomerID   int64       `json:"customerID"`
	SaleTypeID   *int64      `json:"saleTypeID"`
	CurrencyID   *int64      `json:"currencyID"`
	Date         string      `json:"date"`
	Items        []OrderLine `json:"items"`
	Description  string      `json:"description"`
	ShippingCost *float64    `json:"shippingCost,omitempty"`
	Tax          *float64    `json:"tax,omitempty"`
}

// Invoice is the payload for creating an invoice.
type Invoice struct {
	OrderID    int64  `json:"orderID"`
	CustomerID int64  `json:"customerID"`
	SaleTypeID *int64 `json:"saleTypeID"`
	CurrencyID *int64 `json:"currencyID"`
	Date       string `json:"date"`
}

// CreateCustomer creates a customer and returns its ERP id.
func (c *Client) CreateCustomer(ctx context.Context, customer Customer) (int64, error) {
	return c.create(ctx, "create customer", pathCustomers, customer)
}

// GetCustomer fetches a customer.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*Response, error) {
	return c.Request(ctx, http.MethodGet, fmt.Sprintf(pathCustomer, id), nil, true)
}

// CreateOrder creates an order and returns its ERP id.
func (c *Client) CreateOrder(ctx context.Context, order Order) (int64, error) {
	return c.create(ctx, "create order", pathOrders, order)
}

// GetOrder fetches an order.
func (c *Client) GetOrder(ctx context.Context, id int64) (*Response, error) {
	return c.Request(ctx, http.MethodGet, fmt.Sprintf(pathOrder, id), nil, true)
}

// DeleteOrder removes an order.
func (c *Client) DeleteOrder(ctx context.Context, id int64) error {
	_, err := c.Request(ctx, http.MethodDelete, fmt.Sprintf(pathDelete, id), nil, true)
	return err
}

// CreateInvoice creates an invoice and returns its ERP id.
func (c *Client) CreateInvoice(ctx context.Context, invoice Invoice) (int64, error) {
	return c.create(ctx, "create invoice", pathInvoices, invoice)
}

// GetInvoice fetches an invoice.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*Response, error) {
	return c.Request(ctx, http.MethodGet, fmt.Sprintf(pathInvoice, id), nil, true)
}

// ListItems returns the ERP item catalog.
func (c *Client) ListItems(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, pathItems)
}

// ListCurrencies returns the ERP currencies.
func (c *Client) ListCurrencies(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, pathCurrency)
}

// ListSaleTypes returns the ERP sale types.
func (c *Client) ListSaleTypes(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, pathSaleTypes)
}

// ListStocks returns the ERP stocks.
func (c *Client) ListStocks(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, pathStocks)
}

// ListUnits returns the ERP units.
func (c *Client) ListUnits(ctx context.Context) ([]map[string]any, error) {
	return c.list(ctx, pathUnits)
}

// Ping authenticates and performs a cheap read to prove connectivity.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.Authenticate(ctx); err != nil {
		return err
	}
	_, err := c.ListCurrencies(ctx)
	return err
}

func (c *Client) create(ctx context.Context, op, path string, payload any) (int64, error) {
	resp, err := c.Request(ctx, http.MethodPost, path, payload, true)
	if err != nil {
		return 0, err
	}
	id, ok := resp.ID()
	if !ok {
		return 0, &ResponseError{Op: op, Message: resp.Message(""), Response: resp}
	}
	return id, nil
}

func (c *Client) list(ctx context.Context, path string) ([]map[string]any, error) {
	resp, err := c.Request(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}
	return resp.List(), nil
}
