package dto

import "time"

// MappingResponse exposes an order's sync state.
type MappingResponse struct {
	SourceOrderID    int64     `json:"source_order_id"`
	RemoteCustomerID *int64    `json:"remote_customer_id,omitempty"`
	RemoteOrderID    *int64    `json:"remote_order_id,omitempty"`
	RemoteInvoiceID  *int64    `json:"remote_invoice_id,omitempty"`
	Status           string    `json:"sync_status"`
	Trigger          string    `json:"sync_trigger"`
	ErrorMessage     *string   `json:"error_message,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SyncResult reports the outcome of a manual sync or invoice request.
type SyncResult struct {
	OrderID int64            `json:"order_id"`
	Success bool             `json:"success"`
	Mapping *MappingResponse `json:"mapping,omitempty"`
}

// LogResponse is a single audit entry.
type LogResponse struct {
	ID            int64          `json:"id"`
	SourceOrderID *int64         `json:"source_order_id,omitempty"`
	Kind          string         `json:"log_type"`
	Message       string         `json:"message"`
	Payload       map[string]any `json:"payload,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// StatsResponse summarizes sync activity.
type StatsResponse struct {
	Mappings map[string]int `json:"mappings"`
	Total    int            `json:"total"`
	Errors   int            `json:"errors"`
}

// PruneResponse reports how many log entries were removed.
type PruneResponse struct {
	Deleted int64 `json:"deleted"`
}

// PingResponse reports ERP connectivity.
type PingResponse struct {
	Connected bool `json:"connected"`
}
