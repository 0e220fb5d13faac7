package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// SyncStatus is the lifecycle state of a mapping.
type SyncStatus string

const (
	SyncStatusPending    SyncStatus = "pending"
	SyncStatusProcessing SyncStatus = "processing"
	SyncStatusSuccess    SyncStatus = "success"
	SyncStatusFailed     SyncStatus = "failed"
)

// Valid reports whether s is a known status.
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusProcessing, SyncStatusSuccess, SyncStatusFailed:
		return true
	}
	return false
}

// SyncMapping links a local order to the records created for it in the ERP.
type SyncMapping struct {
	bun.BaseModel `bun:"table:sync_mappings"`

	ID               int64      `bun:",pk,autoincrement" json:"id"`
	SourceOrderID    int64      `bun:"source_order_id,notnull,unique" json:"source_order_id"`
	RemoteCustomerID *int64     `bun:"remote_customer_id" json:"remote_customer_id,omitempty"`
	RemoteOrderID    *int64     `bun:"remote_order_id" json:"remote_order_id,omitempty"`
	RemoteInvoiceID  *int64     `bun:"remote_invoice_id" json:"remote_invoice_id,omitempty"`
	Status           SyncStatus `bun:"sync_status,notnull,default:'pending'" json:"sync_status"`
	Trigger          string     `bun:"sync_trigger" json:"sync_trigger"`
	ErrorMessage     *string    `bun:"error_message" json:"error_message,omitempty"`
	CreatedAt        time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time  `bun:"updated_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// HasRemoteOrder reports whether the ERP order exists.
func (m *SyncMapping) HasRemoteOrder() bool {
	return m != nil && m.RemoteOrderID != nil && *m.RemoteOrderID > 0
}

// LogKind classifies a sync log entry.
type LogKind string

const (
	LogInfo    LogKind = "info"
	LogSuccess LogKind = "success"
	LogWarning LogKind = "warning"
	LogError   LogKind = "error"
)

// Valid reports whether k is a known kind.
func (k LogKind) Valid() bool {
	switch k {
	case LogInfo, LogSuccess, LogWarning, LogError:
		return true
	}
	return false
}

// SyncLog is an append-only audit entry.
type SyncLog struct {
	bun.BaseModel `bun:"table:sync_logs"`

	ID            int64          `bun:",pk,autoincrement" json:"id"`
	SourceOrderID *int64         `bun:"source_order_id" json:"source_order_id,omitempty"`
	Kind          LogKind        `bun:"log_type,notnull" json:"log_type"`
	Message       string         `bun:"message,notnull" json:"message"`
	Payload       map[string]any `bun:"payload,type:text" json:"payload,omitempty"`
	CreatedAt     time.Time      `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
}
