package model

import "time"

const (
	ActionPurchaseCreated  = "purchase_created"
	ActionPurchaseApproved = "purchase_approved"
	ActionPurchaseRejected = "purchase_rejected"
	ActionPurchaseUpdated  = "purchase_updated"
	ActionPurchaseDeleted  = "purchase_deleted"

	ResourcePurchase = "copytrade_purchase"
)

// AuditEntry is one audit log row. Entries with the same IdempotencyKey are stored once.
type AuditEntry struct {
	ActorID        int64          `json:"actor_id"`
	UserID         int64          `json:"user_id"`
	Action         string         `json:"action"`
	ResourceType   string         `json:"resource_type"`
	ResourceID     int64          `json:"resource_id"`
	ResourceName   string         `json:"resource_name"`
	Description    string         `json:"description"`
	Changes        map[string]any `json:"changes,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

type Notification struct {
	Action   string         `json:"action"`
	UserID   int64          `json:"user_id"`
	Metadata map[string]any `json:"metadata,omitempty"`
}
