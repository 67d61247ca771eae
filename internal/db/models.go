package db

import (
	"time"

	"gorm.io/datatypes"
)

// AuthEvent records the outcome of one authorize call.
type AuthEvent struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`

	// ExpiresAt is the timestamp after which this event is eligible
	// for deletion by the retention worker. A nil value means the
	// event does not currently expire.
	ExpiresAt *time.Time `gorm:"index" json:"expires_at,omitempty"`

	RequestID string `gorm:"size:64" json:"request_id"`

	KeyID   string `gorm:"index;size:64" json:"key"`
	Outcome string `gorm:"index;size:32" json:"outcome"` // challenge, granted, or an error code
	Status  int    `json:"status"`

	Fingerprint string `gorm:"size:64" json:"hwid,omitempty"`
	RemoteIP    string `json:"remote_ip"`

	// Attributes holds request details that don't warrant a column
	// (user agent, response format, payload size).
	Attributes datatypes.JSONMap `gorm:"type:json" json:"attributes,omitempty"`
}
