package domain

import "time"

// KVRecord is one key of the persistence gateway when it is backed by SQL.
// Value holds the versioned JSON envelope written by the gateway.
type KVRecord struct {
	Key           string    `gorm:"type:varchar(191);primaryKey"`
	SchemaVersion int       `gorm:"not null;default:1"`
	Value         []byte    `gorm:"type:blob;not null"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"index"`
}

// TableName returns the database table name for KVRecord.
func (KVRecord) TableName() string { return "kv_records" }

// Notification delivery states.
const (
	NotificationPending   = "pending"
	NotificationDelivered = "delivered"
)

// NotificationIntent is a scheduled reminder for a deadline. Intents are
// written when a deadline is created and delivered once SendAt has passed.
type NotificationIntent struct {
	ID          string     `json:"id"           gorm:"type:char(36);primaryKey"`
	Title       string     `json:"title"        gorm:"type:varchar(255);not null"`
	SendAt      time.Time  `json:"send_at"      gorm:"not null;index:idx_intent_due,priority:2"`
	Status      string     `json:"status"       gorm:"type:varchar(16);not null;default:'pending';index:idx_intent_due,priority:1"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for NotificationIntent.
func (NotificationIntent) TableName() string { return "notification_intents" }
