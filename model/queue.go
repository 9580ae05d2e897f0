package model

import (
	"time"
)

// Queue item states. Pending items are picked up by the worker, claimed
// into processing, and end in sent or failed. Failed items stay parked
// until an operator retries them; cancelled is terminal.
const (
	QueuePending    = "pending"
	QueueProcessing = "processing"
	QueueSent       = "sent"
	QueueFailed     = "failed"
	QueueCancelled  = "cancelled"
)

const (
	PriorityHighest = 1
	PriorityDefault = 5
	PriorityLowest  = 7
)

// EmailQueueItem is the intent to send. A corresponding EmailMessage audit
// record is written once the send is attempted to completion.
type EmailQueueItem struct {
	Model
	ConfigID uint64 `gorm:"not null;index:idx_queue_config_status" json:"config_id"`

	ToAddresses  []string `gorm:"type:json;serializer:json;not null" json:"to_addresses"`
	CcAddresses  []string `gorm:"type:json;serializer:json" json:"cc_addresses"`
	BccAddresses []string `gorm:"type:json;serializer:json" json:"bcc_addresses"`

	Subject     string `gorm:"type:text;not null" json:"subject"`
	ContentHTML string `gorm:"type:text" json:"content_html"`
	ContentText string `gorm:"type:text" json:"content_text"`
	Category    string `gorm:"type:varchar(100);not null;default:'generico'" json:"category"`

	Priority    int       `gorm:"not null;default:5;index:idx_queue_ready" json:"priority"`
	ScheduledAt time.Time `gorm:"not null;index:idx_queue_ready" json:"scheduled_at"`
	MaxAttempts int       `gorm:"not null;default:3" json:"max_attempts"`
	Attempts    int       `gorm:"not null;default:0" json:"attempts"`

	Status       string     `gorm:"type:varchar(20);not null;default:'pending';index:idx_queue_config_status" json:"status"`
	ErrorMessage string     `gorm:"type:text" json:"error_message"`
	SentAt       *time.Time `json:"sent_at"`

	RelatedType string `gorm:"type:varchar(100)" json:"related_type"`
	RelatedID   uint64 `json:"related_id"`
}
