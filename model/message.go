package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

const (
	StatusDraft     = "draft"
	StatusPending   = "pending"
	StatusQueued    = "queued"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
	StatusBounced   = "bounced"
	StatusReceived  = "received"
)

// EmailMessage is the immutable audit record of one send or receive event.
// Rows are soft-deleted at most, never physically removed.
type EmailMessage struct {
	Model
	ConfigID uint64  `gorm:"index:idx_message_config_folder" json:"config_id"`
	FolderID *uint64 `gorm:"index:idx_message_config_folder" json:"folder_id"`

	MessageID string `gorm:"type:varchar(255);index" json:"message_id"`
	ThreadID  string `gorm:"type:varchar(255)" json:"thread_id"`
	ServerUID string `gorm:"type:varchar(100)" json:"server_uid"`

	ToAddresses  []string `gorm:"type:json;serializer:json;not null" json:"to_addresses"`
	CcAddresses  []string `gorm:"type:json;serializer:json" json:"cc_addresses"`
	BccAddresses []string `gorm:"type:json;serializer:json" json:"bcc_addresses"`

	FromAddress string `gorm:"type:varchar(255)" json:"from_address"`
	FromName    string `gorm:"type:varchar(200)" json:"from_name"`
	ReplyTo     string `gorm:"type:varchar(255)" json:"reply_to"`

	Subject     string  `gorm:"type:text;not null" json:"subject"`
	ContentHTML string  `gorm:"type:text" json:"content_html"`
	ContentText string  `gorm:"type:text" json:"content_text"`
	TemplateID  *uint64 `json:"template_id"`

	// Object-store key of the raw RFC 5322 message as fetched, empty for
	// locally composed mail.
	RawStorageKey string `gorm:"type:varchar(512)" json:"raw_storage_key,omitempty"`

	HasAttachments  bool `gorm:"not null;default:false" json:"has_attachments"`
	AttachmentCount int  `gorm:"not null;default:0" json:"attachment_count"`
	ContentSize     int  `gorm:"not null;default:0" json:"content_size"`

	Direction string `gorm:"type:varchar(10);not null;default:'outgoing';index:idx_message_direction_status" json:"direction"`
	Status    string `gorm:"type:varchar(20);not null;default:'pending';index:idx_message_direction_status" json:"status"`

	IsRead    bool `gorm:"not null;default:true" json:"is_read"`
	IsFlagged bool `gorm:"not null;default:false" json:"is_flagged"`
	IsSpam    bool `gorm:"not null;default:false" json:"is_spam"`

	Labels []EmailLabel `gorm:"many2many:email_message_labels" json:"labels,omitempty"`

	SMTPResponse     string `gorm:"type:text" json:"smtp_response"`
	ErrorMessage     string `gorm:"type:text" json:"error_message"`
	DeliveryAttempts int    `gorm:"not null;default:0" json:"delivery_attempts"`

	// Link to an arbitrary business object; the type tag is resolved by
	// the collaborator that owns the object.
	RelatedType        string `gorm:"type:varchar(100);index:idx_message_related" json:"related_type"`
	RelatedID          uint64 `gorm:"index:idx_message_related" json:"related_id"`
	RelatedDescription string `gorm:"type:varchar(500)" json:"related_description"`

	SentAt     *time.Time `json:"sent_at"`
	ReceivedAt *time.Time `json:"received_at"`
}

// MarkSent records a successful delivery.
func (m *EmailMessage) MarkSent(db *gorm.DB) error {
	now := time.Now()
	m.Status = StatusSent
	m.SentAt = &now
	m.ErrorMessage = ""
	return db.Model(m).Updates(map[string]any{
		"status":        m.Status,
		"sent_at":       m.SentAt,
		"error_message": "",
	}).Error
}

// MarkFailed records a delivery failure and bumps the attempt counter.
func (m *EmailMessage) MarkFailed(db *gorm.DB, errMsg string) error {
	m.Status = StatusFailed
	m.ErrorMessage = errMsg
	m.DeliveryAttempts++
	return db.Model(m).Updates(map[string]any{
		"status":            m.Status,
		"error_message":     m.ErrorMessage,
		"delivery_attempts": m.DeliveryAttempts,
	}).Error
}

// MarkRead flips the unread flag once.
func (m *EmailMessage) MarkRead(db *gorm.DB) error {
	if m.IsRead {
		return nil
	}
	m.IsRead = true
	return db.Model(m).Update("is_read", true).Error
}
