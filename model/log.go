package model

const (
	EventSend    = "send"
	EventReceive = "receive"
	EventSync    = "sync"
	EventError   = "error"
	EventConfig  = "config"
)

// EmailLog is the append-only operation log. Rows are never mutated after
// creation.
type EmailLog struct {
	Model
	ConfigID  *uint64 `gorm:"index:idx_log_config_event" json:"config_id"`
	MessageID *uint64 `json:"message_id"`

	EventType        string         `gorm:"type:varchar(50);not null;index:idx_log_config_event" json:"event_type"`
	EventDescription string         `gorm:"type:text;not null" json:"event_description"`
	EventData        map[string]any `gorm:"type:json;serializer:json" json:"event_data"`

	Success      bool   `gorm:"not null;default:true" json:"success"`
	ErrorMessage string `gorm:"type:text" json:"error_message"`

	Actor     string `gorm:"type:varchar(255)" json:"actor"`
	IPAddress string `gorm:"type:varchar(45)" json:"ip_address"`
	UserAgent string `gorm:"type:text" json:"user_agent"`
}
