package model

// EmailAttachment describes a binary blob bound to a message. The bytes
// themselves live in object storage under StorageKey; FileHash is the
// SHA-256 of the stored content and doubles as an integrity check.
type EmailAttachment struct {
	Model
	MessageID uint64 `gorm:"not null;index" json:"message_id"`

	Filename    string `gorm:"type:varchar(255);not null" json:"filename"`
	ContentType string `gorm:"type:varchar(100);not null" json:"content_type"`
	Size        int64  `gorm:"not null;default:0" json:"size"`

	StorageKey string `gorm:"type:varchar(512);not null" json:"storage_key"`
	FileHash   string `gorm:"type:varchar(64);not null" json:"file_hash"`

	SourceApp  string `gorm:"type:varchar(100)" json:"source_app"`
	SourceInfo string `gorm:"type:varchar(500)" json:"source_info"`
}
