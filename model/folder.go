package model

const (
	FolderInbox  = "inbox"
	FolderSent   = "sent"
	FolderDrafts = "drafts"
	FolderTrash  = "trash"
	FolderSpam   = "spam"
	FolderCustom = "custom"
)

// EmailFolder is a per-account message bucket. The counters are caches
// recomputed by full recount after each sync batch.
type EmailFolder struct {
	Model
	ConfigID   uint64 `gorm:"not null;uniqueIndex:idx_folder_config_name" json:"config_id"`
	Name       string `gorm:"type:varchar(100);not null;uniqueIndex:idx_folder_config_name" json:"name"`
	FolderType string `gorm:"type:varchar(20);not null;default:'custom'" json:"folder_type"`

	TotalMessages  int `gorm:"not null;default:0" json:"total_messages"`
	UnreadMessages int `gorm:"not null;default:0" json:"unread_messages"`
}
