package model

import (
	"gorm.io/gorm"
)

// EmailLabel is a per-account label attachable to any number of messages.
// System labels cannot be removed by the user.
type EmailLabel struct {
	Model
	ConfigID uint64 `gorm:"not null;uniqueIndex:idx_label_config_slug" json:"config_id"`

	Name string `gorm:"type:varchar(100);not null" json:"name"`
	Slug string `gorm:"type:varchar(100);not null;uniqueIndex:idx_label_config_slug" json:"slug"`

	Color string `gorm:"type:varchar(7);not null;default:'#4285f4'" json:"color"`
	Icon  string `gorm:"type:varchar(50);not null;default:'tag'" json:"icon"`
	Order int    `gorm:"column:sort_order;not null;default:0" json:"order"`

	IsVisible bool `gorm:"not null;default:true" json:"is_visible"`
	IsSystem  bool `gorm:"not null;default:false" json:"is_system"`

	MessageCount int `gorm:"not null;default:0" json:"message_count"`
}

// UpdateMessageCount recounts the label's messages and stores the result.
func (l *EmailLabel) UpdateMessageCount(db *gorm.DB) error {
	var count int64
	if err := db.Table("email_message_labels").
		Where("email_label_id = ?", l.ID).
		Count(&count).Error; err != nil {
		return err
	}
	l.MessageCount = int(count)
	return db.Model(l).Update("message_count", l.MessageCount).Error
}
