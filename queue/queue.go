package queue

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/masa23/mailgw/model"
)

var (
	ErrNoRecipients = errors.New("queue item needs at least one recipient")
	ErrNotPending   = errors.New("queue item is not pending")
	ErrNotFailed    = errors.New("queue item is not failed")
)

// EnqueueOptions describe a deferred send.
type EnqueueOptions struct {
	ConfigID    uint64
	To          []string
	Cc          []string
	Bcc         []string
	Subject     string
	Text        string
	HTML        string
	Category    string
	Priority    int
	ScheduledAt time.Time
	MaxAttempts int
	RelatedType string
	RelatedID   uint64
}

// Enqueue creates a pending queue item. Priority is clamped to the 1..7
// range; a zero schedule means "ready now".
func Enqueue(db *gorm.DB, opts EnqueueOptions) (*model.EmailQueueItem, error) {
	if len(opts.To) == 0 {
		return nil, ErrNoRecipients
	}
	if opts.Priority < model.PriorityHighest || opts.Priority > model.PriorityLowest {
		opts.Priority = model.PriorityDefault
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.ScheduledAt.IsZero() {
		opts.ScheduledAt = time.Now()
	}
	if opts.Category == "" {
		opts.Category = model.CategoryGenerico
	}

	item := model.EmailQueueItem{
		ConfigID:     opts.ConfigID,
		ToAddresses:  opts.To,
		CcAddresses:  opts.Cc,
		BccAddresses: opts.Bcc,
		Subject:      opts.Subject,
		ContentText:  opts.Text,
		ContentHTML:  opts.HTML,
		Category:     opts.Category,
		Priority:     opts.Priority,
		ScheduledAt:  opts.ScheduledAt,
		MaxAttempts:  opts.MaxAttempts,
		Status:       model.QueuePending,
		RelatedType:  opts.RelatedType,
		RelatedID:    opts.RelatedID,
	}

	if err := db.Create(&item).Error; err != nil {
		return nil, fmt.Errorf("enqueueing message: %w", err)
	}
	return &item, nil
}

// Retry resets a failed item to pending, clearing its attempts and error.
func Retry(db *gorm.DB, id uint64) error {
	res := db.Model(&model.EmailQueueItem{}).
		Where("id = ? AND status = ?", id, model.QueueFailed).
		Updates(map[string]any{
			"status":        model.QueuePending,
			"attempts":      0,
			"error_message": "",
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFailed
	}
	return nil
}

// Cancel moves a pending item to the terminal cancelled state.
func Cancel(db *gorm.DB, id uint64) error {
	res := db.Model(&model.EmailQueueItem{}).
		Where("id = ? AND status = ?", id, model.QueuePending).
		Update("status", model.QueueCancelled)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}
