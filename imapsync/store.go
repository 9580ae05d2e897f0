package imapsync

import (
	"errors"
	"fmt"
	"log"
	"strings"

	"gorm.io/gorm"

	"github.com/masa23/mailgw/model"
	"github.com/masa23/mailgw/objectstorage"
)

// ErrDuplicateMessage marks a message whose Message-ID is already stored
// for this account. Duplicates are a no-op, not a failure.
var ErrDuplicateMessage = errors.New("message already stored")

// SyncToStore persists a batch of fetched messages. Each message commits
// in its own transaction, so one failure never corrupts the rest of the
// batch. Folder counters are recomputed by full recount afterwards.
// Returns the number of newly stored messages.
func (c *Client) SyncToStore(messages []FetchedMessage) int {
	saved := 0
	for _, msg := range messages {
		if err := c.storeOne(msg); err != nil {
			if errors.Is(err, ErrDuplicateMessage) {
				continue
			}
			log.Printf("error storing message %q: %v", msg.Subject, err)
			c.logSyncError(msg, err)
			continue
		}
		saved++
	}

	if c.db != nil {
		entry := model.EmailLog{
			ConfigID:         &c.config.ID,
			EventType:        model.EventSync,
			EventDescription: fmt.Sprintf("synced %d/%d messages", saved, len(messages)),
			EventData:        map[string]any{"fetched": len(messages), "saved": saved},
			Success:          true,
			Actor:            c.config.User,
		}
		if err := c.db.Create(&entry).Error; err != nil {
			log.Printf("error appending sync log entry: %v", err)
		}
	}

	log.Printf("saved %d/%d messages for %s", saved, len(messages), c.config.EmailAddress)
	return saved
}

func (c *Client) storeOne(msg FetchedMessage) error {
	return c.db.Transaction(func(tx *gorm.DB) error {
		if msg.MessageID != "" {
			var existing model.EmailMessage
			err := tx.Where("message_id = ? AND config_id = ?", msg.MessageID, c.config.ID).
				First(&existing).Error
			if err == nil {
				return ErrDuplicateMessage
			}
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		folder, err := c.findOrCreateFolder(tx, msg.Folder)
		if err != nil {
			return err
		}

		record := model.EmailMessage{
			ConfigID:        c.config.ID,
			FolderID:        &folder.ID,
			MessageID:       msg.MessageID,
			ServerUID:       msg.ServerUID,
			ToAddresses:     msg.ToAddresses,
			CcAddresses:     msg.CcAddresses,
			FromAddress:     msg.FromAddress,
			FromName:        msg.FromName,
			Subject:         msg.Subject,
			ContentHTML:     msg.HTMLBody,
			ContentText:     msg.TextBody,
			HasAttachments:  len(msg.Attachments) > 0,
			AttachmentCount: len(msg.Attachments),
			ContentSize:     len(msg.TextBody) + len(msg.HTMLBody),
			Direction:       model.DirectionIncoming,
			Status:          model.StatusReceived,
			IsRead:          false,
			ReceivedAt:      &msg.ReceivedAt,
		}

		// Archive the message as fetched before the parsed columns, so a
		// lossy parse can always be replayed from the original.
		if len(msg.Raw) > 0 {
			key := objectstorage.GenerateObjectKey()
			if err := c.blobs.Put(key, msg.Raw); err != nil {
				return fmt.Errorf("archiving raw message: %w", err)
			}
			record.RawStorageKey = key
		}

		if err := tx.Create(&record).Error; err != nil {
			return fmt.Errorf("creating message row: %w", err)
		}

		for _, att := range msg.Attachments {
			key, hash := objectstorage.ContentKey(att.Content)
			if err := c.blobs.Put(key, att.Content); err != nil {
				return fmt.Errorf("storing attachment %s: %w", att.Filename, err)
			}
			row := model.EmailAttachment{
				MessageID:   record.ID,
				Filename:    att.Filename,
				ContentType: att.ContentType,
				Size:        int64(len(att.Content)),
				StorageKey:  key,
				FileHash:    hash,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("creating attachment row: %w", err)
			}
		}

		return recountFolder(tx, folder)
	})
}

func (c *Client) findOrCreateFolder(tx *gorm.DB, name string) (*model.EmailFolder, error) {
	var folder model.EmailFolder
	err := tx.Where("config_id = ? AND name = ?", c.config.ID, name).First(&folder).Error
	if err == nil {
		return &folder, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	folderType := model.FolderCustom
	if strings.EqualFold(name, "INBOX") {
		folderType = model.FolderInbox
	}
	folder = model.EmailFolder{
		ConfigID:   c.config.ID,
		Name:       name,
		FolderType: folderType,
	}
	if err := tx.Create(&folder).Error; err != nil {
		return nil, fmt.Errorf("creating folder %s: %w", name, err)
	}
	return &folder, nil
}

// recountFolder rebuilds the cached counters from the message rows.
// Recounting instead of incrementing keeps the caches right even after a
// partially failed batch.
func recountFolder(tx *gorm.DB, folder *model.EmailFolder) error {
	var total, unread int64
	if err := tx.Model(&model.EmailMessage{}).
		Where("folder_id = ?", folder.ID).
		Count(&total).Error; err != nil {
		return err
	}
	if err := tx.Model(&model.EmailMessage{}).
		Where("folder_id = ? AND is_read = ?", folder.ID, false).
		Count(&unread).Error; err != nil {
		return err
	}

	folder.TotalMessages = int(total)
	folder.UnreadMessages = int(unread)
	return tx.Model(folder).Updates(map[string]any{
		"total_messages":  folder.TotalMessages,
		"unread_messages": folder.UnreadMessages,
	}).Error
}

func (c *Client) logSyncError(msg FetchedMessage, err error) {
	entry := model.EmailLog{
		ConfigID:         &c.config.ID,
		EventType:        model.EventError,
		EventDescription: "failed to store message: " + msg.Subject,
		Success:          false,
		ErrorMessage:     err.Error(),
		Actor:            c.config.User,
	}
	if dbErr := c.db.Create(&entry).Error; dbErr != nil {
		log.Printf("error appending sync error entry: %v", dbErr)
	}
}
