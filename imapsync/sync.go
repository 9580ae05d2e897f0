package imapsync

import (
	"errors"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/masa23/mailgw/model"
	"github.com/masa23/mailgw/objectstorage"
)

// ErrConnectFailed aborts a single account's run; the failure reason is
// already recorded on the account.
var ErrConnectFailed = errors.New("IMAP connection failed")

// SyncAccount runs the whole pipeline for one account: connect, fetch,
// persist, disconnect, and on success advance the account's sync cursor.
// Returns the number of newly stored messages.
func SyncAccount(db *gorm.DB, cfg *model.EmailConfiguration, blobs objectstorage.BlobStore, folder string, limit int) (int, error) {
	client := New(db, cfg, blobs)
	if !client.Connect() {
		return 0, ErrConnectFailed
	}
	defer client.Disconnect()

	messages, err := client.FetchNewMessages(folder, limit)
	if err != nil {
		client.recordError(err)
		return 0, err
	}
	if len(messages) == 0 {
		return 0, nil
	}

	saved := client.SyncToStore(messages)

	now := time.Now()
	if err := db.Model(cfg).Updates(map[string]any{
		"last_imap_sync":  now,
		"last_imap_error": "",
	}).Error; err != nil {
		log.Printf("error advancing sync cursor for %s: %v", cfg.EmailAddress, err)
	}

	return saved, nil
}
