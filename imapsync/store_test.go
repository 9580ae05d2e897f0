package imapsync

import (
	"errors"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/masa23/mailgw/model"
	"github.com/masa23/mailgw/objectstorage"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := model.Migrate(db); err != nil {
		t.Fatalf("migrating test database: %v", err)
	}
	return db
}

func seedConfig(t *testing.T, db *gorm.DB) *model.EmailConfiguration {
	t.Helper()
	cfg := model.EmailConfiguration{
		User:         "mrossi",
		EmailAddress: "mario@example.com",
		SMTPUsername: "mario@example.com",
		SMTPPassword: "secret",
		IMAPServer:   "imap.example.com",
		IMAPEnabled:  true,
		IsActive:     true,
	}
	if err := db.Create(&cfg).Error; err != nil {
		t.Fatalf("seeding configuration: %v", err)
	}
	return &cfg
}

func fetched(id, subject string, atts ...Attachment) FetchedMessage {
	return FetchedMessage{
		ServerUID:   "101",
		MessageID:   id,
		Folder:      "INBOX",
		Subject:     subject,
		FromAddress: "mittente@example.com",
		ToAddresses: []string{"mario@example.com"},
		TextBody:    "corpo",
		ReceivedAt:  time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC),
		Attachments: atts,
	}
}

func TestSyncToStoreArchivesRawMessage(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	blobs := objectstorage.NewMemory()
	c := New(db, cfg, blobs)

	raw := []byte("From: mittente@example.com\r\nSubject: grezzo\r\n\r\ncorpo\r\n")
	msg := fetched("<raw@example.com>", "grezzo")
	msg.Raw = raw

	if saved := c.SyncToStore([]FetchedMessage{msg}); saved != 1 {
		t.Fatalf("saved = %d; want 1", saved)
	}

	var record model.EmailMessage
	if err := db.Where("message_id = ?", "<raw@example.com>").First(&record).Error; err != nil {
		t.Fatal(err)
	}
	if record.RawStorageKey == "" {
		t.Fatal("raw storage key not recorded")
	}
	got, err := blobs.Get(record.RawStorageKey)
	if err != nil {
		t.Fatalf("archived message not retrievable: %v", err)
	}
	if string(got) != string(raw) {
		t.Errorf("archived bytes differ from fetched message")
	}
}

func TestSyncToStore(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	blobs := objectstorage.NewMemory()
	c := New(db, cfg, blobs)

	att := Attachment{Filename: "doc.pdf", ContentType: "application/pdf", Content: []byte("%PDF-fake")}
	saved := c.SyncToStore([]FetchedMessage{
		fetched("<m1@example.com>", "primo", att),
		fetched("<m2@example.com>", "secondo"),
	})
	if saved != 2 {
		t.Fatalf("saved = %d; want 2", saved)
	}

	var folder model.EmailFolder
	if err := db.Where("config_id = ? AND name = ?", cfg.ID, "INBOX").First(&folder).Error; err != nil {
		t.Fatalf("INBOX folder not created: %v", err)
	}
	if folder.FolderType != model.FolderInbox {
		t.Errorf("FolderType = %q; want inbox", folder.FolderType)
	}
	if folder.TotalMessages != 2 || folder.UnreadMessages != 2 {
		t.Errorf("folder counters = %d/%d; want 2/2", folder.TotalMessages, folder.UnreadMessages)
	}

	var msg model.EmailMessage
	if err := db.Where("message_id = ?", "<m1@example.com>").First(&msg).Error; err != nil {
		t.Fatal(err)
	}
	if msg.Direction != model.DirectionIncoming || msg.Status != model.StatusReceived || msg.IsRead {
		t.Errorf("message = %s/%s read=%v; want incoming/received unread", msg.Direction, msg.Status, msg.IsRead)
	}
	if !msg.HasAttachments || msg.AttachmentCount != 1 {
		t.Errorf("attachment flags = %v/%d", msg.HasAttachments, msg.AttachmentCount)
	}

	var row model.EmailAttachment
	if err := db.Where("message_id = ?", msg.ID).First(&row).Error; err != nil {
		t.Fatalf("attachment row not created: %v", err)
	}
	wantKey, wantHash := objectstorage.ContentKey(att.Content)
	if row.StorageKey != wantKey || row.FileHash != wantHash {
		t.Errorf("attachment key/hash = %q/%q; want content-addressed", row.StorageKey, row.FileHash)
	}
	data, err := blobs.Get(row.StorageKey)
	if err != nil || string(data) != "%PDF-fake" {
		t.Errorf("blob = %q, %v", data, err)
	}

	var logEntry model.EmailLog
	if err := db.Where("event_type = ?", model.EventSync).First(&logEntry).Error; err != nil {
		t.Fatalf("sync log entry not written: %v", err)
	}
	if logEntry.EventData["saved"] != float64(2) {
		t.Errorf("sync log saved = %v", logEntry.EventData["saved"])
	}
}

func TestSyncToStoreDedup(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	c := New(db, cfg, objectstorage.NewMemory())

	batch := []FetchedMessage{fetched("<dup@example.com>", "uno")}
	if saved := c.SyncToStore(batch); saved != 1 {
		t.Fatalf("first sync saved = %d; want 1", saved)
	}
	// Re-running the same batch is a no-op, not an error.
	if saved := c.SyncToStore(batch); saved != 0 {
		t.Fatalf("second sync saved = %d; want 0", saved)
	}

	var count int64
	db.Model(&model.EmailMessage{}).Where("config_id = ?", cfg.ID).Count(&count)
	if count != 1 {
		t.Errorf("message rows = %d; want 1", count)
	}

	var folder model.EmailFolder
	db.Where("config_id = ?", cfg.ID).First(&folder)
	if folder.TotalMessages != 1 {
		t.Errorf("folder total = %d; want 1", folder.TotalMessages)
	}

	var errLogs int64
	db.Model(&model.EmailLog{}).Where("event_type = ?", model.EventError).Count(&errLogs)
	if errLogs != 0 {
		t.Errorf("duplicate produced %d error log entries; want 0", errLogs)
	}
}

// failingBlobs rejects every write, simulating an unreachable object store.
type failingBlobs struct {
	*objectstorage.Memory
}

func (f *failingBlobs) Put(key string, data []byte) error {
	return errors.New("object storage unavailable")
}

func TestSyncToStorePartialBatch(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	c := New(db, cfg, &failingBlobs{Memory: objectstorage.NewMemory()})

	att := Attachment{Filename: "doc.pdf", ContentType: "application/pdf", Content: []byte("x")}
	saved := c.SyncToStore([]FetchedMessage{
		fetched("<bad@example.com>", "con allegato", att),
		fetched("<good@example.com>", "senza allegato"),
	})
	if saved != 1 {
		t.Fatalf("saved = %d; want the attachment-free message only", saved)
	}

	// The failed message rolled back whole: no orphan row survives.
	var count int64
	db.Model(&model.EmailMessage{}).Where("message_id = ?", "<bad@example.com>").Count(&count)
	if count != 0 {
		t.Error("failed message must not leave a partial row")
	}
	db.Model(&model.EmailMessage{}).Where("message_id = ?", "<good@example.com>").Count(&count)
	if count != 1 {
		t.Error("healthy message must survive the batch")
	}

	var folder model.EmailFolder
	db.Where("config_id = ?", cfg.ID).First(&folder)
	if folder.TotalMessages != 1 {
		t.Errorf("folder total = %d; want recounted to 1", folder.TotalMessages)
	}

	var errLog model.EmailLog
	if err := db.Where("event_type = ? AND success = ?", model.EventError, false).
		First(&errLog).Error; err != nil {
		t.Fatalf("storage failure not logged: %v", err)
	}
}

func TestFolderRecountAfterRead(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	c := New(db, cfg, objectstorage.NewMemory())

	c.SyncToStore([]FetchedMessage{
		fetched("<r1@example.com>", "uno"),
		fetched("<r2@example.com>", "due"),
	})

	var msg model.EmailMessage
	db.Where("message_id = ?", "<r1@example.com>").First(&msg)
	if err := msg.MarkRead(db); err != nil {
		t.Fatal(err)
	}

	// The next stored message triggers a full recount.
	c.SyncToStore([]FetchedMessage{fetched("<r3@example.com>", "tre")})

	var folder model.EmailFolder
	db.Where("config_id = ?", cfg.ID).First(&folder)
	if folder.TotalMessages != 3 || folder.UnreadMessages != 2 {
		t.Errorf("folder counters = %d/%d; want 3/2", folder.TotalMessages, folder.UnreadMessages)
	}
}

func TestFindOrCreateFolderTypes(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	c := New(db, cfg, objectstorage.NewMemory())

	for _, tc := range []struct {
		name     string
		wantType string
	}{
		{"inbox", model.FolderInbox},
		{"Archivio", model.FolderCustom},
	} {
		msg := fetched("<folder-"+tc.name+"@example.com>", "x")
		msg.Folder = tc.name
		if saved := c.SyncToStore([]FetchedMessage{msg}); saved != 1 {
			t.Fatalf("saved = %d for folder %s", saved, tc.name)
		}
		var folder model.EmailFolder
		if err := db.Where("config_id = ? AND name = ?", cfg.ID, tc.name).First(&folder).Error; err != nil {
			t.Fatal(err)
		}
		if folder.FolderType != tc.wantType {
			t.Errorf("folder %s type = %q; want %q", tc.name, folder.FolderType, tc.wantType)
		}
	}
}
