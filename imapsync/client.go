package imapsync

import (
	"fmt"
	"log"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"gorm.io/gorm"

	"github.com/masa23/mailgw/model"
	"github.com/masa23/mailgw/objectstorage"
)

// Client is one IMAP session for one account. It holds exactly one network
// connection and is not safe for concurrent use; run one sync per account
// at a time.
type Client struct {
	db        *gorm.DB
	config    *model.EmailConfiguration
	blobs     objectstorage.BlobStore
	client    *imapclient.Client
	connected bool
	selected  string
}

func New(db *gorm.DB, cfg *model.EmailConfiguration, blobs objectstorage.BlobStore) *Client {
	return &Client{db: db, config: cfg, blobs: blobs}
}

// Connect dials and authenticates per the account's transport flags. IMAP
// credentials fall back to the SMTP ones when unset. Failures are recorded
// on the account and reported as false; nothing escapes this boundary.
func (c *Client) Connect() bool {
	addr := fmt.Sprintf("%s:%d", c.config.IMAPServer, c.config.IMAPPort)

	var cli *imapclient.Client
	var err error
	switch {
	case c.config.IMAPUseSSL:
		cli, err = imapclient.DialTLS(addr, nil)
	case c.config.IMAPUseTLS:
		cli, err = imapclient.DialStartTLS(addr, nil)
	default:
		cli, err = imapclient.DialInsecure(addr, nil)
	}
	if err != nil {
		c.recordError(fmt.Errorf("connecting to IMAP %s: %w", addr, err))
		return false
	}

	username, password := c.config.IMAPCredentials()
	if err := cli.Login(username, password).Wait(); err != nil {
		_ = cli.Close()
		c.recordError(fmt.Errorf("IMAP login failed for %s: %w", username, err))
		return false
	}

	c.client = cli
	c.connected = true
	log.Printf("IMAP connected: %s", c.config.EmailAddress)
	return true
}

// Disconnect logs out and closes the session.
func (c *Client) Disconnect() {
	if c.client == nil || !c.connected {
		return
	}
	_ = c.client.Logout().Wait()
	_ = c.client.Close()
	c.connected = false
	c.selected = ""
	log.Printf("IMAP disconnected: %s", c.config.EmailAddress)
}

// ListFolders returns the mailbox names visible on the server.
func (c *Client) ListFolders() ([]string, error) {
	if !c.connected {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	boxes, err := c.client.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}

	folders := make([]string, 0, len(boxes))
	for _, box := range boxes {
		folders = append(folders, box.Mailbox)
	}
	return folders, nil
}

func (c *Client) selectFolder(folder string) error {
	if !c.connected {
		return fmt.Errorf("not connected to IMAP server")
	}
	if c.selected == folder {
		return nil
	}
	if _, err := c.client.Select(folder, nil).Wait(); err != nil {
		return fmt.Errorf("selecting %s: %w", folder, err)
	}
	c.selected = folder
	return nil
}

// recordError stores the failure reason on the account for dashboards.
func (c *Client) recordError(err error) {
	log.Printf("IMAP error for %s: %v", c.config.EmailAddress, err)
	c.config.LastIMAPError = err.Error()
	if c.db == nil {
		return
	}
	if dbErr := c.db.Model(c.config).
		Update("last_imap_error", err.Error()).Error; dbErr != nil {
		log.Printf("error recording IMAP failure: %v", dbErr)
	}
}

// MarkRead flags a message seen on the server. Best-effort.
func (c *Client) MarkRead(folder string, uid uint32) {
	if err := c.storeFlags(folder, uid, imap.StoreFlagsAdd, imap.FlagSeen); err != nil {
		log.Printf("error marking message %d read: %v", uid, err)
	}
}

// MarkUnread removes the seen flag on the server. Best-effort.
func (c *Client) MarkUnread(folder string, uid uint32) {
	if err := c.storeFlags(folder, uid, imap.StoreFlagsDel, imap.FlagSeen); err != nil {
		log.Printf("error marking message %d unread: %v", uid, err)
	}
}

// Move copies a message to another folder and expunges the original.
// Best-effort.
func (c *Client) Move(folder string, uid uint32, dest string) {
	if err := c.selectFolder(folder); err != nil {
		log.Printf("error moving message %d: %v", uid, err)
		return
	}
	uidSet := imap.UIDSetNum(imap.UID(uid))
	if _, err := c.client.Copy(uidSet, dest).Wait(); err != nil {
		log.Printf("error copying message %d to %s: %v", uid, dest, err)
		return
	}
	// Expunge only once the deleted flag is confirmed stored; a failed
	// store must not expunge whatever else carries \Deleted.
	if err := c.storeFlags(folder, uid, imap.StoreFlagsAdd, imap.FlagDeleted); err != nil {
		log.Printf("error moving message %d: %v", uid, err)
		return
	}
	if err := c.client.Expunge().Close(); err != nil {
		log.Printf("error expunging after move of %d: %v", uid, err)
	}
}

// Delete flags a message deleted and expunges it. Best-effort.
func (c *Client) Delete(folder string, uid uint32) {
	if err := c.storeFlags(folder, uid, imap.StoreFlagsAdd, imap.FlagDeleted); err != nil {
		log.Printf("error deleting message %d: %v", uid, err)
		return
	}
	if err := c.client.Expunge().Close(); err != nil {
		log.Printf("error expunging message %d: %v", uid, err)
	}
}

func (c *Client) storeFlags(folder string, uid uint32, op imap.StoreFlagsOp, flag imap.Flag) error {
	if err := c.selectFolder(folder); err != nil {
		return err
	}
	uidSet := imap.UIDSetNum(imap.UID(uid))
	cmd := c.client.Store(uidSet, &imap.StoreFlags{
		Op:     op,
		Silent: true,
		Flags:  []imap.Flag{flag},
	}, nil)
	return cmd.Close()
}
