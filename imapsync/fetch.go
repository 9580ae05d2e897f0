package imapsync

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/masa23/mailgw/model"
)

// Attachment is one decoded binary part of a fetched message.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// FetchedMessage is the normalized form of one inbound message, ready for
// SyncToStore.
type FetchedMessage struct {
	ServerUID   string
	MessageID   string
	Folder      string
	Subject     string
	FromName    string
	FromAddress string
	ToAddresses []string
	CcAddresses []string
	TextBody    string
	HTMLBody    string
	ReceivedAt  time.Time
	Attachments []Attachment
	Raw         []byte
}

// FetchNewMessages selects the folder, searches per the account's criterion
// and fetches up to limit messages, most recent first. A single message's
// fetch or parse failure is logged and skipped, never aborting the batch.
// Bodies are fetched with peek, so nothing gets marked seen as a side
// effect.
func (c *Client) FetchNewMessages(folder string, limit int) ([]FetchedMessage, error) {
	if !c.connected {
		return nil, fmt.Errorf("not connected to IMAP server")
	}

	if err := c.selectFolder(folder); err != nil {
		return nil, err
	}

	criteria := searchCriteria(c.config.SearchCriterion())

	searchData, err := c.client.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}

	log.Printf("found %d new messages in %s for %s", len(uids), folder, c.config.EmailAddress)

	messages := make([]FetchedMessage, 0, len(uids))
	for _, uid := range uids {
		msg, err := c.fetchOne(uid, folder)
		if err != nil {
			log.Printf("error fetching message uid=%d: %v", uid, err)
			continue
		}
		messages = append(messages, *msg)
	}

	return messages, nil
}

// searchCriteria maps the account's criterion string to an IMAP search.
// Unrecognized values fall back to unseen-only.
func searchCriteria(criterion string) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	switch {
	case criterion == model.SearchAll:
	case strings.HasPrefix(criterion, model.SearchSincePrefix):
		days, err := strconv.Atoi(strings.TrimPrefix(criterion, model.SearchSincePrefix))
		if err != nil || days <= 0 {
			criteria.NotFlag = []imap.Flag{imap.FlagSeen}
			break
		}
		criteria.Since = time.Now().AddDate(0, 0, -days)
	default:
		criteria.NotFlag = []imap.Flag{imap.FlagSeen}
	}
	return criteria
}

func (c *Client) fetchOne(uid imap.UID, folder string) (*FetchedMessage, error) {
	uidSet := imap.UIDSetNum(uid)
	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchCmd := c.client.Fetch(uidSet, &imap.FetchOptions{
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	})
	defer fetchCmd.Close()

	msg := fetchCmd.Next()
	if msg == nil {
		return nil, fmt.Errorf("message uid=%d not found", uid)
	}

	buf, err := msg.Collect()
	if err != nil {
		return nil, fmt.Errorf("collecting message uid=%d: %w", uid, err)
	}

	raw := buf.FindBodySection(bodySection)
	if raw == nil {
		return nil, fmt.Errorf("message uid=%d has no body", uid)
	}

	parsed, err := parseMessage(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing message uid=%d: %w", uid, err)
	}
	parsed.ServerUID = fmt.Sprintf("%d", uid)
	parsed.Folder = folder
	parsed.Raw = raw

	return parsed, nil
}
