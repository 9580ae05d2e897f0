package imapsync

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"github.com/masa23/mailgw/mailparser"
)

func init() {
	// Declared charsets decode via x/text; unknown ones fall through with
	// replacement rather than failing the message.
	message.CharsetReader = charset.Reader
}

// parseMessage normalizes a raw RFC 2822 message: decoded headers, an
// absolute receive time, the first non-attachment text and HTML parts, and
// attachment payloads. A message with only an HTML body gets a derived
// text body.
func parseMessage(raw []byte) (*FetchedMessage, error) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil {
		if mr == nil {
			return nil, fmt.Errorf("reading message: %w", err)
		}
		// Header parsed; body walk below salvages what it can.
	}
	defer mr.Close()

	h := mr.Header
	msg := &FetchedMessage{}

	msg.Subject, err = h.Subject()
	if err != nil {
		msg.Subject = mailparser.DecodeHeaderLossy(h.Get("Subject"))
	}

	if from, err := h.AddressList("From"); err == nil && len(from) > 0 {
		msg.FromName = from[0].Name
		msg.FromAddress = from[0].Address
	} else {
		msg.FromName, msg.FromAddress = mailparser.ParseAddress(
			mailparser.DecodeHeaderLossy(h.Get("From")))
	}

	msg.ToAddresses = addressHeader(h, "To")
	msg.CcAddresses = addressHeader(h, "Cc")

	if date, err := h.Date(); err == nil && !date.IsZero() {
		msg.ReceivedAt = date
	} else {
		msg.ReceivedAt = time.Now()
	}

	if id, err := h.MessageID(); err == nil && id != "" {
		msg.MessageID = "<" + id + ">"
	} else if v := h.Get("Message-Id"); v != "" {
		msg.MessageID = strings.TrimSpace(v)
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Truncated or malformed part; keep what was decoded so far.
			break
		}

		switch ph := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := ph.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch {
			case strings.HasPrefix(contentType, "text/plain") || contentType == "":
				if msg.TextBody == "" {
					msg.TextBody = string(body)
				}
			case strings.HasPrefix(contentType, "text/html"):
				if msg.HTMLBody == "" {
					msg.HTMLBody = string(body)
				}
			}

		case *mail.AttachmentHeader:
			filename, _ := ph.Filename()
			if filename == "" {
				filename = "attachment"
			}
			contentType, _, _ := ph.ContentType()
			if contentType == "" {
				contentType = "application/octet-stream"
			}
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			msg.Attachments = append(msg.Attachments, Attachment{
				Filename:    mailparser.DecodeHeaderLossy(filename),
				ContentType: contentType,
				Content:     body,
			})
		}
	}

	if msg.TextBody == "" && msg.HTMLBody != "" {
		msg.TextBody = mailparser.HTMLToText(msg.HTMLBody)
	}

	return msg, nil
}

func addressHeader(h mail.Header, key string) []string {
	if list, err := h.AddressList(key); err == nil {
		addrs := make([]string, 0, len(list))
		for _, a := range list {
			if a.Address != "" {
				addrs = append(addrs, a.Address)
			}
		}
		return addrs
	}
	return mailparser.ParseAddressList(mailparser.DecodeHeaderLossy(h.Get(key)))
}
