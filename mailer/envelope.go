package mailer

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"
)

// Attachment is one binary part of an outbound envelope.
type Attachment struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Envelope holds everything needed to build the wire message. Bcc
// recipients are part of the SMTP envelope only, never of the headers.
type Envelope struct {
	FromName    string
	FromAddress string
	ReplyTo     string
	To          []string
	Cc          []string
	Subject     string
	Text        string
	HTML        string
	Attachments []Attachment
}

// BuildMIME renders the envelope as a multipart/alternative message with
// base64-encoded attachment parts. It returns the raw bytes and the
// generated Message-ID.
func BuildMIME(env Envelope) ([]byte, string, error) {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetAddressList("From", []*mail.Address{{Name: env.FromName, Address: env.FromAddress}})
	h.SetAddressList("To", toAddressList(env.To))
	if len(env.Cc) > 0 {
		h.SetAddressList("Cc", toAddressList(env.Cc))
	}
	if env.ReplyTo != "" {
		h.SetAddressList("Reply-To", toAddressList([]string{env.ReplyTo}))
	}
	h.SetSubject(env.Subject)

	msgID := fmt.Sprintf("%s@%s", uuid.New().String(), addressDomain(env.FromAddress))
	h.SetMessageID(msgID)

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, "", fmt.Errorf("creating message writer: %w", err)
	}

	tw, err := mw.CreateInline()
	if err != nil {
		return nil, "", fmt.Errorf("creating inline part: %w", err)
	}
	text := env.Text
	if text == "" && env.HTML == "" {
		text = "\r\n"
	}
	if text != "" {
		var th mail.InlineHeader
		th.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
		w, err := tw.CreatePart(th)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.WriteString(w, text); err != nil {
			return nil, "", err
		}
		w.Close()
	}
	if env.HTML != "" {
		var th mail.InlineHeader
		th.SetContentType("text/html", map[string]string{"charset": "utf-8"})
		w, err := tw.CreatePart(th)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.WriteString(w, env.HTML); err != nil {
			return nil, "", err
		}
		w.Close()
	}
	tw.Close()

	for _, att := range env.Attachments {
		var ah mail.AttachmentHeader
		ah.SetFilename(att.Filename)
		ah.SetContentType(att.ContentType, nil)
		w, err := mw.CreateAttachment(ah)
		if err != nil {
			return nil, "", fmt.Errorf("attaching %s: %w", att.Filename, err)
		}
		if _, err := w.Write(att.Content); err != nil {
			return nil, "", fmt.Errorf("attaching %s: %w", att.Filename, err)
		}
		w.Close()
	}

	if err := mw.Close(); err != nil {
		return nil, "", err
	}

	return buf.Bytes(), msgID, nil
}

// LoadAttachment reads a file and guesses its content type from the
// extension, falling back to application/octet-stream.
func LoadAttachment(path string) (Attachment, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return Attachment{}, fmt.Errorf("reading attachment %s: %w", path, err)
	}

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return Attachment{
		Filename:    filepath.Base(path),
		ContentType: contentType,
		Content:     content,
	}, nil
}

func toAddressList(addrs []string) []*mail.Address {
	list := make([]*mail.Address, 0, len(addrs))
	for _, a := range addrs {
		list = append(list, &mail.Address{Address: a})
	}
	return list
}

func addressDomain(address string) string {
	if at := strings.LastIndex(address, "@"); at >= 0 && at < len(address)-1 {
		return address[at+1:]
	}
	return "localhost"
}
