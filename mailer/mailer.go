package mailer

import (
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/masa23/mailgw/config"
	"github.com/masa23/mailgw/model"
)

// Result codes surfaced to callers. Failures never escape as panics.
const (
	CodeConfigMissing    = "CONFIG_MISSING"
	CodeTemplateNotFound = "TEMPLATE_NOT_FOUND"
	CodeNoRecipients     = "NO_RECIPIENTS"
	CodeRateLimited      = "RATE_LIMITED"
	CodeConnectError     = "CONNECT_ERROR"
	CodeSendError        = "SEND_ERROR"
	CodeNotFound         = "NOT_FOUND"
	CodeInternalError    = "INTERNAL_ERROR"
)

// Result is the structured outcome of one delivery operation.
type Result struct {
	Success   bool   `json:"success"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
	MessageID uint64 `json:"message_id,omitempty"`
}

func failure(code string, err error) Result {
	return Result{Success: false, Code: code, Error: err.Error()}
}

// SendOptions are the parameters of one send. When TemplateSlug is set the
// subject and bodies come from the rendered template.
type SendOptions struct {
	To                 []string
	Cc                 []string
	Bcc                []string
	Subject            string
	Text               string
	HTML               string
	TemplateSlug       string
	TemplateVars       map[string]any
	AttachmentPaths    []string
	Category           string
	RelatedType        string
	RelatedID          uint64
	RelatedDescription string
}

// Service is the outbound delivery pipeline for one account. A nil account
// configuration routes through the process-wide fallback transport.
type Service struct {
	db        *gorm.DB
	config    *model.EmailConfiguration
	fallback  config.FallbackSMTP
	transport Transport
}

func New(db *gorm.DB, cfg *model.EmailConfiguration, fallback config.FallbackSMTP) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		fallback:  fallback,
		transport: SMTPTransport{},
	}
}

// NewForUser looks up the user's active configuration. A user without one
// still gets a service, backed by the fallback transport.
func NewForUser(db *gorm.DB, user string, fallback config.FallbackSMTP) *Service {
	var cfg model.EmailConfiguration
	err := db.Where("user = ? AND is_active = ?", user, true).First(&cfg).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("error loading configuration for user=%s: %v", user, err)
		}
		return New(db, nil, fallback)
	}
	return New(db, &cfg, fallback)
}

// WithTransport swaps the delivery transport. Used by tests.
func (s *Service) WithTransport(t Transport) *Service {
	s.transport = t
	return s
}

// Config returns the account configuration backing this service, or nil.
func (s *Service) Config() *model.EmailConfiguration {
	return s.config
}

// Send delivers one message. On success it persists the audit Message,
// bumps today's statistics, and appends a log entry. Transport failures
// leave only a log entry; retry-tracking Message rows are the queue's job.
func (s *Service) Send(opts SendOptions) Result {
	if opts.Category == "" {
		opts.Category = model.CategoryGenerico
	}
	if len(opts.To) == 0 {
		return failure(CodeNoRecipients, errors.New("no recipients given"))
	}

	var template *model.EmailTemplate
	if opts.TemplateSlug != "" {
		var err error
		template, err = s.renderTemplate(opts.TemplateSlug, opts.TemplateVars, &opts)
		if err != nil {
			return failure(CodeTemplateNotFound, err)
		}
	}

	if res := s.checkLimits(); !res.Success {
		return res
	}

	env := Envelope{
		To:      opts.To,
		Cc:      opts.Cc,
		Subject: opts.Subject,
		Text:    opts.Text,
		HTML:    opts.HTML,
	}

	var ep Endpoint
	switch {
	case s.config != nil && s.config.IsConfigured():
		ep = Endpoint{
			Host:     s.config.SMTPServer,
			Port:     s.config.SMTPPort,
			Username: s.config.SMTPUsername,
			Password: s.config.SMTPPassword,
			UseSSL:   s.config.UseSSL,
			UseTLS:   s.config.UseTLS,
		}
		env.FromName = s.config.DisplayName
		env.FromAddress = s.config.EmailAddress
		env.ReplyTo = s.config.ReplyTo
	case s.fallback.Host != "":
		ep = Endpoint{
			Host:     s.fallback.Host,
			Port:     s.fallback.Port,
			Username: s.fallback.Username,
			Password: s.fallback.Password,
			UseSSL:   s.fallback.UseSSL,
			UseTLS:   s.fallback.UseTLS,
		}
		// The fallback identity is fixed; it never impersonates a user.
		env.FromName = s.fallback.FromName
		env.FromAddress = s.fallback.FromAddress
	default:
		err := errors.New("no usable SMTP configuration")
		s.logEvent(model.EventError, "send refused: no configuration", false, err.Error(), nil)
		return failure(CodeConfigMissing, err)
	}

	for _, path := range opts.AttachmentPaths {
		att, err := LoadAttachment(path)
		if err != nil {
			log.Printf("skipping attachment %s: %v", path, err)
			s.logEvent(model.EventError, "attachment skipped: "+path, false, err.Error(), nil)
			continue
		}
		env.Attachments = append(env.Attachments, att)
	}

	raw, msgID, err := BuildMIME(env)
	if err != nil {
		s.logEvent(model.EventError, "envelope build failed", false, err.Error(), nil)
		return failure(CodeSendError, err)
	}

	rcpts := make([]string, 0, len(opts.To)+len(opts.Cc)+len(opts.Bcc))
	rcpts = append(rcpts, opts.To...)
	rcpts = append(rcpts, opts.Cc...)
	rcpts = append(rcpts, opts.Bcc...)

	if err := s.transport.Deliver(ep, env.FromAddress, rcpts, raw); err != nil {
		code := CodeSendError
		var connErr *ConnectError
		if errors.As(err, &connErr) {
			code = CodeConnectError
		}
		log.Printf("delivery failed to=%v code=%s err=%v", opts.To, code, err)
		s.logEvent(model.EventError, "delivery failed: "+opts.Subject, false, err.Error(), nil)
		return failure(code, err)
	}

	msg, err := s.persistSentMessage(opts, env, msgID, template, len(raw))
	if err != nil {
		log.Printf("error persisting sent message: %v", err)
	}

	if s.config != nil {
		if err := AccumulateStats(s.db, s.config.ID, opts.Category, false); err != nil {
			log.Printf("error updating stats: %v", err)
		}
	}

	var msgRef *uint64
	var resultID uint64
	if msg != nil {
		msgRef = &msg.ID
		resultID = msg.ID
	}
	s.logEvent(model.EventSend, "sent: "+env.Subject, true, "", msgRef)

	return Result{Success: true, MessageID: resultID}
}

// BulkRecipient is one target of a bulk send. Vars are merged over the
// shared base context, the recipient's values winning.
type BulkRecipient struct {
	Address string
	Vars    map[string]any
}

// BulkResult aggregates a bulk send. Individual failures do not stop the
// run.
type BulkResult struct {
	Total  int      `json:"total"`
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// SendBulk applies one template across many recipients.
func (s *Service) SendBulk(recipients []BulkRecipient, templateSlug string, baseVars map[string]any, category string) BulkResult {
	results := BulkResult{Total: len(recipients)}

	for _, r := range recipients {
		vars := make(map[string]any, len(baseVars)+len(r.Vars))
		for k, v := range baseVars {
			vars[k] = v
		}
		for k, v := range r.Vars {
			vars[k] = v
		}

		res := s.Send(SendOptions{
			To:           []string{r.Address},
			TemplateSlug: templateSlug,
			TemplateVars: vars,
			Category:     category,
		})
		if res.Success {
			results.Sent++
		} else {
			results.Failed++
			results.Errors = append(results.Errors, fmt.Sprintf("%s: %s", r.Address, res.Error))
		}
	}

	return results
}

// Resend replays a prior message's parameters verbatim and updates its
// status in place on success.
func (s *Service) Resend(messageID uint64) Result {
	var msg model.EmailMessage
	if err := s.db.First(&msg, messageID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(CodeNotFound, fmt.Errorf("message %d not found", messageID))
		}
		return failure(CodeInternalError, err)
	}

	res := s.Send(SendOptions{
		To:                 msg.ToAddresses,
		Cc:                 msg.CcAddresses,
		Bcc:                msg.BccAddresses,
		Subject:            msg.Subject,
		Text:               msg.ContentText,
		HTML:               msg.ContentHTML,
		Category:           model.CategoryGenerico,
		RelatedType:        msg.RelatedType,
		RelatedID:          msg.RelatedID,
		RelatedDescription: msg.RelatedDescription,
	})

	if res.Success {
		if err := msg.MarkSent(s.db); err != nil {
			log.Printf("error updating resent message %d: %v", messageID, err)
		}
	}

	return res
}

// TestConfiguration sends a probe to the account's own address. Success
// marks the account verified and clears the last error; failure records it.
func (s *Service) TestConfiguration() Result {
	if s.config == nil {
		return failure(CodeConfigMissing, errors.New("no email configuration set"))
	}

	res := s.Send(SendOptions{
		To:       []string{s.config.EmailAddress},
		Subject:  "Mail gateway configuration test",
		Text:     "This is a test of the mail gateway configuration.",
		HTML:     "<p>This is a <strong>test</strong> of the mail gateway configuration.</p>",
		Category: model.CategorySistema,
	})

	now := time.Now()
	if res.Success {
		s.config.IsVerified = true
		s.config.LastTestAt = &now
		s.config.LastError = ""
		if err := s.db.Model(s.config).Updates(map[string]any{
			"is_verified":  true,
			"last_test_at": now,
			"last_error":   "",
		}).Error; err != nil {
			log.Printf("error saving configuration test result: %v", err)
		}
	} else {
		s.config.LastError = res.Error
		if err := s.db.Model(s.config).Update("last_error", res.Error).Error; err != nil {
			log.Printf("error saving configuration test error: %v", err)
		}
	}

	return res
}

// RenderPreview renders a template without touching its usage counter.
func (s *Service) RenderPreview(slug string, vars map[string]any) (model.Rendered, error) {
	var template model.EmailTemplate
	err := s.db.Where("slug = ? AND is_active = ?", slug, true).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.Rendered{}, fmt.Errorf("template %q not found", slug)
		}
		return model.Rendered{}, err
	}
	return template.Render(vars), nil
}

// renderTemplate resolves the slug, substitutes variables into opts and
// bumps the usage counter. The counter moves exactly once per render, even
// if the send afterwards fails.
func (s *Service) renderTemplate(slug string, vars map[string]any, opts *SendOptions) (*model.EmailTemplate, error) {
	var template model.EmailTemplate
	err := s.db.Where("slug = ? AND is_active = ?", slug, true).First(&template).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("template %q not found", slug)
		}
		return nil, err
	}

	rendered := template.Render(vars)
	opts.Subject = rendered.Subject
	opts.HTML = rendered.HTML
	opts.Text = rendered.Text
	if opts.Category == model.CategoryGenerico && template.Category != "" {
		opts.Category = template.Category
	}

	if err := s.db.Model(&template).
		UpdateColumn("usage_count", gorm.Expr("usage_count + 1")).Error; err != nil {
		log.Printf("error bumping usage count for template %s: %v", slug, err)
	}

	return &template, nil
}

// checkLimits enforces the account's daily and hourly send budgets.
func (s *Service) checkLimits() Result {
	if s.config == nil {
		return Result{Success: true}
	}

	if s.config.DailyLimit > 0 {
		var stats model.EmailStats
		err := s.db.Where("config_id = ? AND date = ?",
			s.config.ID, model.StatsDay(time.Now())).First(&stats).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return failure(CodeInternalError, err)
		}
		if stats.EmailsSent >= s.config.DailyLimit {
			err := fmt.Errorf("daily limit of %d reached", s.config.DailyLimit)
			s.logEvent(model.EventError, "send refused: daily limit", false, err.Error(), nil)
			return failure(CodeRateLimited, err)
		}
	}

	if s.config.HourlyLimit > 0 {
		var count int64
		since := time.Now().Add(-time.Hour)
		err := s.db.Model(&model.EmailMessage{}).
			Where("config_id = ? AND direction = ? AND sent_at > ?",
				s.config.ID, model.DirectionOutgoing, since).
			Count(&count).Error
		if err != nil {
			return failure(CodeInternalError, err)
		}
		if count >= int64(s.config.HourlyLimit) {
			err := fmt.Errorf("hourly limit of %d reached", s.config.HourlyLimit)
			s.logEvent(model.EventError, "send refused: hourly limit", false, err.Error(), nil)
			return failure(CodeRateLimited, err)
		}
	}

	return Result{Success: true}
}

func (s *Service) persistSentMessage(opts SendOptions, env Envelope, msgID string, template *model.EmailTemplate, size int) (*model.EmailMessage, error) {
	now := time.Now()
	msg := model.EmailMessage{
		MessageID:          msgID,
		ToAddresses:        opts.To,
		CcAddresses:        opts.Cc,
		BccAddresses:       opts.Bcc,
		FromAddress:        env.FromAddress,
		FromName:           env.FromName,
		ReplyTo:            env.ReplyTo,
		Subject:            env.Subject,
		ContentHTML:        env.HTML,
		ContentText:        env.Text,
		HasAttachments:     len(env.Attachments) > 0,
		AttachmentCount:    len(env.Attachments),
		ContentSize:        size,
		Direction:          model.DirectionOutgoing,
		Status:             model.StatusSent,
		DeliveryAttempts:   1,
		RelatedType:        opts.RelatedType,
		RelatedID:          opts.RelatedID,
		RelatedDescription: opts.RelatedDescription,
		SentAt:             &now,
	}
	if s.config != nil {
		msg.ConfigID = s.config.ID
	}
	if template != nil {
		msg.TemplateID = &template.ID
	}
	if msg.RelatedDescription == "" {
		msg.RelatedDescription = fmt.Sprintf("%s - %.100s", opts.Category, env.Subject)
	}

	if err := s.db.Create(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

func (s *Service) logEvent(eventType, description string, success bool, errMsg string, messageID *uint64) {
	entry := model.EmailLog{
		EventType:        eventType,
		EventDescription: description,
		Success:          success,
		ErrorMessage:     errMsg,
		MessageID:        messageID,
	}
	if s.config != nil {
		entry.ConfigID = &s.config.ID
		entry.Actor = s.config.User
	}
	if err := s.db.Create(&entry).Error; err != nil {
		log.Printf("error appending log entry: %v", err)
	}
}
