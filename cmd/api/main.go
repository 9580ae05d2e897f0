package main

import (
	"encoding/json"
	"flag"
	"log"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/masa23/mailgw/config"
	"github.com/masa23/mailgw/imapsync"
	"github.com/masa23/mailgw/mailer"
	"github.com/masa23/mailgw/model"
	"github.com/masa23/mailgw/objectstorage"
	"github.com/masa23/mailgw/queue"
)

var (
	conf    *config.Config
	db      *gorm.DB
	blobs   objectstorage.BlobStore
	version = "dev"
)

type apiResult struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Code    string `json:"code,omitempty"`
}

func ok(c echo.Context, data any) error {
	return c.JSON(200, apiResult{Success: true, Data: data})
}

func fail(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, apiResult{Success: false, Error: msg, Code: code})
}

// addressList accepts either a JSON string or an array of strings, so
// callers sending a single recipient don't need to wrap it.
type addressList []string

func (a *addressList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*a = nil
		} else {
			*a = addressList{single}
		}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*a = addressList(list)
	return nil
}

type sendRequest struct {
	User            string         `json:"user"`
	To              addressList    `json:"to"`
	Cc              addressList    `json:"cc"`
	Bcc             addressList    `json:"bcc"`
	Subject         string         `json:"subject"`
	Text            string         `json:"text"`
	HTML            string         `json:"html"`
	Template        string         `json:"template"`
	Variables       map[string]any `json:"variables"`
	AttachmentPaths []string       `json:"attachment_paths"`
	Category        string         `json:"category"`
	RelatedType     string         `json:"related_type"`
	RelatedID       uint64         `json:"related_id"`
}

func sendEmail(c echo.Context) error {
	var req sendRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "BAD_REQUEST", err.Error())
	}

	svc := mailer.NewForUser(db, req.User, conf.FallbackSMTP)
	result := svc.Send(mailer.SendOptions{
		To:              req.To,
		Cc:              req.Cc,
		Bcc:             req.Bcc,
		Subject:         req.Subject,
		Text:            req.Text,
		HTML:            req.HTML,
		TemplateSlug:    req.Template,
		TemplateVars:    req.Variables,
		AttachmentPaths: req.AttachmentPaths,
		Category:        req.Category,
		RelatedType:     req.RelatedType,
		RelatedID:       req.RelatedID,
	})
	if !result.Success {
		return fail(c, 502, result.Code, result.Error)
	}
	return ok(c, result)
}

type enqueueRequest struct {
	sendRequest
	Priority    int    `json:"priority"`
	ScheduledAt string `json:"scheduled_at"`
	MaxAttempts int    `json:"max_attempts"`
}

func enqueueEmail(c echo.Context) error {
	var req enqueueRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "BAD_REQUEST", err.Error())
	}

	var cfg model.EmailConfiguration
	if err := db.Where("user = ? AND is_active = ?", req.User, true).First(&cfg).Error; err != nil {
		return fail(c, 404, mailer.CodeConfigMissing, "no configuration for user "+req.User)
	}

	var scheduledAt time.Time
	if req.ScheduledAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			return fail(c, 400, "BAD_REQUEST", "scheduled_at must be RFC3339")
		}
		scheduledAt = parsed
	}

	opts := queue.EnqueueOptions{
		ConfigID:    cfg.ID,
		To:          req.To,
		Cc:          req.Cc,
		Bcc:         req.Bcc,
		Subject:     req.Subject,
		Text:        req.Text,
		HTML:        req.HTML,
		Category:    req.Category,
		Priority:    req.Priority,
		MaxAttempts: req.MaxAttempts,
		ScheduledAt: scheduledAt,
		RelatedType: req.RelatedType,
		RelatedID:   req.RelatedID,
	}

	// Templates render at enqueue time so the queue item carries final
	// content.
	if req.Template != "" {
		svc := mailer.New(db, &cfg, conf.FallbackSMTP)
		rendered, err := svc.RenderPreview(req.Template, req.Variables)
		if err != nil {
			return fail(c, 404, mailer.CodeTemplateNotFound, err.Error())
		}
		opts.Subject = rendered.Subject
		opts.HTML = rendered.HTML
		opts.Text = rendered.Text
	}

	item, err := queue.Enqueue(db, opts)
	if err != nil {
		return fail(c, 400, "QUEUE_ERROR", err.Error())
	}
	return ok(c, item)
}

func renderTemplatePreview(c echo.Context) error {
	var vars map[string]any
	if err := c.Bind(&vars); err != nil {
		return fail(c, 400, "BAD_REQUEST", err.Error())
	}

	svc := mailer.New(db, nil, conf.FallbackSMTP)
	rendered, err := svc.RenderPreview(c.Param("slug"), vars)
	if err != nil {
		return fail(c, 404, mailer.CodeTemplateNotFound, err.Error())
	}
	return ok(c, rendered)
}

func resendMessage(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, 400, "BAD_REQUEST", "invalid message id")
	}

	var msg model.EmailMessage
	if err := db.First(&msg, id).Error; err != nil {
		return fail(c, 404, mailer.CodeNotFound, "message not found")
	}

	var cfg *model.EmailConfiguration
	if msg.ConfigID != 0 {
		var loaded model.EmailConfiguration
		if err := db.First(&loaded, msg.ConfigID).Error; err == nil {
			cfg = &loaded
		}
	}

	result := mailer.New(db, cfg, conf.FallbackSMTP).Resend(id)
	if !result.Success {
		return fail(c, 502, result.Code, result.Error)
	}
	return ok(c, result)
}

func testConfiguration(c echo.Context) error {
	svc := mailer.NewForUser(db, c.Param("user"), conf.FallbackSMTP)
	result := svc.TestConfiguration()
	if !result.Success {
		return fail(c, 502, result.Code, result.Error)
	}
	return ok(c, result)
}

type fetchRequest struct {
	Folder string `json:"folder"`
	Limit  int    `json:"limit"`
}

func fetchNewMail(c echo.Context) error {
	var req fetchRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, 400, "BAD_REQUEST", err.Error())
	}
	if req.Folder == "" {
		req.Folder = conf.Sync.Folder
	}
	if req.Limit <= 0 {
		req.Limit = conf.Sync.Limit
	}

	var cfg model.EmailConfiguration
	if err := db.Where("user = ? AND is_active = ?", c.Param("user"), true).
		First(&cfg).Error; err != nil {
		return fail(c, 404, mailer.CodeConfigMissing, "no configuration for user")
	}

	saved, err := imapsync.SyncAccount(db, &cfg, blobs, req.Folder, req.Limit)
	if err != nil {
		return fail(c, 502, mailer.CodeConnectError, err.Error())
	}
	return ok(c, map[string]int{"saved": saved})
}

func getMessages(c echo.Context) error {
	q := db.Order("created_at DESC").Limit(200)
	if user := c.QueryParam("user"); user != "" {
		var cfg model.EmailConfiguration
		if err := db.Where("user = ?", user).First(&cfg).Error; err != nil {
			return fail(c, 404, mailer.CodeConfigMissing, "no configuration for user")
		}
		q = q.Where("config_id = ?", cfg.ID)
	}
	if direction := c.QueryParam("direction"); direction != "" {
		q = q.Where("direction = ?", direction)
	}

	var messages []model.EmailMessage
	if err := q.Find(&messages).Error; err != nil {
		return fail(c, 500, mailer.CodeInternalError, "failed to fetch messages")
	}
	return ok(c, messages)
}

func getLabels(c echo.Context) error {
	var cfg model.EmailConfiguration
	if err := db.Where("user = ?", c.QueryParam("user")).First(&cfg).Error; err != nil {
		return fail(c, 404, mailer.CodeConfigMissing, "no configuration for user")
	}

	var labels []model.EmailLabel
	if err := db.Where("config_id = ? AND is_visible = ?", cfg.ID, true).
		Order("sort_order").Find(&labels).Error; err != nil {
		return fail(c, 500, mailer.CodeInternalError, "failed to fetch labels")
	}
	return ok(c, labels)
}

func addMessageLabel(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		return fail(c, 400, "BAD_REQUEST", "invalid message id")
	}

	var msg model.EmailMessage
	if err := db.First(&msg, id).Error; err != nil {
		return fail(c, 404, mailer.CodeNotFound, "message not found")
	}

	var label model.EmailLabel
	if err := db.Where("config_id = ? AND slug = ?", msg.ConfigID, c.Param("slug")).
		First(&label).Error; err != nil {
		return fail(c, 404, mailer.CodeNotFound, "label not found")
	}

	if err := db.Model(&msg).Association("Labels").Append(&label); err != nil {
		return fail(c, 500, mailer.CodeInternalError, "failed to attach label")
	}
	if err := label.UpdateMessageCount(db); err != nil {
		return fail(c, 500, mailer.CodeInternalError, "failed to recount label")
	}
	return ok(c, label)
}

func main() {
	var confPath string
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.StringVar(&confPath, "conf", "config.yaml", "Path to config file")
	flag.Parse()

	if showVersion {
		log.Printf("Version: %s", version)
		return
	}

	var err error
	conf, err = config.Load(confPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	blobs, err = objectstorage.NewS3Store(conf.ObjectStorage)
	if err != nil {
		log.Fatalf("Failed to connect to object storage: %v", err)
	}

	e := echo.New()
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAuthorization},
		AllowCredentials: true,
	}))

	db, err = gorm.Open(mysql.Open(conf.Database), &gorm.Config{})
	if err != nil {
		e.Logger.Fatal("DB connection failed:", err)
	}
	if err := model.Migrate(db); err != nil {
		e.Logger.Fatal("Migration failed:", err)
	}

	e.POST("/api/send", sendEmail)
	e.POST("/api/queue", enqueueEmail)
	e.POST("/api/templates/:slug/preview", renderTemplatePreview)
	e.POST("/api/messages/:id/resend", resendMessage)
	e.POST("/api/config/:user/test", testConfiguration)
	e.POST("/api/fetch/:user", fetchNewMail)
	e.GET("/api/messages", getMessages)
	e.GET("/api/labels", getLabels)
	e.POST("/api/messages/:id/labels/:slug", addMessageLabel)

	e.Logger.Fatal(e.Start(":8080"))
}
