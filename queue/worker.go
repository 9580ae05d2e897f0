package queue

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/masa23/mailgw/config"
	"github.com/masa23/mailgw/mailer"
	"github.com/masa23/mailgw/model"
)

// Worker drains the send queue. Ready items are claimed one at a time with
// a conditional status update, so two workers never process the same item.
type Worker struct {
	db       *gorm.DB
	fallback config.FallbackSMTP
	interval time.Duration
	batch    int

	// newService builds the delivery pipeline for an account. Tests swap
	// this to inject a fake transport.
	newService func(cfg *model.EmailConfiguration) *mailer.Service
}

func NewWorker(db *gorm.DB, fallback config.FallbackSMTP, interval time.Duration, batch int) *Worker {
	w := &Worker{
		db:       db,
		fallback: fallback,
		interval: interval,
		batch:    batch,
	}
	w.newService = func(cfg *model.EmailConfiguration) *mailer.Service {
		return mailer.New(db, cfg, fallback)
	}
	return w
}

// WithServiceFactory overrides the per-account pipeline constructor.
func (w *Worker) WithServiceFactory(f func(cfg *model.EmailConfiguration) *mailer.Service) *Worker {
	w.newService = f
	return w
}

// Run drains the queue on a fixed interval until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	log.Printf("queue worker started interval=%s batch=%d", w.interval, w.batch)
	for {
		select {
		case <-ctx.Done():
			log.Printf("queue worker stopped")
			return
		case <-ticker.C:
			if n, err := w.ProcessDue(); err != nil {
				log.Printf("queue pass failed: %v", err)
			} else if n > 0 {
				log.Printf("queue pass sent=%d", n)
			}
		}
	}
}

// ProcessDue runs one pass: ready items ordered by (priority, scheduled_at,
// created_at), grouped per account so one slow account does not stall the
// others. Returns the number of successful sends.
func (w *Worker) ProcessDue() (int, error) {
	var items []model.EmailQueueItem
	err := w.db.
		Where("status = ? AND scheduled_at <= ?", model.QueuePending, time.Now()).
		Order("priority ASC, scheduled_at ASC, created_at ASC").
		Limit(w.batch).
		Find(&items).Error
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	groups := make(map[uint64][]model.EmailQueueItem)
	for _, item := range items {
		groups[item.ConfigID] = append(groups[item.ConfigID], item)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	sent := 0

	for _, group := range groups {
		wg.Add(1)
		go func(group []model.EmailQueueItem) {
			defer wg.Done()
			for _, item := range group {
				if w.processItem(item) {
					mu.Lock()
					sent++
					mu.Unlock()
				}
			}
		}(group)
	}
	wg.Wait()

	return sent, nil
}

// processItem claims and sends one item. Reports whether the send
// succeeded.
func (w *Worker) processItem(item model.EmailQueueItem) bool {
	// Claim before work: losing the conditional update means another
	// worker already has the item.
	res := w.db.Model(&model.EmailQueueItem{}).
		Where("id = ? AND status = ?", item.ID, model.QueuePending).
		Update("status", model.QueueProcessing)
	if res.Error != nil {
		log.Printf("error claiming queue item %d: %v", item.ID, res.Error)
		return false
	}
	if res.RowsAffected == 0 {
		return false
	}

	var cfg model.EmailConfiguration
	if err := w.db.First(&cfg, item.ConfigID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			w.recordFailure(item, "account configuration no longer exists")
			return false
		}
		log.Printf("error loading configuration %d: %v", item.ConfigID, err)
		w.recordFailure(item, err.Error())
		return false
	}

	svc := w.newService(&cfg)
	result := svc.Send(mailer.SendOptions{
		To:          item.ToAddresses,
		Cc:          item.CcAddresses,
		Bcc:         item.BccAddresses,
		Subject:     item.Subject,
		Text:        item.ContentText,
		HTML:        item.ContentHTML,
		Category:    item.Category,
		RelatedType: item.RelatedType,
		RelatedID:   item.RelatedID,
	})

	if result.Success {
		now := time.Now()
		if err := w.db.Model(&model.EmailQueueItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]any{
				"status":  model.QueueSent,
				"sent_at": now,
			}).Error; err != nil {
			log.Printf("error marking queue item %d sent: %v", item.ID, err)
		}
		return true
	}

	w.recordFailure(item, result.Error)
	return false
}

// recordFailure bumps the attempt counter, returning the item to pending
// until max attempts is exhausted, then parks it failed and writes the
// failed audit Message. The counter is incremented in the database, not
// from the in-memory snapshot, so the bound holds even when the snapshot
// is stale.
func (w *Worker) recordFailure(item model.EmailQueueItem, errMsg string) {
	if err := w.db.Model(&model.EmailQueueItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]any{
			"status":        model.QueuePending,
			"attempts":      gorm.Expr("attempts + 1"),
			"error_message": errMsg,
		}).Error; err != nil {
		log.Printf("error recording queue failure for item %d: %v", item.ID, err)
		return
	}

	var updated model.EmailQueueItem
	if err := w.db.First(&updated, item.ID).Error; err != nil {
		log.Printf("error reloading queue item %d: %v", item.ID, err)
		return
	}
	if updated.Attempts < updated.MaxAttempts {
		return
	}

	if err := w.db.Model(&model.EmailQueueItem{}).
		Where("id = ?", item.ID).
		Update("status", model.QueueFailed).Error; err != nil {
		log.Printf("error parking queue item %d failed: %v", item.ID, err)
		return
	}

	log.Printf("queue item %d failed permanently after %d attempts: %s", item.ID, updated.Attempts, errMsg)

	msg := model.EmailMessage{
		ConfigID:         item.ConfigID,
		ToAddresses:      item.ToAddresses,
		CcAddresses:      item.CcAddresses,
		BccAddresses:     item.BccAddresses,
		Subject:          item.Subject,
		ContentHTML:      item.ContentHTML,
		ContentText:      item.ContentText,
		Direction:        model.DirectionOutgoing,
		Status:           model.StatusFailed,
		ErrorMessage:     errMsg,
		DeliveryAttempts: updated.Attempts,
		RelatedType:      item.RelatedType,
		RelatedID:        item.RelatedID,
	}
	if err := w.db.Create(&msg).Error; err != nil {
		log.Printf("error persisting failed message for item %d: %v", item.ID, err)
	}

	if err := mailer.AccumulateStats(w.db, item.ConfigID, item.Category, true); err != nil {
		log.Printf("error updating failure stats: %v", err)
	}
}
