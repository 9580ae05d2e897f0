package mailer

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/masa23/mailgw/model"
)

// AccumulateStats upserts today's EmailStats row for an account as a single
// atomic statement: insert the first-of-day row, or increment the existing
// one server-side on the unique (config, date) conflict. Concurrent sends
// for the same account/day therefore never lose an increment, including
// when both race on the very first row of the day.
func AccumulateStats(db *gorm.DB, configID uint64, category string, failed bool) error {
	stats := model.EmailStats{
		ConfigID: configID,
		Date:     model.StatsDay(time.Now()),
	}

	assign := map[string]any{}
	if failed {
		stats.EmailsFailed = 1
		assign["emails_failed"] = gorm.Expr("emails_failed + 1")
	} else {
		stats.EmailsSent = 1
		stats.AddCategory(category)
		assign["emails_sent"] = gorm.Expr("emails_sent + 1")
		switch category {
		case model.CategoryPreventivi:
			assign["preventivi_sent"] = gorm.Expr("preventivi_sent + 1")
		case model.CategoryAutomezzi:
			assign["automezzi_sent"] = gorm.Expr("automezzi_sent + 1")
		case model.CategoryAcquisti:
			assign["acquisti_sent"] = gorm.Expr("acquisti_sent + 1")
		}
	}

	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "config_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(assign),
	}).Create(&stats).Error
}
