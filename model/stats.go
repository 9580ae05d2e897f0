package model

import (
	"time"
)

// EmailStats is the per-account per-day rollup. Rows are upserted
// incrementally under row locking; (config, date) is unique.
type EmailStats struct {
	Model
	ConfigID uint64    `gorm:"not null;uniqueIndex:idx_stats_config_date" json:"config_id"`
	Date     time.Time `gorm:"type:date;not null;uniqueIndex:idx_stats_config_date" json:"date"`

	EmailsSent    int `gorm:"not null;default:0" json:"emails_sent"`
	EmailsFailed  int `gorm:"not null;default:0" json:"emails_failed"`
	EmailsBounced int `gorm:"not null;default:0" json:"emails_bounced"`

	PreventiviSent int `gorm:"not null;default:0" json:"preventivi_sent"`
	AutomezziSent  int `gorm:"not null;default:0" json:"automezzi_sent"`
	AcquistiSent   int `gorm:"not null;default:0" json:"acquisti_sent"`
}

// AddCategory bumps the counter matching a send category. Categories
// without a dedicated column only count toward the totals.
func (s *EmailStats) AddCategory(category string) {
	switch category {
	case CategoryPreventivi:
		s.PreventiviSent++
	case CategoryAutomezzi:
		s.AutomezziSent++
	case CategoryAcquisti:
		s.AcquistiSent++
	}
}

// StatsDay truncates a timestamp to the UTC date used as the rollup key.
func StatsDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
