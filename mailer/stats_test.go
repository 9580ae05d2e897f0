package mailer

import (
	"testing"
	"time"

	"github.com/masa23/mailgw/model"
)

func TestAccumulateStatsFirstOfDay(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)

	if err := AccumulateStats(db, cfg.ID, model.CategoryPreventivi, false); err != nil {
		t.Fatal(err)
	}

	var stats model.EmailStats
	if err := db.Where("config_id = ?", cfg.ID).First(&stats).Error; err != nil {
		t.Fatal(err)
	}
	if stats.EmailsSent != 1 || stats.PreventiviSent != 1 || stats.EmailsFailed != 0 {
		t.Errorf("stats = %+v; want first-of-day row with 1 sent", stats)
	}
}

func TestAccumulateStatsIncrementsExistingRow(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)

	// The row already exists, as after a concurrent first-of-day insert
	// won the unique (config, date) index. The conflict path must add to
	// its counters, never drop the increment or error.
	db.Create(&model.EmailStats{
		ConfigID:       cfg.ID,
		Date:           model.StatsDay(time.Now()),
		EmailsSent:     5,
		PreventiviSent: 2,
	})

	if err := AccumulateStats(db, cfg.ID, model.CategoryPreventivi, false); err != nil {
		t.Fatalf("conflicting accumulate must not error: %v", err)
	}
	if err := AccumulateStats(db, cfg.ID, model.CategoryGenerico, true); err != nil {
		t.Fatal(err)
	}

	var stats []model.EmailStats
	if err := db.Where("config_id = ?", cfg.ID).Find(&stats).Error; err != nil {
		t.Fatal(err)
	}
	if len(stats) != 1 {
		t.Fatalf("stats rows = %d; want the single per-day row", len(stats))
	}
	if stats[0].EmailsSent != 6 || stats[0].PreventiviSent != 3 || stats[0].EmailsFailed != 1 {
		t.Errorf("stats = sent %d preventivi %d failed %d; want 6/3/1",
			stats[0].EmailsSent, stats[0].PreventiviSent, stats[0].EmailsFailed)
	}
}

func TestAccumulateStatsIsolatesAccounts(t *testing.T) {
	db := testDB(t)
	cfg := seedConfig(t, db)
	other := model.EmailConfiguration{
		User:         "altro",
		EmailAddress: "altro@example.com",
		IsActive:     true,
	}
	if err := db.Create(&other).Error; err != nil {
		t.Fatal(err)
	}

	if err := AccumulateStats(db, cfg.ID, model.CategoryGenerico, false); err != nil {
		t.Fatal(err)
	}
	if err := AccumulateStats(db, other.ID, model.CategoryGenerico, false); err != nil {
		t.Fatal(err)
	}

	var count int64
	db.Model(&model.EmailStats{}).Count(&count)
	if count != 2 {
		t.Errorf("stats rows = %d; want one per account", count)
	}
}
