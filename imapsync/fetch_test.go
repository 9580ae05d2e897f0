package imapsync

import (
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/masa23/mailgw/model"
)

func TestSearchCriteria(t *testing.T) {
	tests := []struct {
		criterion  string
		wantUnseen bool
		wantSince  bool
	}{
		{model.SearchUnseen, true, false},
		{"", true, false},
		{"garbage", true, false},
		{model.SearchAll, false, false},
		{"since:7", false, true},
		{"since:0", true, false},
		{"since:abc", true, false},
	}

	for _, tt := range tests {
		got := searchCriteria(tt.criterion)
		unseen := len(got.NotFlag) == 1 && got.NotFlag[0] == imap.FlagSeen
		if unseen != tt.wantUnseen {
			t.Errorf("criterion %q: unseen = %v; want %v", tt.criterion, unseen, tt.wantUnseen)
		}
		if tt.wantSince {
			wantAfter := time.Now().AddDate(0, 0, -8)
			if got.Since.IsZero() || got.Since.Before(wantAfter) {
				t.Errorf("criterion %q: Since = %v; want about 7 days back", tt.criterion, got.Since)
			}
		} else if !got.Since.IsZero() {
			t.Errorf("criterion %q: Since = %v; want unset", tt.criterion, got.Since)
		}
	}
}
