package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `Database: "user:pass@tcp(127.0.0.1:3306)/mailgw?parseTime=true"
ObjectStorage:
  Endpoint: "https://s3.example.com"
  AccessKey: "AK"
  SecretKey: "SK"
  Bucket: "mail-attachments"
  Region: "us-east-1"
FallbackSMTP:
  Host: "relay.example.com"
  FromAddress: "noreply@example.com"
  FromName: "Sistema"
  UseTLS: true
Worker:
  Interval: 10s
  Batch: 20
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	conf, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}

	if conf.ObjectStorage.Bucket != "mail-attachments" {
		t.Errorf("Bucket = %q", conf.ObjectStorage.Bucket)
	}
	if conf.FallbackSMTP.Host != "relay.example.com" || !conf.FallbackSMTP.UseTLS {
		t.Errorf("FallbackSMTP = %+v", conf.FallbackSMTP)
	}
	if conf.Worker.Interval != 10*time.Second || conf.Worker.Batch != 20 {
		t.Errorf("Worker = %+v", conf.Worker)
	}
	// Unset values fall back to defaults.
	if conf.FallbackSMTP.Port != 587 {
		t.Errorf("Port = %d; want 587 default", conf.FallbackSMTP.Port)
	}
	if conf.Sync.Folder != "INBOX" || conf.Sync.Limit != 50 {
		t.Errorf("Sync = %+v; want defaults", conf.Sync)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("missing file must error")
	}
}
