package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type ObjectStorage struct {
	Endpoint  string `yaml:"Endpoint"`
	AccessKey string `yaml:"AccessKey"`
	SecretKey string `yaml:"SecretKey"`
	Bucket    string `yaml:"Bucket"`
	Region    string `yaml:"Region"`
}

// FallbackSMTP is the process-wide default transport used when a user has
// no complete configuration of their own. Its from-address is a single
// global identity, never a per-user one.
type FallbackSMTP struct {
	Host        string `yaml:"Host"`
	Port        int    `yaml:"Port"`
	Username    string `yaml:"Username"`
	Password    string `yaml:"Password"`
	FromAddress string `yaml:"FromAddress"`
	FromName    string `yaml:"FromName"`
	UseTLS      bool   `yaml:"UseTLS"`
	UseSSL      bool   `yaml:"UseSSL"`
}

type Worker struct {
	Interval time.Duration `yaml:"Interval"`
	Batch    int           `yaml:"Batch"`
}

type Sync struct {
	Folder string `yaml:"Folder"`
	Limit  int    `yaml:"Limit"`
}

type Config struct {
	Database      string        `yaml:"Database"`
	LogFile       string        `yaml:"LogFile"`
	ObjectStorage ObjectStorage `yaml:"ObjectStorage"`
	FallbackSMTP  FallbackSMTP  `yaml:"FallbackSMTP"`
	Worker        Worker        `yaml:"Worker"`
	Sync          Sync          `yaml:"Sync"`
}

func Load(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var conf Config
	if err := yaml.Unmarshal(buf, &conf); err != nil {
		return nil, err
	}

	if conf.Worker.Interval <= 0 {
		conf.Worker.Interval = 30 * time.Second
	}
	if conf.Worker.Batch <= 0 {
		conf.Worker.Batch = 50
	}
	if conf.Sync.Folder == "" {
		conf.Sync.Folder = "INBOX"
	}
	if conf.Sync.Limit <= 0 {
		conf.Sync.Limit = 50
	}
	if conf.FallbackSMTP.Port == 0 {
		conf.FallbackSMTP.Port = 587
	}

	return &conf, nil
}
