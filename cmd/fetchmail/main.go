package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/k0kubun/pp/v3"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/masa23/mailgw/config"
	"github.com/masa23/mailgw/imapsync"
	"github.com/masa23/mailgw/model"
	"github.com/masa23/mailgw/objectstorage"
)

var version = "dev"

func main() {
	var confPath string
	var user string
	var all bool
	var folder string
	var limit int
	var debug bool
	var showVersion bool
	flag.BoolVar(&showVersion, "version", false, "Show version")
	flag.StringVar(&confPath, "conf", "./config.yaml", "Path to the configuration file")
	flag.StringVar(&user, "user", "", "Fetch mail for a single user")
	flag.BoolVar(&all, "all", false, "Fetch mail for all IMAP-enabled users")
	flag.StringVar(&folder, "folder", "", "Folder to fetch from (default from config)")
	flag.IntVar(&limit, "limit", 0, "Maximum messages per account (default from config)")
	flag.BoolVar(&debug, "debug", false, "Dump per-account results")
	flag.Parse()

	if showVersion {
		log.Printf("Version: %s", version)
		return
	}

	conf, err := config.Load(confPath)
	if err != nil {
		log.Fatalf("Error loading configuration: %v", err)
	}

	if conf.LogFile != "" {
		logFd, err := os.OpenFile(conf.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			log.Fatalf("Error opening log file: %v", err)
		}
		defer logFd.Close()
		log.SetOutput(logFd)
	}

	if folder == "" {
		folder = conf.Sync.Folder
	}
	if limit <= 0 {
		limit = conf.Sync.Limit
	}

	db, err := gorm.Open(mysql.Open(conf.Database), &gorm.Config{})
	if err != nil {
		log.Fatalf("Error connecting to database: %v", err)
	}
	if err := model.Migrate(db); err != nil {
		log.Fatalf("Error migrating database: %v", err)
	}

	blobs, err := objectstorage.NewS3Store(conf.ObjectStorage)
	if err != nil {
		log.Fatalf("Error connecting to object storage: %v", err)
	}

	var configs []model.EmailConfiguration
	switch {
	case user != "":
		var cfg model.EmailConfiguration
		if err := db.Where("user = ? AND is_active = ?", user, true).First(&cfg).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Fatalf("User %q has no email configuration", user)
			}
			log.Fatalf("Error loading configuration: %v", err)
		}
		configs = []model.EmailConfiguration{cfg}
	case all:
		if err := db.Where("imap_enabled = ? AND is_active = ?", true, true).
			Find(&configs).Error; err != nil {
			log.Fatalf("Error loading configurations: %v", err)
		}
	default:
		fmt.Fprintln(os.Stderr, "Please specify -user USERNAME or -all")
		os.Exit(2)
	}

	fmt.Printf("Fetching mail for %d account(s), folder=%s limit=%d\n", len(configs), folder, limit)

	totalFetched := 0
	totalErrors := 0

	for i := range configs {
		cfg := &configs[i]
		fmt.Printf("\nProcessing: %s\n", cfg.EmailAddress)

		if !cfg.IMAPEnabled {
			fmt.Printf("  IMAP not enabled, skipping\n")
			continue
		}
		if cfg.IMAPServer == "" {
			fmt.Printf("  IMAP server not configured, skipping\n")
			continue
		}

		saved, err := imapsync.SyncAccount(db, cfg, blobs, folder, limit)
		if err != nil {
			fmt.Printf("  error: %v\n", err)
			totalErrors++
			continue
		}

		if saved > 0 {
			fmt.Printf("  saved %d new message(s)\n", saved)
		} else {
			fmt.Printf("  no new messages\n")
		}
		totalFetched += saved

		if debug {
			log.Println(pp.Sprintf("account result: %s saved=%d", cfg.EmailAddress, saved))
		}
	}

	fmt.Printf("\nAccounts processed: %d\n", len(configs))
	fmt.Printf("Messages fetched: %d\n", totalFetched)
	if totalErrors > 0 {
		fmt.Printf("Errors: %d\n", totalErrors)
		os.Exit(1)
	}
}
