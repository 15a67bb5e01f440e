package utils

import (
	"os"
	"path/filepath"
	"time"

	"github.com/harukit/monpix/config"
	"github.com/harukit/monpix/models"
)

// StartUploadAuditor launches a background goroutine that periodically
// verifies recent upload records still have their file on disk. Records
// are immutable and never deleted, so the auditor only reports; a missing
// file means something outside the application touched the upload dir.
func StartUploadAuditor(interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			db := config.DB()
			if db == nil {
				continue
			}
			uploadDir := config.Get().UploadDir
			since := time.Now().AddDate(0, -1, 0)
			var items []models.Upload
			if err := db.Where("created_at >= ?", since).Limit(500).Find(&items).Error; err != nil {
				if Sugar != nil {
					Sugar.Warnf("upload auditor query failed: %v", err)
				}
				continue
			}
			for _, it := range items {
				path := filepath.Join(uploadDir, it.StoredName)
				if _, err := os.Stat(path); os.IsNotExist(err) {
					if Sugar != nil {
						Sugar.Warnf("upload record %d has no backing file: %s", it.ID, path)
					}
				}
			}
		}
	}()
}
