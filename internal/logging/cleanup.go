package logging

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/inflnara/inflnara-api/internal/models"
)

const LogRetention = 30 * 24 * time.Hour

// StartCleanup deletes system_logs older than LogRetention once a day until
// done is closed.
func StartCleanup(db *gorm.DB, done <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				n, err := purgeSystemLogs(db, time.Now().Add(-LogRetention))
				if err != nil {
					slog.Error("log cleanup failed", "action", "log_cleanup", "error", err)
				} else if n > 0 {
					slog.Info("log cleanup completed", "deleted", n)
				}
			case <-done:
				return
			}
		}
	}()
}

func purgeSystemLogs(db *gorm.DB, cutoff time.Time) (int64, error) {
	result := db.Where("timestamp < ?", cutoff).Delete(&models.SystemLog{})
	return result.RowsAffected, result.Error
}
