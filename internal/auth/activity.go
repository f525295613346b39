package auth

import (
	"context"
	"time"

	"github.com/bazasystems/madaris/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// OnlineWindow is how recent an activity entry must be for an account to
// count as currently online.
const OnlineWindow = 5 * time.Minute

// LogActivity appends one audit entry. Failures are logged and swallowed:
// audit writes never abort the action they describe.
func LogActivity(ctx context.Context, db *gorm.DB, accountID uint64, action string) {
	entry := models.ActivityLog{
		AccountID: accountID,
		Action:    action,
		Timestamp: time.Now().UTC(),
	}
	if errCreate := db.WithContext(ctx).Create(&entry).Error; errCreate != nil {
		log.WithError(errCreate).WithField("action", action).Warn("failed to write activity log")
	}
}

// lastActivityRow is the scan target for the per-account maximum.
type lastActivityRow struct {
	AccountID  uint64
	LastActive time.Time
}

// LastActivity returns the most recent activity timestamp per account.
func LastActivity(ctx context.Context, db *gorm.DB) (map[uint64]time.Time, error) {
	var rows []lastActivityRow
	if errFind := db.WithContext(ctx).Model(&models.ActivityLog{}).
		Select("account_id", "MAX(timestamp) AS last_active").
		Group("account_id").
		Scan(&rows).Error; errFind != nil {
		return nil, errFind
	}

	out := make(map[uint64]time.Time, len(rows))
	for _, row := range rows {
		out[row.AccountID] = row.LastActive
	}
	return out, nil
}

// IsOnline reports whether a last-activity timestamp falls inside the
// online window.
func IsOnline(lastActive time.Time, now time.Time) bool {
	if lastActive.IsZero() {
		return false
	}
	return now.Sub(lastActive) < OnlineWindow
}
