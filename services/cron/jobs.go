package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/skillvault/api/model"
	"github.com/skillvault/api/repository"
)

// PendingPurchaseTTL is how long a pending purchase may sit before the
// checkout is considered abandoned and the row moves to failed.
const PendingPurchaseTTL = 24 * time.Hour

// JobLogRetention is how long cron job logs are kept.
const JobLogRetention = 30 * 24 * time.Hour

// ExpireStalePendingPurchases marks pending purchases older than the TTL as
// failed. Completed and failed rows are never touched.
func (m *CronManager) ExpireStalePendingPurchases() {
	const jobName = "expire_stale_pending_purchases"

	repo := repository.NewPurchaseRepository(m.db)
	cutoff := time.Now().Add(-PendingPurchaseTTL)

	expired, err := repo.ExpirePendingOlderThan(context.Background(), cutoff)
	if err != nil {
		m.logJobError(jobName, err)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("expired %d stale pending purchases", expired))
}

// CleanupJobLogs deletes cron job logs older than the retention window.
func (m *CronManager) CleanupJobLogs() {
	const jobName = "cleanup_job_logs"

	cutoff := time.Now().Add(-JobLogRetention)
	result := m.db.Where("created_at < ?", cutoff).Delete(&model.CronJobLog{})
	if result.Error != nil {
		m.logJobError(jobName, result.Error)
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("deleted %d old job logs", result.RowsAffected))
}
