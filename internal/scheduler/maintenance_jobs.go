package scheduler

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/blumarkets/layers/internal/modules/history"
	"github.com/blumarkets/layers/internal/modules/protection"
)

// ProtectionExpiryJob moves protection contracts past their expiry to
// EXPIRED.
type ProtectionExpiryJob struct {
	protection *protection.Service
	log        zerolog.Logger
}

// NewProtectionExpiryJob creates the protection expiry job.
func NewProtectionExpiryJob(svc *protection.Service, log zerolog.Logger) *ProtectionExpiryJob {
	return &ProtectionExpiryJob{
		protection: svc,
		log:        log.With().Str("job", "protection_expiry").Logger(),
	}
}

// Name returns the job name.
func (j *ProtectionExpiryJob) Name() string { return "protection_expiry" }

// Run expires due contracts.
func (j *ProtectionExpiryJob) Run() error {
	n, err := j.protection.ExpireDue(time.Now())
	if err != nil {
		return err
	}
	if n > 0 {
		j.log.Info().Int("expired", n).Msg("Protections expired")
	}
	return nil
}

// HistoryPruneJob bounds the price history side database.
type HistoryPruneJob struct {
	history  *history.Store
	keepDays int
}

// NewHistoryPruneJob creates the history pruning job.
func NewHistoryPruneJob(store *history.Store, keepDays int) *HistoryPruneJob {
	return &HistoryPruneJob{history: store, keepDays: keepDays}
}

// Name returns the job name.
func (j *HistoryPruneJob) Name() string { return "history_prune" }

// Run prunes rows older than the retention window.
func (j *HistoryPruneJob) Run() error {
	_, err := j.history.Prune(j.keepDays, time.Now())
	return err
}
