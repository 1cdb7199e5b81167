package job

import (
	"context"
	"time"

	"github.com/maheshrc27/snapcomposer/internal/service"
	"go.uber.org/zap"
)

// ExpirySchedule is the cron spec the expiry job runs on.
const ExpirySchedule = "@every 00h10m00s"

type DraftExpiryJob struct {
	cs     service.ComposerService
	ttl    time.Duration
	logger *zap.Logger
}

func NewDraftExpiryJob(cs service.ComposerService, ttl time.Duration, logger *zap.Logger) *DraftExpiryJob {
	return &DraftExpiryJob{
		cs:     cs,
		ttl:    ttl,
		logger: logger,
	}
}

func (j *DraftExpiryJob) ExpireDrafts() {
	ctx := context.Background()

	removed := j.cs.ExpireDrafts(ctx, j.ttl)
	if removed > 0 {
		j.logger.Info("Expired abandoned drafts", zap.Int("count", removed), zap.Duration("ttl", j.ttl))
	}
}
