package upload

import (
	"context"
	"time"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/models"
	"go.uber.org/zap"
)

// Destination is one external host a file can be uploaded to.
type Destination interface {
	Name() string
	Upload(ctx context.Context, account string, file models.MediaFile, onProgress ProgressFunc) (string, error)
}

// Client performs single uploads against a destination. It never retries;
// failures come back as ErrUploadRejected or ErrTransport.
type Client struct {
	observer events.Observer
	logger   *zap.Logger
}

func NewClient(observer events.Observer, logger *zap.Logger) *Client {
	return &Client{observer: observer, logger: logger}
}

// Upload sends file to dest once, reporting its events under phase.
func (c *Client) Upload(ctx context.Context, account string, file models.MediaFile, dest Destination, phase events.Phase, onProgress ProgressFunc) (string, error) {
	start := time.Now()
	events.Emit(ctx, c.observer, events.Event{Phase: phase, Outcome: events.OutcomeStarted, Detail: dest.Name()})

	url, err := dest.Upload(ctx, account, file, onProgress)
	if err != nil {
		c.logger.Warn("Upload failed",
			zap.String("destination", dest.Name()),
			zap.String("file", file.Name),
			zap.Error(err),
		)
		events.Emit(ctx, c.observer, events.Event{Phase: phase, Outcome: events.OutcomeFailed, Detail: dest.Name()})
		return "", err
	}

	c.logger.Info("Upload completed",
		zap.String("destination", dest.Name()),
		zap.String("file", file.Name),
		zap.String("url", url),
		zap.Duration("took", time.Since(start)),
	)
	events.Emit(ctx, c.observer, events.Event{Phase: phase, Outcome: events.OutcomeSucceeded, Detail: dest.Name()})
	return url, nil
}
