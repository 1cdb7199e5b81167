package service

import (
	"context"
	"fmt"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/models"
	"github.com/maheshrc27/snapcomposer/internal/thumbnail"
	"github.com/maheshrc27/snapcomposer/internal/upload"
	"go.uber.org/zap"
)

type ThumbnailPublisher interface {
	Publish(ctx context.Context, account string, blob *thumbnail.Blob) (string, error)
}

// thumbnailPublisher tries the primary image host once and, on any failure,
// the content-addressed store once.
type thumbnailPublisher struct {
	uploads  *upload.Client
	primary  upload.Destination
	fallback upload.Destination
	observer events.Observer
	logger   *zap.Logger
}

func NewThumbnailPublisher(uploads *upload.Client, primary, fallback upload.Destination, observer events.Observer, logger *zap.Logger) ThumbnailPublisher {
	return &thumbnailPublisher{
		uploads:  uploads,
		primary:  primary,
		fallback: fallback,
		observer: observer,
		logger:   logger,
	}
}

func (p *thumbnailPublisher) Publish(ctx context.Context, account string, blob *thumbnail.Blob) (string, error) {
	if blob == nil || len(blob.Data) == 0 {
		return "", fmt.Errorf("thumbnail is empty")
	}

	file := models.MediaFile{
		Name:        "thumbnail.jpg",
		ContentType: blob.ContentType,
		Data:        blob.Data,
	}

	events.Emit(ctx, p.observer, events.Event{Phase: events.PhaseThumbnailPublish, Outcome: events.OutcomeStarted, Detail: p.primary.Name()})

	url, err := p.uploads.Upload(ctx, account, file, p.primary, events.PhaseThumbnailUpload, nil)
	if err == nil {
		events.Emit(ctx, p.observer, events.Event{Phase: events.PhaseThumbnailPublish, Outcome: events.OutcomeSucceeded, Detail: url})
		return url, nil
	}

	p.logger.Warn("Primary thumbnail host failed, trying fallback",
		zap.String("primary", p.primary.Name()),
		zap.String("fallback", p.fallback.Name()),
		zap.Error(err),
	)
	events.Emit(ctx, p.observer, events.Event{Phase: events.PhaseThumbnailPublish, Outcome: events.OutcomeFallback, Detail: p.fallback.Name()})

	url, err = p.uploads.Upload(ctx, account, file, p.fallback, events.PhaseThumbnailUpload, nil)
	if err != nil {
		events.Emit(ctx, p.observer, events.Event{Phase: events.PhaseThumbnailPublish, Outcome: events.OutcomeFailed, Detail: err.Error()})
		return "", fmt.Errorf("thumbnail publish failed on both hosts: %w", err)
	}

	events.Emit(ctx, p.observer, events.Event{Phase: events.PhaseThumbnailPublish, Outcome: events.OutcomeSucceeded, Detail: url})
	return url, nil
}
