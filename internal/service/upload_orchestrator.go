package service

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/settle"
	"github.com/maheshrc27/snapcomposer/internal/thumbnail"
	"github.com/maheshrc27/snapcomposer/internal/upload"
	"github.com/maheshrc27/snapcomposer/internal/video"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap"
)

type VideoUploader interface {
	Upload(ctx context.Context, src video.Source, onProgress upload.ProgressFunc) (string, error)
}

type ThumbnailExtractor interface {
	Extract(ctx context.Context, src io.Reader) (*thumbnail.Blob, error)
}

type ThumbnailAssigner interface {
	Assign(ctx context.Context, videoID, thumbnailURL string) error
}

// VideoJob is a video spooled to disk, ready for upload.
type VideoJob struct {
	Account  string
	FileName string
	Path     string
	Size     int64
}

// VideoResult is the reconciled outcome of a video attachment. ThumbnailErr
// is set when the video went up without a thumbnail.
type VideoResult struct {
	EmbedURL     string
	ThumbnailURL string
	ThumbnailErr error
}

type UploadOrchestrator interface {
	UploadVideo(ctx context.Context, job VideoJob, onProgress upload.ProgressFunc) (*VideoResult, error)
}

type uploadOrchestrator struct {
	videos     VideoUploader
	extractor  ThumbnailExtractor
	thumbnails ThumbnailPublisher
	assigner   ThumbnailAssigner
	observer   events.Observer
	logger     *zap.Logger
}

func NewUploadOrchestrator(
	videos VideoUploader,
	extractor ThumbnailExtractor,
	thumbnails ThumbnailPublisher,
	assigner ThumbnailAssigner,
	observer events.Observer,
	logger *zap.Logger) UploadOrchestrator {
	return &uploadOrchestrator{
		videos:     videos,
		extractor:  extractor,
		thumbnails: thumbnails,
		assigner:   assigner,
		observer:   observer,
		logger:     logger,
	}
}

// UploadVideo runs the video upload and the thumbnail pipeline side by side
// and waits for both before deciding. The video is mandatory, the thumbnail
// is best-effort.
func (o *uploadOrchestrator) UploadVideo(ctx context.Context, job VideoJob, onProgress upload.ProgressFunc) (*VideoResult, error) {
	videoOut, thumbOut := settle.Pair(ctx,
		func(ctx context.Context) (string, error) {
			return o.uploadVideo(ctx, job, onProgress)
		},
		func(ctx context.Context) (string, error) {
			return o.produceThumbnail(ctx, job)
		},
	)

	if !videoOut.OK() {
		if thumbOut.OK() {
			events.Emit(ctx, o.observer, events.Event{Phase: events.PhaseThumbnailPublish, Outcome: events.OutcomeDiscarded, Detail: thumbOut.Value})
		}
		o.logger.Warn("Video upload failed",
			zap.String("attachment_id", events.AttachmentID(ctx)),
			zap.String("file", job.FileName),
			zap.Error(videoOut.Err),
		)
		return nil, videoOut.Err
	}

	result := &VideoResult{EmbedURL: videoOut.Value}

	if !thumbOut.OK() {
		result.ThumbnailErr = apperrors.Wrap(thumbOut.Err, apperrors.ErrPartialAttachment, "Your video was uploaded without a thumbnail")
		o.logger.Warn("Video uploaded without thumbnail",
			zap.String("attachment_id", events.AttachmentID(ctx)),
			zap.Error(thumbOut.Err),
		)
		return result, nil
	}

	result.ThumbnailURL = thumbOut.Value
	o.assignThumbnail(ctx, result.EmbedURL, result.ThumbnailURL)
	return result, nil
}

func (o *uploadOrchestrator) uploadVideo(ctx context.Context, job VideoJob, onProgress upload.ProgressFunc) (string, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open spooled video: %w", err)
	}
	defer f.Close()

	return o.videos.Upload(ctx, video.Source{
		FileName: job.FileName,
		Owner:    job.Account,
		Data:     f,
		Size:     job.Size,
	}, onProgress)
}

func (o *uploadOrchestrator) produceThumbnail(ctx context.Context, job VideoJob) (string, error) {
	f, err := os.Open(job.Path)
	if err != nil {
		return "", fmt.Errorf("failed to open spooled video: %w", err)
	}
	defer f.Close()

	blob, err := o.extractor.Extract(ctx, f)
	if err != nil {
		return "", err
	}
	return o.thumbnails.Publish(ctx, job.Account, blob)
}

// assignThumbnail links the thumbnail to the uploaded video. Failures are
// only reported.
func (o *uploadOrchestrator) assignThumbnail(ctx context.Context, embedURL, thumbnailURL string) {
	videoID, err := video.ShortID(embedURL)
	if err != nil {
		o.logger.Warn("Cannot derive video id from embed url", zap.String("embed_url", embedURL), zap.Error(err))
		events.Emit(ctx, o.observer, events.Event{Phase: events.PhaseThumbnailAssign, Outcome: events.OutcomeSkipped, Detail: err.Error()})
		return
	}

	events.Emit(ctx, o.observer, events.Event{Phase: events.PhaseThumbnailAssign, Outcome: events.OutcomeStarted, Detail: videoID})
	if err := o.assigner.Assign(ctx, videoID, thumbnailURL); err != nil {
		o.logger.Warn("Thumbnail assignment failed", zap.String("video_id", videoID), zap.Error(err))
		events.Emit(ctx, o.observer, events.Event{Phase: events.PhaseThumbnailAssign, Outcome: events.OutcomeFailed, Detail: err.Error()})
		return
	}
	events.Emit(ctx, o.observer, events.Event{Phase: events.PhaseThumbnailAssign, Outcome: events.OutcomeSucceeded, Detail: videoID})
}
