package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/models"
	"github.com/maheshrc27/snapcomposer/internal/repository"
	"github.com/maheshrc27/snapcomposer/internal/settle"
	"github.com/maheshrc27/snapcomposer/internal/upload"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"go.uber.org/zap"
)

// sniffLen is how many leading bytes filetype needs to classify a file.
const sniffLen = 262

var (
	imageExtensions = map[string]bool{"jpg": true, "png": true, "webp": true, "gif": true}
	videoExtensions = map[string]bool{"mp4": true, "mov": true, "webm": true, "mkv": true}
)

type ComposerService interface {
	CreateDraft(ctx context.Context, account string, replyTo models.ReplyTarget) (*models.Draft, error)
	GetDraft(ctx context.Context, account, draftID string) (*models.Draft, error)
	SetText(ctx context.Context, account, draftID, text string) (*models.Draft, error)
	AttachImages(ctx context.Context, account, draftID string, files []models.MediaFile) (*models.Draft, error)
	RemoveImage(ctx context.Context, account, draftID, attachmentID string) (*models.Draft, error)
	SetGIF(ctx context.Context, account, draftID, gifURL string) (*models.Draft, error)
	ClearGIF(ctx context.Context, account, draftID string) (*models.Draft, error)
	AttachVideo(ctx context.Context, account, draftID, fileName string, r io.Reader) (*models.Draft, error)
	RemoveVideo(ctx context.Context, account, draftID string) (*models.Draft, error)
	Submit(ctx context.Context, account, ledgerToken, draftID string) (*models.PublishedPost, error)
	Discard(ctx context.Context, account, draftID string) error
	ExpireDrafts(ctx context.Context, olderThan time.Duration) int
	Wait()
}

type ComposerConfig struct {
	TempDir      string
	VideoEnabled bool
}

// composerService owns every draft. Draft fields are only changed while mu
// is held; background uploads report into their own task slots through
// callbacks that take mu, and their results are folded in at the join.
type composerService struct {
	drafts       repository.DraftRepository
	uploads      *upload.Client
	images       upload.Destination
	orchestrator UploadOrchestrator
	assembler    *PostAssembler
	publisher    PublishService
	cfg          ComposerConfig
	observer     events.Observer
	logger       *zap.Logger
	now          func() time.Time

	mu         sync.Mutex
	generation int64
	cancels    map[string]context.CancelFunc
	submitting map[string]bool
	wg         sync.WaitGroup
}

func NewComposerService(
	drafts repository.DraftRepository,
	uploads *upload.Client,
	images upload.Destination,
	orchestrator UploadOrchestrator,
	assembler *PostAssembler,
	publisher PublishService,
	cfg ComposerConfig,
	observer events.Observer,
	logger *zap.Logger) ComposerService {
	return &composerService{
		drafts:       drafts,
		uploads:      uploads,
		images:       images,
		orchestrator: orchestrator,
		assembler:    assembler,
		publisher:    publisher,
		cfg:          cfg,
		observer:     observer,
		logger:       logger,
		now:          time.Now,
		cancels:      make(map[string]context.CancelFunc),
		submitting:   make(map[string]bool),
	}
}

func (s *composerService) CreateDraft(ctx context.Context, account string, replyTo models.ReplyTarget) (*models.Draft, error) {
	if account == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "account is required")
	}

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate draft id: %w", err)
	}

	now := s.now()
	d := &models.Draft{
		ID:        id,
		Account:   account,
		ReplyTo:   replyTo,
		Images:    []models.ImageAttachment{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts.Save(d)
	return snapshot(d), nil
}

func (s *composerService) GetDraft(ctx context.Context, account, draftID string) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(account, draftID)
	if err != nil {
		return nil, err
	}
	return snapshot(d), nil
}

func (s *composerService) SetText(ctx context.Context, account, draftID, text string) (*models.Draft, error) {
	return s.mutate(account, draftID, func(d *models.Draft) error {
		d.Text = text
		return nil
	})
}

func (s *composerService) AttachImages(ctx context.Context, account, draftID string, files []models.MediaFile) (*models.Draft, error) {
	if len(files) == 0 {
		return nil, apperrors.New(apperrors.ErrValidation, "No images were provided")
	}

	attachments := make([]models.ImageAttachment, 0, len(files))
	for _, f := range files {
		kind, err := classify(f.Data)
		if err != nil || !imageExtensions[kind.Extension] {
			return nil, apperrors.New(apperrors.ErrValidation, fmt.Sprintf("%s is not a supported image", f.Name))
		}

		id, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate attachment id: %w", err)
		}

		f.ContentType = kind.MIME.Value
		attachments = append(attachments, models.ImageAttachment{
			ID:   id,
			File: f,
			Task: models.NewUploadTask(models.UploadKindImage),
		})
	}

	return s.mutate(account, draftID, func(d *models.Draft) error {
		if d.Mode() == models.AttachmentModeVideo {
			return apperrors.New(apperrors.ErrConflict, "Remove the video before adding images")
		}
		d.Images = append(d.Images, attachments...)
		return nil
	})
}

func (s *composerService) RemoveImage(ctx context.Context, account, draftID, attachmentID string) (*models.Draft, error) {
	return s.mutate(account, draftID, func(d *models.Draft) error {
		for i, img := range d.Images {
			if img.ID == attachmentID {
				d.Images = append(d.Images[:i:i], d.Images[i+1:]...)
				return nil
			}
		}
		return apperrors.New(apperrors.ErrNotFound, "Image not found")
	})
}

func (s *composerService) SetGIF(ctx context.Context, account, draftID, gifURL string) (*models.Draft, error) {
	u, err := url.Parse(gifURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "GIF must be an http(s) link")
	}

	return s.mutate(account, draftID, func(d *models.Draft) error {
		if d.Mode() == models.AttachmentModeVideo {
			return apperrors.New(apperrors.ErrConflict, "Remove the video before adding a GIF")
		}
		d.GIFURL = gifURL
		return nil
	})
}

func (s *composerService) ClearGIF(ctx context.Context, account, draftID string) (*models.Draft, error) {
	return s.mutate(account, draftID, func(d *models.Draft) error {
		d.GIFURL = ""
		return nil
	})
}

// AttachVideo spools the video to disk and starts its upload in the
// background. The returned draft shows the upload as running.
func (s *composerService) AttachVideo(ctx context.Context, account, draftID, fileName string, r io.Reader) (*models.Draft, error) {
	if !s.cfg.VideoEnabled {
		return nil, apperrors.New(apperrors.ErrCredentialMissing, "Video uploads are not configured on this server")
	}

	// Check the draft before reading a possibly large body.
	s.mu.Lock()
	d, err := s.lookup(account, draftID)
	if err == nil {
		err = videoAllowed(d)
	}
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	path, size, err := s.spoolVideo(r)
	if err != nil {
		return nil, err
	}

	id, err := gonanoid.New()
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to generate attachment id: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// The draft may have changed while the body was read.
	d, err = s.lookup(account, draftID)
	if err == nil {
		err = videoAllowed(d)
	}
	if err != nil {
		os.Remove(path)
		return nil, err
	}

	s.generation++
	attachment := &models.VideoAttachment{
		ID:         id,
		FileName:   fileName,
		Path:       path,
		Size:       size,
		Generation: s.generation,
		Upload:     models.NewUploadTask(models.UploadKindVideo),
		Thumbnail:  models.NewUploadTask(models.UploadKindThumbnail),
	}
	attachment.Upload.Start()
	attachment.Thumbnail.Start()
	d.Video = attachment
	d.LastError = ""
	d.UpdatedAt = s.now()

	uploadCtx, cancel := context.WithCancel(events.WithAttachment(context.Background(), id))
	s.cancels[draftID] = cancel

	job := VideoJob{Account: account, FileName: fileName, Path: path, Size: size}
	s.wg.Add(1)
	go s.runVideo(uploadCtx, draftID, attachment.Generation, job)

	return snapshot(d), nil
}

func (s *composerService) RemoveVideo(ctx context.Context, account, draftID string) (*models.Draft, error) {
	return s.mutate(account, draftID, func(d *models.Draft) error {
		if d.Video == nil {
			return apperrors.New(apperrors.ErrNotFound, "No video attached")
		}
		s.cancelUpload(draftID)
		d.Video = nil
		return nil
	})
}

func (s *composerService) Discard(ctx context.Context, account, draftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.lookup(account, draftID); err != nil {
		return err
	}
	s.cancelUpload(draftID)
	s.drafts.Delete(draftID)
	delete(s.submitting, draftID)
	return nil
}

// ExpireDrafts drops drafts untouched for longer than olderThan and cancels
// their uploads.
func (s *composerService) ExpireDrafts(ctx context.Context, olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, d := range s.drafts.ListUpdatedBefore(s.now().Add(-olderThan)) {
		if s.submitting[d.ID] {
			continue
		}
		s.cancelUpload(d.ID)
		s.drafts.Delete(d.ID)
		removed++
	}
	return removed
}

// Wait blocks until every background upload has returned.
func (s *composerService) Wait() {
	s.wg.Wait()
}

func (s *composerService) Submit(ctx context.Context, account, ledgerToken, draftID string) (*models.PublishedPost, error) {
	// Validate and claim the draft
	s.mu.Lock()
	d, err := s.lookup(account, draftID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.submitting[draftID] {
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrConflict, "This post is already being published")
	}
	if !d.HasContent() {
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrValidation, "Write something or attach media before posting")
	}
	if d.Video != nil && d.Video.Upload.Status() != models.UploadStatusSucceeded {
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrConflict, "Your video is still uploading")
	}

	var pending []models.ImageAttachment
	for i := range d.Images {
		if d.Images[i].Task.Status() == models.UploadStatusSucceeded {
			continue
		}
		d.Images[i].Task.Start()
		pending = append(pending, d.Images[i])
	}
	s.submitting[draftID] = true
	d.LastError = ""
	s.mu.Unlock()

	// Upload images that have not made it yet
	if len(pending) > 0 {
		outcomes := s.uploadImages(ctx, account, draftID, pending)
		s.foldImages(draftID, pending, outcomes)
	}

	// Assemble from the folded state
	s.mu.Lock()
	d, ok := s.drafts.GetByID(draftID)
	if !ok {
		delete(s.submitting, draftID)
		s.mu.Unlock()
		return nil, apperrors.New(apperrors.ErrNotFound, "Draft not found")
	}
	input := AssemblyInput{
		Text:       d.Text,
		ReplyTo:    d.ReplyTo,
		VideoEmbed: d.Video.EmbedURL(),
		GIFURL:     d.GIFURL,
	}
	failedImages := 0
	for _, img := range d.Images {
		switch img.Task.Status() {
		case models.UploadStatusSucceeded:
			input.ImageURLs = append(input.ImageURLs, img.Task.Result())
		case models.UploadStatusFailed:
			failedImages++
		}
	}
	s.mu.Unlock()

	if failedImages > 0 && len(input.ImageURLs) == 0 && strings.TrimSpace(input.Text) == "" && input.GIFURL == "" {
		err := apperrors.New(apperrors.ErrPartialAttachment, "None of your images could be uploaded, please try again")
		return nil, s.failSubmit(draftID, err)
	}

	record, err := s.assembler.Assemble(ctx, input)
	if err != nil {
		return nil, s.failSubmit(draftID, err)
	}

	post, err := s.publisher.Publish(ctx, account, ledgerToken, record)
	if err != nil {
		return nil, s.failSubmit(draftID, err)
	}

	// Published: reset the draft for the next post
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.submitting, draftID)
	if d, ok := s.drafts.GetByID(draftID); ok {
		s.cancelUpload(draftID)
		d.Clear()
		d.UpdatedAt = s.now()
	}
	return post, nil
}

func (s *composerService) uploadImages(ctx context.Context, account, draftID string, pending []models.ImageAttachment) []settle.Outcome[string] {
	tasks := make([]settle.Task[string], len(pending))
	for i, img := range pending {
		tasks[i] = func(ctx context.Context) (string, error) {
			ctx = events.WithAttachment(ctx, img.ID)
			return s.uploads.Upload(ctx, account, img.File, s.images, events.PhaseImageUpload, func(p int) {
				s.updateImage(draftID, img.ID, func(t *models.UploadTask) { t.Advance(p) })
			})
		}
	}
	return settle.All(ctx, tasks...)
}

func (s *composerService) foldImages(draftID string, pending []models.ImageAttachment, outcomes []settle.Outcome[string]) {
	for i, out := range outcomes {
		img := pending[i]
		if out.OK() {
			s.updateImage(draftID, img.ID, func(t *models.UploadTask) { t.Succeed(out.Value) })
			continue
		}

		s.logger.Warn("Image upload failed, leaving it out of the post",
			zap.String("draft_id", draftID),
			zap.String("attachment_id", img.ID),
			zap.Error(out.Err),
		)
		events.Emit(context.Background(), s.observer, events.Event{
			AttachmentID: img.ID,
			Phase:        events.PhaseImageUpload,
			Outcome:      events.OutcomeDiscarded,
			Detail:       apperrors.ErrPartialAttachment.Error(),
		})
		reason := apperrors.GetMessage(out.Err)
		s.updateImage(draftID, img.ID, func(t *models.UploadTask) { t.Fail(reason) })
	}
}

func (s *composerService) updateImage(draftID, attachmentID string, fn func(t *models.UploadTask)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts.GetByID(draftID)
	if !ok {
		return
	}
	for i := range d.Images {
		if d.Images[i].ID == attachmentID {
			fn(&d.Images[i].Task)
			return
		}
	}
}

// failSubmit keeps the draft as it is and records the message for the user.
func (s *composerService) failSubmit(draftID string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.submitting, draftID)
	if d, ok := s.drafts.GetByID(draftID); ok {
		d.LastError = apperrors.GetMessage(err)
		d.UpdatedAt = s.now()
	}
	return err
}

// runVideo uploads one video attachment and folds the result into the
// draft if the attachment is still the one it was started for.
func (s *composerService) runVideo(ctx context.Context, draftID string, generation int64, job VideoJob) {
	defer s.wg.Done()
	defer os.Remove(job.Path)

	result, err := s.orchestrator.UploadVideo(ctx, job, func(p int) {
		s.updateVideo(draftID, generation, func(v *models.VideoAttachment) { v.Upload.Advance(p) })
	})

	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts.GetByID(draftID)
	if !ok || d.Video == nil || d.Video.Generation != generation {
		events.Emit(ctx, s.observer, events.Event{Phase: events.PhaseVideoUpload, Outcome: events.OutcomeDiscarded, Detail: "attachment removed"})
		return
	}
	delete(s.cancels, draftID)

	if err != nil {
		d.Video = nil
		if errors.Is(err, context.Canceled) {
			return
		}
		d.LastError = apperrors.GetMessage(err)
		d.UpdatedAt = s.now()
		return
	}

	d.Video.Upload.Succeed(result.EmbedURL)
	if result.ThumbnailURL != "" {
		d.Video.Thumbnail.Succeed(result.ThumbnailURL)
	} else {
		d.Video.Thumbnail.Fail(apperrors.GetMessage(result.ThumbnailErr))
	}
	d.UpdatedAt = s.now()
}

func (s *composerService) updateVideo(draftID string, generation int64, fn func(v *models.VideoAttachment)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.drafts.GetByID(draftID)
	if !ok || d.Video == nil || d.Video.Generation != generation {
		return
	}
	fn(d.Video)
	d.UpdatedAt = s.now()
}

func (s *composerService) spoolVideo(r io.Reader) (string, int64, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		if errors.Is(err, io.EOF) {
			return "", 0, apperrors.New(apperrors.ErrValidation, "The video file is empty")
		}
		return "", 0, fmt.Errorf("failed to read video: %w", err)
	}
	head = head[:n]

	kind, err := classify(head)
	if err != nil || !videoExtensions[kind.Extension] {
		return "", 0, apperrors.New(apperrors.ErrValidation, "Only mp4, mov, webm and mkv videos are supported")
	}

	f, err := os.CreateTemp(s.cfg.TempDir, "video-*."+kind.Extension)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	size, err := io.Copy(f, io.MultiReader(bytes.NewReader(head), r))
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, fmt.Errorf("failed to spool video: %w", err)
	}
	return f.Name(), size, nil
}

func (s *composerService) mutate(account, draftID string, fn func(d *models.Draft) error) (*models.Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.lookup(account, draftID)
	if err != nil {
		return nil, err
	}
	if s.submitting[draftID] {
		return nil, apperrors.New(apperrors.ErrConflict, "This post is being published")
	}
	if err := fn(d); err != nil {
		return nil, err
	}
	d.UpdatedAt = s.now()
	return snapshot(d), nil
}

// lookup must be called with mu held. Drafts of other accounts are reported
// as missing.
func (s *composerService) lookup(account, draftID string) (*models.Draft, error) {
	d, ok := s.drafts.GetByID(draftID)
	if !ok || d.Account != account {
		return nil, apperrors.New(apperrors.ErrNotFound, "Draft not found")
	}
	return d, nil
}

// cancelUpload must be called with mu held.
func (s *composerService) cancelUpload(draftID string) {
	if cancel, ok := s.cancels[draftID]; ok {
		cancel()
		delete(s.cancels, draftID)
	}
}

func videoAllowed(d *models.Draft) error {
	switch d.Mode() {
	case models.AttachmentModeMedia:
		return apperrors.New(apperrors.ErrConflict, "Remove images and GIF before adding a video")
	case models.AttachmentModeVideo:
		return apperrors.New(apperrors.ErrConflict, "Only one video can be attached")
	}
	return nil
}

func classify(data []byte) (types.Type, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return types.Unknown, err
	}
	if kind == filetype.Unknown {
		return types.Unknown, fmt.Errorf("unknown file type")
	}
	return kind, nil
}

// snapshot copies d so it can be serialised without holding the lock.
func snapshot(d *models.Draft) *models.Draft {
	c := *d
	c.Images = make([]models.ImageAttachment, len(d.Images))
	copy(c.Images, d.Images)
	if d.Video != nil {
		v := *d.Video
		c.Video = &v
	}
	return &c
}
