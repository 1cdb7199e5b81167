package video

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/retry"
	"github.com/maheshrc27/snapcomposer/internal/upload"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap"
)

const (
	tusVersion        = "1.0.0"
	headerAPIKey      = "X-API-Key"
	headerEmbedURL    = "X-Embed-URL"
	defaultChunkSize  = 5 * 1024 * 1024
	offsetContentType = "application/offset+octet-stream"
)

type Options struct {
	Endpoint    string
	APIKey      string
	FrontendApp string
	ChunkSize   int64
}

// Source is the video to upload. Data is read by offset so an interrupted
// upload can resume without starting over.
type Source struct {
	FileName string
	Owner    string
	Data     io.ReaderAt
	Size     int64
}

// Uploader performs resumable (tus) uploads to the video host.
type Uploader struct {
	opts     Options
	client   *http.Client
	policy   retry.Policy
	observer events.Observer
	logger   *zap.Logger
}

func NewUploader(opts Options, client *http.Client, policy retry.Policy, observer events.Observer, logger *zap.Logger) *Uploader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	return &Uploader{
		opts:     opts,
		client:   client,
		policy:   policy,
		observer: observer,
		logger:   logger,
	}
}

// session is the state kept across retry attempts of one upload.
type session struct {
	location string
	offset   int64
	embedURL string

	mu       sync.Mutex
	reported int
}

// Upload transfers src and returns the embed URL the host announced during
// the upload handshake.
func (u *Uploader) Upload(ctx context.Context, src Source, onProgress upload.ProgressFunc) (string, error) {
	if u.opts.APIKey == "" {
		return "", apperrors.New(apperrors.ErrCredentialMissing, "Video uploads are not configured on this server")
	}

	s := &session{reported: -1}
	events.Emit(ctx, u.observer, events.Event{Phase: events.PhaseVideoUpload, Outcome: events.OutcomeStarted, Detail: src.FileName})

	attempt := 0
	err := retry.Do(ctx, u.logger, "video upload", u.policy, func() error {
		attempt++
		if attempt > 1 {
			events.Emit(ctx, u.observer, events.Event{
				Phase:   events.PhaseVideoUpload,
				Outcome: events.OutcomeRetrying,
				Detail:  fmt.Sprintf("attempt %d of %d", attempt, u.policy.MaxAttempts()),
			})
		}
		return u.attempt(ctx, src, s, onProgress)
	})
	if err != nil {
		events.Emit(ctx, u.observer, events.Event{Phase: events.PhaseVideoUpload, Outcome: events.OutcomeFailed, Detail: err.Error()})
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}

	if s.embedURL == "" {
		err := apperrors.New(apperrors.ErrMissingEmbedReference, "The video host did not return a playable link")
		events.Emit(ctx, u.observer, events.Event{Phase: events.PhaseVideoUpload, Outcome: events.OutcomeFailed, Detail: err.Error()})
		return "", err
	}

	events.Emit(ctx, u.observer, events.Event{Phase: events.PhaseVideoUpload, Outcome: events.OutcomeSucceeded, Detail: s.embedURL})
	return s.embedURL, nil
}

func (u *Uploader) attempt(ctx context.Context, src Source, s *session, onProgress upload.ProgressFunc) error {
	if s.location == "" {
		if err := u.create(ctx, src, s); err != nil {
			return err
		}
	} else if err := u.resume(ctx, s); err != nil {
		return err
	}

	for s.offset < src.Size {
		if err := u.patch(ctx, src, s); err != nil {
			return err
		}
		u.report(s, src.Size, onProgress)
	}
	u.report(s, src.Size, onProgress)
	return nil
}

func (u *Uploader) create(ctx context.Context, src Source, s *session) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.opts.Endpoint, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	u.setHeaders(req)
	req.Header.Set("Upload-Length", strconv.FormatInt(src.Size, 10))
	req.Header.Set("Upload-Metadata", encodeMetadata([][2]string{
		{"filename", src.FileName},
		{"owner", src.Owner},
		{"frontend_app", u.opts.FrontendApp},
		{"short", "true"},
	}))

	resp, err := u.do(req, s)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, "create upload")
	}

	location := resp.Header.Get("Location")
	if location == "" {
		return retry.Permanent(fmt.Errorf("create upload: no Location header"))
	}
	resolved, err := resolveLocation(u.opts.Endpoint, location)
	if err != nil {
		return retry.Permanent(err)
	}
	s.location = resolved
	s.offset = 0
	return nil
}

// resume asks the host how much it already has.
func (u *Uploader) resume(ctx context.Context, s *session) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.location, nil)
	if err != nil {
		return retry.Permanent(err)
	}
	u.setHeaders(req)

	resp, err := u.do(req, s)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	// An expired upload is created again on the next attempt.
	if resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone {
		s.location = ""
		s.offset = 0
		cause := fmt.Errorf("resume upload: status %d", resp.StatusCode)
		return apperrors.Wrap(cause, apperrors.ErrTransport, "The video host dropped the unfinished upload")
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return classifyStatus(resp, "resume upload")
	}

	offset, err := strconv.ParseInt(resp.Header.Get("Upload-Offset"), 10, 64)
	if err != nil {
		return fmt.Errorf("resume upload: bad Upload-Offset: %w", err)
	}
	s.offset = offset
	return nil
}

func (u *Uploader) patch(ctx context.Context, src Source, s *session) error {
	n := u.opts.ChunkSize
	if remaining := src.Size - s.offset; remaining < n {
		n = remaining
	}

	body := io.NewSectionReader(src.Data, s.offset, n)
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, s.location, body)
	if err != nil {
		return retry.Permanent(err)
	}
	u.setHeaders(req)
	req.ContentLength = n
	req.Header.Set("Content-Type", offsetContentType)
	req.Header.Set("Upload-Offset", strconv.FormatInt(s.offset, 10))

	resp, err := u.do(req, s)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return classifyStatus(resp, "upload chunk")
	}

	offset, err := strconv.ParseInt(resp.Header.Get("Upload-Offset"), 10, 64)
	if err != nil || offset > src.Size {
		return fmt.Errorf("upload chunk: bad Upload-Offset %q", resp.Header.Get("Upload-Offset"))
	}
	// A chunk the host did not take counts as a failed attempt.
	if n > 0 && offset <= s.offset {
		cause := fmt.Errorf("upload chunk: offset stuck at %d", offset)
		return apperrors.Wrap(cause, apperrors.ErrTransport, "The video host stopped accepting data")
	}
	s.offset = offset
	return nil
}

// do sends req and captures the embed URL from any handshake response.
func (u *Uploader) do(req *http.Request, s *session) (*http.Response, error) {
	resp, err := u.client.Do(req)
	if err != nil {
		if req.Context().Err() != nil {
			return nil, retry.Permanent(req.Context().Err())
		}
		return nil, apperrors.Wrap(err, apperrors.ErrTransport, "The connection to the video host was interrupted")
	}
	if embed := resp.Header.Get(headerEmbedURL); embed != "" {
		s.embedURL = embed
	}
	return resp, nil
}

func (u *Uploader) setHeaders(req *http.Request) {
	req.Header.Set("Tus-Resumable", tusVersion)
	req.Header.Set(headerAPIKey, u.opts.APIKey)
}

func (u *Uploader) report(s *session, total int64, onProgress upload.ProgressFunc) {
	if onProgress == nil {
		return
	}
	pct := upload.Percent(s.offset, total)
	if total == 0 {
		pct = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if pct > s.reported {
		s.reported = pct
		onProgress(pct)
	}
}

// classifyStatus retries server-side failures and gives up on the rest.
func classifyStatus(resp *http.Response, op string) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	cause := fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(snippet)))

	switch {
	case resp.StatusCode >= 500, resp.StatusCode == http.StatusLocked, resp.StatusCode == http.StatusConflict:
		return apperrors.Wrap(cause, apperrors.ErrTransport, "The video host is temporarily unavailable")
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return retry.Permanent(apperrors.Wrap(cause, apperrors.ErrUploadRejected, "The video host refused the API key"))
	default:
		return retry.Permanent(apperrors.Wrap(cause, apperrors.ErrUploadRejected, "The video host rejected the upload"))
	}
}

func encodeMetadata(pairs [][2]string) string {
	parts := make([]string, 0, len(pairs))
	for _, kv := range pairs {
		parts = append(parts, kv[0]+" "+base64.StdEncoding.EncodeToString([]byte(kv[1])))
	}
	return strings.Join(parts, ",")
}

func resolveLocation(endpoint, location string) (string, error) {
	base, err := url.Parse(endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("parse Location: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// IsMissingEmbed reports whether err is a completed transfer without an embed link.
func IsMissingEmbed(err error) bool {
	return apperrors.Is(err, apperrors.ErrMissingEmbedReference)
}
