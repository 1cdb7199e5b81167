package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/snapcomposer/internal/models"
	"github.com/maheshrc27/snapcomposer/internal/thumbnail"
	"github.com/maheshrc27/snapcomposer/internal/upload"
	"github.com/maheshrc27/snapcomposer/internal/video"
)

type fakeDestination struct {
	name string
	fn   func(file models.MediaFile) (string, error)

	mu    sync.Mutex
	calls []string
}

func (d *fakeDestination) Name() string { return d.name }

func (d *fakeDestination) Upload(ctx context.Context, account string, file models.MediaFile, onProgress upload.ProgressFunc) (string, error) {
	d.mu.Lock()
	d.calls = append(d.calls, file.Name)
	d.mu.Unlock()

	if onProgress != nil {
		onProgress(50)
		onProgress(100)
	}
	return d.fn(file)
}

func (d *fakeDestination) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

type fakeVideoUploader struct {
	fn func(ctx context.Context, src video.Source) (string, error)
}

func (u *fakeVideoUploader) Upload(ctx context.Context, src video.Source, onProgress upload.ProgressFunc) (string, error) {
	return u.fn(ctx, src)
}

type fakeExtractor struct {
	fn func(ctx context.Context, src io.Reader) (*thumbnail.Blob, error)
}

func (e *fakeExtractor) Extract(ctx context.Context, src io.Reader) (*thumbnail.Blob, error) {
	return e.fn(ctx, src)
}

type fakeThumbnailPublisher struct {
	fn func(ctx context.Context, blob *thumbnail.Blob) (string, error)
}

func (p *fakeThumbnailPublisher) Publish(ctx context.Context, account string, blob *thumbnail.Blob) (string, error) {
	return p.fn(ctx, blob)
}

type fakeAssigner struct {
	err error

	mu    sync.Mutex
	calls [][2]string
}

func (a *fakeAssigner) Assign(ctx context.Context, videoID, thumbnailURL string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, [2]string{videoID, thumbnailURL})
	return a.err
}

type fakeContainers struct {
	permlink string
	err      error
	calls    int
}

func (c *fakeContainers) LatestContainer(ctx context.Context) (string, error) {
	c.calls++
	return c.permlink, c.err
}

type fakeBroadcaster struct {
	err error

	mu      sync.Mutex
	batches [][]models.Operation
	tokens  []string
}

func (b *fakeBroadcaster) Broadcast(ctx context.Context, token string, ops []models.Operation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.batches = append(b.batches, ops)
	b.tokens = append(b.tokens, token)
	return b.err
}

func (b *fakeBroadcaster) Batches() [][]models.Operation {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([][]models.Operation(nil), b.batches...)
}

type fakeHistory struct {
	err   error
	posts []*models.PublishedPost
}

func (h *fakeHistory) EnsureSchema(ctx context.Context) error { return nil }

func (h *fakeHistory) Create(ctx context.Context, tx *sql.Tx, post *models.PublishedPost) (int64, error) {
	if h.err != nil {
		return 0, h.err
	}
	h.posts = append(h.posts, post)
	return int64(len(h.posts)), nil
}

func (h *fakeHistory) GetByAuthor(ctx context.Context, author string, limit int) ([]*models.PublishedPost, error) {
	var out []*models.PublishedPost
	for _, p := range h.posts {
		if p.Author == author {
			out = append(out, p)
		}
	}
	return out, h.err
}

type fakeOrchestrator struct {
	fn func(ctx context.Context, job VideoJob, onProgress upload.ProgressFunc) (*VideoResult, error)
}

func (o *fakeOrchestrator) UploadVideo(ctx context.Context, job VideoJob, onProgress upload.ProgressFunc) (*VideoResult, error) {
	return o.fn(ctx, job, onProgress)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

// mp4Bytes is an ISO base media header followed by padding, enough to be
// recognised as mp4.
func mp4Bytes() []byte {
	b := append([]byte{0x00, 0x00, 0x00, 0x18}, []byte("ftypisom")...)
	return append(b, make([]byte, 512)...)
}

// waitFor polls cond until it holds or a second has passed.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}
