package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"time"

	"github.com/disintegration/imaging"
	"github.com/maheshrc27/snapcomposer/internal/events"
	"go.uber.org/zap"
)

const (
	// SeekOffset is where the still frame is taken from.
	SeekOffset  = 500 * time.Millisecond
	JPEGQuality = 90

	lastFrameMargin = 40 * time.Millisecond
)

type State string

const (
	StateLoading  State = "loading"
	StateSeeking  State = "seeking"
	StateCaptured State = "captured"
	StateEncoded  State = "encoded"
	StateFailed   State = "failed"
)

type Metadata struct {
	Duration time.Duration
	Width    int
	Height   int
}

// Decoder reads video metadata and single frames from a file on disk.
type Decoder interface {
	Probe(ctx context.Context, path string) (Metadata, error)
	FrameAt(ctx context.Context, path string, offset time.Duration) (image.Image, error)
}

type Blob struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
}

// Job tracks one extraction through loading, seeking, captured and encoded.
type Job struct {
	state  State
	reason string
}

func (j *Job) State() State   { return j.state }
func (j *Job) Reason() string { return j.reason }

type Extractor struct {
	decoder  Decoder
	tempDir  string
	observer events.Observer
	logger   *zap.Logger
}

func NewExtractor(decoder Decoder, tempDir string, observer events.Observer, logger *zap.Logger) *Extractor {
	return &Extractor{
		decoder:  decoder,
		tempDir:  tempDir,
		observer: observer,
		logger:   logger,
	}
}

// Extract captures one JPEG frame from the video read from src. The video is
// spooled to a temporary file for the decoder and that file is always removed
// before Extract returns.
func (e *Extractor) Extract(ctx context.Context, src io.Reader) (*Blob, error) {
	job := &Job{}
	e.transition(ctx, job, StateLoading, "")

	tmp, err := os.CreateTemp(e.tempDir, "thumb-src-*")
	if err != nil {
		return nil, e.fail(ctx, job, fmt.Errorf("create video handle: %w", err))
	}
	defer e.release(tmp.Name())

	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		return nil, e.fail(ctx, job, fmt.Errorf("spool video: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return nil, e.fail(ctx, job, fmt.Errorf("spool video: %w", err))
	}

	meta, err := e.decoder.Probe(ctx, tmp.Name())
	if err != nil {
		return nil, e.fail(ctx, job, fmt.Errorf("decode video: %w", err))
	}
	if meta.Width <= 0 || meta.Height <= 0 {
		return nil, e.fail(ctx, job, fmt.Errorf("no rendering surface for %dx%d video", meta.Width, meta.Height))
	}

	offset := seekOffset(meta.Duration)
	e.transition(ctx, job, StateSeeking, offset.String())

	frame, err := e.decoder.FrameAt(ctx, tmp.Name(), offset)
	if err != nil {
		return nil, e.fail(ctx, job, fmt.Errorf("seek to %s: %w", offset, err))
	}

	surface := rasterize(frame, meta.Width, meta.Height)
	e.transition(ctx, job, StateCaptured, fmt.Sprintf("%dx%d", meta.Width, meta.Height))

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, surface, imaging.JPEG, imaging.JPEGQuality(JPEGQuality)); err != nil {
		return nil, e.fail(ctx, job, fmt.Errorf("encode jpeg: %w", err))
	}
	e.transition(ctx, job, StateEncoded, "")

	return &Blob{
		Data:        buf.Bytes(),
		ContentType: "image/jpeg",
		Width:       meta.Width,
		Height:      meta.Height,
	}, nil
}

// seekOffset clamps the fixed offset to the last frame of short videos.
func seekOffset(duration time.Duration) time.Duration {
	if duration <= 0 || duration > SeekOffset {
		return SeekOffset
	}
	if duration <= lastFrameMargin {
		return 0
	}
	return duration - lastFrameMargin
}

// rasterize draws frame onto a surface of the video's native size.
func rasterize(frame image.Image, width, height int) *image.NRGBA {
	surface := imaging.New(width, height, color.Black)
	b := frame.Bounds()
	if b.Dx() != width || b.Dy() != height {
		frame = imaging.Resize(frame, width, height, imaging.Lanczos)
	}
	return imaging.Paste(surface, frame, image.Pt(0, 0))
}

func (e *Extractor) transition(ctx context.Context, job *Job, to State, detail string) {
	job.state = to
	events.Emit(ctx, e.observer, events.Event{
		Phase:   events.PhaseThumbnailExtract,
		Outcome: outcomeFor(to),
		State:   string(to),
		Detail:  detail,
	})
}

func (e *Extractor) fail(ctx context.Context, job *Job, err error) error {
	job.reason = err.Error()
	e.transition(ctx, job, StateFailed, job.reason)
	return &ExtractError{State: job.state, Reason: job.reason, Err: err}
}

func (e *Extractor) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Error("Failed to release video handle", zap.String("path", path), zap.Error(err))
	}
}

func outcomeFor(s State) events.Outcome {
	switch s {
	case StateLoading:
		return events.OutcomeStarted
	case StateEncoded:
		return events.OutcomeSucceeded
	case StateFailed:
		return events.OutcomeFailed
	default:
		return events.OutcomeProgress
	}
}

type ExtractError struct {
	State  State
	Reason string
	Err    error
}

func (e *ExtractError) Error() string {
	return "thumbnail extraction failed: " + e.Reason
}

func (e *ExtractError) Unwrap() error {
	return e.Err
}
