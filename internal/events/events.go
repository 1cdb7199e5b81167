package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Phase string

const (
	PhaseVideoUpload      Phase = "video_upload"
	PhaseThumbnailExtract Phase = "thumbnail_extract"
	PhaseThumbnailPublish Phase = "thumbnail_publish"
	PhaseThumbnailUpload  Phase = "thumbnail_upload"
	PhaseThumbnailAssign  Phase = "thumbnail_assign"
	PhaseImageUpload      Phase = "image_upload"
	PhasePublish          Phase = "publish"
)

type Outcome string

const (
	OutcomeStarted   Outcome = "started"
	OutcomeProgress  Outcome = "progress"
	OutcomeRetrying  Outcome = "retrying"
	OutcomeFallback  Outcome = "fallback"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeDiscarded Outcome = "discarded"
)

// Event is one step of an attachment's lifecycle. State is set by components
// that run their own state machine.
type Event struct {
	AttachmentID string
	Phase        Phase
	Outcome      Outcome
	State        string
	Detail       string
}

type Observer interface {
	Observe(Event)
}

type attachmentKey struct{}

// WithAttachment tags ctx with the attachment the work belongs to.
func WithAttachment(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, attachmentKey{}, id)
}

func AttachmentID(ctx context.Context) string {
	id, _ := ctx.Value(attachmentKey{}).(string)
	return id
}

// Emit fills the attachment id from ctx and forwards to o. A nil observer is allowed.
func Emit(ctx context.Context, o Observer, e Event) {
	if o == nil {
		return
	}
	if e.AttachmentID == "" {
		e.AttachmentID = AttachmentID(ctx)
	}
	o.Observe(e)
}

type ZapObserver struct {
	logger *zap.Logger
}

func NewZapObserver(logger *zap.Logger) *ZapObserver {
	return &ZapObserver{logger: logger}
}

func (o *ZapObserver) Observe(e Event) {
	fields := []zap.Field{
		zap.String("attachment_id", e.AttachmentID),
		zap.String("phase", string(e.Phase)),
		zap.String("outcome", string(e.Outcome)),
	}
	if e.State != "" {
		fields = append(fields, zap.String("state", e.State))
	}
	if e.Detail != "" {
		fields = append(fields, zap.String("detail", e.Detail))
	}

	if e.Outcome == OutcomeFailed {
		o.logger.Warn("attachment event", fields...)
		return
	}
	o.logger.Info("attachment event", fields...)
}

// Recorder keeps every event in order. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Count returns how many events match phase and outcome.
func (r *Recorder) Count(phase Phase, outcome Outcome) int {
	n := 0
	for _, e := range r.Events() {
		if e.Phase == phase && e.Outcome == outcome {
			n++
		}
	}
	return n
}

// States lists the State values recorded for phase, in order.
func (r *Recorder) States(phase Phase) []string {
	var states []string
	for _, e := range r.Events() {
		if e.Phase == phase && e.State != "" {
			states = append(states, e.State)
		}
	}
	return states
}
