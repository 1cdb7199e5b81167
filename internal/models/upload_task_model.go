package models

import "encoding/json"

type UploadKind string

const (
	UploadKindImage     UploadKind = "image"
	UploadKindVideo     UploadKind = "video"
	UploadKindThumbnail UploadKind = "thumbnail"
)

type UploadStatus string

const (
	UploadStatusPending   UploadStatus = "pending"
	UploadStatusRunning   UploadStatus = "running"
	UploadStatusSucceeded UploadStatus = "succeeded"
	UploadStatusFailed    UploadStatus = "failed"
)

// UploadTask is the state record of one upload. Fields are only changed
// through its methods so that progress exists only while running, a result
// only after success and a reason only after failure.
type UploadTask struct {
	kind     UploadKind
	status   UploadStatus
	progress int
	result   string
	failure  string
}

func NewUploadTask(kind UploadKind) UploadTask {
	return UploadTask{kind: kind, status: UploadStatusPending}
}

func (t UploadTask) Kind() UploadKind     { return t.kind }
func (t UploadTask) Status() UploadStatus { return t.status }
func (t UploadTask) Result() string       { return t.result }
func (t UploadTask) Failure() string      { return t.failure }

// Progress is 0 unless the task is running.
func (t UploadTask) Progress() int {
	if t.status != UploadStatusRunning {
		return 0
	}
	return t.progress
}

func (t *UploadTask) Start() {
	t.status = UploadStatusRunning
	t.progress = 0
	t.result = ""
	t.failure = ""
}

// Advance records progress; it never moves backwards and is ignored unless running.
func (t *UploadTask) Advance(percent int) {
	if t.status != UploadStatusRunning {
		return
	}
	if percent > 100 {
		percent = 100
	}
	if percent > t.progress {
		t.progress = percent
	}
}

func (t *UploadTask) Succeed(result string) {
	t.status = UploadStatusSucceeded
	t.progress = 0
	t.result = result
	t.failure = ""
}

func (t *UploadTask) Fail(reason string) {
	t.status = UploadStatusFailed
	t.progress = 0
	t.result = ""
	t.failure = reason
}

func (t *UploadTask) Reset() {
	*t = NewUploadTask(t.kind)
}

func (t UploadTask) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Kind     UploadKind   `json:"kind"`
		Status   UploadStatus `json:"status"`
		Progress int          `json:"progress"`
		Result   string       `json:"result,omitempty"`
		Failure  string       `json:"failure,omitempty"`
	}{t.kind, t.status, t.Progress(), t.result, t.failure})
}
