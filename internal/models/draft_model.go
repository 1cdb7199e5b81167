package models

import "time"

type AttachmentMode string

const (
	AttachmentModeNone  AttachmentMode = "none"
	AttachmentModeMedia AttachmentMode = "media"
	AttachmentModeVideo AttachmentMode = "video"
)

type ReplyTarget struct {
	ParentAuthor   string `json:"parent_author"`
	ParentPermlink string `json:"parent_permlink"`
}

type MediaFile struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"-"`
}

type ImageAttachment struct {
	ID   string     `json:"id"`
	File MediaFile  `json:"file"`
	Task UploadTask `json:"task"`
}

// VideoAttachment holds the spooled video file and the two upload tasks run
// for it. Generation changes whenever the attachment is replaced so late
// results of an earlier upload can be recognised and dropped.
type VideoAttachment struct {
	ID         string     `json:"id"`
	FileName   string     `json:"file_name"`
	Path       string     `json:"-"`
	Size       int64      `json:"size"`
	Generation int64      `json:"-"`
	Upload     UploadTask `json:"upload"`
	Thumbnail  UploadTask `json:"thumbnail"`
}

func (v *VideoAttachment) EmbedURL() string {
	if v == nil || v.Upload.Status() != UploadStatusSucceeded {
		return ""
	}
	return v.Upload.Result()
}

type Draft struct {
	ID        string            `json:"id"`
	Account   string            `json:"account"`
	Text      string            `json:"text"`
	ReplyTo   ReplyTarget       `json:"reply_to"`
	Images    []ImageAttachment `json:"images"`
	GIFURL    string            `json:"gif_url,omitempty"`
	Video     *VideoAttachment  `json:"video,omitempty"`
	LastError string            `json:"last_error,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Mode reports which of the mutually exclusive input modes the draft is in.
func (d *Draft) Mode() AttachmentMode {
	switch {
	case d.Video != nil:
		return AttachmentModeVideo
	case len(d.Images) > 0 || d.GIFURL != "":
		return AttachmentModeMedia
	default:
		return AttachmentModeNone
	}
}

func (d *Draft) HasContent() bool {
	return d.Text != "" || d.Mode() != AttachmentModeNone
}

// Clear drops text and attachments but keeps identity and reply target.
func (d *Draft) Clear() {
	d.Text = ""
	d.Images = nil
	d.GIFURL = ""
	d.Video = nil
	d.LastError = ""
}
