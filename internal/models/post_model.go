package models

import "time"

type PostMetadata struct {
	Tags  []string `json:"tags"`
	Image []string `json:"image"`
	App   string   `json:"app"`
}

// PostRecord is the assembled submission. It is built once per submit and
// not modified afterwards.
type PostRecord struct {
	ParentAuthor   string
	ParentPermlink string
	Body           string
	VideoEmbed     string
	Metadata       PostMetadata
}

type PublishedPost struct {
	ID             int64     `db:"id" json:"id"`
	Author         string    `db:"author" json:"author"`
	Permlink       string    `db:"permlink" json:"permlink"`
	ParentAuthor   string    `db:"parent_author" json:"parent_author"`
	ParentPermlink string    `db:"parent_permlink" json:"parent_permlink"`
	Body           string    `db:"body" json:"body"`
	Operations     int       `db:"operations" json:"operations"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
