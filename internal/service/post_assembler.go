package service

import (
	"context"
	"regexp"
	"strings"

	"github.com/maheshrc27/snapcomposer/internal/models"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
)

var hashtagPattern = regexp.MustCompile(`#(\w+)`)

type ContainerResolver interface {
	LatestContainer(ctx context.Context) (string, error)
}

type AssemblerConfig struct {
	ContainerAccount string
	ReservedTag      string
	CommunityTag     string
	App              string
}

// AssemblyInput is the draft state a post is built from. ImageURLs holds only
// uploads that succeeded, in draft order.
type AssemblyInput struct {
	Text       string
	ReplyTo    models.ReplyTarget
	VideoEmbed string
	ImageURLs  []string
	GIFURL     string
}

type PostAssembler struct {
	containers ContainerResolver
	cfg        AssemblerConfig
}

func NewPostAssembler(containers ContainerResolver, cfg AssemblerConfig) *PostAssembler {
	return &PostAssembler{containers: containers, cfg: cfg}
}

func (a *PostAssembler) Assemble(ctx context.Context, in AssemblyInput) (*models.PostRecord, error) {
	body := ComposeBody(in.Text, in.VideoEmbed, in.ImageURLs, in.GIFURL)
	if body == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "Write something or attach media before posting")
	}

	record := &models.PostRecord{
		ParentAuthor:   in.ReplyTo.ParentAuthor,
		ParentPermlink: in.ReplyTo.ParentPermlink,
		Body:           body,
		VideoEmbed:     in.VideoEmbed,
	}

	var seed []string
	if a.cfg.ReservedTag != "" && in.ReplyTo.ParentPermlink == a.cfg.ReservedTag {
		// Snaps are replies to the current container post, not to the tag itself.
		permlink, err := a.containers.LatestContainer(ctx)
		if err != nil {
			return nil, err
		}
		record.ParentAuthor = a.cfg.ContainerAccount
		record.ParentPermlink = permlink
		seed = []string{a.cfg.CommunityTag, a.cfg.ReservedTag}
	}

	images := make([]string, len(in.ImageURLs))
	copy(images, in.ImageURLs)

	record.Metadata = models.PostMetadata{
		Tags:  mergeTags(seed, ExtractHashtags(in.Text)),
		Image: images,
		App:   a.cfg.App,
	}
	return record, nil
}

// ComposeBody joins the non-empty sections with a blank line: text, video
// embed, image references, GIF reference.
func ComposeBody(text, videoEmbed string, imageURLs []string, gifURL string) string {
	var sections []string
	if strings.TrimSpace(text) != "" {
		sections = append(sections, text)
	}
	if videoEmbed != "" {
		sections = append(sections, videoEmbed)
	}
	if len(imageURLs) > 0 {
		lines := make([]string, len(imageURLs))
		for i, url := range imageURLs {
			lines[i] = "![image](" + url + ")"
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}
	if gifURL != "" {
		sections = append(sections, "![gif]("+gifURL+")")
	}
	return strings.Join(sections, "\n\n")
}

// ExtractHashtags returns the hashtags of text without the leading '#', in
// first-occurrence order. Matching is case-sensitive.
func ExtractHashtags(text string) []string {
	matches := hashtagPattern.FindAllStringSubmatch(text, -1)
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return mergeTags(nil, tags)
}

func mergeTags(seed, tags []string) []string {
	seen := make(map[string]struct{}, len(seed)+len(tags))
	out := make([]string, 0, len(seed)+len(tags))
	for _, list := range [][]string{seed, tags} {
		for _, tag := range list {
			if _, ok := seen[tag]; ok {
				continue
			}
			seen[tag] = struct{}{}
			out = append(out, tag)
		}
	}
	return out
}
