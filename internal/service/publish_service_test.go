package service

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/models"
	"github.com/maheshrc27/snapcomposer/internal/repository"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap/zaptest"
)

var testPublishConfig = PublishConfig{
	Beneficiary:       "snapie",
	BeneficiaryWeight: 1000,
	MaxAcceptedPayout: "100000.000 HBD",
}

func testRecord(embed string) *models.PostRecord {
	return &models.PostRecord{
		ParentAuthor:   "peak.snaps",
		ParentPermlink: "snap-container-1019",
		Body:           ComposeBody("hello", embed, nil, ""),
		VideoEmbed:     embed,
		Metadata:       models.PostMetadata{Tags: []string{"snaps"}, Image: []string{}, App: "snapie"},
	}
}

func TestBuildOperationsWithVideo(t *testing.T) {
	ops, err := BuildOperations("alice", "p1", testRecord(testEmbed), testPublishConfig)
	if err != nil {
		t.Fatalf("BuildOperations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("got %d operations, want 2", len(ops))
	}
	if ops[0].Name != models.OpComment || ops[1].Name != models.OpCommentOptions {
		t.Fatalf("operation names = %s, %s", ops[0].Name, ops[1].Name)
	}

	options := ops[1].Payload.(models.CommentOptionsOperation)
	if options.Author != "alice" || options.Permlink != "p1" {
		t.Errorf("options target = %s/%s", options.Author, options.Permlink)
	}
	if !options.AllowVotes || !options.AllowCurationRewards || options.PercentHBD != 10000 || options.MaxAcceptedPayout != "100000.000 HBD" {
		t.Errorf("options = %+v", options)
	}
	if len(options.Extensions) != 1 || len(options.Extensions[0].Beneficiaries) != 1 {
		t.Fatalf("extensions = %+v", options.Extensions)
	}
	if b := options.Extensions[0].Beneficiaries[0]; b.Account != "snapie" || b.Weight != 1000 {
		t.Errorf("beneficiary = %+v", b)
	}

	raw, err := json.Marshal(ops[1])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `["comment_options",{"author":"alice","permlink":"p1","max_accepted_payout":"100000.000 HBD","percent_hbd":10000,"allow_votes":true,"allow_curation_rewards":true,"extensions":[[0,{"beneficiaries":[{"account":"snapie","weight":1000}]}]]}]`
	if string(raw) != want {
		t.Errorf("wire form =\n%s\nwant\n%s", raw, want)
	}
}

func TestBuildOperationsWithoutVideo(t *testing.T) {
	ops, err := BuildOperations("alice", "p1", testRecord(""), testPublishConfig)
	if err != nil {
		t.Fatalf("BuildOperations() error = %v", err)
	}
	if len(ops) != 1 || ops[0].Name != models.OpComment {
		t.Fatalf("ops = %+v", ops)
	}

	comment := ops[0].Payload.(models.CommentOperation)
	var meta models.PostMetadata
	if err := json.Unmarshal([]byte(comment.JSONMetadata), &meta); err != nil {
		t.Fatalf("json_metadata: %v", err)
	}
	if meta.App != "snapie" || len(meta.Tags) != 1 || meta.Tags[0] != "snaps" {
		t.Errorf("metadata = %+v", meta)
	}
	if comment.ParentAuthor != "peak.snaps" || comment.Title != "" {
		t.Errorf("comment = %+v", comment)
	}
}

func TestPublish(t *testing.T) {
	b := &fakeBroadcaster{}
	history := &fakeHistory{}
	rec := &events.Recorder{}
	s := NewPublishService(b, history, testPublishConfig, rec, zaptest.NewLogger(t))

	post, err := s.Publish(context.Background(), "alice", "token", testRecord(testEmbed))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if !regexp.MustCompile(`^\d{8}t\d{9}z-[a-z0-9]{6}$`).MatchString(post.Permlink) {
		t.Errorf("permlink = %q", post.Permlink)
	}
	if post.Author != "alice" || post.Operations != 2 || post.ID != 1 {
		t.Errorf("post = %+v", post)
	}
	if len(b.Batches()) != 1 || b.tokens[0] != "token" {
		t.Errorf("broadcasts = %d", len(b.Batches()))
	}
	if len(history.posts) != 1 {
		t.Error("post should be recorded")
	}
	if rec.Count(events.PhasePublish, events.OutcomeSucceeded) != 1 {
		t.Error("expected a publish succeeded event")
	}
}

func TestPublishFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "classified", err: apperrors.New(apperrors.ErrPublishFailure, "Your post was not published: bad token")},
		{name: "unclassified", err: errors.New("boom")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			history := &fakeHistory{}
			s := NewPublishService(&fakeBroadcaster{err: tt.err}, history, testPublishConfig, nil, zaptest.NewLogger(t))

			_, err := s.Publish(context.Background(), "alice", "token", testRecord(""))
			if !apperrors.Is(err, apperrors.ErrPublishFailure) {
				t.Fatalf("err = %v, want publish failure", err)
			}
			if len(history.posts) != 0 {
				t.Error("failed publish must not be recorded")
			}
		})
	}
}

func TestPublishHistoryFailureIsNotFatal(t *testing.T) {
	s := NewPublishService(&fakeBroadcaster{}, &fakeHistory{err: errors.New("db down")}, testPublishConfig, nil, zaptest.NewLogger(t))

	post, err := s.Publish(context.Background(), "alice", "token", testRecord(""))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if post.ID != 0 {
		t.Errorf("ID = %d, want 0 when history is unavailable", post.ID)
	}
}

func TestHistoryWithoutRepository(t *testing.T) {
	var history repository.PublishedPostRepository
	s := NewPublishService(&fakeBroadcaster{}, history, testPublishConfig, nil, zaptest.NewLogger(t))

	posts, err := s.History(context.Background(), "alice", 10)
	if err != nil || len(posts) != 0 {
		t.Errorf("History() = %v, %v", posts, err)
	}
}
