package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/models"
	"github.com/maheshrc27/snapcomposer/internal/repository"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"github.com/maheshrc27/snapcomposer/pkg/utils"
	"go.uber.org/zap"
)

const fullHBDPercent = 10000

type Broadcaster interface {
	Broadcast(ctx context.Context, token string, ops []models.Operation) error
}

type PublishConfig struct {
	Beneficiary       string
	BeneficiaryWeight uint16
	MaxAcceptedPayout string
}

type PublishService interface {
	Publish(ctx context.Context, author, token string, record *models.PostRecord) (*models.PublishedPost, error)
	History(ctx context.Context, author string, limit int) ([]*models.PublishedPost, error)
}

type publishService struct {
	broadcaster Broadcaster
	history     repository.PublishedPostRepository
	cfg         PublishConfig
	observer    events.Observer
	logger      *zap.Logger
	now         func() time.Time
}

func NewPublishService(
	broadcaster Broadcaster,
	history repository.PublishedPostRepository,
	cfg PublishConfig,
	observer events.Observer,
	logger *zap.Logger) PublishService {
	return &publishService{
		broadcaster: broadcaster,
		history:     history,
		cfg:         cfg,
		observer:    observer,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *publishService) Publish(ctx context.Context, author, token string, record *models.PostRecord) (*models.PublishedPost, error) {
	if record == nil || record.Body == "" {
		return nil, apperrors.New(apperrors.ErrValidation, "Write something or attach media before posting")
	}

	createdAt := s.now()
	permlink, err := utils.NewPermlink(createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to generate permlink: %w", err)
	}

	ops, err := BuildOperations(author, permlink, record, s.cfg)
	if err != nil {
		return nil, err
	}

	events.Emit(ctx, s.observer, events.Event{Phase: events.PhasePublish, Outcome: events.OutcomeStarted, Detail: permlink})

	if err := s.broadcaster.Broadcast(ctx, token, ops); err != nil {
		s.logger.Error("Publish failed",
			zap.String("author", author),
			zap.String("permlink", permlink),
			zap.Int("operations", len(ops)),
			zap.Error(err),
		)
		events.Emit(ctx, s.observer, events.Event{Phase: events.PhasePublish, Outcome: events.OutcomeFailed, Detail: err.Error()})
		if apperrors.GetKind(err) == nil {
			err = apperrors.Wrap(err, apperrors.ErrPublishFailure, "Your post was not published, please try again")
		}
		return nil, err
	}

	post := &models.PublishedPost{
		Author:         author,
		Permlink:       permlink,
		ParentAuthor:   record.ParentAuthor,
		ParentPermlink: record.ParentPermlink,
		Body:           record.Body,
		Operations:     len(ops),
		CreatedAt:      createdAt,
	}

	// The post is on the ledger at this point, history is best-effort.
	if s.history != nil {
		id, err := s.history.Create(ctx, nil, post)
		if err != nil {
			s.logger.Warn("Failed to record published post", zap.String("permlink", permlink), zap.Error(err))
		} else {
			post.ID = id
		}
	}

	s.logger.Info("Post published",
		zap.String("author", author),
		zap.String("permlink", permlink),
		zap.Int("operations", len(ops)),
	)
	events.Emit(ctx, s.observer, events.Event{Phase: events.PhasePublish, Outcome: events.OutcomeSucceeded, Detail: permlink})
	return post, nil
}

func (s *publishService) History(ctx context.Context, author string, limit int) ([]*models.PublishedPost, error) {
	if s.history == nil {
		return []*models.PublishedPost{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.history.GetByAuthor(ctx, author, limit)
}

// BuildOperations returns the ledger operations for record. A post with a
// video is monetized: it gets a second comment_options operation with the
// platform beneficiary.
func BuildOperations(author, permlink string, record *models.PostRecord, cfg PublishConfig) ([]models.Operation, error) {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to encode json_metadata: %w", err)
	}

	ops := []models.Operation{{
		Name: models.OpComment,
		Payload: models.CommentOperation{
			ParentAuthor:   record.ParentAuthor,
			ParentPermlink: record.ParentPermlink,
			Author:         author,
			Permlink:       permlink,
			Title:          "",
			Body:           record.Body,
			JSONMetadata:   string(metadata),
		},
	}}

	if record.VideoEmbed == "" {
		return ops, nil
	}

	ops = append(ops, models.Operation{
		Name: models.OpCommentOptions,
		Payload: models.CommentOptionsOperation{
			Author:               author,
			Permlink:             permlink,
			MaxAcceptedPayout:    cfg.MaxAcceptedPayout,
			PercentHBD:           fullHBDPercent,
			AllowVotes:           true,
			AllowCurationRewards: true,
			Extensions: []models.BeneficiariesExtension{{
				Beneficiaries: []models.Beneficiary{{Account: cfg.Beneficiary, Weight: cfg.BeneficiaryWeight}},
			}},
		},
	})
	return ops, nil
}
