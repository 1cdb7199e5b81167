package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/maheshrc27/snapcomposer/internal/models"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap"
)

// Broadcaster submits signed operation batches through the ledger's
// broadcast API on behalf of a logged-in account.
type Broadcaster struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewBroadcaster(baseURL string, client *http.Client, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		logger:  logger,
	}
}

type broadcastRequest struct {
	Operations []models.Operation `json:"operations"`
}

type broadcastResponse struct {
	Result           json.RawMessage `json:"result"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
}

// Broadcast submits ops as one transaction. Either all operations are
// applied or none are.
func (b *Broadcaster) Broadcast(ctx context.Context, token string, ops []models.Operation) error {
	if token == "" {
		return apperrors.New(apperrors.ErrCredentialMissing, "Your session cannot publish, please log in again")
	}
	if len(ops) == 0 {
		return apperrors.New(apperrors.ErrValidation, "nothing to publish")
	}

	payload, err := json.Marshal(broadcastRequest{Operations: ops})
	if err != nil {
		return fmt.Errorf("failed to encode operations: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+"/api/broadcast", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", token)

	resp, err := b.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPublishFailure, "Could not reach the network, your post was not published")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrPublishFailure, "Could not reach the network, your post was not published")
	}

	var result broadcastResponse
	if err := json.Unmarshal(body, &result); err != nil && resp.StatusCode == http.StatusOK {
		return apperrors.Wrap(fmt.Errorf("decode broadcast response: %w", err), apperrors.ErrPublishFailure, "The network returned an unreadable answer, your post may not be published")
	}

	if resp.StatusCode != http.StatusOK || result.Error != "" {
		cause := fmt.Errorf("broadcast: status %d: %s: %s", resp.StatusCode, result.Error, result.ErrorDescription)
		b.logger.Error("Broadcast rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error", result.Error),
			zap.String("description", result.ErrorDescription),
		)
		message := "Your post was not published, please try again"
		if result.ErrorDescription != "" {
			message = "Your post was not published: " + result.ErrorDescription
		}
		return apperrors.Wrap(cause, apperrors.ErrPublishFailure, message)
	}

	b.logger.Info("Broadcast accepted", zap.Int("operations", len(ops)))
	return nil
}
