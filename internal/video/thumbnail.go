package video

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
)

// ThumbnailAssigner tells the video host which image to show for a video.
type ThumbnailAssigner struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewThumbnailAssigner(baseURL, apiKey string, client *http.Client) *ThumbnailAssigner {
	return &ThumbnailAssigner{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  client,
	}
}

type assignThumbnailRequest struct {
	ThumbnailURL string `json:"thumbnail_url"`
}

func (a *ThumbnailAssigner) Assign(ctx context.Context, videoID, thumbnailURL string) error {
	if a.apiKey == "" {
		return apperrors.New(apperrors.ErrCredentialMissing, "Video uploads are not configured on this server")
	}
	if videoID == "" {
		return apperrors.New(apperrors.ErrValidation, "video id is required")
	}

	payload, err := json.Marshal(assignThumbnailRequest{ThumbnailURL: thumbnailURL})
	if err != nil {
		return fmt.Errorf("failed to encode thumbnail request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/%s/thumbnail", a.baseURL, url.PathEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerAPIKey, a.apiKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrTransport, "Could not reach the video host")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.Wrap(
			fmt.Errorf("assign thumbnail: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
			apperrors.ErrUploadRejected,
			"The video host rejected the thumbnail",
		)
	}
	return nil
}

// ShortID extracts the video id from an embed URL of the form
// https://play.3speak.tv/embed?v=owner/id.
func ShortID(embedURL string) (string, error) {
	u, err := url.Parse(embedURL)
	if err != nil {
		return "", fmt.Errorf("parse embed url: %w", err)
	}
	ref := u.Query().Get("v")
	if ref == "" {
		return "", fmt.Errorf("embed url %q has no video reference", embedURL)
	}
	parts := strings.Split(ref, "/")
	id := parts[len(parts)-1]
	if id == "" {
		return "", fmt.Errorf("embed url %q has no video id", embedURL)
	}
	return id, nil
}
