package upload

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/maheshrc27/snapcomposer/internal/models"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
)

// HiveImageHost uploads to the ledger's own image host. Every upload is
// signed by the account's key through the Signer.
type HiveImageHost struct {
	baseURL string
	signer  Signer
	client  *http.Client
}

func NewHiveImageHost(baseURL string, signer Signer, client *http.Client) *HiveImageHost {
	return &HiveImageHost{
		baseURL: strings.TrimRight(baseURL, "/"),
		signer:  signer,
		client:  client,
	}
}

func (h *HiveImageHost) Name() string { return "image host" }

type imageHostResponse struct {
	URL   string `json:"url"`
	Error string `json:"error"`
}

func (h *HiveImageHost) Upload(ctx context.Context, account string, file models.MediaFile, onProgress ProgressFunc) (string, error) {
	if account == "" {
		return "", errors.New("account is required for signed uploads")
	}

	signature, err := h.signer.Sign(ctx, account, ImageDigest(file.Data))
	if err != nil {
		return "", fmt.Errorf("sign upload: %w", err)
	}

	body, contentType, err := multipartBody("file", file.Name, file.Data)
	if err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}
	size := int64(body.Len())

	endpoint := fmt.Sprintf("%s/%s/%s", h.baseURL, url.PathEscape(account), url.PathEscape(signature))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, newProgressReader(body, size, onProgress))
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := h.client.Do(req)
	if err != nil {
		return "", transportError(err, h.Name())
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, h.Name()); err != nil {
		return "", err
	}

	var result imageHostResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode image host response: %w", err)
	}
	if result.URL == "" {
		return "", apperrors.Wrap(fmt.Errorf("image host returned no url: %s", result.Error), apperrors.ErrUploadRejected, "The upload was rejected by "+h.Name())
	}
	return result.URL, nil
}
