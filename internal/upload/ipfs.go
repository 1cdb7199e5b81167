package upload

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/maheshrc27/snapcomposer/internal/models"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
)

// ContentStore uploads to an IPFS add endpoint. The endpoint answers with one
// JSON object per line; the last line describes the stored file.
type ContentStore struct {
	uploadURL     string
	gatewayDomain string
	client        *http.Client
}

func NewContentStore(uploadURL, gatewayDomain string, client *http.Client) *ContentStore {
	return &ContentStore{
		uploadURL:     uploadURL,
		gatewayDomain: gatewayDomain,
		client:        client,
	}
}

func (s *ContentStore) Name() string { return "content store" }

type addLine struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

func (s *ContentStore) Upload(ctx context.Context, account string, file models.MediaFile, onProgress ProgressFunc) (string, error) {
	body, contentType, err := multipartBody("file", file.Name, file.Data)
	if err != nil {
		return "", fmt.Errorf("build upload body: %w", err)
	}
	size := int64(body.Len())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.uploadURL, newProgressReader(body, size, onProgress))
	if err != nil {
		return "", err
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", transportError(err, s.Name())
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, s.Name()); err != nil {
		return "", err
	}

	hash, err := lastHash(bufio.NewScanner(resp.Body))
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrUploadRejected, "The upload was rejected by "+s.Name())
	}
	return fmt.Sprintf("https://%s/ipfs/%s", s.gatewayDomain, hash), nil
}

// lastHash returns the Hash field of the last non-empty NDJSON line.
func lastHash(sc *bufio.Scanner) (string, error) {
	var last []byte
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		last = append(last[:0], line...)
	}
	if err := sc.Err(); err != nil {
		return "", fmt.Errorf("read add response: %w", err)
	}
	if last == nil {
		return "", fmt.Errorf("empty add response")
	}

	var entry addLine
	if err := json.Unmarshal(last, &entry); err != nil {
		return "", fmt.Errorf("decode add response: %w", err)
	}
	if entry.Hash == "" {
		return "", fmt.Errorf("add response has no hash")
	}
	return entry.Hash, nil
}
