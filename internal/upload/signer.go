package upload

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

const imageSigningChallenge = "ImageSigningChallenge"

// Signer obtains an authorization signature for an upload on behalf of account.
type Signer interface {
	Sign(ctx context.Context, account, digest string) (string, error)
}

// ImageDigest is the hex sha256 of the signing challenge followed by data.
func ImageDigest(data []byte) string {
	h := sha256.New()
	h.Write([]byte(imageSigningChallenge))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// RemoteSigner asks an external signing service for signatures.
type RemoteSigner struct {
	URL    string
	Client *http.Client
}

func NewRemoteSigner(url string, client *http.Client) *RemoteSigner {
	return &RemoteSigner{URL: url, Client: client}
}

type signRequest struct {
	Account string `json:"account"`
	Digest  string `json:"digest"`
}

type signResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error"`
}

func (s *RemoteSigner) Sign(ctx context.Context, account, digest string) (string, error) {
	payload, err := json.Marshal(signRequest{Account: account, Digest: digest})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", transportError(err, "the signing service")
	}
	defer resp.Body.Close()

	if err := checkResponse(resp, "the signing service"); err != nil {
		return "", err
	}

	var result signResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode signature: %w", err)
	}
	if result.Signature == "" {
		return "", fmt.Errorf("signing service returned no signature: %s", result.Error)
	}
	return result.Signature, nil
}
