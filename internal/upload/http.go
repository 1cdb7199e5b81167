package upload

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
)

const maxErrorBody = 512

func multipartBody(field string, name string, data []byte) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, name)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}

// checkResponse turns a non-2xx response into ErrUploadRejected.
func checkResponse(resp *http.Response, host string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return apperrors.Wrap(
		fmt.Errorf("%s returned status %d: %s", host, resp.StatusCode, bytes.TrimSpace(snippet)),
		apperrors.ErrUploadRejected,
		"The upload was rejected by "+host,
	)
}

func transportError(err error, host string) error {
	return apperrors.Wrap(err, apperrors.ErrTransport, "Could not reach "+host)
}
