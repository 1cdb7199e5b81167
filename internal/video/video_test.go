package video

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/snapcomposer/internal/events"
	"github.com/maheshrc27/snapcomposer/internal/retry"
	apperrors "github.com/maheshrc27/snapcomposer/pkg/errors"
	"go.uber.org/zap/zaptest"
)

const testEmbed = "https://play.3speak.tv/embed?v=alice/abc123"

// tusServer is a minimal tus 1.0.0 endpoint.
type tusServer struct {
	mu         sync.Mutex
	data       []byte
	length     int64
	metadata   string
	apiKeys    []string
	requests   []string
	embed      string
	createCode int
	// patchFailures is the number of PATCH requests answered with patchFailCode
	// before the server starts accepting chunks.
	patchFailures int
	patchFailCode int
	failAfter     int64
	// stall makes PATCH answer 204 without taking the chunk.
	stall bool
	// expireHeads is the number of HEAD requests answered 404, dropping
	// everything received so far.
	expireHeads int
}

func (s *tusServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = append(s.requests, r.Method)
	s.apiKeys = append(s.apiKeys, r.Header.Get("X-API-Key"))
	w.Header().Set("Tus-Resumable", "1.0.0")

	switch r.Method {
	case http.MethodPost:
		if s.createCode != 0 {
			w.WriteHeader(s.createCode)
			return
		}
		s.length, _ = strconv.ParseInt(r.Header.Get("Upload-Length"), 10, 64)
		s.data = nil
		s.metadata = r.Header.Get("Upload-Metadata")
		if s.embed != "" {
			w.Header().Set("X-Embed-URL", s.embed)
		}
		w.Header().Set("Location", "/files/upload-1")
		w.WriteHeader(http.StatusCreated)
	case http.MethodHead:
		if s.expireHeads > 0 {
			s.expireHeads--
			s.data = nil
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Upload-Offset", strconv.Itoa(len(s.data)))
		w.Header().Set("Upload-Length", strconv.FormatInt(s.length, 10))
		w.WriteHeader(http.StatusOK)
	case http.MethodPatch:
		offset, _ := strconv.ParseInt(r.Header.Get("Upload-Offset"), 10, 64)
		if offset != int64(len(s.data)) {
			w.WriteHeader(http.StatusConflict)
			return
		}
		if s.patchFailures > 0 && int64(len(s.data)) >= s.failAfter {
			s.patchFailures--
			w.WriteHeader(s.patchFailCode)
			return
		}
		if s.stall {
			w.Header().Set("Upload-Offset", strconv.Itoa(len(s.data)))
			w.WriteHeader(http.StatusNoContent)
			return
		}
		chunk, _ := io.ReadAll(r.Body)
		s.data = append(s.data, chunk...)
		w.Header().Set("Upload-Offset", strconv.Itoa(len(s.data)))
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *tusServer) count(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.requests {
		if m == method {
			n++
		}
	}
	return n
}

func newTestUploader(t *testing.T, endpoint, apiKey string, policy retry.Policy, observer events.Observer) *Uploader {
	t.Helper()
	return NewUploader(Options{
		Endpoint:    endpoint,
		APIKey:      apiKey,
		FrontendApp: "snapie",
		ChunkSize:   4,
	}, http.DefaultClient, policy, observer, zaptest.NewLogger(t))
}

func source(data string) Source {
	return Source{
		FileName: "clip.mp4",
		Owner:    "alice",
		Data:     strings.NewReader(data),
		Size:     int64(len(data)),
	}
}

func TestUploadSendsChunksAndReturnsEmbed(t *testing.T) {
	srv := &tusServer{embed: testEmbed}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	rec := &events.Recorder{}
	u := newTestUploader(t, ts.URL+"/uploads", "key-1", retry.Immediate(1), rec)

	var progress []int
	embed, err := u.Upload(context.Background(), source("0123456789"), func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if embed != testEmbed {
		t.Errorf("embed = %q, want %q", embed, testEmbed)
	}
	if string(srv.data) != "0123456789" {
		t.Errorf("server received %q", srv.data)
	}
	if got := srv.count(http.MethodPatch); got != 3 {
		t.Errorf("PATCH requests = %d, want 3", got)
	}
	want := []int{40, 80, 100}
	if len(progress) != len(want) {
		t.Fatalf("progress = %v, want %v", progress, want)
	}
	for i := range want {
		if progress[i] != want[i] {
			t.Fatalf("progress = %v, want %v", progress, want)
		}
	}
	for _, key := range srv.apiKeys {
		if key != "key-1" {
			t.Errorf("request carried API key %q", key)
		}
	}

	meta := map[string]string{}
	for _, pair := range strings.Split(srv.metadata, ",") {
		kv := strings.SplitN(pair, " ", 2)
		v, err := base64.StdEncoding.DecodeString(kv[1])
		if err != nil {
			t.Fatalf("metadata %q not base64: %v", pair, err)
		}
		meta[kv[0]] = string(v)
	}
	if meta["filename"] != "clip.mp4" || meta["owner"] != "alice" || meta["frontend_app"] != "snapie" || meta["short"] != "true" {
		t.Errorf("metadata = %v", meta)
	}
	if rec.Count(events.PhaseVideoUpload, events.OutcomeSucceeded) != 1 {
		t.Errorf("expected one succeeded event, got %v", rec.Events())
	}
}

func TestUploadWithoutAPIKeyMakesNoRequest(t *testing.T) {
	srv := &tusServer{embed: testEmbed}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u := newTestUploader(t, ts.URL, "", retry.Immediate(3), nil)
	_, err := u.Upload(context.Background(), source("abc"), nil)
	if !apperrors.IsCredentialMissing(err) {
		t.Fatalf("err = %v, want credential missing", err)
	}
	if len(srv.requests) != 0 {
		t.Errorf("server saw %d requests", len(srv.requests))
	}
}

func TestUploadResumesFromServerOffset(t *testing.T) {
	srv := &tusServer{embed: testEmbed, patchFailures: 1, patchFailCode: http.StatusInternalServerError, failAfter: 4}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	rec := &events.Recorder{}
	u := newTestUploader(t, ts.URL, "key", retry.Immediate(3), rec)

	var progress []int
	embed, err := u.Upload(context.Background(), source("0123456789"), func(p int) {
		progress = append(progress, p)
	})
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if embed != testEmbed {
		t.Errorf("embed = %q", embed)
	}
	if string(srv.data) != "0123456789" {
		t.Errorf("server received %q", srv.data)
	}
	if srv.count(http.MethodPost) != 1 {
		t.Errorf("upload was created %d times, want 1", srv.count(http.MethodPost))
	}
	if srv.count(http.MethodHead) != 1 {
		t.Errorf("HEAD requests = %d, want 1", srv.count(http.MethodHead))
	}
	if rec.Count(events.PhaseVideoUpload, events.OutcomeRetrying) != 1 {
		t.Errorf("retrying events = %d, want 1", rec.Count(events.PhaseVideoUpload, events.OutcomeRetrying))
	}
	for i := 1; i < len(progress); i++ {
		if progress[i] <= progress[i-1] {
			t.Fatalf("progress not increasing: %v", progress)
		}
	}
}

func TestUploadGivesUpAfterPolicy(t *testing.T) {
	srv := &tusServer{embed: testEmbed, patchFailures: 100, patchFailCode: http.StatusServiceUnavailable}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	rec := &events.Recorder{}
	u := newTestUploader(t, ts.URL, "key", retry.Immediate(3), rec)
	_, err := u.Upload(context.Background(), source("0123456789"), nil)
	if !apperrors.IsTransport(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if got := srv.count(http.MethodPatch); got != 3 {
		t.Errorf("PATCH requests = %d, want 3", got)
	}
	if rec.Count(events.PhaseVideoUpload, events.OutcomeFailed) != 1 {
		t.Errorf("expected one failed event, got %v", rec.Events())
	}
}

func TestUploadStalledOffsetExhaustsPolicy(t *testing.T) {
	srv := &tusServer{embed: testEmbed, stall: true}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	policy := retry.Immediate(3)
	u := newTestUploader(t, ts.URL, "key", policy, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := u.Upload(ctx, source("0123456789"), nil)
	if !apperrors.IsTransport(err) {
		t.Fatalf("err = %v, want transport error", err)
	}
	if got := srv.count(http.MethodPatch); got != policy.MaxAttempts() {
		t.Errorf("PATCH requests = %d, want %d", got, policy.MaxAttempts())
	}
}

func TestUploadOffsetPastLengthFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			w.Header().Set("X-Embed-URL", testEmbed)
			w.Header().Set("Location", "/files/upload-1")
			w.WriteHeader(http.StatusCreated)
		case http.MethodHead:
			w.Header().Set("Upload-Offset", "0")
			w.WriteHeader(http.StatusOK)
		case http.MethodPatch:
			w.Header().Set("Upload-Offset", "999")
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer ts.Close()

	u := newTestUploader(t, ts.URL, "key", retry.Immediate(2), nil)
	if _, err := u.Upload(context.Background(), source("abcdef"), nil); err == nil {
		t.Fatal("expected an error for an offset past the upload length")
	}
}

func TestUploadRecreatesExpiredUpload(t *testing.T) {
	srv := &tusServer{embed: testEmbed, patchFailures: 1, patchFailCode: http.StatusInternalServerError, failAfter: 4, expireHeads: 1}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u := newTestUploader(t, ts.URL, "key", retry.Immediate(4), nil)
	embed, err := u.Upload(context.Background(), source("0123456789"), nil)
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if embed != testEmbed {
		t.Errorf("embed = %q", embed)
	}
	if got := srv.count(http.MethodPost); got != 2 {
		t.Errorf("upload was created %d times, want 2", got)
	}
	if string(srv.data) != "0123456789" {
		t.Errorf("server received %q", srv.data)
	}
}

func TestUploadRejectedIsNotRetried(t *testing.T) {
	srv := &tusServer{createCode: http.StatusBadRequest}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u := newTestUploader(t, ts.URL, "key", retry.Immediate(5), nil)
	_, err := u.Upload(context.Background(), source("abc"), nil)
	if !apperrors.Is(err, apperrors.ErrUploadRejected) {
		t.Fatalf("err = %v, want upload rejected", err)
	}
	if len(srv.requests) != 1 {
		t.Errorf("server saw %d requests, want 1", len(srv.requests))
	}
}

func TestUploadWithoutEmbedHeaderFails(t *testing.T) {
	srv := &tusServer{}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	u := newTestUploader(t, ts.URL, "key", retry.Immediate(1), nil)
	_, err := u.Upload(context.Background(), source("abcdef"), nil)
	if !IsMissingEmbed(err) {
		t.Fatalf("err = %v, want missing embed reference", err)
	}
	if string(srv.data) != "abcdef" {
		t.Errorf("transfer should still complete, server has %q", srv.data)
	}
}

func TestUploadCancelled(t *testing.T) {
	srv := &tusServer{embed: testEmbed}
	ts := httptest.NewServer(srv)
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	u := newTestUploader(t, ts.URL, "key", retry.Immediate(3), nil)
	_, err := u.Upload(ctx, source("abcdef"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestThumbnailAssigner(t *testing.T) {
	var gotPath, gotKey string
	var body assignThumbnailRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-API-Key")
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	a := NewThumbnailAssigner(ts.URL+"/video/", "key", http.DefaultClient)
	if err := a.Assign(context.Background(), "abc123", "https://images.example/thumb.jpg"); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	if gotPath != "/video/abc123/thumbnail" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "key" {
		t.Errorf("api key = %q", gotKey)
	}
	if body.ThumbnailURL != "https://images.example/thumb.jpg" {
		t.Errorf("thumbnail_url = %q", body.ThumbnailURL)
	}
}

func TestThumbnailAssignerErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.Copy(w, bytes.NewBufferString("no such video"))
	}))
	defer ts.Close()

	if err := NewThumbnailAssigner(ts.URL, "", http.DefaultClient).Assign(context.Background(), "abc", "u"); !apperrors.IsCredentialMissing(err) {
		t.Errorf("missing key: err = %v", err)
	}
	err := NewThumbnailAssigner(ts.URL, "key", http.DefaultClient).Assign(context.Background(), "abc", "u")
	if !apperrors.Is(err, apperrors.ErrUploadRejected) {
		t.Errorf("404: err = %v, want upload rejected", err)
	}
}

func TestShortID(t *testing.T) {
	tests := []struct {
		name    string
		embed   string
		want    string
		wantErr bool
	}{
		{name: "owner and id", embed: testEmbed, want: "abc123"},
		{name: "bare id", embed: "https://play.3speak.tv/embed?v=xyz", want: "xyz"},
		{name: "extra params", embed: "https://play.3speak.tv/embed?mode=iframe&v=bob/q1w2", want: "q1w2"},
		{name: "no reference", embed: "https://play.3speak.tv/embed", wantErr: true},
		{name: "trailing slash", embed: "https://play.3speak.tv/embed?v=bob/", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ShortID(tt.embed)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ShortID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ShortID() = %q, want %q", got, tt.want)
			}
		})
	}
}
