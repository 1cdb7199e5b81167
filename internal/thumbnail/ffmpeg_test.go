package thumbnail

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("Skipping test: ffmpeg not installed")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("Skipping test: ffprobe not installed")
	}
}

func createTestVideo(t *testing.T, duration string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.mp4")
	cmd := exec.Command("ffmpeg", "-v", "error", "-f", "lavfi",
		"-i", "testsrc=duration="+duration+":size=64x48:rate=25",
		"-pix_fmt", "yuv420p", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to create test video: %v: %s", err, out)
	}
	return path
}

func TestFFmpegDecoder_ProbeAndFrame(t *testing.T) {
	requireFFmpeg(t)
	path := createTestVideo(t, "2")
	dec := NewFFmpegDecoder("ffmpeg", "ffprobe")

	meta, err := dec.Probe(context.Background(), path)
	if err != nil {
		t.Fatalf("Probe failed: %v", err)
	}
	if meta.Width != 64 || meta.Height != 48 {
		t.Errorf("expected 64x48, got %dx%d", meta.Width, meta.Height)
	}
	if meta.Duration < time.Second {
		t.Errorf("expected duration around 2s, got %v", meta.Duration)
	}

	frame, err := dec.FrameAt(context.Background(), path, SeekOffset)
	if err != nil {
		t.Fatalf("FrameAt failed: %v", err)
	}
	if b := frame.Bounds(); b.Dx() != 64 || b.Dy() != 48 {
		t.Errorf("expected 64x48 frame, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestFFmpegDecoder_ProbeRejectsGarbage(t *testing.T) {
	requireFFmpeg(t)
	path := filepath.Join(t.TempDir(), "garbage.mp4")
	if err := os.WriteFile(path, []byte("not a video"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewFFmpegDecoder("ffmpeg", "ffprobe").Probe(context.Background(), path); err == nil {
		t.Fatal("expected probe error")
	}
}

