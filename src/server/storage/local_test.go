package storage

import (
	"context"
	"io"
	"strings"
	"testing"
)

func TestLocalStorage_UploadDownload(t *testing.T) {
	s, err := NewLocal(t.TempDir(), "/archive/")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	ctx := context.Background()

	if err := s.Upload(ctx, "snapshots/12-30-1.json", strings.NewReader(`{"t":"12:30"}`), "application/json"); err != nil {
		t.Fatalf("Upload: %v", err)
	}

	rc, err := s.Download(ctx, "snapshots/12-30-1.json")
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != `{"t":"12:30"}` {
		t.Errorf("body = %q", body)
	}

	u, _ := s.PresignedURL(ctx, "snapshots/12-30-1.json", 0)
	if u != "/archive/snapshots/12-30-1.json" {
		t.Errorf("PresignedURL = %q", u)
	}

	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestLocalStorage_RejectsEscapingKeys(t *testing.T) {
	s, err := NewLocal(t.TempDir(), "/archive")
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	if err := s.Upload(context.Background(), "../outside.json", strings.NewReader("{}"), ""); err == nil {
		t.Error("Upload outside base dir succeeded")
	}
}
