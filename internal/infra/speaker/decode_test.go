package speaker

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/wav"
)

func silentWAV(t *testing.T, d time.Duration) []byte {
	t.Helper()
	format := beep.Format{SampleRate: 8000, NumChannels: 1, Precision: 2}
	f, err := os.Create(filepath.Join(t.TempDir(), "silence.wav"))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()
	if err := wav.Encode(f, beep.Silence(format.SampleRate.N(d)), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

func TestIsWAV(t *testing.T) {
	tests := []struct {
		url         string
		contentType string
		want        bool
	}{
		{"http://h/blobs/a.wav?token=x", "", true},
		{"http://h/blobs/a.WAV", "application/octet-stream", true},
		{"http://h/blobs/a.mp3", "", false},
		{"http://h/blobs/a", "audio/x-wav", true},
		{"http://h/blobs/a.wav", "audio/mpeg", false},
		{"http://h/blobs/a", "audio/wav; codecs=1", true},
	}
	for _, tt := range tests {
		if got := isWAV(tt.url, tt.contentType); got != tt.want {
			t.Errorf("isWAV(%q, %q) = %v, want %v", tt.url, tt.contentType, got, tt.want)
		}
	}
}

func TestDecodeWAV(t *testing.T) {
	data := silentWAV(t, 2*time.Second)

	s, format, err := decode(data, true)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	defer s.Close()

	if format.SampleRate != 8000 {
		t.Errorf("expected 8000 Hz, got %d", format.SampleRate)
	}
	if got := format.SampleRate.D(s.Len()); got != 2*time.Second {
		t.Errorf("expected 2s, got %v", got)
	}
}

func TestDecodeGarbage(t *testing.T) {
	if _, _, err := decode([]byte("not audio"), false); err == nil {
		t.Error("expected mp3 decode error")
	}
	if _, _, err := decode([]byte("not audio"), true); err == nil {
		t.Error("expected wav decode error")
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("RIFF"))
	}))
	defer srv.Close()

	data, ct, err := fetch(context.Background(), srv.Client(), srv.URL+"/a")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if string(data) != "RIFF" || ct != "audio/wav" {
		t.Errorf("unexpected fetch result %q %q", data, ct)
	}

	if _, _, err := fetch(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Error("expected error for 404")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := fetch(ctx, srv.Client(), srv.URL+"/a"); err == nil {
		t.Error("expected error for cancelled context")
	}
}
