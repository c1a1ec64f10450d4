// Package speaker plays tracks on the local sound card.
package speaker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
)

// ErrAudioUnavailable is returned when the build has no sound output.
var ErrAudioUnavailable = errors.New("audio output not available in this build")

// maxTrackBytes bounds a single download.
const maxTrackBytes = 256 << 20

// fetch downloads the track at rawURL.
func fetch(ctx context.Context, client *http.Client, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch track: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch track: status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxTrackBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read track: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}

// isWAV guesses the container from the content type or the URL path.
func isWAV(rawURL, contentType string) bool {
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "audio/wav", "audio/x-wav", "audio/wave", "audio/vnd.wave":
			return true
		case "audio/mpeg", "audio/mp3":
			return false
		}
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(path.Ext(u.Path), ".wav")
}

// decode returns a seekable stream over data. Anything that is not WAV is
// decoded as MP3.
func decode(data []byte, wavData bool) (beep.StreamSeekCloser, beep.Format, error) {
	if wavData {
		s, f, err := wav.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("decode wav: %w", err)
		}
		return s, f, nil
	}
	s, f, err := mp3.Decode(nopCloser{bytes.NewReader(data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode mp3: %w", err)
	}
	return s, f, nil
}

type nopCloser struct {
	*bytes.Reader
}

func (nopCloser) Close() error { return nil }
