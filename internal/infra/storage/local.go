package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

// Local stores blobs under a root directory and hands out signed,
// expiring download URLs. It also serves those URLs.
type Local struct {
	root    string
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

// NewLocal creates a store rooted at root. URLs are built on baseURL and
// carry an HMAC signed token valid for ttl.
func NewLocal(root, baseURL string, secret []byte, ttl time.Duration) (*Local, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Local{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

// SetClock overrides time.Now for token issue and validation.
func (l *Local) SetClock(now func() time.Time) {
	l.now = now
}

// URL returns a signed download URL for path.
func (l *Local) URL(_ context.Context, path string) (string, error) {
	key, err := cleanKey(path)
	if err != nil {
		return "", err
	}

	now := l.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(l.ttl)),
	})
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return "", fmt.Errorf("sign blob url: %w", err)
	}

	u := url.URL{Path: BlobPrefix + key, RawQuery: url.Values{"token": {signed}}.Encode()}
	return l.baseURL + u.String(), nil
}

// Put writes body to path, replacing any existing blob atomically.
func (l *Local) Put(_ context.Context, path string, body io.ReadSeeker, _ string) error {
	key, err := cleanKey(path)
	if err != nil {
		return err
	}
	full := filepath.Join(l.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}

	log.Debug().Str("key", key).Msg("Blob stored")
	return nil
}

// Verify checks that token grants access to path.
func (l *Local) Verify(token, path string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return l.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(l.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != path {
		return ErrInvalidToken
	}
	return nil
}

// ServeHTTP serves a blob. The request path is the key relative to
// BlobPrefix, so mount with http.StripPrefix.
func (l *Local) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key, err := cleanKey(r.URL.Path)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if err := l.Verify(r.URL.Query().Get("token"), key); err != nil {
		log.Debug().Err(err).Str("key", key).Msg("Blob access denied")
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	full := filepath.Join(l.root, filepath.FromSlash(key))
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil || stat.IsDir() {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeContent(w, r, stat.Name(), stat.ModTime(), f)
}
