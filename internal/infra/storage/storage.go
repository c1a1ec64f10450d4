// Package storage implements catalog.BlobStore on the local filesystem or
// an S3 compatible bucket.
package storage

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/edumarques81/stellar-online/internal/config"
	"github.com/edumarques81/stellar-online/internal/domain/catalog"
)

// ErrInvalidToken is returned when a download token is missing, forged,
// expired or issued for another path.
var ErrInvalidToken = errors.New("storage: invalid or expired token")

// ErrInvalidPath is returned for paths escaping the store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// BlobPrefix is the URL prefix local blobs are served under.
const BlobPrefix = "/blobs/"

// Open creates the blob store selected by cfg. For the local provider the
// returned handler serves signed downloads and must be mounted at
// BlobPrefix; it is nil for S3.
func Open(cfg *config.Config) (catalog.BlobStore, http.Handler, error) {
	switch cfg.Storage.Provider {
	case config.StorageS3:
		s3c := cfg.Storage.S3
		store, err := NewS3(S3Config{
			Endpoint: s3c.Endpoint,
			Region:   s3c.Region,
			Bucket:   s3c.Bucket,
			KeyID:    s3c.KeyID,
			AppKey:   s3c.AppKey,
			URLTTL:   cfg.Storage.URLTTL,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil

	case config.StorageLocal:
		secret := []byte(cfg.Storage.Secret)
		if len(secret) == 0 {
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				return nil, nil, fmt.Errorf("generate blob secret: %w", err)
			}
			log.Warn().Msg("storage.secret not set, blob URLs will not survive a restart")
		}
		baseURL := cfg.Server.PublicURL
		if baseURL == "" {
			baseURL = fmt.Sprintf("http://localhost:%d", cfg.Server.Port)
		}
		store, err := NewLocal(cfg.Storage.LocalRoot, baseURL, secret, cfg.Storage.URLTTL)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
	return nil, nil, fmt.Errorf("unknown storage provider %q", cfg.Storage.Provider)
}

// cleanKey normalizes a blob path to a slash separated key without a
// leading slash.
func cleanKey(path string) (string, error) {
	key := strings.TrimPrefix(path, "/")
	if key == "" {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return "", fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return key, nil
}
