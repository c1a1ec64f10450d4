// Package identity persists the server's instance identity: a stable UUID,
// a display name and the secret that signs local blob URLs.
package identity

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// secretBytes is the length of a generated signing secret.
const secretBytes = 32

// ErrEmptyName is returned by SetName for a blank name.
var ErrEmptyName = errors.New("identity: name is empty")

// Info is the public part of the identity.
type Info struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
}

// persisted is the format stored on disk.
type persisted struct {
	UUID   string `json:"uuid"`
	Name   string `json:"name"`
	Secret string `json:"secret"`
}

// Store holds the identity loaded from path.
type Store struct {
	mu     sync.RWMutex
	path   string
	info   Info
	secret []byte
}

// Open loads the identity at path, generating and persisting any missing
// part.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create identity directory: %w", err)
	}

	s := &Store{path: path}
	p, err := load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	dirty := false
	if p.UUID == "" {
		p.UUID = uuid.New().String()
		dirty = true
	}
	if strings.TrimSpace(p.Name) == "" {
		p.Name = defaultName()
		dirty = true
	}
	secret, err := hex.DecodeString(p.Secret)
	if err != nil || len(secret) == 0 {
		secret = make([]byte, secretBytes)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate secret: %w", err)
		}
		p.Secret = hex.EncodeToString(secret)
		dirty = true
	}

	s.info = Info{UUID: p.UUID, Name: p.Name}
	s.secret = secret
	if dirty {
		if err := s.saveLocked(); err != nil {
			return nil, fmt.Errorf("failed to save identity: %w", err)
		}
	}

	log.Info().
		Str("uuid", s.info.UUID).
		Str("name", s.info.Name).
		Msg("Instance identity initialized")

	return s, nil
}

func load(path string) (persisted, error) {
	var p persisted
	data, err := os.ReadFile(path)
	if err != nil {
		return p, err
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return persisted{}, fmt.Errorf("invalid identity file %s: %w", path, err)
	}
	return p, nil
}

// saveLocked writes the identity with owner-only permissions since it
// carries the signing secret.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(persisted{
		UUID:   s.info.UUID,
		Name:   s.info.Name,
		Secret: hex.EncodeToString(s.secret),
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0600)
}

// Info returns the UUID and name.
func (s *Store) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.info
}

// Secret returns the blob signing secret.
func (s *Store) Secret() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.secret...)
}

// SetName renames the instance and persists it.
func (s *Store) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrEmptyName
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.info.Name = name
	return s.saveLocked()
}

func defaultName() string {
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "Stellar Online"
	}
	return hostname
}
