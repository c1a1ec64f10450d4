// Package config loads server settings from config.yaml, STELLAR_*
// environment variables and command line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the complete server configuration.
type Config struct {
	Server struct {
		Port      int    `mapstructure:"port"`
		PublicURL string `mapstructure:"public_url"`
		// MaxExternalClients caps non-loopback Socket.IO clients; the
		// oldest is evicted. Zero means unlimited.
		MaxExternalClients int `mapstructure:"max_external_clients"`
		// IdentityPath is where the instance UUID, name and generated
		// blob signing secret are kept.
		IdentityPath string `mapstructure:"identity_path"`
	} `mapstructure:"server"`
	Log struct {
		Debug bool `mapstructure:"debug"`
	} `mapstructure:"log"`
	Catalog struct {
		DBPath string `mapstructure:"db_path"`
	} `mapstructure:"catalog"`
	Storage struct {
		Provider  string        `mapstructure:"provider"`
		LocalRoot string        `mapstructure:"local_root"`
		Secret    string        `mapstructure:"secret"`
		URLTTL    time.Duration `mapstructure:"url_ttl"`
		S3        struct {
			Endpoint string `mapstructure:"endpoint"`
			Region   string `mapstructure:"region"`
			Bucket   string `mapstructure:"bucket"`
			KeyID    string `mapstructure:"key_id"`
			AppKey   string `mapstructure:"app_key"`
		} `mapstructure:"s3"`
	} `mapstructure:"storage"`
	Player struct {
		Backend string `mapstructure:"backend"`
		MPD     struct {
			Host     string `mapstructure:"host"`
			Port     int    `mapstructure:"port"`
			Password string `mapstructure:"password"`
		} `mapstructure:"mpd"`
	} `mapstructure:"player"`
	Browse struct {
		PageSize         int           `mapstructure:"page_size"`
		LikedPageSize    int           `mapstructure:"liked_page_size"`
		SearchDelay      time.Duration `mapstructure:"search_delay"`
		CoverConcurrency int           `mapstructure:"cover_concurrency"`
		CoverSize        int           `mapstructure:"cover_size"`
		NewSongsWindow   time.Duration `mapstructure:"new_songs_window"`
		MinFacetCount    int           `mapstructure:"min_facet_count"`
	} `mapstructure:"browse"`
}

// Storage and player backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"

	PlayerMPD     = "mpd"
	PlayerSpeaker = "speaker"
	PlayerNone    = "none"
)

// Loader wraps a viper instance so flags can be bound before Load.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with every default registered.
func NewLoader() *Loader {
	v := viper.New()
	v.SetEnvPrefix("STELLAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.port", 3000)
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.max_external_clients", 4)
	v.SetDefault("server.identity_path", "data/identity.json")
	v.SetDefault("log.debug", false)
	v.SetDefault("catalog.db_path", "data/catalog.db")

	v.SetDefault("storage.provider", StorageLocal)
	v.SetDefault("storage.local_root", "data/blobs")
	v.SetDefault("storage.secret", "")
	v.SetDefault("storage.url_ttl", time.Hour)
	v.SetDefault("storage.s3.endpoint", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("storage.s3.bucket", "")
	v.SetDefault("storage.s3.key_id", "")
	v.SetDefault("storage.s3.app_key", "")

	v.SetDefault("player.backend", PlayerMPD)
	v.SetDefault("player.mpd.host", "localhost")
	v.SetDefault("player.mpd.port", 6600)
	v.SetDefault("player.mpd.password", "")

	v.SetDefault("browse.page_size", 50)
	v.SetDefault("browse.liked_page_size", 100)
	v.SetDefault("browse.search_delay", 500*time.Millisecond)
	v.SetDefault("browse.cover_concurrency", 4)
	v.SetDefault("browse.cover_size", 300)
	v.SetDefault("browse.new_songs_window", 7*24*time.Hour)
	v.SetDefault("browse.min_facet_count", 2)

	return &Loader{v: v}
}

// BindFlag binds a command line flag to a config key. Flags set on the
// command line take precedence over env and file values.
func (l *Loader) BindFlag(key string, flag *pflag.Flag) error {
	if flag == nil {
		return fmt.Errorf("bind %s: flag not found", key)
	}
	return l.v.BindPFlag(key, flag)
}

// Load reads path (or config.yaml in the working directory when path is
// empty) and returns the merged configuration. A missing default file is
// not an error.
func (l *Loader) Load(path string) (*Config, error) {
	if path != "" {
		l.v.SetConfigFile(path)
	} else {
		l.v.SetConfigName("config")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Debug().Msg("config.yaml not found, using defaults and environment")
	} else {
		log.Info().Str("file", l.v.ConfigFileUsed()).Msg("Config loaded")
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Load is NewLoader().Load(path).
func Load(path string) (*Config, error) {
	return NewLoader().Load(path)
}

// Validate checks backend names and the settings each backend requires.
func (c *Config) Validate() error {
	switch c.Storage.Provider {
	case StorageLocal:
	case StorageS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("config: storage.s3.bucket is required for the s3 provider")
		}
	default:
		return fmt.Errorf("config: unknown storage provider %q", c.Storage.Provider)
	}

	switch c.Player.Backend {
	case PlayerMPD, PlayerSpeaker, PlayerNone:
	default:
		return fmt.Errorf("config: unknown player backend %q", c.Player.Backend)
	}

	if c.Server.MaxExternalClients < 0 {
		return errors.New("config: server.max_external_clients must not be negative")
	}
	if c.Browse.PageSize < 1 || c.Browse.LikedPageSize < 1 {
		return errors.New("config: browse page sizes must be positive")
	}
	return nil
}
