// Package main is the entry point for the Stellar Online music server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edumarques81/stellar-online/internal/config"
	"github.com/edumarques81/stellar-online/internal/infra/identity"
	"github.com/edumarques81/stellar-online/internal/version"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "stellar-online",
		Short:         "Music catalog browser and playback server",
		Version:       version.GetInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", "", "Path to config.yaml (default ./config.yaml)")
	root.PersistentFlags().Bool("debug", false, "Enable debug logging")

	root.AddCommand(serveCmd(), importCmd())
	return root
}

// loadConfig merges the config file, STELLAR_* env and the flags in binds
// (config key to flag name), then configures logging.
func loadConfig(cmd *cobra.Command, binds map[string]string) (*config.Config, error) {
	setupLogging(false)

	loader := config.NewLoader()
	binds["log.debug"] = "debug"
	for key, name := range binds {
		if err := loader.BindFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return nil, err
		}
	}

	path, _ := cmd.Flags().GetString("config")
	cfg, err := loader.Load(path)
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return nil, err
	}

	setupLogging(cfg.Log.Debug)
	return cfg, nil
}

func setupLogging(debug bool) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}

// openIdentity loads the instance identity. Its secret signs local blob
// URLs unless storage.secret is configured.
func openIdentity(cfg *config.Config) (*identity.Store, error) {
	id, err := identity.Open(cfg.Server.IdentityPath)
	if err != nil {
		return nil, fmt.Errorf("open identity: %w", err)
	}
	if cfg.Storage.Secret == "" {
		cfg.Storage.Secret = string(id.Secret())
	}
	return id, nil
}
