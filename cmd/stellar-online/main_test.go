package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/edumarques81/stellar-online/internal/config"
)

func TestRootCommand_Subcommands(t *testing.T) {
	root := rootCmd()

	for _, name := range []string{"serve", "import"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("subcommand %s not registered: %v", name, err)
		}
	}
	if root.PersistentFlags().Lookup("debug") == nil {
		t.Error("root command should have a --debug flag")
	}
}

func TestLoadConfig_FlagsOverrideDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	root := rootCmd()
	serve, _, err := root.Find([]string{"serve"})
	if err != nil {
		t.Fatal(err)
	}
	if err := serve.ParseFlags([]string{"--port", "4100", "--player", config.PlayerNone}); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(serve, map[string]string{
		"server.port":    "port",
		"player.backend": "player",
	})
	if err != nil {
		t.Fatalf("loadConfig failed: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("expected port 4100, got %d", cfg.Server.Port)
	}
	if cfg.Player.Backend != config.PlayerNone {
		t.Errorf("expected player none, got %q", cfg.Player.Backend)
	}
}

func TestImportCommand_EmptyDirectory(t *testing.T) {
	work := t.TempDir()
	t.Chdir(work)

	music := filepath.Join(work, "music")
	if err := os.MkdirAll(music, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(music, "notes.txt"), []byte("not audio"), 0644); err != nil {
		t.Fatal(err)
	}

	root := rootCmd()
	root.SetArgs([]string{"import", music, "--source", "Vinyl"})
	if err := root.Execute(); err != nil {
		t.Fatalf("import failed: %v", err)
	}

	if _, err := os.Stat(filepath.Join(work, "data", "catalog.db")); err != nil {
		t.Errorf("catalog database should be created: %v", err)
	}
	if _, err := os.Stat(filepath.Join(work, "data", "identity.json")); err != nil {
		t.Errorf("identity should be created: %v", err)
	}
}

func TestImportCommand_RequiresDirectory(t *testing.T) {
	root := rootCmd()
	root.SetArgs([]string{"import"})
	if err := root.Execute(); err == nil {
		t.Error("import without a directory should fail")
	}
}
