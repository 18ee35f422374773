package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDaemonCommandRejectsMalformedConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("library = [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cmd := newDaemonCommand()
	cmd.SetArgs([]string{"--config", path})
	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected config parse failure")
	}
	if !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}

func TestDaemonCommandFlags(t *testing.T) {
	cmd := newDaemonCommand()
	for _, name := range []string{"config", "socket", "log-level", "dev", "diagnostic"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag %q", name)
		}
	}
}
