package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"courier/internal/testsupport"
)

func TestConfigInitWritesSample(t *testing.T) {
	cfg, configPath, socket := setupOfflineCLIEnv(t)
	target := filepath.Join(testsupport.BaseDir(cfg), "fresh", "config.toml")

	output, err := runCLI(t, []string{"config", "init", "--path", target}, socket, configPath)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, output, "Wrote sample configuration to "+target, "init message")

	content, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(content), "base_url") {
		t.Fatalf("sample missing base_url:\n%s", content)
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target}, socket, configPath); err == nil {
		t.Fatal("expected second init to fail without --overwrite")
	}

	if _, err := runCLI(t, []string{"config", "init", "--path", target, "--overwrite"}, socket, configPath); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigInitDefaultLocation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	output, err := runCLI(t, []string{"config", "init"}, filepath.Join(home, "absent.sock"), "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	target := filepath.Join(home, ".config", "courier", "config.toml")
	requireContains(t, output, target, "default target path")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("sample not written: %v", err)
	}
}

func TestConfigShowRedactsTokens(t *testing.T) {
	_, configPath, socket := setupOfflineCLIEnv(t)

	output, err := runCLI(t, []string{"config", "show"}, socket, configPath)
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, output, "base_url", "library section")
	requireContains(t, output, "<redacted>", "redacted token")
	if strings.Contains(output, "test-token") {
		t.Fatalf("token leaked into output:\n%s", output)
	}
}

func TestConfigPathExistingFile(t *testing.T) {
	_, configPath, socket := setupOfflineCLIEnv(t)

	output, err := runCLI(t, []string{"config", "path"}, socket, configPath)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, output, configPath, "resolved path")
	if strings.Contains(output, "defaults are in effect") {
		t.Fatalf("existing file reported missing:\n%s", output)
	}
}

func TestConfigPathMissingFile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	missing := filepath.Join(home, "nope.toml")

	output, err := runCLI(t, []string{"config", "path"}, filepath.Join(home, "absent.sock"), missing)
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	requireContains(t, output, missing, "resolved path")
	requireContains(t, output, "defaults are in effect", "missing note")
}
