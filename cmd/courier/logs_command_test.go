package main

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"courier/internal/logging"
)

func TestLogsTailViaIPC(t *testing.T) {
	env := setupCLITestEnv(t)
	appendLine(t, env.logPath, "first")
	appendLine(t, env.logPath, "second")
	appendLine(t, env.logPath, "third")

	output, err := runCLI(t, []string{"logs", "-n", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, output, "second", "second line")
	requireContains(t, output, "third", "third line")
	if strings.Contains(output, "first") {
		t.Fatalf("line outside limit printed:\n%s", output)
	}
}

func TestLogsOfflineReadsFile(t *testing.T) {
	cfg, configPath, socket := setupOfflineCLIEnv(t)
	logPath := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogFileName)
	appendLine(t, logPath, "alpha")
	appendLine(t, logPath, "beta")

	output, err := runCLI(t, []string{"logs"}, socket, configPath)
	if err != nil {
		t.Fatalf("logs offline: %v", err)
	}
	requireContains(t, output, "alpha", "first line")
	requireContains(t, output, "beta", "second line")
}

func TestLogsNoEntries(t *testing.T) {
	env := setupCLITestEnv(t)

	output, err := runCLI(t, []string{"logs"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, output, "No log entries available", "empty message")
}

func TestLogsFollowStreams(t *testing.T) {
	cfg, configPath, socket := setupOfflineCLIEnv(t)
	logPath := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogFileName)
	appendLine(t, logPath, "starting")

	root := newRootCommand()
	buf := &syncBuffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--socket", socket, "--config", configPath, "logs", "--follow"})

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() {
		done <- root.ExecuteContext(runCtx)
	}()

	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(buf.String(), "starting")
	}, "initial line never appeared")

	appendLine(t, logPath, "fresh line")
	waitFor(t, 5*time.Second, func() bool {
		return strings.Contains(buf.String(), "fresh line")
	}, "appended line never streamed")

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("follow exited with error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("follow did not exit after cancel")
	}
}
