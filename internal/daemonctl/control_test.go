package daemonctl

import (
	"context"
	"path/filepath"
	"testing"

	"courier/internal/testsupport"
)

func TestBuildStatusSnapshotOfflineFallsBackToStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	testsupport.NewEntry(t, store, "a.png", 1)
	testsupport.NewEntry(t, store, "b.png", 2)

	snap, err := BuildStatusSnapshot(context.Background(), cfg.Daemon.SocketPath, cfg)
	if err != nil {
		t.Fatalf("BuildStatusSnapshot: %v", err)
	}
	if snap.Running {
		t.Fatal("expected not-running snapshot without a daemon")
	}
	if snap.Uploader.Stats.Total != 2 || snap.Uploader.Stats.Queued != 2 {
		t.Fatalf("unexpected stats from store fallback: %+v", snap.Uploader.Stats)
	}
	if snap.QueueDBPath != cfg.DatabasePath() {
		t.Fatalf("queue db path = %q, want %q", snap.QueueDBPath, cfg.DatabasePath())
	}
	if snap.LockPath != cfg.LockFilePath() {
		t.Fatalf("lock path = %q, want %q", snap.LockPath, cfg.LockFilePath())
	}
	if len(snap.SystemChecks) == 0 || len(snap.PathChecks) == 0 {
		t.Fatal("expected system and path check lines")
	}
	if snap.SystemChecks[0].Label != "Courier" || snap.SystemChecks[0].Severity != "warn" {
		t.Fatalf("unexpected first system check: %+v", snap.SystemChecks[0])
	}
}

func TestDeriveRuntimeDir(t *testing.T) {
	cfg := testsupport.NewConfig(t)

	if got := DeriveRuntimeDir("/run/courier/courier.lock", "", nil); got != "/run/courier" {
		t.Fatalf("lock hint: got %q", got)
	}
	if got := DeriveRuntimeDir("", "/var/lib/courier/queue.db", nil); got != "/var/lib/courier" {
		t.Fatalf("db hint: got %q", got)
	}
	if got := DeriveRuntimeDir("", "", cfg); got != cfg.Paths.DataDir {
		t.Fatalf("config fallback: got %q, want %q", got, cfg.Paths.DataDir)
	}
	if got := DeriveRuntimeDir("", "", nil); got != "" {
		t.Fatalf("no hints: got %q", got)
	}
}

func TestProcessInfoWithoutSocket(t *testing.T) {
	socket := filepath.Join(t.TempDir(), "courier.sock")
	reachable, pid, err := ProcessInfo(socket)
	if err != nil {
		t.Fatalf("ProcessInfo: %v", err)
	}
	if reachable || pid != 0 {
		t.Fatalf("expected unreachable daemon, got reachable=%v pid=%d", reachable, pid)
	}
}
