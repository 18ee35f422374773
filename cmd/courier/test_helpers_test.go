package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"courier/internal/config"
	"courier/internal/daemon"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/queue"
	"courier/internal/testsupport"
)

// cliTestEnv hosts an IPC server backed by a real daemon so commands can
// be exercised end to end. The daemon stays unstarted: entries persist
// without a drain loop mutating them mid-test.
type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	socketPath string
	configPath string
	logPath    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()

	library := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(library.Close)

	cfg := testsupport.NewConfig(t, testsupport.WithLibraryURL(library.URL))
	overrideHome(t, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}

	configPath := writeTestConfig(t, cfg)
	logPath := filepath.Join(cfg.Paths.LogDir, logging.DaemonLogFileName)
	logger := logging.NewNop()

	d, err := daemon.New(cfg, queue.NewMemoryStore(), true, nil, logger, logPath)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})

	srvCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv, err := ipc.NewServer(srvCtx, cfg.Daemon.SocketPath, d, logger)
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping CLI test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(func() {
		srv.Close()
	})

	waitFor(t, 3*time.Second, func() bool {
		client, err := ipc.Dial(cfg.Daemon.SocketPath)
		if err != nil {
			return false
		}
		client.Close()
		return true
	}, "IPC socket never became dialable")

	return &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		socketPath: cfg.Daemon.SocketPath,
		configPath: configPath,
		logPath:    logPath,
	}
}

// setupOfflineCLIEnv returns a config file plus a socket path nothing
// listens on, forcing commands down the direct-store path.
func setupOfflineCLIEnv(t *testing.T) (*config.Config, string, string) {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	overrideHome(t, cfg)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	configPath := writeTestConfig(t, cfg)
	socket := filepath.Join(testsupport.BaseDir(cfg), "absent.sock")
	return cfg, configPath, socket
}

// overrideHome keeps commands that consult ~ away from the real home.
func overrideHome(t *testing.T, cfg *config.Config) {
	t.Helper()

	home := filepath.Join(testsupport.BaseDir(cfg), "home")
	if err := os.MkdirAll(home, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", home)
}

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()

	encoded, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, args []string, socket, configPath string) (string, error) {
	t.Helper()

	root := newRootCommand()
	out := &bytes.Buffer{}
	root.SetOut(out)
	root.SetErr(out)

	cliArgs := []string{"--socket", socket}
	if configPath != "" {
		cliArgs = append(cliArgs, "--config", configPath)
	}
	cliArgs = append(cliArgs, args...)
	root.SetArgs(cliArgs)

	err := root.Execute()
	return out.String(), err
}

func requireContains(t *testing.T, output, want, label string) {
	t.Helper()
	if !strings.Contains(output, want) {
		t.Fatalf("%s: output %q does not contain %q", label, output, want)
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal(msg)
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		t.Fatalf("append to %s: %v", path, err)
	}
}

// enqueueImage writes a small PNG and hands it straight to the daemon,
// returning the new entry id.
func (env *cliTestEnv) enqueueImage(t *testing.T, name string) string {
	t.Helper()

	path := filepath.Join(testsupport.BaseDir(env.cfg), name)
	testsupport.WritePNG(t, path, 5, 5)
	entry, err := env.daemon.Enqueue(context.Background(), path)
	if err != nil {
		t.Fatalf("daemon.Enqueue: %v", err)
	}
	return entry.ID
}

// syncBuffer guards a bytes.Buffer shared between the command goroutine
// and the asserting test, which follow-mode tests need.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
