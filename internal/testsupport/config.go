package testsupport

import (
	"path/filepath"
	"testing"

	"courier/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Library.BaseURL = "http://library.test"
	cfgVal.Library.APIToken = "test-token"
	cfgVal.Daemon.SocketPath = filepath.Join(base, "courier.sock")
	cfgVal.Daemon.APIBind = "127.0.0.1:0"
	cfgVal.Connectivity.NetlinkEvents = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithLibraryURL points the test config at a live server, usually an
// httptest.Server standing in for the library.
func WithLibraryURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Library.BaseURL = url
	}
}

// WithNtfyTopic enables notifications against the given topic URL.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

// WithWatchDir enables the drop-directory intake under the test base dir
// and returns archived files to its "uploaded" subdirectory.
func WithWatchDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Paths.WatchDir = filepath.Join(b.baseDir, "watch")
		b.cfg.Paths.ArchiveDir = filepath.Join(b.baseDir, "watch", "uploaded")
	}
}

// WithAPIToken sets the status API bearer token.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Daemon.APIToken = token
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
