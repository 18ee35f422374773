package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"courier/internal/config"
	"courier/internal/ipc"
	"courier/internal/queue"
)

// commandContext carries the lazily resolved configuration and socket
// path shared by every subcommand.
type commandContext struct {
	socketFlag *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

// ensureConfig loads the configuration once and prepares the directories
// it references. Subsequent calls return the cached result.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = fmt.Errorf("prepare directories: %w", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// configValue returns the cached configuration when ensureConfig has
// already succeeded, nil otherwise.
func (c *commandContext) configValue() *config.Config {
	return c.config
}

// socketPath resolves the daemon socket path, preferring the --socket
// flag, then the loaded configuration, then the built-in default.
func (c *commandContext) socketPath() string {
	if c.socketFlag != nil {
		if socket := strings.TrimSpace(*c.socketFlag); socket != "" {
			return socket
		}
	}
	if c.config != nil && strings.TrimSpace(c.config.Daemon.SocketPath) != "" {
		return c.config.Daemon.SocketPath
	}
	socket := defaultSocketPath()
	if c.socketFlag != nil && strings.TrimSpace(*c.socketFlag) == "" {
		*c.socketFlag = socket
	}
	return socket
}

func (c *commandContext) dialClient() (*ipc.Client, error) {
	socket := c.socketPath()
	client, err := ipc.Dial(socket)
	if err != nil {
		return nil, wrapDialError(socket, err)
	}
	return client, nil
}

// withStore hands fn either a live IPC client (store nil) or, when the
// daemon socket is unreachable, a direct handle on the queue store
// (client nil). Exactly one of the two is non-nil.
func (c *commandContext) withStore(fn func(*ipc.Client, *queue.SQLiteStore) error) error {
	client, err := ipc.Dial(c.socketPath())
	if err == nil {
		defer client.Close()
		return fn(client, nil)
	}

	cfg, cfgErr := c.ensureConfig()
	if cfgErr != nil {
		return cfgErr
	}
	store, openErr := queue.Open(cfg)
	if openErr != nil {
		return fmt.Errorf("open queue store: %w", openErr)
	}
	defer store.Close()
	return fn(nil, store)
}

func wrapDialError(socket string, err error) error {
	switch {
	case errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT):
		return fmt.Errorf("connect to daemon: socket %s not found; start the daemon with `courier start`", socket)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: socket %s refused the connection; verify the daemon is running", socket)
	default:
		return fmt.Errorf("connect to daemon: %w", err)
	}
}

func defaultSocketPath() string {
	cfg, _, _, err := config.Load("")
	if err == nil && strings.TrimSpace(cfg.Daemon.SocketPath) != "" {
		return cfg.Daemon.SocketPath
	}
	dataDir, err := config.ExpandPath("~/.local/share/courier")
	if err != nil {
		return filepath.Join(os.TempDir(), "courier.sock")
	}
	return filepath.Join(dataDir, "courier.sock")
}

// shouldSkipConfig reports whether the command or one of its parents opts
// out of configuration loading.
func shouldSkipConfig(cmd *cobra.Command) bool {
	for current := cmd; current != nil; current = current.Parent() {
		if current.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
