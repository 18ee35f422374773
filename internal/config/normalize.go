package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeConnectivity()
	c.normalizeUploader()
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WatchDir) != "" {
		if c.Paths.WatchDir, err = expandPath(c.Paths.WatchDir); err != nil {
			return fmt.Errorf("paths.watch_dir: %w", err)
		}
		if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
			c.Paths.ArchiveDir = filepath.Join(c.Paths.WatchDir, "uploaded")
		}
	} else {
		c.Paths.WatchDir = ""
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
			return fmt.Errorf("paths.archive_dir: %w", err)
		}
	} else {
		c.Paths.ArchiveDir = ""
	}
	return nil
}

func (c *Config) normalizeLibrary() error {
	c.Library.BaseURL = strings.TrimRight(strings.TrimSpace(c.Library.BaseURL), "/")
	c.Library.APIToken = strings.TrimSpace(c.Library.APIToken)
	if c.Library.APIToken == "" {
		if value, ok := os.LookupEnv("COURIER_API_TOKEN"); ok {
			c.Library.APIToken = strings.TrimSpace(value)
		}
	}
	if c.Library.RequestTimeout <= 0 {
		c.Library.RequestTimeout = defaultRequestTimeout
	}
	if c.Library.UploadTimeout <= 0 {
		c.Library.UploadTimeout = defaultUploadTimeout
	}
	return nil
}

func (c *Config) normalizeConnectivity() {
	if c.Connectivity.ProbeInterval <= 0 {
		c.Connectivity.ProbeInterval = defaultProbeInterval
	}
	if c.Connectivity.ProbeTimeout <= 0 {
		c.Connectivity.ProbeTimeout = defaultProbeTimeout
	}
	c.Connectivity.ProbeURL = strings.TrimSpace(c.Connectivity.ProbeURL)
}

func (c *Config) normalizeUploader() {
	if c.Uploader.MaxFileSizeMB <= 0 {
		c.Uploader.MaxFileSizeMB = defaultMaxFileSizeMB
	}
	if c.Uploader.MaxPixelDimension < 0 {
		c.Uploader.MaxPixelDimension = 0
	}
	if c.Uploader.WatchSettleMS <= 0 {
		c.Uploader.WatchSettleMS = defaultWatchSettleMS
	}
}

func (c *Config) normalizeDaemon() error {
	var err error
	if strings.TrimSpace(c.Daemon.SocketPath) == "" {
		c.Daemon.SocketPath = filepath.Join(c.Paths.DataDir, "courier.sock")
	}
	if c.Daemon.SocketPath, err = expandPath(c.Daemon.SocketPath); err != nil {
		return fmt.Errorf("daemon.socket_path: %w", err)
	}
	c.Daemon.APIBind = strings.TrimSpace(c.Daemon.APIBind)
	c.Daemon.APIToken = strings.TrimSpace(c.Daemon.APIToken)
	if c.Daemon.APIToken == "" {
		if value, ok := os.LookupEnv("COURIER_STATUS_API_TOKEN"); ok {
			c.Daemon.APIToken = strings.TrimSpace(value)
		}
	}
	return nil
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		c.Notifications.DedupWindowSeconds = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
