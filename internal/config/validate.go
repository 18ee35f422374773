package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateConnectivity(); err != nil {
		return err
	}
	if err := c.validateUploader(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/courier/config.toml"
		}
		return fmt.Errorf("library.base_url is required. Edit %s (create with 'courier config init')", defaultPath)
	}
	if err := validateHTTPURL("library.base_url", c.Library.BaseURL); err != nil {
		return err
	}
	return ensurePositiveMap(map[string]int{
		"library.request_timeout": c.Library.RequestTimeout,
		"library.upload_timeout":  c.Library.UploadTimeout,
	})
}

func (c *Config) validateConnectivity() error {
	if err := ensurePositiveMap(map[string]int{
		"connectivity.probe_interval": c.Connectivity.ProbeInterval,
		"connectivity.probe_timeout":  c.Connectivity.ProbeTimeout,
	}); err != nil {
		return err
	}
	if c.Connectivity.ProbeTimeout >= c.Connectivity.ProbeInterval {
		return errors.New("connectivity.probe_timeout must be less than connectivity.probe_interval")
	}
	if c.Connectivity.ProbeURL != "" {
		if err := validateHTTPURL("connectivity.probe_url", c.Connectivity.ProbeURL); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateUploader() error {
	if c.Uploader.MaxFileSizeMB <= 0 {
		return errors.New("uploader.max_file_size_mb must be positive")
	}
	if c.Uploader.MaxPixelDimension < 0 {
		return errors.New("uploader.max_pixel_dimension must be >= 0")
	}
	return nil
}

func (c *Config) validatePaths() error {
	watch := strings.TrimSpace(c.Paths.WatchDir)
	archive := strings.TrimSpace(c.Paths.ArchiveDir)
	if watch == "" {
		return nil
	}
	if archive == watch {
		return errors.New("paths.archive_dir must differ from paths.watch_dir")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.APIBind == "" {
		return nil
	}
	if _, _, err := net.SplitHostPort(c.Daemon.APIBind); err != nil {
		return fmt.Errorf("daemon.api_bind must be host:port: %w", err)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.NtfyTopic != "" {
		if err := validateHTTPURL("notifications.ntfy_topic", c.Notifications.NtfyTopic); err != nil {
			return err
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	if c.Notifications.DedupWindowSeconds < 0 {
		return errors.New("notifications.dedup_window_seconds must be >= 0")
	}
	return nil
}

func validateHTTPURL(key, value string) error {
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must use http or https, got %q", key, value)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s is missing a host: %q", key, value)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
