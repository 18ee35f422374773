package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"courier/internal/config"
	"courier/internal/services/library"
)

// CheckLibrary verifies the library server answers its health endpoint with
// the configured credentials. It uses a 5-second timeout and a single
// attempt (no retries).
func CheckLibrary(ctx context.Context, cfg *config.Config) Result {
	const name = "Library"

	if cfg == nil || strings.TrimSpace(cfg.Library.BaseURL) == "" {
		return Result{Name: name, Detail: "missing base url"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := library.New(cfg)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	if err := client.Health(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeHealthError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// summarizeHealthError produces a human-readable summary for library health
// check failures.
func summarizeHealthError(err error) string {
	var statusErr *library.StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return "auth failed (invalid api token)"
		default:
			return fmt.Sprintf("health check failed (%d)", statusErr.Code)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (library unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (library unreachable)"
	}
	return err.Error()
}
