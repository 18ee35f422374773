package preflight

import (
	"context"
	"strings"

	"courier/internal/config"
)

// CheckLibraryFromConfig evaluates library status from config and connectivity.
func CheckLibraryFromConfig(cfg *config.Config) Result {
	const name = "Library"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Library.BaseURL) == "" {
		return Result{Name: name, Detail: "Missing base URL"}
	}
	check := CheckLibrary(context.Background(), cfg)
	if check.Passed {
		return Result{Name: name, Passed: true, Detail: check.Detail}
	}
	return Result{Name: name, Detail: check.Detail}
}
