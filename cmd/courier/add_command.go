package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"courier/internal/ingest"
	"courier/internal/ipc"
	"courier/internal/logging"
	"courier/internal/queue"
)

func newAddCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Queue image files for upload",
		Long: "Add inspects each file and appends it to the upload queue. With the\n" +
			"daemon running the file is handed over for immediate draining; without\n" +
			"it the entry is persisted directly and uploads once the daemon starts.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := make([]string, 0, len(args))
			for _, arg := range args {
				absPath, err := filepath.Abs(strings.TrimSpace(arg))
				if err != nil {
					return fmt.Errorf("resolve path: %w", err)
				}
				info, err := os.Stat(absPath)
				if err != nil {
					if errors.Is(err, os.ErrNotExist) {
						return fmt.Errorf("file does not exist: %s", absPath)
					}
					return fmt.Errorf("inspect file: %w", err)
				}
				if info.IsDir() {
					return fmt.Errorf("%s is a directory", absPath)
				}
				paths = append(paths, absPath)
			}

			return ctx.withStore(func(client *ipc.Client, store *queue.SQLiteStore) error {
				out := cmd.OutOrStdout()
				if client != nil {
					for _, path := range paths {
						resp, err := client.Enqueue(path)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Queued %s as entry %s\n", resp.Entry.FileName, resp.Entry.ID)
					}
					return nil
				}

				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				inspector := ingest.NewInspector(cfg, logging.NewNop())
				for _, path := range paths {
					entry, err := enqueueDirect(cmd.Context(), store, inspector, path)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Queued %s as entry %s (upload starts with the daemon)\n", entry.FileName, entry.ID)
				}
				return nil
			})
		},
	}
}

// enqueueDirect persists an inspected file without a running daemon,
// applying the same image gate the daemon enforces on its intake.
func enqueueDirect(ctx context.Context, store *queue.SQLiteStore, inspector *ingest.Inspector, path string) (*queue.Entry, error) {
	item, err := inspector.Inspect(ctx, path)
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(item.MimeType, "image/") {
		return nil, fmt.Errorf("%s is not an image (%s)", item.FileName, item.MimeType)
	}

	seq, err := store.NextSeq(ctx)
	if err != nil {
		return nil, fmt.Errorf("allocate sequence: %w", err)
	}
	now := time.Now().UTC()
	entry := &queue.Entry{
		ID:             queue.NewEntryID(),
		Seq:            seq,
		FileName:       item.FileName,
		FileSize:       item.Size,
		MimeType:       item.MimeType,
		LastModifiedAt: item.LastModifiedAt,
		SourcePath:     item.SourcePath,
		Payload:        item.Payload,
		Checksum:       item.Checksum,
		Width:          item.Width,
		Height:         item.Height,
		Status:         queue.StatusQueued,
		AddedAt:        now,
		UpdatedAt:      now,
	}
	if err := store.Put(ctx, entry); err != nil {
		return nil, fmt.Errorf("persist entry: %w", err)
	}
	return entry, nil
}
