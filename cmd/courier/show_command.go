package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/queue"
)

func newShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one queue entry in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return fmt.Errorf("invalid entry id %q", args[0])
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.SQLiteStore) error {
				entry, err := fetchEntry(cmd.Context(), client, store, id)
				if err != nil {
					return err
				}
				if entry == nil {
					if asJSON {
						return writeJSON(cmd, map[string]string{"error": "not_found", "id": id})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Entry %s not found\n", id)
					return nil
				}
				if asJSON {
					return writeJSON(cmd, entry)
				}
				printEntryDetail(cmd.OutOrStdout(), *entry)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

// fetchEntry resolves an entry over IPC or straight from the store. A nil
// entry with nil error means the id is unknown.
func fetchEntry(ctx context.Context, client *ipc.Client, store *queue.SQLiteStore, id string) (*api.QueueEntry, error) {
	if client != nil {
		resp, err := client.QueueDescribe(id)
		if err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "not found") {
				return nil, nil
			}
			return nil, err
		}
		entry := resp.Entry
		return &entry, nil
	}

	stored, err := store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}
	entry := api.FromEntry(stored)
	return &entry, nil
}

func printEntryDetail(out io.Writer, entry api.QueueEntry) {
	fmt.Fprintf(out, "ID: %s\n", entry.ID)
	fmt.Fprintf(out, "File: %s\n", entry.FileName)
	fmt.Fprintf(out, "Status: %s\n", formatStatusLabel(entry.Status))
	fmt.Fprintf(out, "Size: %s\n", formatSize(entry.FileSize))
	fmt.Fprintf(out, "MIME Type: %s\n", entry.MimeType)
	if entry.Width > 0 && entry.Height > 0 {
		fmt.Fprintf(out, "Dimensions: %dx%d\n", entry.Width, entry.Height)
	}
	if entry.Checksum != "" {
		fmt.Fprintf(out, "Checksum: %s\n", formatChecksum(entry.Checksum))
	}
	if entry.SourcePath != "" {
		fmt.Fprintf(out, "Source: %s\n", entry.SourcePath)
	}
	fmt.Fprintf(out, "Added: %s\n", formatDisplayTime(entry.AddedAt))
	fmt.Fprintf(out, "Updated: %s\n", formatDisplayTime(entry.UpdatedAt))
	if entry.LastModifiedAt != "" {
		fmt.Fprintf(out, "Modified: %s\n", formatDisplayTime(entry.LastModifiedAt))
	}
	fmt.Fprintf(out, "Retries: %d\n", entry.RetryCount)
	if entry.ErrorMessage != "" {
		fmt.Fprintf(out, "Last Error: %s\n", entry.ErrorMessage)
	}
}
