package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"courier/internal/api"
	"courier/internal/ipc"
	"courier/internal/queue"
)

func newQueueCommand(ctx *commandContext) *cobra.Command {
	queueCmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect and maintain the upload queue",
	}

	queueCmd.AddCommand(newQueueListCommand(ctx))
	queueCmd.AddCommand(newQueueRetryCommand(ctx))
	queueCmd.AddCommand(newQueueRemoveCommand(ctx))
	queueCmd.AddCommand(newQueueClearCommand(ctx))

	return queueCmd
}

func newQueueListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List queue entries in drain order",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, value := range listStatuses {
				if _, ok := queue.ParseStatus(value); !ok {
					return fmt.Errorf("unknown status %q", value)
				}
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.SQLiteStore) error {
				var entries []api.QueueEntry
				if client != nil {
					resp, err := client.QueueList(listStatuses)
					if err != nil {
						return err
					}
					entries = resp.Entries
				} else {
					statuses := make([]queue.Status, 0, len(listStatuses))
					for _, value := range listStatuses {
						if status, ok := queue.ParseStatus(value); ok {
							statuses = append(statuses, status)
						}
					}
					stored, err := store.List(cmd.Context(), statuses...)
					if err != nil {
						return err
					}
					entries = api.FromEntries(stored)
				}

				if asJSON {
					if entries == nil {
						entries = []api.QueueEntry{}
					}
					return writeJSON(cmd, entries)
				}
				if len(entries) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty")
					return nil
				}
				table := renderTable(
					[]string{"ID", "File", "Status", "Size", "Added"},
					buildQueueListRows(entries),
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
				)
				fmt.Fprint(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by status (queued, uploading, success, error); repeatable")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newQueueRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [id...]",
		Short: "Requeue errored entries, all of them or by id",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := normalizeEntryIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.SQLiteStore) error {
				out := cmd.OutOrStdout()
				if client != nil {
					if len(ids) == 0 {
						resp, err := client.QueueRetry(nil)
						if err != nil {
							return err
						}
						fmt.Fprintf(out, "Requeued %d errored entries\n", resp.Updated)
						return nil
					}
					listResp, err := client.QueueList(nil)
					if err != nil {
						return err
					}
					known := make(map[string]ipc.QueueEntry, len(listResp.Entries))
					for _, entry := range listResp.Entries {
						known[entry.ID] = entry
					}
					for _, id := range ids {
						entry, ok := known[id]
						if !ok {
							fmt.Fprintf(out, "Entry %s not found\n", id)
							continue
						}
						if !statusIsRetryable(entry.Status) {
							fmt.Fprintf(out, "Entry %s is not in the error state\n", id)
							continue
						}
						retryResp, err := client.QueueRetry([]string{id})
						if err != nil {
							return err
						}
						if retryResp.Updated > 0 {
							fmt.Fprintf(out, "Entry %s requeued\n", id)
						} else {
							fmt.Fprintf(out, "Entry %s is not in the error state\n", id)
						}
					}
					return nil
				}

				if len(ids) == 0 {
					updated, err := store.RetryErrored(cmd.Context())
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Requeued %d errored entries\n", updated)
					return nil
				}
				for _, id := range ids {
					entry, err := store.GetByID(cmd.Context(), id)
					if err != nil {
						return err
					}
					if entry == nil {
						fmt.Fprintf(out, "Entry %s not found\n", id)
						continue
					}
					if entry.Status != queue.StatusError {
						fmt.Fprintf(out, "Entry %s is not in the error state\n", id)
						continue
					}
					if _, err := store.RetryErrored(cmd.Context(), id); err != nil {
						return err
					}
					fmt.Fprintf(out, "Entry %s requeued\n", id)
				}
				return nil
			})
		},
	}
}

func newQueueRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>...",
		Short: "Remove entries from the queue",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ids, err := normalizeEntryIDs(args)
			if err != nil {
				return err
			}
			return ctx.withStore(func(client *ipc.Client, store *queue.SQLiteStore) error {
				out := cmd.OutOrStdout()
				for _, id := range ids {
					var removed int64
					if client != nil {
						resp, err := client.QueueRemove([]string{id})
						if err != nil {
							return err
						}
						removed = int64(resp.Removed)
					} else {
						count, err := store.Remove(cmd.Context(), id)
						if err != nil {
							return err
						}
						removed = count
					}
					if removed > 0 {
						fmt.Fprintf(out, "Entry %s removed\n", id)
					} else {
						fmt.Fprintf(out, "Entry %s not found\n", id)
					}
				}
				return nil
			})
		},
	}
}

func newQueueClearCommand(ctx *commandContext) *cobra.Command {
	var clearErrored bool
	var clearSucceeded bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Remove queue entries in bulk",
		RunE: func(cmd *cobra.Command, args []string) error {
			if clearErrored && clearSucceeded {
				return errors.New("specify only one of --errored or --succeeded")
			}
			var statuses []string
			switch {
			case clearErrored:
				statuses = []string{string(queue.StatusError)}
			case clearSucceeded:
				statuses = []string{string(queue.StatusSuccess)}
			}
			label := bulkClearLabel(clearErrored, clearSucceeded)
			return ctx.withStore(func(client *ipc.Client, store *queue.SQLiteStore) error {
				out := cmd.OutOrStdout()
				if client != nil {
					resp, err := client.QueueClear(statuses)
					if err != nil {
						return err
					}
					fmt.Fprintf(out, "Cleared %d %s\n", resp.Removed, label)
					return nil
				}
				parsed := make([]queue.Status, 0, len(statuses))
				for _, value := range statuses {
					if status, ok := queue.ParseStatus(value); ok {
						parsed = append(parsed, status)
					}
				}
				removed, err := store.ClearStatuses(cmd.Context(), parsed...)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %d %s\n", removed, label)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&clearErrored, "errored", false, "Remove only errored entries")
	cmd.Flags().BoolVar(&clearSucceeded, "succeeded", false, "Remove only succeeded entries")
	return cmd
}
