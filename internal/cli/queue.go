package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/NgigiN/finsync/internal/app"
	"github.com/NgigiN/finsync/internal/offline"
	"github.com/NgigiN/finsync/internal/storage"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Probe the backend and replay the offline queue",
		Long: `Probe the backend and, when it answers, replay every queued transaction
oldest first. Transactions that fail stay queued.

Exit codes:
  0 - every attempted transaction synced
  1 - the backend is unreachable or some transactions failed
  2 - command error`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				report, err := a.Monitor().Retry(cmd.Context())
				if err != nil {
					return err
				}

				if err := render(cmd.OutOrStdout(), opts.Format, report, func(w io.Writer) {
					printReport(w, report)
				}); err != nil {
					return err
				}

				switch {
				case report.Offline:
					return NewExitError(ExitFailure, "backend unreachable")
				case report.Unauthorized:
					return NewExitError(ExitFailure, "backend rejected the credentials")
				case report.Failed > 0:
					return NewExitError(ExitFailure, fmt.Sprintf("%d transactions failed to sync", report.Failed))
				}
				return nil
			})
		},
	}
}

func printReport(w io.Writer, r offline.Report) {
	switch {
	case r.Offline:
		fmt.Fprintln(w, "Backend unreachable, nothing was synced.")
	case r.Coalesced:
		fmt.Fprintln(w, "A sync is already running.")
	default:
		fmt.Fprintf(w, "Attempted: %d\nSynced:    %d\nFailed:    %d\nSkipped:   %d\n",
			r.Attempted, r.Synced, r.Failed, r.Skipped)
		if r.Unauthorized {
			fmt.Fprintln(w, "The backend rejected the credentials; the rest of the queue was left untouched.")
		}
	}
}

type statusOutput struct {
	Queue   storage.Status `json:"queue"`
	Backend bool           `json:"backend_reachable"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show queue counts and backend reachability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				st, err := a.Store().Status(cmd.Context())
				if err != nil {
					return err
				}
				out := statusOutput{Queue: st, Backend: a.Monitor().CheckBackend(cmd.Context())}

				return render(cmd.OutOrStdout(), opts.Format, out, func(w io.Writer) {
					fmt.Fprintf(w, "Total:   %d\nSynced:  %d\nPending: %d\nStalled: %d\nBackend: %s\n",
						st.Total, st.Synced, st.Pending, st.Stalled, reachability(out.Backend))
				})
			})
		},
	}
}

func reachability(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	Email   string
	Pending bool
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List locally stored transactions, oldest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				rows, err := a.Store().ListAll(cmd.Context(), opts.Email)
				if err != nil {
					return err
				}
				if opts.Pending {
					rows = unsyncedOnly(rows)
				}

				return render(cmd.OutOrStdout(), opts.Format, rows, func(w io.Writer) {
					printRows(w, rows)
				})
			})
		},
	}

	cmd.Flags().StringVar(&opts.Email, "email", "", "only transactions of this owner")
	cmd.Flags().BoolVar(&opts.Pending, "pending", false, "only transactions not yet synced")

	return cmd
}

func unsyncedOnly(rows []storage.PendingTransaction) []storage.PendingTransaction {
	out := rows[:0]
	for _, r := range rows {
		if !r.Synced {
			out = append(out, r)
		}
	}
	return out
}

func printRows(w io.Writer, rows []storage.PendingTransaction) {
	if len(rows) == 0 {
		fmt.Fprintln(w, "No transactions found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCAL ID\tDATE\tTYPE\tVALUE\tDESCRIPTION\tSTATE")
	for _, r := range rows {
		state := "pending"
		switch {
		case r.Synced:
			state = "synced"
		case r.Stalled:
			state = "stalled"
		case r.Attempts > 0:
			state = fmt.Sprintf("retrying (%d)", r.Attempts)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", r.LocalID, r.Date, r.Type, r.Value.StringFixed(2), r.Description, state)
	}
	tw.Flush()
}

// NewPruneCommand creates the prune command.
func NewPruneCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete transactions the backend already confirmed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				n, err := a.Prune(cmd.Context())
				if err != nil {
					return err
				}
				return render(cmd.OutOrStdout(), opts.Format, map[string]int64{"deleted": n}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %d synced transactions.\n", n)
				})
			})
		},
	}
}

// NewRequeueCommand creates the requeue command.
func NewRequeueCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <local-id>",
		Short: "Clear the stalled flag of a queued transaction",
		Long: `A transaction that the backend rejected, or that failed too many times,
is stalled and skipped by syncs. Requeue resets it so the next sync tries
it again.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(func(a *app.App) error {
				ok, err := a.Store().Requeue(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if !ok {
					return NewExitError(ExitCommandError, fmt.Sprintf("no queued transaction %s", args[0]))
				}
				return render(cmd.OutOrStdout(), opts.Format, map[string]string{"local_id": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Requeued %s.\n", args[0])
				})
			})
		},
	}
}
