package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/NgigiN/finsync/internal/apperr"
	"github.com/NgigiN/finsync/internal/offline"
)

func (b *Bot) handleCommand(ctx context.Context, args []string) string {
	switch strings.ToLower(args[0]) {
	case "!sync":
		report, err := b.deps.Syncer.Drain(ctx)
		if err != nil {
			return fmt.Sprintf("Sync failed: %s", apperr.UserMessage(err))
		}
		return formatReport(report)
	case "!retry":
		report, err := b.deps.Monitor.Retry(ctx)
		if err != nil {
			return fmt.Sprintf("Retry failed: %s", apperr.UserMessage(err))
		}
		return formatReport(report)
	case "!status":
		return b.handleStatus(ctx)
	case "!history":
		return b.handleHistory(ctx, args[1:])
	case "!prune":
		n, err := b.deps.Store.PruneSynced(ctx)
		if err != nil {
			return fmt.Sprintf("Failed to prune: %s", apperr.UserMessage(err))
		}
		return fmt.Sprintf("Removed %d synced transactions", n)
	case "!help":
		return usage + "\nCommands: !sync, !retry, !status, !history [n], !prune"
	default:
		return fmt.Sprintf("Unknown command %s. Try !help", args[0])
	}
}

func formatReport(r offline.Report) string {
	switch {
	case r.Offline:
		return "Offline: the backend is not reachable, nothing was synced"
	case r.Coalesced:
		return "A sync is already running"
	case r.Attempted == 0 && r.Skipped == 0:
		return "Nothing to sync"
	}

	msg := fmt.Sprintf("Synced %d of %d transactions", r.Synced, r.Attempted)
	if r.Failed > 0 {
		msg += fmt.Sprintf(", %d failed and stay queued", r.Failed)
	}
	if r.Skipped > 0 {
		msg += fmt.Sprintf(", %d stalled skipped", r.Skipped)
	}
	if r.Unauthorized {
		msg += ". The backend rejected the credentials, sync stopped"
	}
	return msg
}

func (b *Bot) handleStatus(ctx context.Context) string {
	st, err := b.deps.Store.Status(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to get status: %s", apperr.UserMessage(err))
	}
	conn := b.deps.Monitor.State()

	return fmt.Sprintf("**Queue**: %d pending (%d stalled), %d synced\n**Network**: %s\n**Backend**: %s",
		st.Pending, st.Stalled, st.Synced, upDown(conn.Network), upDown(conn.Backend))
}

func upDown(ok bool) string {
	if ok {
		return "reachable"
	}
	return "unreachable"
}

func (b *Bot) handleHistory(ctx context.Context, args []string) string {
	limit := historyLimit
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return "Usage: !history [n]"
		}
		limit = n
	}

	rows, err := b.deps.Store.ListAll(ctx, b.deps.Owner)
	if err != nil {
		return fmt.Sprintf("Failed to get transactions: %s", apperr.UserMessage(err))
	}
	if len(rows) == 0 {
		return "No transactions found."
	}

	start := 0
	if len(rows) > limit {
		start = len(rows) - limit
	}

	var sb strings.Builder
	sb.WriteString("**Recent transactions**\n")
	for _, row := range rows[start:] {
		state := "pending"
		switch {
		case row.Synced:
			state = "synced"
		case row.Stalled:
			state = "stalled: " + row.LastError
		}
		fmt.Fprintf(&sb, "- %s %s %s %s (%s)\n", row.Date, row.Type, row.Value.StringFixed(2), row.Description, state)
	}
	if start > 0 {
		fmt.Fprintf(&sb, "... and %d older", start)
	}
	return strings.TrimRight(sb.String(), "\n")
}
