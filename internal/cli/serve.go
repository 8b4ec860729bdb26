package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/NgigiN/finsync/internal/app"
	"github.com/NgigiN/finsync/internal/discord"
	"github.com/NgigiN/finsync/internal/server"
)

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Addr  string
	NoBot bool
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the sync loop, the control API and the chat bot",
		Long: `Run finsync in the foreground.

The connectivity probe runs every PROBE_INTERVAL and replays the offline
queue whenever the backend is reachable. The control API listens on
HTTP_ADDR, and the Discord bot starts when DISCORD_BOT_TOKEN is set.

Examples:
  finsync serve
  finsync serve --addr 127.0.0.1:9090 --no-bot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "control API listen address (overrides HTTP_ADDR)")
	cmd.Flags().BoolVar(&opts.NoBot, "no-bot", false, "do not start the Discord bot")

	return cmd
}

func runServe(ctx context.Context, opts *ServeOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	return opts.withApp(func(a *app.App) error {
		cfg := a.Config()
		if opts.Addr != "" {
			cfg.HTTPAddr = opts.Addr
		}

		if err := a.Start(); err != nil {
			return WrapExitError(ExitCommandError, "failed to start the scheduler", err)
		}

		srv := server.New(cfg.HTTPAddr, server.Deps{
			Submitter:    a.Submitter(),
			Syncer:       a.Engine(),
			Monitor:      a.Monitor(),
			Store:        a.Store(),
			DefaultOwner: cfg.OwnerEmail,
		})
		if err := srv.Start(); err != nil {
			return WrapExitError(ExitCommandError, "failed to start the control API", err)
		}

		var bot *discord.Bot
		if cfg.BotEnabled() && !opts.NoBot {
			var err error
			bot, err = discord.NewBot(a.Context(), cfg.DiscordBotToken, cfg.DiscordChannelId, discord.Deps{
				Submitter: a.Submitter(),
				Syncer:    a.Engine(),
				Monitor:   a.Monitor(),
				Store:     a.Store(),
				Owner:     cfg.OwnerEmail,
			})
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to initialize the discord bot", err)
			}
			if err := bot.Start(); err != nil {
				return WrapExitError(ExitCommandError, "failed to start bot", err)
			}
		}

		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if bot != nil {
			if err := bot.Stop(); err != nil {
				slog.Error("failed to close discord session", "error", err)
			}
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("control api shutdown: %w", err)
		}
		return nil
	})
}
