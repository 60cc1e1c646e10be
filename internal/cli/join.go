package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/hearthview/tabletop/internal/bridge"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/store"
)

// JoinOptions holds flags for the join command.
type JoinOptions struct {
	*RootOptions
}

// NewJoinCommand creates the join command.
func NewJoinCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JoinOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "join <url>",
		Short: "Mirror a hosted board",
		Long: `Join a hosted board as a read-only mirror.

Dials the host's websocket endpoint and applies every envelope it
sends: the bootstrap replaces the whole local board, each transaction
re-applies the host's change list. Commits are logged as they land.

Example:
  tabletop join ws://127.0.0.1:8723/ws
  tabletop join ws://game.example.net:8723/ws --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJoin(opts, args[0], cmd)
		},
	}

	return cmd
}

func runJoin(opts *JoinOptions, url string, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, leaving", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	slog.Info("dialing host", "url", url)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to dial host", err)
	}

	st := store.New(fact.DefaultSchema(), fact.UUIDv7Generator{})
	unsub := st.OnCommit(func(report store.TxReport) {
		slog.Info("board updated", "version", report.Version, "changes", len(report.Changes))
	})
	defer unsub()

	fmt.Fprintf(cmd.OutOrStdout(), "Mirroring board from %s\n", url)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to leave.")

	err = bridge.Listen(ctx, bridge.NewWSChannel(conn), st)
	if err != nil && !errors.Is(err, context.Canceled) {
		return WrapExitError(ExitFailure, "session error", err)
	}

	slog.Info("session ended")
	return nil
}
