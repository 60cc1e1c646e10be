package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/hearthview/tabletop/internal/bridge"
	"github.com/hearthview/tabletop/internal/compile"
	"github.com/hearthview/tabletop/internal/fact"
	"github.com/hearthview/tabletop/internal/gateway"
	"github.com/hearthview/tabletop/internal/store"
)

// shutdownWait bounds the graceful HTTP shutdown.
const shutdownWait = 5 * time.Second

// HostOptions holds flags for the host command.
type HostOptions struct {
	*RootOptions
	Database string
	Listen   string
	Release  string
}

// NewHostCommand creates the host command.
func NewHostCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HostOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "host",
		Short: "Host a shared board",
		Long: `Host a shared board over websocket.

The host opens the SQLite database (creating and seeding it if needed),
loads the newest stored board into a fresh store, and serves websocket
guests at /ws. Each guest receives a bootstrap image of the whole board
followed by every live transaction. Board changes are written back to
the database on a debounce.

Flags fall back to TABLETOP_DB, TABLETOP_LISTEN and TABLETOP_RELEASE.

Example:
  tabletop host --db ./board.db
  tabletop host --db ./board.db --listen :9000 --release 0.2.0`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHost(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database")
	cmd.Flags().StringVar(&opts.Listen, "listen", "", "listen address (default :8723)")
	cmd.Flags().StringVar(&opts.Release, "release", "", "release record to load and save under")

	return cmd
}

func hostGenesis() []fact.Edit {
	return compile.Genesis("host")
}

func runHost(opts *HostOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	envCfg, err := LoadEnv()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read environment", err)
	}
	dbPath, err := resolveDB(opts.Database, envCfg)
	if err != nil {
		return err
	}
	listen := opts.Listen
	if listen == "" {
		listen = envCfg.Listen
	}
	release := opts.Release
	if release == "" {
		release = envCfg.Release
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// Open database (create and seed if not exists)
	slog.Info("opening database", "path", dbPath)
	gwOpts := []gateway.Option{gateway.WithSeed(hostGenesis)}
	if release != "" {
		gwOpts = append(gwOpts, gateway.WithRelease(release))
	}
	gw, err := gateway.Open(dbPath, gwOpts...)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := gw.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	st := store.New(fact.DefaultSchema(), fact.UUIDv7Generator{})
	if err := gw.Load(ctx, st); err != nil {
		return WrapExitError(ExitCommandError, "failed to load board", err)
	}
	gw.Subscribe(st)

	srv := newGuestServer(st)
	defer srv.closeAll()

	mux := http.NewServeMux()
	mux.Handle("/ws", srv)

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	httpSrv := &http.Server{Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if serveErr := httpSrv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- serveErr
			return
		}
		errCh <- nil
	}()

	slog.Info("hosting board", "addr", ln.Addr().String(), "db", dbPath)
	fmt.Fprintf(cmd.OutOrStdout(), "Hosting board on ws://%s/ws\n", ln.Addr())
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case serveErr := <-errCh:
		if serveErr != nil {
			return WrapExitError(ExitFailure, "server error", serveErr)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownWait)
	defer cancelShutdown()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("server shutdown", "error", err)
	}
	srv.closeAll()

	if err := gw.SaveNow(); err != nil {
		slog.Error("final save failed", "error", err)
	}

	slog.Info("host stopped gracefully")
	return nil
}

// configureLogging sets the process-wide logger based on the verbose flag.
func configureLogging(verbose bool) {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// guestServer upgrades websocket connections and bridges each one to the
// host store. Dead bridges are swept whenever a new guest arrives.
type guestServer struct {
	st       *store.Store
	upgrader websocket.Upgrader

	mu      sync.Mutex
	bridges map[*bridge.Bridge]struct{}
}

func newGuestServer(st *store.Store) *guestServer {
	return &guestServer{
		st: st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		bridges: make(map[*bridge.Bridge]struct{}),
	}
}

func (s *guestServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		slog.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	ch := bridge.NewWSChannel(conn)
	br := bridge.New(s.st, func(ctx context.Context) (bridge.Guest, error) {
		return ch, nil
	})
	if err := br.Share(r.Context()); err != nil {
		slog.Error("bridge failed", "remote", r.RemoteAddr, "error", err)
		_ = ch.Close()
		return
	}

	s.track(br)
	slog.Info("guest joined", "remote", r.RemoteAddr)
}

func (s *guestServer) track(br *bridge.Bridge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for old := range s.bridges {
		if old.State() == bridge.StateIdle {
			delete(s.bridges, old)
		}
	}
	s.bridges[br] = struct{}{}
}

func (s *guestServer) closeAll() {
	s.mu.Lock()
	bridges := make([]*bridge.Bridge, 0, len(s.bridges))
	for br := range s.bridges {
		bridges = append(bridges, br)
	}
	s.bridges = make(map[*bridge.Bridge]struct{})
	s.mu.Unlock()

	for _, br := range bridges {
		br.Close()
	}
}
