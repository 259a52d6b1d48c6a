package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/mj1618/tab-bridge/internal/config"
	"github.com/mj1618/tab-bridge/internal/platform"
	_ "github.com/mj1618/tab-bridge/internal/platform/memory"
	_ "github.com/mj1618/tab-bridge/internal/platform/tmux"
	"github.com/mj1618/tab-bridge/internal/protocol"
	"github.com/mj1618/tab-bridge/internal/server"
	"github.com/mj1618/tab-bridge/internal/telemetry"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Run the bridge over a message channel. Each message is a 4-byte
native-endian length followed by a JSON or CBOR payload.

Channels:
  --stdio          One channel over standard input and output (default).
                   Logs go to stderr.
  --listen PATH    Accept connections on a unix socket; every connection is
                   its own channel. All channels share one identification
                   cache.

Examples:
  tab-bridge serve
  tab-bridge serve --host memory --fixture windows.yaml
  tab-bridge serve --listen /tmp/tab-bridge.sock --codec cbor`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("stdio", false, "Serve one channel over standard input and output (default)")
	serveCmd.Flags().String("listen", "", "Serve every connection on this unix socket")
	serveCmd.Flags().String("fixture", "", "YAML fixture of windows and tabs (memory host)")
}

// bridge is a running bridge: a host provider, the identification cache
// shared by every channel, and the dispatcher serving both.
type bridge struct {
	provider   *platform.Provider
	cache      *server.IdentifyCache
	dispatcher *server.Dispatcher
	telemetry  *telemetry.Telemetry
	logger     *slog.Logger
}

// newBridge builds a bridge for c. The cache forgets closed windows until
// ctx is done.
func newBridge(ctx context.Context, c config.Config, logger *slog.Logger) (*bridge, error) {
	tel, err := telemetry.Init(ctx, telemetry.Config{Endpoint: c.OTEL.Endpoint, Headers: c.OTEL.Headers})
	if err != nil {
		return nil, err
	}

	provider, err := platform.NewProvider(c.Host, platform.Options{
		PollInterval: c.Tmux.PollInterval,
		Fixture:      c.Fixture,
		Logger:       logger.With("host", c.Host),
	})
	if err != nil {
		tel.Shutdown(ctx)
		return nil, err
	}

	cache := server.NewIdentifyCache(provider, logger, tel.Metrics)
	if provider.Events != nil {
		if err := cache.Watch(ctx, provider.Events); err != nil {
			logger.Warn("closed windows will stay identified", "error", err)
		}
	}

	reg := server.NewRegistry()
	server.RegisterBridge(reg, provider, cache)

	return &bridge{
		provider:   provider,
		cache:      cache,
		dispatcher: server.NewDispatcher(reg, server.WithLogger(logger), server.WithTelemetry(tel)),
		telemetry:  tel,
		logger:     logger,
	}, nil
}

// Close stops the host and flushes telemetry.
func (b *bridge) Close() {
	if err := b.provider.Shutdown(); err != nil {
		b.logger.Warn("host shutdown failed", "error", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	b.telemetry.Shutdown(ctx)
}

func runServe(cmd *cobra.Command, args []string) error {
	stdio, _ := cmd.Flags().GetBool("stdio")
	listen, _ := cmd.Flags().GetString("listen")
	if stdio && listen != "" {
		return errors.New("--stdio and --listen are mutually exclusive")
	}

	codec, err := protocol.CodecByName(cfg.Codec)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	b, err := newBridge(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}
	defer b.Close()

	logger.Info("bridge started", "host", b.provider.Name, "codec", codec.Name(),
		"commands", b.dispatcher.Registry().Commands(),
		"subscriptions", b.dispatcher.Registry().Subscriptions())

	if listen != "" {
		return serveSocket(ctx, b, listen, codec)
	}
	if err := b.dispatcher.Serve(ctx, protocol.NewConn(os.Stdin, os.Stdout, codec)); err != nil {
		return fmt.Errorf("channel failed: %w", err)
	}
	return nil
}

// serveSocket listens on path, replacing a stale socket left by a previous
// run.
func serveSocket(ctx context.Context, b *bridge, path string, codec protocol.Codec) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", path, err)
	}
	defer os.Remove(path)
	return b.dispatcher.ServeListener(ctx, listener, codec)
}
