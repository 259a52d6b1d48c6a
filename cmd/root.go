package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mj1618/tab-bridge/internal/config"
	"github.com/mj1618/tab-bridge/internal/logging"
	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/mj1618/tab-bridge/internal/version"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tab-bridge",
	Short: "Bridge browser windows and tabs to local tools",
	Long: `tab-bridge exposes the windows and tabs of a host (tmux, or an in-memory
fixture) over a length-prefixed message channel. Clients send commands and
subscriptions correlated by request id; the bridge answers with results and
pushes updates.

Run "tab-bridge serve" as the bridge, or use the peer commands (list, focus,
identify, watch, pick, call), which spawn a bridge or dial --socket.`,
	SilenceUsage: true,
}

// Settings resolved by the root command before any subcommand runs.
var (
	cfg        config.Config
	logger     = logging.Discard()
	configFile string
)

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", version.Version, version.Commit, version.BuildDate)
	pf := rootCmd.PersistentFlags()
	pf.String("format", "yaml", "Output format: yaml, json")
	pf.Bool("pretty", false, "Pretty-print JSON output")
	pf.StringVar(&configFile, "config", "", "Config file (default .tab-bridge.yaml, then ~/.config/tab-bridge/config.yaml)")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("socket", "", "Unix socket of a running bridge (default: spawn one)")
	pf.String("host", "tmux", "Window host: tmux, memory")
	pf.String("codec", "json", "Payload codec: json, cbor")
	pf.Duration("timeout", 10*time.Second, "Time to wait for each command's reply")
	rootCmd.PersistentPreRunE = setup
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}
	cfg = c

	// Use the root persistent flag directly to avoid conflicts with
	// subcommand local flags.
	format, _ := rootCmd.PersistentFlags().GetString("format")
	f, err := output.ParseFormat(format)
	if err != nil {
		return err
	}
	output.OutputFormat = f
	output.PrettyOutput, _ = rootCmd.PersistentFlags().GetBool("pretty")

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	// Stdout may carry the channel or command output; logs go to stderr.
	logger = logging.New(level, os.Stderr)
	slog.SetDefault(logger)
	return nil
}
