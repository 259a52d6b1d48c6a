package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/mj1618/tab-bridge/internal/server"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch new|close|changes",
	Short: "Stream window events",
	Long: `Print window events as JSON lines until interrupted.

  new      windows opened (subscription)
  close    windows closed (subscription)
  changes  windows added, removed, or retitled, found by polling
           get_windows every --interval

Examples:
  tab-bridge watch new
  tab-bridge watch close --socket /tmp/tab-bridge.sock
  tab-bridge watch changes --interval 2s`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"new", "close", "changes"},
	RunE:      runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().Duration("interval", time.Second, "Polling interval for changes")
}

func runWatch(cmd *cobra.Command, args []string) error {
	var subscription string
	switch args[0] {
	case "new":
		subscription = server.SubNewWindow
	case "close":
		subscription = server.SubCloseWindow
	case "changes":
	default:
		return fmt.Errorf("unknown event %q (use new, close, or changes)", args[0])
	}

	ctx := cmd.Context()
	client, err := connectBridge(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	if subscription == "" {
		interval, _ := cmd.Flags().GetDuration("interval")
		if interval <= 0 {
			return fmt.Errorf("--interval must be positive")
		}
		return pollChanges(ctx, client, interval)
	}

	sub, err := client.Subscribe(ctx, subscription)
	if err != nil {
		return err
	}
	for raw := range sub.Updates() {
		change := model.WindowChange{TS: time.Now().Unix()}
		if subscription == server.SubNewWindow {
			var w model.Window
			if err := sub.Decode(raw, &w); err != nil {
				logger.Warn("undecodable update", "error", err)
				continue
			}
			change.Type = model.ChangeAdded
			change.ID = w.ID
			change.Window = &w
		} else {
			var ref model.WindowRef
			if err := sub.Decode(raw, &ref); err != nil {
				logger.Warn("undecodable update", "error", err)
				continue
			}
			change.Type = model.ChangeRemoved
			change.ID = ref.ID
		}
		if err := output.PrintEvent(change); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return sub.Err()
}

// pollChanges prints the differences between successive window listings.
// The first listing is the baseline and prints nothing.
func pollChanges(ctx context.Context, client *peer.Client, interval time.Duration) error {
	var prev []model.Window
	primed := false
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		callCtx, cancel := callContext(ctx)
		curr, err := client.Windows(callCtx)
		cancel()
		switch {
		case ctx.Err() != nil:
			return nil
		case err != nil:
			logger.Warn("listing windows failed", "error", err)
		case !primed:
			prev, primed = curr, true
		default:
			for _, change := range model.DiffWindows(prev, curr) {
				if err := output.PrintEvent(change); err != nil {
					return err
				}
			}
			prev = curr
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}
