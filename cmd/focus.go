package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/spf13/cobra"
)

// FocusResult is the output of a successful focus.
type FocusResult struct {
	OK       bool   `yaml:"ok"              json:"ok"`
	Action   string `yaml:"action"          json:"action"`
	TabID    int    `yaml:"tab_id"          json:"tabId"`
	WindowID int    `yaml:"window_id"       json:"windowId"`
	Title    string `yaml:"title,omitempty" json:"title,omitempty"`
}

var focusCmd = &cobra.Command{
	Use:   "focus TAB_ID",
	Short: "Focus a tab and its window",
	Long:  "Bring the tab's window to the front and make the tab active in it.",
	Args:  cobra.ExactArgs(1),
	RunE:  runFocus,
}

func init() {
	rootCmd.AddCommand(focusCmd)
}

func runFocus(cmd *cobra.Command, args []string) error {
	tabID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid tab id %q: %w", args[0], err)
	}

	client, err := connectBridge(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	tab, err := findTab(ctx, client, tabID)
	if err != nil {
		return err
	}
	if err := client.FocusTab(ctx, tab); err != nil {
		return err
	}
	return output.Print(FocusResult{
		OK:       true,
		Action:   "focus",
		TabID:    tab.ID,
		WindowID: tab.WindowID,
		Title:    tab.Title,
	})
}

// findTab looks a tab up by id, since focusing needs its window.
func findTab(ctx context.Context, client *peer.Client, tabID int) (model.Tab, error) {
	tabs, err := client.Tabs(ctx)
	if err != nil {
		return model.Tab{}, err
	}
	for _, t := range tabs {
		if t.ID == tabID {
			return t, nil
		}
	}
	return model.Tab{}, fmt.Errorf("no tab with id %d", tabID)
}
