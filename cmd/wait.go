package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/spf13/cobra"
)

// WaitResult is the output of a wait command.
type WaitResult struct {
	OK       bool   `yaml:"ok"                  json:"ok"`
	Action   string `yaml:"action"              json:"action"`
	Elapsed  string `yaml:"elapsed"             json:"elapsed"`
	Match    string `yaml:"match,omitempty"     json:"match,omitempty"`
	WindowID int    `yaml:"window_id,omitempty" json:"windowId,omitempty"`
	TabID    int    `yaml:"tab_id,omitempty"    json:"tabId,omitempty"`
	TimedOut bool   `yaml:"timed_out,omitempty" json:"timedOut,omitempty"`
}

var waitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for a window or tab to appear or go away",
	Long: `Poll the bridge until a window title or a tab title/URL matches, or with
--gone until nothing matches, or --max-wait elapses.

Examples:
  tab-bridge wait --for-window "Pull requests"
  tab-bridge wait --for-tab mail.google.com --gone --max-wait 2m`,
	RunE: runWait,
}

func init() {
	rootCmd.AddCommand(waitCmd)
	waitCmd.Flags().String("for-window", "", "Wait for a window whose title contains this text")
	waitCmd.Flags().String("for-tab", "", "Wait for a tab whose title or URL contains this text")
	waitCmd.Flags().Bool("gone", false, "Invert: wait until the condition is NO LONGER true")
	waitCmd.Flags().Duration("max-wait", 30*time.Second, "Give up after this long")
	waitCmd.Flags().Duration("interval", 500*time.Millisecond, "Polling interval")
}

// waitCondition is what a wait polls for.
type waitCondition struct {
	window string
	tab    string
	gone   bool
}

func runWait(cmd *cobra.Command, args []string) error {
	var cond waitCondition
	cond.window, _ = cmd.Flags().GetString("for-window")
	cond.tab, _ = cmd.Flags().GetString("for-tab")
	cond.gone, _ = cmd.Flags().GetBool("gone")
	maxWait, _ := cmd.Flags().GetDuration("max-wait")
	interval, _ := cmd.Flags().GetDuration("interval")

	if cond.window == "" && cond.tab == "" {
		return fmt.Errorf("specify at least one condition: --for-window or --for-tab")
	}
	if interval <= 0 {
		return fmt.Errorf("--interval must be positive")
	}

	ctx := cmd.Context()
	client, err := connectBridge(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	deadline := time.Now().Add(maxWait)
	start := time.Now()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		result, met, err := checkWait(ctx, client, cond)
		if err != nil && time.Now().After(deadline) {
			return fmt.Errorf("timeout after %s (last error: %w)", maxWait, err)
		}
		if err == nil && met {
			result.OK = true
			result.Action = "wait"
			result.Elapsed = fmt.Sprintf("%.1fs", time.Since(start).Seconds())
			result.Match = cond.describe()
			return output.Print(result)
		}

		if time.Now().After(deadline) {
			// Print the result, then return an error for non-zero exit code
			_ = output.Print(WaitResult{
				Action:   "wait",
				Elapsed:  fmt.Sprintf("%.1fs", time.Since(start).Seconds()),
				Match:    cond.describe(),
				TimedOut: true,
			})
			return fmt.Errorf("timed out waiting for condition: %s", cond.describe())
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// checkWait polls once and reports whether the condition holds.
func checkWait(ctx context.Context, client *peer.Client, cond waitCondition) (WaitResult, bool, error) {
	callCtx, cancel := callContext(ctx)
	defer cancel()

	var windows []model.Window
	var tabs []model.Tab
	var err error
	if cond.window != "" {
		if windows, err = client.Windows(callCtx); err != nil {
			return WaitResult{}, false, err
		}
	}
	if cond.tab != "" {
		if tabs, err = client.Tabs(callCtx); err != nil {
			return WaitResult{}, false, err
		}
	}
	result, matched := matchWait(windows, tabs, cond)
	if cond.gone {
		return WaitResult{}, !matched, nil
	}
	return result, matched, nil
}

// matchWait reports the first window and tab satisfying cond. When both
// are given, both must match (AND logic).
func matchWait(windows []model.Window, tabs []model.Tab, cond waitCondition) (WaitResult, bool) {
	var result WaitResult
	if cond.window != "" {
		matches := model.FilterWindowsByTitle(windows, cond.window)
		if len(matches) == 0 {
			return WaitResult{}, false
		}
		result.WindowID = matches[0].ID
	}
	if cond.tab != "" {
		matches := model.FilterTabs(tabs, model.TabFilter{Text: cond.tab})
		if len(matches) == 0 {
			return WaitResult{}, false
		}
		result.TabID = matches[0].ID
		if result.WindowID == 0 {
			result.WindowID = matches[0].WindowID
		}
	}
	return result, true
}

// describe returns a human-readable description of what was waited for.
func (c waitCondition) describe() string {
	var parts []string
	if c.window != "" {
		parts = append(parts, fmt.Sprintf("window=%q", c.window))
	}
	if c.tab != "" {
		parts = append(parts, fmt.Sprintf("tab=%q", c.tab))
	}
	desc := strings.Join(parts, " ")
	if c.gone {
		desc += " (gone)"
	}
	return desc
}
