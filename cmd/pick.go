package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/mj1618/tab-bridge/internal/picker"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// PickResult is the output of pick.
type PickResult struct {
	TabID      int    `yaml:"tab_id"               json:"tabId"`
	WindowID   int    `yaml:"window_id"            json:"windowId"`
	Title      string `yaml:"title"                json:"title"`
	URL        string `yaml:"url,omitempty"        json:"url,omitempty"`
	Identifier string `yaml:"identifier,omitempty" json:"identifier,omitempty"`
}

var pickCmd = &cobra.Command{
	Use:   "pick [QUERY]",
	Short: "Fuzzy-pick a tab and focus it",
	Long: `Choose a tab by fuzzy search over titles and URLs, then focus it.

On a terminal an interactive picker opens, seeded with QUERY. Otherwise the
best match for QUERY is taken.

With --exec, the chosen window's title is prefixed with a unique
identifier while the command runs, so window-manager tools can find the
window by title. {identifier} and {window} in the command are replaced
with the identifier and the window id.

Examples:
  tab-bridge pick
  tab-bridge pick inbox
  tab-bridge pick docs --exec 'wmctrl -a {identifier}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPick,
}

func init() {
	rootCmd.AddCommand(pickCmd)
	pickCmd.Flags().String("exec", "", "Shell command to run with the window identified")
}

func runPick(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	execTemplate, _ := cmd.Flags().GetString("exec")

	ctx := cmd.Context()
	client, err := connectBridge(ctx)
	if err != nil {
		return err
	}
	defer client.Close()

	listCtx, cancel := callContext(ctx)
	tabs, err := client.Tabs(listCtx)
	cancel()
	if err != nil {
		return err
	}

	tab, err := chooseTab(ctx, tabs, query)
	if err != nil {
		return err
	}

	callCtx, cancel := callContext(ctx)
	defer cancel()
	if err := client.FocusTab(callCtx, tab); err != nil {
		return err
	}

	result := PickResult{TabID: tab.ID, WindowID: tab.WindowID, Title: tab.Title, URL: tab.URL}
	if execTemplate != "" {
		identifier, err := runIdentified(ctx, client, tab.WindowID, execTemplate)
		if err != nil {
			return err
		}
		result.Identifier = identifier
	}
	return output.Print(result)
}

// chooseTab opens the interactive picker on a terminal and otherwise takes
// the best match.
func chooseTab(ctx context.Context, tabs []model.Tab, query string) (model.Tab, error) {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return picker.Run(ctx, tabs, picker.Options{Query: query, Output: os.Stderr})
	}
	matches := picker.Rank(tabs, query)
	if len(matches) == 0 {
		return model.Tab{}, fmt.Errorf("no tab matches %q", query)
	}
	return matches[0].Tab, nil
}

// runIdentified identifies the window, runs the command, and restores the
// title whether or not the command succeeded.
func runIdentified(ctx context.Context, client *peer.Client, windowID int, template string) (string, error) {
	callCtx, cancel := callContext(ctx)
	identifier, err := client.IdentifyWindow(callCtx, windowID, true)
	cancel()
	if err != nil {
		return "", err
	}
	if identifier == nil {
		return "", errors.New("window is being identified by another request")
	}
	defer func() {
		restoreCtx, cancel := callContext(context.WithoutCancel(ctx))
		defer cancel()
		if _, err := client.IdentifyWindow(restoreCtx, windowID, false); err != nil {
			logger.Warn("could not restore window title", "window_id", windowID, "error", err)
		}
	}()

	line := expandExec(template, *identifier, windowID)
	logger.Debug("running", "command", line)
	c := exec.CommandContext(ctx, "sh", "-c", line)
	c.Stdout = os.Stderr
	c.Stderr = os.Stderr
	if err := c.Run(); err != nil {
		return *identifier, fmt.Errorf("exec %q: %w", line, err)
	}
	return *identifier, nil
}

// expandExec substitutes {identifier} and {window} in template.
func expandExec(template, identifier string, windowID int) string {
	return strings.NewReplacer(
		"{identifier}", identifier,
		"{window}", strconv.Itoa(windowID),
	).Replace(template)
}
