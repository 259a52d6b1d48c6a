package cmd

import (
	"fmt"
	"time"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:       "list windows|tabs",
	Short:     "List windows or tabs",
	Long:      "List the host's windows, or its tabs with their window, title, URL and active state.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"windows", "tabs"},
	RunE:      runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().Int("window-id", 0, "Only tabs of this window")
	listCmd.Flags().String("text", "", "Filter by title (windows) or title and URL (tabs) substring")
	listCmd.Flags().Bool("active", false, "Only the active tab of each window")
}

func runList(cmd *cobra.Command, args []string) error {
	kind := args[0]
	if kind != "windows" && kind != "tabs" {
		return fmt.Errorf("unknown list target %q (use windows or tabs)", kind)
	}
	windowID, _ := cmd.Flags().GetInt("window-id")
	text, _ := cmd.Flags().GetString("text")
	active, _ := cmd.Flags().GetBool("active")

	client, err := connectBridge(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	if kind == "windows" {
		windows, err := client.Windows(ctx)
		if err != nil {
			return err
		}
		return output.Print(output.WindowsResult{
			Host:    hostLabel(),
			TS:      time.Now().Unix(),
			Windows: model.FilterWindowsByTitle(windows, text),
		})
	}

	tabs, err := client.Tabs(ctx)
	if err != nil {
		return err
	}
	tabs = model.FilterTabs(tabs, model.TabFilter{WindowID: windowID, Text: text, ActiveOnly: active})
	if tabs == nil {
		tabs = []model.Tab{}
	}
	return output.Print(output.TabsResult{
		Host: hostLabel(),
		TS:   time.Now().Unix(),
		Tabs: tabs,
	})
}

// hostLabel names the host for output. A dialed bridge may run any host.
func hostLabel() string {
	if cfg.Socket != "" {
		return ""
	}
	return cfg.Host
}
