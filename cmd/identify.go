package cmd

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/spf13/cobra"
)

// IdentifyResult is the output of identify.
type IdentifyResult struct {
	WindowID   int     `yaml:"window_id"  json:"windowId"`
	Identifier *string `yaml:"identifier" json:"identifier"`
}

var identifyCmd = &cobra.Command{
	Use:   "identify WINDOW_ID --on|--off",
	Short: "Prefix a window title with a unique identifier, or restore it",
	Long: `With --on, prefix the window's title with a random identifier that
other tools can search for, and print it. Repeating --on returns the same
identifier. With --off, restore the title the window had before.

Identifiers live in the bridge that set them. Use --socket with a
long-running bridge so a later --off can find them.`,
	Args: cobra.ExactArgs(1),
	RunE: runIdentify,
}

func init() {
	rootCmd.AddCommand(identifyCmd)
	identifyCmd.Flags().Bool("on", false, "Set the identifier")
	identifyCmd.Flags().Bool("off", false, "Clear the identifier and restore the title")
}

func runIdentify(cmd *cobra.Command, args []string) error {
	windowID, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid window id %q: %w", args[0], err)
	}
	on, _ := cmd.Flags().GetBool("on")
	off, _ := cmd.Flags().GetBool("off")
	if on == off {
		return errors.New("specify exactly one of --on or --off")
	}
	if on && cfg.Socket == "" {
		logger.Warn("no --socket: the identifier is forgotten when this command exits")
	}

	client, err := connectBridge(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	identifier, err := client.IdentifyWindow(ctx, windowID, on)
	if err != nil {
		return err
	}
	return output.Print(IdentifyResult{WindowID: windowID, Identifier: identifier})
}
