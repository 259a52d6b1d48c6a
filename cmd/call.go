package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/mj1618/tab-bridge/internal/output"
	"github.com/mj1618/tab-bridge/internal/peer"
	"github.com/spf13/cobra"
	"github.com/tidwall/jsonc"
)

var callCmd = &cobra.Command{
	Use:   "call COMMAND",
	Short: "Send one command to the bridge and print its results",
	Long: `Send a raw command with optional arguments. Arguments are JSON with
comments and trailing commas allowed (JSONC).

A command the bridge does not know is never answered, so the call waits
for --timeout and fails.

Examples:
  tab-bridge call get_windows
  tab-bridge call identify_window --args '{"windowId": 3, "on": true,}'
  tab-bridge call focus_tab --args-file tab.jsonc`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	rootCmd.AddCommand(callCmd)
	callCmd.Flags().String("args", "", "Command arguments as JSON or JSONC")
	callCmd.Flags().String("args-file", "", "Read command arguments from a JSON or JSONC file")
}

func runCall(cmd *cobra.Command, args []string) error {
	command := args[0]
	rawArgs, _ := cmd.Flags().GetString("args")
	argsFile, _ := cmd.Flags().GetString("args-file")
	if rawArgs != "" && argsFile != "" {
		return errors.New("--args and --args-file are mutually exclusive")
	}
	if argsFile != "" {
		data, err := os.ReadFile(argsFile)
		if err != nil {
			return fmt.Errorf("read args file: %w", err)
		}
		rawArgs = string(data)
	}

	commandArgs, err := parseArgs(rawArgs)
	if err != nil {
		return err
	}

	if suggestion, ok := peer.SuggestCommand(command, peer.KnownCommands); ok {
		logger.Warn("unknown command; the bridge will not reply", "command", command, "did_you_mean", suggestion)
	}

	client, err := connectBridge(cmd.Context())
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := callContext(cmd.Context())
	defer cancel()

	var results any
	if err := client.Call(ctx, command, commandArgs, &results); err != nil {
		return err
	}
	return output.Print(results)
}

// parseArgs decodes JSONC command arguments. Empty input means no
// arguments.
func parseArgs(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(jsonc.ToJSON([]byte(raw)), &v); err != nil {
		return nil, fmt.Errorf("parse args: %w", err)
	}
	return integers(v), nil
}

// integers turns whole JSON numbers into int64 so binary codecs encode
// them as integers.
func integers(v any) any {
	switch v := v.(type) {
	case float64:
		if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
			return int64(v)
		}
		return v
	case map[string]any:
		for k, e := range v {
			v[k] = integers(e)
		}
		return v
	case []any:
		for i, e := range v {
			v[i] = integers(e)
		}
		return v
	}
	return v
}
