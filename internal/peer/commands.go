package peer

import (
	"context"
	"slices"

	"github.com/agnivade/levenshtein"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/server"
)

// KnownCommands lists every command and subscription the bridge serves.
var KnownCommands = []string{
	server.CmdFocusTab,
	server.CmdGetFocusedWindow,
	server.CmdGetTabs,
	server.CmdGetWindows,
	server.CmdIdentifyWindow,
	server.SubCloseWindow,
	server.SubNewWindow,
}

// maxSuggestDistance bounds the edit distance of a suggested command.
const maxSuggestDistance = 3

// SuggestCommand returns the known command closest to name when name is
// not itself known and looks like a typo of one.
func SuggestCommand(name string, known []string) (string, bool) {
	if slices.Contains(known, name) {
		return "", false
	}
	best, bestDist := "", maxSuggestDistance+1
	for _, candidate := range known {
		if d := levenshtein.ComputeDistance(name, candidate); d < bestDist {
			best, bestDist = candidate, d
		}
	}
	return best, best != ""
}

// Windows lists all windows.
func (c *Client) Windows(ctx context.Context) ([]model.Window, error) {
	var windows []model.Window
	if err := c.Call(ctx, server.CmdGetWindows, nil, &windows); err != nil {
		return nil, err
	}
	return windows, nil
}

// Tabs lists all tabs.
func (c *Client) Tabs(ctx context.Context) ([]model.Tab, error) {
	var tabs []model.Tab
	if err := c.Call(ctx, server.CmdGetTabs, nil, &tabs); err != nil {
		return nil, err
	}
	return tabs, nil
}

// FocusedWindow returns the focused window.
func (c *Client) FocusedWindow(ctx context.Context) (model.Window, error) {
	var w model.Window
	err := c.Call(ctx, server.CmdGetFocusedWindow, nil, &w)
	return w, err
}

// FocusTab focuses the tab's window and activates the tab.
func (c *Client) FocusTab(ctx context.Context, tab model.Tab) error {
	args := server.FocusTabArgs{Tab: &server.TabRef{ID: tab.ID, WindowID: tab.WindowID}}
	var result server.OKResult
	return c.Call(ctx, server.CmdFocusTab, args, &result)
}

// IdentifyWindow turns a window's identifier on or off. The identifier is
// nil when turning off or when a concurrent request won.
func (c *Client) IdentifyWindow(ctx context.Context, windowID int, on bool) (*string, error) {
	args := server.IdentifyWindowArgs{WindowID: &windowID, On: &on}
	var result server.IdentifyResult
	if err := c.Call(ctx, server.CmdIdentifyWindow, args, &result); err != nil {
		return nil, err
	}
	return result.Identifier, nil
}
