// Package tmux exposes tmux windows and panes as bridge windows and tabs.
package tmux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/platform"
)

// Window user options holding the bridge-owned preface, the name the
// window had before it was prefaced and its automatic-rename setting.
const (
	prefaceOption    = "@tab_bridge_preface"
	baseOption       = "@tab_bridge_base"
	autoRenameOption = "@tab_bridge_autorename"
)

const (
	windowFormat = "#{window_id}\t#{window_active}\t#{session_attached}\t#{automatic-rename}\t#{" + autoRenameOption + "}\t#{" + prefaceOption + "}\t#{" + baseOption + "}\t#{window_name}"
	paneFormat   = "#{pane_id}\t#{window_id}\t#{pane_active}\t#{pane_current_path}\t#{pane_title}"
)

// titleSeparator joins the active pane title and the window name in the
// reported window title.
const titleSeparator = " — "

// Runner executes one tmux invocation and returns its stdout.
type Runner func(ctx context.Context, args ...string) (string, error)

func init() {
	platform.Register("tmux", func(opts platform.Options) (*platform.Provider, error) {
		if _, err := exec.LookPath("tmux"); err != nil {
			return nil, fmt.Errorf("tmux not found in PATH: %w", err)
		}
		t := New(nil)
		poller := platform.NewPoller(t, opts.PollInterval, opts.Logger)
		return &platform.Provider{
			Name:          "tmux",
			Reader:        t,
			WindowManager: t,
			Events:        poller,
			Close:         poller.Stop,
		}, nil
	})
}

// Tmux implements platform.Reader and platform.WindowManager.
type Tmux struct {
	run Runner
}

// New creates a tmux host. A nil runner executes the tmux binary.
func New(run Runner) *Tmux {
	if run == nil {
		run = execRunner
	}
	return &Tmux{run: run}
}

// window is a listed tmux window together with bridge bookkeeping.
type window struct {
	model.Window
	name       string
	base       string
	autoRename bool
	savedAuto  string
}

// prefaced reports whether the bridge currently owns part of the name.
func (w window) prefaced() bool { return w.TitlePreface != "" }

// baseName is the window name without the bridge preface.
func (w window) baseName() string {
	if w.prefaced() {
		return w.base
	}
	return w.name
}

// listWindows lists every window and composes its title from the preface,
// the active pane title and the base name, the way a browser shows the
// active tab title ahead of the application name.
func (t *Tmux) listWindows(ctx context.Context) ([]window, error) {
	out, err := t.run(ctx, "list-windows", "-a", "-F", windowFormat)
	if err != nil {
		return nil, fmt.Errorf("tmux list-windows: %w", err)
	}
	windows := parseWindows(out)
	if len(windows) == 0 {
		return windows, nil
	}
	tabs, err := t.ListTabs(ctx)
	if err != nil {
		return nil, err
	}
	for i := range windows {
		windows[i].Title = composeTitle(windows[i], tabs)
	}
	return windows, nil
}

func composeTitle(w window, tabs []model.Tab) string {
	if tab, ok := model.ActiveTab(tabs, w.ID); ok {
		return w.TitlePreface + tab.Title + titleSeparator + w.baseName()
	}
	return w.TitlePreface + w.baseName()
}

func (t *Tmux) findWindow(ctx context.Context, id int) (window, error) {
	windows, err := t.listWindows(ctx)
	if err != nil {
		return window{}, err
	}
	for _, w := range windows {
		if w.ID == id {
			return w, nil
		}
	}
	return window{}, platform.WindowNotFound(id)
}

// ListWindows returns every window across all sessions. A window linked
// into several sessions is reported once.
func (t *Tmux) ListWindows(ctx context.Context) ([]model.Window, error) {
	windows, err := t.listWindows(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]model.Window, 0, len(windows))
	for _, w := range windows {
		result = append(result, w.Window)
	}
	return result, nil
}

// ListTabs returns every pane as a tab.
func (t *Tmux) ListTabs(ctx context.Context) ([]model.Tab, error) {
	out, err := t.run(ctx, "list-panes", "-a", "-F", paneFormat)
	if err != nil {
		return nil, fmt.Errorf("tmux list-panes: %w", err)
	}
	return parseTabs(out), nil
}

func (t *Tmux) GetWindow(ctx context.Context, id int) (model.Window, error) {
	w, err := t.findWindow(ctx, id)
	if err != nil {
		return model.Window{}, err
	}
	return w.Window, nil
}

// GetFocusedWindow returns the active window of an attached session.
func (t *Tmux) GetFocusedWindow(ctx context.Context) (model.Window, error) {
	windows, err := t.ListWindows(ctx)
	if err != nil {
		return model.Window{}, err
	}
	for _, w := range windows {
		if w.Focused {
			return w, nil
		}
	}
	return model.Window{}, fmt.Errorf("%w: no attached tmux client", platform.ErrNotFound)
}

// ActiveTab returns the active pane of a window.
func (t *Tmux) ActiveTab(ctx context.Context, windowID int) (model.Tab, error) {
	out, err := t.run(ctx, "list-panes", "-t", windowTarget(windowID), "-F", paneFormat)
	if err != nil {
		if isNotFound(err) {
			return model.Tab{}, platform.WindowNotFound(windowID)
		}
		return model.Tab{}, fmt.Errorf("tmux list-panes: %w", err)
	}
	if tab, ok := model.ActiveTab(parseTabs(out), windowID); ok {
		return tab, nil
	}
	return model.Tab{}, platform.NoActiveTab(windowID)
}

// SetTitlePreface renames the window to preface followed by its base name.
// An empty preface restores the base name, clears the bookkeeping and turns
// automatic-rename back on if the window had it before.
func (t *Tmux) SetTitlePreface(ctx context.Context, windowID int, preface string) error {
	w, err := t.findWindow(ctx, windowID)
	if err != nil {
		return err
	}
	if preface == "" && !w.prefaced() {
		return nil
	}

	base := w.baseName()
	target := windowTarget(windowID)
	var args []string
	if preface == "" {
		args = []string{
			"set-option", "-w", "-u", "-t", target, prefaceOption, ";",
			"set-option", "-w", "-u", "-t", target, baseOption, ";",
			"set-option", "-w", "-u", "-t", target, autoRenameOption, ";",
			"rename-window", "-t", target, "--", base,
		}
		if isOn(w.savedAuto) {
			args = append(args, ";", "set-option", "-w", "-u", "-t", target, "automatic-rename")
		}
	} else {
		if !w.prefaced() {
			args = append(args, "set-option", "-w", "-t", target, "--", autoRenameOption, flagValue(w.autoRename), ";")
		}
		args = append(args,
			"set-option", "-w", "-t", target, "--", baseOption, base, ";",
			"set-option", "-w", "-t", target, "--", prefaceOption, preface, ";",
			"rename-window", "-t", target, "--", preface+base,
		)
	}
	if _, err := t.run(ctx, args...); err != nil {
		if isNotFound(err) {
			return platform.WindowNotFound(windowID)
		}
		return fmt.Errorf("tmux rename-window %s: %w", target, err)
	}
	return nil
}

func (t *Tmux) FocusWindow(ctx context.Context, windowID int) error {
	target := windowTarget(windowID)
	if _, err := t.run(ctx, "select-window", "-t", target); err != nil {
		if isNotFound(err) {
			return platform.WindowNotFound(windowID)
		}
		return fmt.Errorf("tmux select-window %s: %w", target, err)
	}
	return nil
}

func (t *Tmux) ActivateTab(ctx context.Context, tabID int) error {
	target := paneTarget(tabID)
	if _, err := t.run(ctx, "select-pane", "-t", target); err != nil {
		if isNotFound(err) {
			return platform.TabNotFound(tabID)
		}
		return fmt.Errorf("tmux select-pane %s: %w", target, err)
	}
	return nil
}

func windowTarget(id int) string { return "@" + strconv.Itoa(id) }
func paneTarget(id int) string { return "%" + strconv.Itoa(id) }

// parseID parses a tmux object id such as "@3" or "%12".
func parseID(s string, sigil byte) (int, error) {
	if len(s) < 2 || s[0] != sigil {
		return 0, fmt.Errorf("invalid tmux id %q", s)
	}
	return strconv.Atoi(s[1:])
}

// isOn reports whether a tmux flag option rendered by a format is set.
func isOn(v string) bool { return v == "1" || v == "on" }

func flagValue(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func parseWindows(out string) []window {
	var windows []window
	seen := make(map[int]int)
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 8)
		if len(parts) != 8 {
			continue
		}
		id, err := parseID(parts[0], '@')
		if err != nil {
			continue
		}
		attached, _ := strconv.Atoi(parts[2])
		focused := parts[1] == "1" && attached > 0

		if i, ok := seen[id]; ok {
			if focused {
				windows[i].Focused = true
			}
			continue
		}
		seen[id] = len(windows)
		windows = append(windows, window{
			Window: model.Window{
				ID:           id,
				Title:        parts[7],
				TitlePreface: parts[5],
				Focused:      focused,
			},
			name:       parts[7],
			base:       parts[6],
			autoRename: isOn(parts[3]),
			savedAuto:  parts[4],
		})
	}
	return windows
}

func parseTabs(out string) []model.Tab {
	var tabs []model.Tab
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, "\t", 5)
		if len(parts) != 5 {
			continue
		}
		id, err := parseID(parts[0], '%')
		if err != nil {
			continue
		}
		windowID, err := parseID(parts[1], '@')
		if err != nil {
			continue
		}
		tabs = append(tabs, model.Tab{
			ID:       id,
			WindowID: windowID,
			Active:   parts[2] == "1",
			URL:      parts[3],
			Title:    parts[4],
		})
	}
	return tabs
}

// isNotFound reports whether tmux rejected a target that does not exist.
func isNotFound(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "can't find") || strings.Contains(msg, "no such")
}

func execRunner(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "tmux", args...)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%w: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}
