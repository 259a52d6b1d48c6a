// Package memory implements an in-process host holding windows and tabs in
// memory. It backs tests, demos, and fixture-driven runs of the bridge.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mj1618/tab-bridge/internal/model"
	"github.com/mj1618/tab-bridge/internal/platform"
)

// DefaultAppName is appended to composed window titles.
const DefaultAppName = "Browser"

// titleSeparator joins the active tab title and the app name.
const titleSeparator = " — "

// WindowSpec describes a window to open.
type WindowSpec struct {
	// Title, when set, is used verbatim as the window title (after the
	// preface) instead of composing it from the active tab.
	Title   string    `yaml:"title"`
	Focused bool      `yaml:"focused"`
	Tabs    []TabSpec `yaml:"tabs"`
}

// TabSpec describes a tab to open.
type TabSpec struct {
	Title   string `yaml:"title"`
	URL     string `yaml:"url"`
	Active  bool   `yaml:"active"`
	Audible bool   `yaml:"audible"`
}

type window struct {
	id        int
	preface   string
	fixedBase string
	tabIDs    []int
}

// Host is an in-memory window/tab host. Safe for concurrent use.
type Host struct {
	mu      sync.Mutex
	appName string
	windows map[int]*window
	tabs    map[int]*model.Tab
	focused int
	nextWin int
	nextTab int
	nextSub int
	created map[int]func(model.Window)
	removed map[int]func(int)
}

// New returns an empty host. An empty appName uses DefaultAppName.
func New(appName string) *Host {
	if appName == "" {
		appName = DefaultAppName
	}
	return &Host{
		appName: appName,
		windows: make(map[int]*window),
		tabs:    make(map[int]*model.Tab),
		nextWin: 1,
		nextTab: 1,
		created: make(map[int]func(model.Window)),
		removed: make(map[int]func(int)),
	}
}

func init() {
	platform.Register("memory", func(opts platform.Options) (*platform.Provider, error) {
		h := New("")
		if opts.Fixture != "" {
			if err := h.LoadFixture(opts.Fixture); err != nil {
				return nil, err
			}
		}
		return h.Provider(), nil
	})
}

// Provider exposes the host through the platform interfaces.
func (h *Host) Provider() *platform.Provider {
	return &platform.Provider{
		Name:          "memory",
		Reader:        h,
		WindowManager: h,
		Events:        h,
	}
}

// OpenWindow adds a window with its tabs and notifies created-listeners.
// If no tab is marked active, the first tab becomes active.
func (h *Host) OpenWindow(spec WindowSpec) model.Window {
	h.mu.Lock()
	w := &window{id: h.nextWin, fixedBase: spec.Title}
	h.nextWin++
	h.windows[w.id] = w

	hasActive := false
	for _, ts := range spec.Tabs {
		if ts.Active && !hasActive {
			hasActive = true
		} else {
			ts.Active = false
		}
		h.addTabLocked(w, ts)
	}
	if !hasActive && len(w.tabIDs) > 0 {
		h.tabs[w.tabIDs[0]].Active = true
	}
	if spec.Focused || h.focused == 0 {
		h.focused = w.id
	}

	snapshot := h.snapshotLocked(w)
	listeners := make([]func(model.Window), 0, len(h.created))
	for _, fn := range h.created {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
	return snapshot
}

// AddTab appends a tab to an existing window.
func (h *Host) AddTab(windowID int, spec TabSpec) (model.Tab, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[windowID]
	if !ok {
		return model.Tab{}, platform.WindowNotFound(windowID)
	}
	if spec.Active {
		for _, id := range w.tabIDs {
			h.tabs[id].Active = false
		}
	}
	return *h.addTabLocked(w, spec), nil
}

func (h *Host) addTabLocked(w *window, spec TabSpec) *model.Tab {
	t := &model.Tab{
		ID:       h.nextTab,
		WindowID: w.id,
		Title:    spec.Title,
		URL:      spec.URL,
		Active:   spec.Active,
		Audible:  spec.Audible,
	}
	h.nextTab++
	h.tabs[t.ID] = t
	w.tabIDs = append(w.tabIDs, t.ID)
	return t
}

// CloseWindow removes a window and its tabs and notifies removed-listeners.
func (h *Host) CloseWindow(windowID int) error {
	h.mu.Lock()
	w, ok := h.windows[windowID]
	if !ok {
		h.mu.Unlock()
		return platform.WindowNotFound(windowID)
	}
	for _, id := range w.tabIDs {
		delete(h.tabs, id)
	}
	delete(h.windows, windowID)
	if h.focused == windowID {
		h.focused = 0
	}
	listeners := make([]func(int), 0, len(h.removed))
	for _, fn := range h.removed {
		listeners = append(listeners, fn)
	}
	h.mu.Unlock()

	for _, fn := range listeners {
		fn(windowID)
	}
	return nil
}

// SetTabTitle changes a tab's title, which changes the composed window title
// when the tab is active.
func (h *Host) SetTabTitle(tabID int, title string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[tabID]
	if !ok {
		return platform.TabNotFound(tabID)
	}
	t.Title = title
	return nil
}

// ListWindows returns all windows ordered by ID.
func (h *Host) ListWindows(ctx context.Context) ([]model.Window, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := h.windowIDsLocked()
	windows := make([]model.Window, 0, len(ids))
	for _, id := range ids {
		windows = append(windows, h.snapshotLocked(h.windows[id]))
	}
	return windows, nil
}

// ListTabs returns all tabs ordered by window, then position.
func (h *Host) ListTabs(ctx context.Context) ([]model.Tab, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	var tabs []model.Tab
	for _, id := range h.windowIDsLocked() {
		for _, tabID := range h.windows[id].tabIDs {
			tabs = append(tabs, *h.tabs[tabID])
		}
	}
	return tabs, nil
}

// GetWindow returns a window by ID.
func (h *Host) GetWindow(ctx context.Context, windowID int) (model.Window, error) {
	if err := ctx.Err(); err != nil {
		return model.Window{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[windowID]
	if !ok {
		return model.Window{}, platform.WindowNotFound(windowID)
	}
	return h.snapshotLocked(w), nil
}

// GetFocusedWindow returns the focused window.
func (h *Host) GetFocusedWindow(ctx context.Context) (model.Window, error) {
	if err := ctx.Err(); err != nil {
		return model.Window{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[h.focused]
	if !ok {
		return model.Window{}, fmt.Errorf("focused window: %w", platform.ErrNotFound)
	}
	return h.snapshotLocked(w), nil
}

// ActiveTab returns the active tab of a window.
func (h *Host) ActiveTab(ctx context.Context, windowID int) (model.Tab, error) {
	if err := ctx.Err(); err != nil {
		return model.Tab{}, err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[windowID]
	if !ok {
		return model.Tab{}, platform.WindowNotFound(windowID)
	}
	if t := h.activeTabLocked(w); t != nil {
		return *t, nil
	}
	return model.Tab{}, platform.NoActiveTab(windowID)
}

// SetTitlePreface replaces a window's title preface.
func (h *Host) SetTitlePreface(ctx context.Context, windowID int, preface string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	w, ok := h.windows[windowID]
	if !ok {
		return platform.WindowNotFound(windowID)
	}
	w.preface = preface
	return nil
}

// FocusWindow marks a window as focused.
func (h *Host) FocusWindow(ctx context.Context, windowID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.windows[windowID]; !ok {
		return platform.WindowNotFound(windowID)
	}
	h.focused = windowID
	return nil
}

// ActivateTab makes a tab the active tab of its window.
func (h *Host) ActivateTab(ctx context.Context, tabID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.tabs[tabID]
	if !ok {
		return platform.TabNotFound(tabID)
	}
	for _, id := range h.windows[t.WindowID].tabIDs {
		h.tabs[id].Active = id == tabID
	}
	return nil
}

// OnWindowCreated registers fn until ctx is done.
func (h *Host) OnWindowCreated(ctx context.Context, fn func(model.Window)) error {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.created[id] = fn
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.created, id)
		h.mu.Unlock()
	}()
	return nil
}

// OnWindowRemoved registers fn until ctx is done.
func (h *Host) OnWindowRemoved(ctx context.Context, fn func(int)) error {
	h.mu.Lock()
	id := h.nextSub
	h.nextSub++
	h.removed[id] = fn
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.removed, id)
		h.mu.Unlock()
	}()
	return nil
}

// Listeners reports the number of registered created and removed listeners.
func (h *Host) Listeners() (created, removed int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.created), len(h.removed)
}

func (h *Host) windowIDsLocked() []int {
	ids := make([]int, 0, len(h.windows))
	for id := range h.windows {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (h *Host) activeTabLocked(w *window) *model.Tab {
	for _, id := range w.tabIDs {
		if t := h.tabs[id]; t.Active {
			return t
		}
	}
	return nil
}

// snapshotLocked renders the window as the host would display it.
func (h *Host) snapshotLocked(w *window) model.Window {
	var title string
	switch {
	case w.fixedBase != "":
		title = w.preface + w.fixedBase
	default:
		if t := h.activeTabLocked(w); t != nil {
			title = w.preface + t.Title + titleSeparator + h.appName
		} else {
			title = w.preface + h.appName
		}
	}
	return model.Window{
		ID:           w.id,
		Title:        title,
		TitlePreface: w.preface,
		Focused:      w.id == h.focused,
	}
}
