package model

import "strings"

// TabFilter selects tabs. Zero values disable the corresponding check.
type TabFilter struct {
	WindowID   int    // Only tabs of this window (0 = any)
	Text       string // Case-insensitive substring of title or URL
	ActiveOnly bool   // Only the active tab of each window
}

// FilterTabs returns the tabs matching f, preserving order.
func FilterTabs(tabs []Tab, f TabFilter) []Tab {
	if f.WindowID == 0 && f.Text == "" && !f.ActiveOnly {
		return tabs
	}

	textLower := strings.ToLower(f.Text)
	result := make([]Tab, 0, len(tabs))
	for _, t := range tabs {
		if f.WindowID != 0 && t.WindowID != f.WindowID {
			continue
		}
		if f.ActiveOnly && !t.Active {
			continue
		}
		if textLower != "" &&
			!strings.Contains(strings.ToLower(t.Title), textLower) &&
			!strings.Contains(strings.ToLower(t.URL), textLower) {
			continue
		}
		result = append(result, t)
	}
	return result
}

// FilterWindowsByTitle returns windows whose title contains text
// (case-insensitive). An empty text returns all windows.
func FilterWindowsByTitle(windows []Window, text string) []Window {
	if text == "" {
		return windows
	}
	textLower := strings.ToLower(text)
	var result []Window
	for _, w := range windows {
		if strings.Contains(strings.ToLower(w.Title), textLower) {
			result = append(result, w)
		}
	}
	return result
}

// ActiveTab returns the active tab of the given window from a tab listing.
func ActiveTab(tabs []Tab, windowID int) (Tab, bool) {
	for _, t := range tabs {
		if t.WindowID == windowID && t.Active {
			return t, true
		}
	}
	return Tab{}, false
}
