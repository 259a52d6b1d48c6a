package model

import (
	"fmt"
	"time"
)

// ChangeType represents the kind of window change detected.
type ChangeType string

const (
	ChangeAdded   ChangeType = "added"
	ChangeRemoved ChangeType = "removed"
	ChangeChanged ChangeType = "changed"
)

// WindowChange represents a single change between two window listings.
type WindowChange struct {
	Type    ChangeType           `yaml:"type"              json:"type"`
	TS      int64                `yaml:"ts"                json:"ts"`
	Window  *Window              `yaml:"window,omitempty"  json:"window,omitempty"`  // For added: the full window
	ID      int                  `yaml:"id"                json:"id"`                // Window ID
	Title   string               `yaml:"title,omitempty"   json:"title,omitempty"`   // For removed: last known title
	Changes map[string][2]string `yaml:"changes,omitempty" json:"changes,omitempty"` // For changed: field diffs
}

// DiffWindows compares two window listings and returns the changes.
// Windows are matched by ID. Added and changed entries follow the order of
// curr; removed entries follow the order of prev.
func DiffWindows(prev, curr []Window) []WindowChange {
	prevMap := make(map[int]Window, len(prev))
	for _, w := range prev {
		prevMap[w.ID] = w
	}
	currMap := make(map[int]Window, len(curr))
	for _, w := range curr {
		currMap[w.ID] = w
	}

	var changes []WindowChange
	now := time.Now().Unix()

	for _, w := range curr {
		prevWin, existed := prevMap[w.ID]
		if !existed {
			winCopy := w
			changes = append(changes, WindowChange{
				Type:   ChangeAdded,
				TS:     now,
				Window: &winCopy,
				ID:     w.ID,
			})
			continue
		}
		if diffs := diffProperties(prevWin, w); len(diffs) > 0 {
			changes = append(changes, WindowChange{
				Type:    ChangeChanged,
				TS:      now,
				ID:      w.ID,
				Changes: diffs,
			})
		}
	}

	for _, w := range prev {
		if _, exists := currMap[w.ID]; !exists {
			changes = append(changes, WindowChange{
				Type:  ChangeRemoved,
				TS:    now,
				ID:    w.ID,
				Title: w.Title,
			})
		}
	}

	return changes
}

// diffProperties compares two windows and returns changed fields.
func diffProperties(prev, curr Window) map[string][2]string {
	diffs := make(map[string][2]string)

	if prev.Title != curr.Title {
		diffs["title"] = [2]string{prev.Title, curr.Title}
	}
	if prev.TitlePreface != curr.TitlePreface {
		diffs["title_preface"] = [2]string{prev.TitlePreface, curr.TitlePreface}
	}
	if prev.Focused != curr.Focused {
		diffs["focused"] = [2]string{
			fmt.Sprintf("%v", prev.Focused),
			fmt.Sprintf("%v", curr.Focused),
		}
	}

	if len(diffs) == 0 {
		return nil
	}
	return diffs
}
