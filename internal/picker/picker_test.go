package picker

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mj1618/tab-bridge/internal/model"
)

var testTabs = []model.Tab{
	{ID: 1, WindowID: 1, Title: "GitHub - Pull requests", URL: "https://github.com/pulls"},
	{ID: 2, WindowID: 1, Title: "Gmail - Inbox", URL: "https://mail.google.com"},
	{ID: 3, WindowID: 2, Title: "Go documentation", URL: "https://go.dev/doc"},
}

func ids(matches []Match) []int {
	out := make([]int, len(matches))
	for i, m := range matches {
		out[i] = m.Tab.ID
	}
	return out
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRank(t *testing.T) {
	tests := []struct {
		query string
		want  []int
	}{
		{"", []int{1, 2, 3}},
		{"   ", []int{1, 2, 3}},
		{"mail", []int{2}},
		{"MAIL", []int{2}},
		{"go doc", []int{3}},
		{"zzz", nil},
		{"mail zzz", nil},
	}
	for _, tt := range tests {
		got := ids(Rank(testTabs, tt.query))
		if !equalIDs(got, tt.want) {
			t.Errorf("Rank(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestRankOrdersByScore(t *testing.T) {
	matches := Rank(testTabs, "git")
	if len(matches) == 0 || matches[0].Tab.ID != 1 {
		t.Fatalf("Rank(git) = %v, want tab 1 first", ids(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].Score > matches[i-1].Score {
			t.Errorf("scores not descending: %d after %d", matches[i].Score, matches[i-1].Score)
		}
	}
}

func TestRankEmptyQueryScoresZero(t *testing.T) {
	for _, m := range Rank(testTabs, "") {
		if m.Score != 0 {
			t.Errorf("tab %d score = %d, want 0", m.Tab.ID, m.Score)
		}
	}
}

func key(t tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: t} }

func typeText(m *pickerModel, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func TestPickerFilterAndChoose(t *testing.T) {
	m := newModel(testTabs, "")
	typeText(m, "mail")
	if got := ids(m.matches); !equalIDs(got, []int{2}) {
		t.Fatalf("matches after typing = %v", got)
	}

	_, cmd := m.Update(key(tea.KeyEnter))
	if cmd == nil {
		t.Fatal("enter should quit")
	}
	if m.chosen == nil || m.chosen.ID != 2 {
		t.Errorf("chosen = %+v, want tab 2", m.chosen)
	}
	if m.View() != "" {
		t.Error("view should be empty once done")
	}
}

func TestPickerCursor(t *testing.T) {
	m := newModel(testTabs, "")

	m.Update(key(tea.KeyUp))
	if m.cursor != 0 {
		t.Errorf("cursor = %d after up at top", m.cursor)
	}
	for range 5 {
		m.Update(key(tea.KeyDown))
	}
	if m.cursor != 2 {
		t.Errorf("cursor = %d, want 2 at bottom", m.cursor)
	}

	// Typing resets the cursor to the best match.
	typeText(m, "g")
	if m.cursor != 0 {
		t.Errorf("cursor = %d after typing, want 0", m.cursor)
	}

	m.Update(key(tea.KeyDown))
	m.Update(key(tea.KeyEnter))
	if m.chosen == nil || m.chosen.ID != m.matches[1].Tab.ID {
		t.Errorf("chosen = %+v, want second match", m.chosen)
	}
}

func TestPickerCancel(t *testing.T) {
	for _, k := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		m := newModel(testTabs, "")
		_, cmd := m.Update(key(k))
		if cmd == nil || !m.done || m.chosen != nil {
			t.Errorf("key %v: done=%v chosen=%v", k, m.done, m.chosen)
		}
	}
}

func TestPickerEnterWithoutMatches(t *testing.T) {
	m := newModel(testTabs, "zzz")
	m.Update(key(tea.KeyEnter))
	if m.chosen != nil {
		t.Errorf("chosen = %+v, want nil", m.chosen)
	}
}

func TestPickerView(t *testing.T) {
	m := newModel(testTabs, "go")
	view := m.View()
	if !strings.Contains(view, "Go documentation") {
		t.Errorf("view missing match:\n%s", view)
	}
	if !strings.Contains(view, "/3") {
		t.Errorf("view missing count:\n%s", view)
	}
}
