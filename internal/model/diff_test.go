package model

import "testing"

func TestDiffWindows_NoChanges(t *testing.T) {
	windows := []Window{
		{ID: 1, Title: "Inbox — Browser", Focused: true},
	}
	changes := DiffWindows(windows, windows)
	if len(changes) != 0 {
		t.Errorf("expected no changes, got %d", len(changes))
	}
}

func TestDiffWindows_Added(t *testing.T) {
	prev := []Window{
		{ID: 1, Title: "Inbox"},
	}
	curr := []Window{
		{ID: 1, Title: "Inbox"},
		{ID: 2, Title: "Docs"},
	}
	changes := DiffWindows(prev, curr)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].Type != ChangeAdded {
		t.Errorf("expected added, got %s", changes[0].Type)
	}
	if changes[0].Window == nil || changes[0].Window.Title != "Docs" {
		t.Errorf("expected added window Docs, got %+v", changes[0].Window)
	}
	if changes[0].ID != 2 {
		t.Errorf("expected id 2, got %d", changes[0].ID)
	}
}

func TestDiffWindows_Removed(t *testing.T) {
	prev := []Window{
		{ID: 1, Title: "Inbox"},
		{ID: 2, Title: "Docs"},
	}
	curr := []Window{
		{ID: 1, Title: "Inbox"},
	}
	changes := DiffWindows(prev, curr)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	if changes[0].Type != ChangeRemoved {
		t.Errorf("expected removed, got %s", changes[0].Type)
	}
	if changes[0].ID != 2 || changes[0].Title != "Docs" {
		t.Errorf("unexpected removed change: %+v", changes[0])
	}
}

func TestDiffWindows_Changed(t *testing.T) {
	prev := []Window{{ID: 1, Title: "Inbox", Focused: false}}
	curr := []Window{{ID: 1, Title: "Inbox (2)", Focused: true}}

	changes := DiffWindows(prev, curr)
	if len(changes) != 1 {
		t.Fatalf("expected 1 change, got %d", len(changes))
	}
	c := changes[0]
	if c.Type != ChangeChanged {
		t.Fatalf("expected changed, got %s", c.Type)
	}
	if got := c.Changes["title"]; got != [2]string{"Inbox", "Inbox (2)"} {
		t.Errorf("title diff = %v", got)
	}
	if got := c.Changes["focused"]; got != [2]string{"false", "true"} {
		t.Errorf("focused diff = %v", got)
	}
	if _, ok := c.Changes["title_preface"]; ok {
		t.Error("title_preface should not be reported when unchanged")
	}
}

func TestDiffWindows_EmptyPrev(t *testing.T) {
	curr := []Window{{ID: 3}, {ID: 4}}
	changes := DiffWindows(nil, curr)
	if len(changes) != 2 {
		t.Fatalf("expected 2 changes, got %d", len(changes))
	}
	for _, c := range changes {
		if c.Type != ChangeAdded {
			t.Errorf("expected added, got %s", c.Type)
		}
	}
}
