package platform

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a window, tab, or active tab does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownHost is returned by NewProvider for an unregistered host name.
	ErrUnknownHost = errors.New("unknown host")
)

// WindowNotFound returns an ErrNotFound-wrapping error for a window.
func WindowNotFound(windowID int) error {
	return fmt.Errorf("window %d: %w", windowID, ErrNotFound)
}

// TabNotFound returns an ErrNotFound-wrapping error for a tab.
func TabNotFound(tabID int) error {
	return fmt.Errorf("tab %d: %w", tabID, ErrNotFound)
}

// NoActiveTab returns an ErrNotFound-wrapping error for a window without an active tab.
func NoActiveTab(windowID int) error {
	return fmt.Errorf("window %d has no active tab: %w", windowID, ErrNotFound)
}
