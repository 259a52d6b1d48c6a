package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML layout accepted by LoadFixture.
//
//	app: Browser
//	windows:
//	  - focused: true
//	    tabs:
//	      - {title: Inbox, url: "https://mail.example.com", active: true}
//	      - {title: Docs, url: "https://go.dev/doc"}
type Fixture struct {
	App     string       `yaml:"app"`
	Windows []WindowSpec `yaml:"windows"`
}

// LoadFixture opens every window described in the YAML file at path.
func (h *Host) LoadFixture(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading fixture: %w", err)
	}
	return h.ApplyFixture(data)
}

// ApplyFixture opens every window described in YAML data.
func (h *Host) ApplyFixture(data []byte) error {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parsing fixture: %w", err)
	}
	if f.App != "" {
		h.mu.Lock()
		h.appName = f.App
		h.mu.Unlock()
	}
	for _, w := range f.Windows {
		h.OpenWindow(w)
	}
	return nil
}
