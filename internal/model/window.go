package model

// Window represents a host window.
type Window struct {
	ID           int    `yaml:"id"                      json:"id"`
	Title        string `yaml:"title"                   json:"title"`
	TitlePreface string `yaml:"title_preface,omitempty" json:"titlePreface,omitempty"`
	Focused      bool   `yaml:"focused,omitempty"       json:"focused,omitempty"`
}

// Tab represents a tab (or pane) inside a host window.
type Tab struct {
	ID       int    `yaml:"id"                json:"id"`
	WindowID int    `yaml:"window_id"         json:"windowId"`
	Title    string `yaml:"title"             json:"title"`
	URL      string `yaml:"url,omitempty"     json:"url,omitempty"`
	Active   bool   `yaml:"active,omitempty"  json:"active,omitempty"`
	Audible  bool   `yaml:"audible,omitempty" json:"audible,omitempty"`
}

// WindowRef is the payload pushed when a window goes away.
type WindowRef struct {
	ID int `yaml:"id" json:"id"`
}
