package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/mj1618/tab-bridge/internal/model"
	"gopkg.in/yaml.v3"
)

// Format represents the output format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// OutputFormat is the current output format, set by the root command's --format flag.
var OutputFormat Format = FormatYAML

// PrettyOutput enables pretty-printing for JSON output.
var PrettyOutput bool

// Writer receives all printed output.
var Writer io.Writer = os.Stdout

// WindowsResult is the output of `list windows`.
type WindowsResult struct {
	Host    string         `yaml:"host,omitempty" json:"host,omitempty"`
	TS      int64          `yaml:"ts"             json:"ts"`
	Windows []model.Window `yaml:"windows"        json:"windows"`
}

// TabsResult is the output of `list tabs`.
type TabsResult struct {
	Host string      `yaml:"host,omitempty" json:"host,omitempty"`
	TS   int64       `yaml:"ts"             json:"ts"`
	Tabs []model.Tab `yaml:"tabs"           json:"tabs"`
}

// ParseFormat validates a --format value.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatYAML, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported output format: %s (want yaml or json)", s)
}

// Print serializes v in the current output format.
func Print(v interface{}) error {
	switch OutputFormat {
	case FormatJSON:
		if PrettyOutput {
			return PrintPrettyJSON(v)
		}
		return PrintJSON(v)
	case FormatYAML:
		return PrintYAML(v)
	default:
		return fmt.Errorf("unsupported output format: %s", OutputFormat)
	}
}

// PrintJSON serializes v as compact single-line JSON.
func PrintJSON(v interface{}) error {
	enc := json.NewEncoder(Writer)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// PrintPrettyJSON serializes v as indented JSON.
func PrintPrettyJSON(v interface{}) error {
	enc := json.NewEncoder(Writer)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("json encode: %w", err)
	}
	return nil
}

// PrintYAML serializes v as YAML.
func PrintYAML(v interface{}) error {
	enc := yaml.NewEncoder(Writer)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("yaml encode: %w", err)
	}
	return enc.Close()
}

// PrintEvent writes one streamed event. Events are always single-line JSON
// so consumers can read them line by line.
func PrintEvent(v interface{}) error {
	return PrintJSON(v)
}
