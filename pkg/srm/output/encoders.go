package output

import (
	"bytes"
	"encoding/json"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// JSONFormatter formats output as a single indented JSON document.
type JSONFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *JSONFormatter) Format(w *bytes.Buffer, l *Listing) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(nonNil(l))
}

// YAMLFormatter formats output as YAML.
type YAMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *YAMLFormatter) Format(w *bytes.Buffer, l *Listing) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(nonNil(l)); err != nil {
		return err
	}
	return enc.Close()
}

// TOMLFormatter formats output as TOML with one [[entries]] table per item.
type TOMLFormatter struct{}

// Format writes the formatted output to the buffer.
func (f *TOMLFormatter) Format(w *bytes.Buffer, l *Listing) error {
	return toml.NewEncoder(w).Encode(l)
}

// nonNil keeps empty listings encoding as [] rather than null.
func nonNil(l *Listing) *Listing {
	if l.Items != nil {
		return l
	}
	cp := *l
	cp.Items = []Item{}
	return &cp
}

func init() {
	Register("json", func() Formatter { return &JSONFormatter{} })
	Register("yaml", func() Formatter { return &YAMLFormatter{} })
	Register("toml", func() Formatter { return &TOMLFormatter{} })
}

var (
	_ Formatter = (*JSONFormatter)(nil)
	_ Formatter = (*YAMLFormatter)(nil)
	_ Formatter = (*TOMLFormatter)(nil)
)
