package report

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

type layoutFile struct {
	Base   string `yaml:"base"`
	Layout `yaml:",inline"`
}

// LoadLayout resolves a layout by built-in name or from a YAML file. A file
// may name a built-in as its base and override only the parts it lists.
func LoadLayout(nameOrPath string) (Layout, error) {
	nameOrPath = strings.TrimSpace(nameOrPath)
	if nameOrPath == "" {
		nameOrPath = LayoutNitfix
	}
	if l, ok := BuiltinLayout(nameOrPath); ok {
		return l, nil
	}

	data, err := os.ReadFile(nameOrPath)
	if err != nil {
		return Layout{}, fmt.Errorf("read layout: %w", err)
	}
	return ParseLayout(data)
}

// ParseLayout decodes a YAML layout document.
func ParseLayout(data []byte) (Layout, error) {
	var f layoutFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Layout{}, fmt.Errorf("parse layout: %w", err)
	}

	out := f.Layout
	if f.Base != "" {
		base, ok := BuiltinLayout(f.Base)
		if !ok {
			return Layout{}, fmt.Errorf("unknown base layout %q", f.Base)
		}
		out = base
		if f.Name != "" {
			out.Name = f.Name
		}
		if f.Title != "" {
			out.Title = f.Title
		}
		if len(f.Criteria) > 0 {
			out.Criteria = f.Criteria
		}
		if len(f.PlateColumns) > 0 {
			out.PlateColumns = f.PlateColumns
		}
		if len(f.WellColumns) > 0 {
			out.WellColumns = f.WellColumns
		}
		if len(f.Aliases) > 0 {
			out.Aliases = f.Aliases
		}
	}
	for i := range out.PlateColumns {
		if out.PlateColumns[i].Kind == "" {
			out.PlateColumns[i].Kind = Text
		}
	}
	for i := range out.WellColumns {
		if out.WellColumns[i].Kind == "" {
			out.WellColumns[i].Kind = Text
		}
	}
	for i := range out.Criteria {
		if out.Criteria[i].Kind == "" {
			out.Criteria[i].Kind = Substring
		}
	}
	if err := out.Validate(); err != nil {
		return Layout{}, err
	}
	return out, nil
}
