package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ghodss/yaml"
)

const na = "n/a"

func orNA(s string) string {
	if s == "" {
		return na
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// print writes v in the configured output format; text renders the
// human readable layout.
func (a *app) print(v any, text func(w io.Writer) error) error {
	switch a.cfg.Output {
	case "json":
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		b, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("encoding yaml: %w", err)
		}
		_, err = a.out.Write(b)
		return err
	default:
		return text(a.out)
	}
}
