package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

// Format is a config file encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension; anything that is not
// .yaml/.yml is treated as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads a report config from path, decoded over DefaultReport.
func Load(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	r, err := Decode(f, FormatOf(path))
	if err != nil {
		return Report{}, fmt.Errorf("config %s: %w", path, err)
	}
	return r, nil
}

// Decode reads a report config in the given format over DefaultReport.
// Unknown fields are rejected so typos surface instead of silently keeping a
// default. Slices in the input replace their defaults; maps merge into them.
func Decode(r io.Reader, format Format) (Report, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Report{}, fmt.Errorf("read config: %w", err)
	}
	rep := DefaultReport()
	switch format {
	case FormatYAML:
		if err := yaml.UnmarshalStrict(data, &rep); err != nil {
			return Report{}, fmt.Errorf("decode yaml: %w", err)
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&rep); err != nil {
			return Report{}, fmt.Errorf("decode json: %w", err)
		}
	default:
		return Report{}, fmt.Errorf("unknown config format %q", format)
	}
	return rep, nil
}
