package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"
)

// Error codes for preset loading.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeLoadFailed    = "E004" // Parse failed
	ErrCodeNotFound      = "E005" // Path not found
	ErrCodeBuildFailed   = "E006" // CUE build failed
	ErrCodeInvalidPreset = "E120" // Preset failed validation
	ErrCodeFormat        = "E121" // Unsupported file extension
)

// LoadError represents an error that occurred while loading a preset.
type LoadError struct {
	Code    string
	Message string
	Path    string
}

func (e *LoadError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Path, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPreset reads a preset file and validates it. The format is chosen
// by extension: .yaml/.yml, .cue or .json.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: "preset file not found", Path: path}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading preset: %v", err), Path: path}
	}

	var p *Preset
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		p, err = ParseYAML(data)
	case ".cue":
		p, err = ParseCUE(data, path)
	case ".json":
		p, err = ParseJSON(data)
	default:
		return nil, &LoadError{
			Code:    ErrCodeFormat,
			Message: fmt.Sprintf("unsupported preset format %q (want .yaml, .yml, .cue or .json)", filepath.Ext(path)),
			Path:    path,
		}
	}
	if err != nil {
		return nil, withPath(err, path)
	}

	if err := Validate(p); err != nil {
		return nil, withPath(err, path)
	}
	return p, nil
}

// ParseYAML decodes a preset, rejecting unknown fields.
func ParseYAML(data []byte) (*Preset, error) {
	var p Preset
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing YAML: %v", err)}
	}
	return &p, nil
}

// ParseJSON decodes a preset, rejecting unknown fields.
func ParseJSON(data []byte) (*Preset, error) {
	var p Preset
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&p); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing JSON: %v", err)}
	}
	return &p, nil
}

// ParseCUE evaluates a CUE preset. The file may either declare the
// preset fields at top level or nest them under a "preset" field.
func ParseCUE(data []byte, filename string) (*Preset, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(filename))
	if err := value.Err(); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}

	if nested := value.LookupPath(cue.ParsePath("preset")); nested.Exists() {
		value = nested
	}
	if err := value.Validate(cue.Concrete(true)); err != nil {
		return nil, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("preset is not concrete: %v", err)}
	}

	var p Preset
	if err := value.Decode(&p); err != nil {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("decoding CUE value: %v", err)}
	}
	return &p, nil
}

func withPath(err error, path string) error {
	if le, ok := err.(*LoadError); ok && le.Path == "" {
		le.Path = path
	}
	return err
}
