package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/roach88/ecompat/internal/config"
	"github.com/roach88/ecompat/internal/entry"
	"github.com/roach88/ecompat/internal/preset"
)

// loadEntries reads a JSON array of entries. Entries without an entry_id
// are named "entry-<n>" by 1-based position so results can be stored and
// looked up.
func loadEntries(path string) ([]*entry.Entry, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, &config.LoadError{Code: ErrCodeNotFound, Message: "entries file not found", Path: path}
	}
	if err != nil {
		return nil, &config.LoadError{Code: ErrCodeGeneric, Message: fmt.Sprintf("reading entries: %v", err), Path: path}
	}

	var entries []*entry.Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, &config.LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing entries: %v", err), Path: path}
	}

	for i, e := range entries {
		if e == nil {
			return nil, &config.LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("entry %d is null", i+1), Path: path}
		}
		if e.ID == "" {
			e.ID = fmt.Sprintf("entry-%d", i+1)
		}
		if e.Parameters == nil {
			e.Parameters = map[string]any{}
		}
		if e.Data == nil {
			e.Data = map[string]any{}
		}
	}
	return entries, nil
}

// loadPreset resolves --preset. An existing file is loaded; otherwise
// "mp" and "mit" name the embedded presets. An empty value picks the
// embedded preset matching the scheme.
func loadPreset(spec, scheme string) (*config.Preset, error) {
	if spec == "" {
		spec = "mp"
		if scheme == preset.SchemeMIT || scheme == preset.SchemeMITAqueous {
			spec = "mit"
		}
	}
	if _, err := os.Stat(spec); err != nil && (spec == "mp" || spec == "mit") {
		p, err := preset.Builtin(spec)
		if err != nil {
			return nil, &config.LoadError{Code: config.ErrCodeInvalidPreset, Message: err.Error()}
		}
		return p, nil
	}
	return config.LoadPreset(spec)
}

// writeEntries writes entries as an indented JSON array.
func writeEntries(path string, entries []*entry.Entry) error {
	if entries == nil {
		entries = []*entry.Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding entries: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
