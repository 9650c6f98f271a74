package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/openfroyo/bootcoord/pkg/boot"
)

// WellKnown maps each well-known key to the resource name used when scaffolding it.
var WellKnown = map[string]string{
	boot.ProductionKey:  "RuntimeBoot",
	boot.InteractiveKey: "EditorBoot",
}

// Scaffold creates an empty definition for every well-known key that the catalog
// in dir does not define yet. It returns the paths it created.
func Scaffold(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	c, err := Open(dir, Options{})
	if err != nil {
		return nil, err
	}
	existing, err := c.Keys()
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, k := range existing {
		have[k] = true
	}

	keys := make([]string, 0, len(WellKnown))
	for k := range WellKnown {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var created []string
	for _, key := range keys {
		if have[key] {
			continue
		}
		path := filepath.Join(dir, key+".cue")
		if _, err := os.Stat(path); err == nil {
			// Present but invalid; leave it for the user to fix.
			continue
		}
		content := fmt.Sprintf("address: %q\nname:    %q\ntemplates: []\n", key, WellKnown[key])
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return created, fmt.Errorf("failed to write %s: %w", path, err)
		}
		created = append(created, path)
	}
	return created, nil
}

// Report is the validation result for one definition file.
type Report struct {
	File    string
	Address string
	Err     error
}

// ValidateDir parses and validates every definition in dir. Duplicate addresses
// are reported against the later file.
func ValidateDir(dir string) ([]Report, error) {
	files, err := definitionFiles(dir)
	if err != nil {
		return nil, err
	}

	parser := NewParser()
	seen := make(map[string]string)
	reports := make([]Report, 0, len(files))
	for _, path := range files {
		r := Report{File: path}
		def, err := parser.ParseFile(path)
		switch {
		case err != nil:
			r.Err = err
		case seen[def.Address] != "":
			r.Address = def.Address
			r.Err = fmt.Errorf("duplicate address %s, already defined in %s", def.Address, seen[def.Address])
		default:
			r.Address = def.Address
			seen[def.Address] = path
		}
		reports = append(reports, r)
	}
	return reports, nil
}
