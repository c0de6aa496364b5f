// Package seed loads extra catalog entries from a local YAML file.
package seed

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader reads a seed file.
type Loader struct {
	filePath string
	lookup   func(string) (string, bool)
}

// NewLoader creates a loader that expands {{VAR}} from the environment.
func NewLoader(filePath string) *Loader {
	return &Loader{
		filePath: filePath,
		lookup:   os.LookupEnv,
	}
}

// Load reads and parses the seed file.
func (l *Loader) Load() (File, error) {
	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return File{}, fmt.Errorf("failed to read seed file: %w", err)
	}

	data = expandTemplateVariables(data, l.lookup)

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse seed yaml: %w", err)
	}
	return f, nil
}

var templateVar = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// expandTemplateVariables replaces {{NAME}} with the value of NAME.
// Unset variables expand to "".
// Example: {{SEED_REPO}} -> owner/name
func expandTemplateVariables(data []byte, lookup func(string) (string, bool)) []byte {
	return templateVar.ReplaceAllFunc(data, func(m []byte) []byte {
		name := strings.TrimSpace(string(m[2 : len(m)-2]))
		v, _ := lookup(name)
		return []byte(v)
	})
}
