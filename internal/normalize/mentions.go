package normalize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnknownMention replaces mention ids missing from the directory.
const UnknownMention = "[UNKNOWN]"

// MentionDirectory maps opaque mention ids to display names. Lookups are case
// insensitive.
type MentionDirectory struct {
	names map[string]string
}

// NewMentionDirectory builds a directory from id -> display name entries.
func NewMentionDirectory(entries map[string]string) *MentionDirectory {
	names := make(map[string]string, len(entries))
	for id, name := range entries {
		names[strings.ToUpper(strings.TrimSpace(id))] = name
	}
	return &MentionDirectory{names: names}
}

// DefaultMentionDirectory returns the directory used when no file is configured.
func DefaultMentionDirectory() *MentionDirectory {
	return NewMentionDirectory(map[string]string{
		"000BFF27-0E57-6097-BD33-8C7CBEEC3268": "Trinh, Spencer",
		"6186434E-47E8-63CD-B72F-A71288EB6D56": "Genaro Scavello",
		"6711815B-219C-6B1C-9514-D17377935077": "Min Wang",
		"7AC86A0C-3597-6C88-912D-2A2BF600C6B1": "Raul Leal",
		"CEBDFF88-616E-665A-BF1A-B85A0CBB30EE": "Amy Crossan",
	})
}

// LoadMentionDirectory reads a YAML mapping of id: display name.
func LoadMentionDirectory(path string) (*MentionDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mentions file: %w", err)
	}

	var entries map[string]string
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse mentions file %s: %w", path, err)
	}

	return NewMentionDirectory(entries), nil
}

// Lookup returns the display name for id.
func (d *MentionDirectory) Lookup(id string) (string, bool) {
	if d == nil {
		return "", false
	}
	name, ok := d.names[strings.ToUpper(id)]
	return name, ok
}

// Resolve returns the display name for id or UnknownMention.
func (d *MentionDirectory) Resolve(id string) string {
	if name, ok := d.Lookup(id); ok {
		return name
	}
	return UnknownMention
}

// Len returns the number of known ids.
func (d *MentionDirectory) Len() int {
	if d == nil {
		return 0
	}
	return len(d.names)
}
