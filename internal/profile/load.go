package profile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// IsProfileFile reports whether path has an extension LoadFile understands.
func IsProfileFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

// LoadFile reads one profile or a list of profiles from a YAML or JSON file.
// Every returned profile is normalized and valid.
func LoadFile(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile file: %w", err)
	}
	profiles, err := Decode(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return profiles, nil
}

// Decode parses profile data; ext selects JSON (".json") or YAML (anything else).
func Decode(data []byte, ext string) ([]*Profile, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidProfile)
	}
	var profiles []*Profile
	isList := data[0] == '[' || data[0] == '-'
	if strings.EqualFold(ext, ".json") {
		if isList {
			if err := json.Unmarshal(data, &profiles); err != nil {
				return nil, fmt.Errorf("parse profiles: %w", err)
			}
		} else {
			var p Profile
			if err := json.Unmarshal(data, &p); err != nil {
				return nil, fmt.Errorf("parse profile: %w", err)
			}
			profiles = append(profiles, &p)
		}
	} else {
		if isList {
			if err := yaml.Unmarshal(data, &profiles); err != nil {
				return nil, fmt.Errorf("parse profiles: %w", err)
			}
		} else {
			var p Profile
			if err := yaml.Unmarshal(data, &p); err != nil {
				return nil, fmt.Errorf("parse profile: %w", err)
			}
			profiles = append(profiles, &p)
		}
	}
	for i, p := range profiles {
		if p == nil {
			return nil, fmt.Errorf("%w: entry %d is empty", ErrInvalidProfile, i)
		}
		p.Normalize()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
	}
	return profiles, nil
}
