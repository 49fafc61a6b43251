// Package profile loads and saves sync profiles.
//
// A profile captures the inputs of a sync run: the source directory, the
// ordered destination list and the dry-run flag. The on-disk format is the
// JSON shape written by earlier versions of the tool, so existing profile
// files keep working:
//
//	{
//	    "source": "/data/photos",
//	    "destinations": ["/mnt/a", "/mnt/b"],
//	    "dry_run": false
//	}
package profile

import (
	"encoding/json"
	"fmt"
	"os"

	"fansync.io/fansync/pkg/util"
)

// Profile is a persisted sync configuration.
type Profile struct {
	Source       string   `json:"source"`
	Destinations []string `json:"destinations"`
	DryRun       bool     `json:"dry_run"`
}

// profileJSON mirrors Profile for decoding and additionally accepts the
// camelCase "dryRun" spelling some external producers use.
type profileJSON struct {
	Source       string   `json:"source"`
	Destinations []string `json:"destinations"`
	DryRun       *bool    `json:"dry_run"`
	DryRunCamel  *bool    `json:"dryRun"`
}

// UnmarshalJSON implements json.Unmarshaler. "dry_run" wins when both
// spellings are present.
func (p *Profile) UnmarshalJSON(data []byte) error {
	var raw profileJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Source = raw.Source
	p.Destinations = raw.Destinations
	switch {
	case raw.DryRun != nil:
		p.DryRun = *raw.DryRun
	case raw.DryRunCamel != nil:
		p.DryRun = *raw.DryRunCamel
	default:
		p.DryRun = false
	}
	return nil
}

// Validate checks the profile for the minimum shape a sync run needs.
func (p Profile) Validate() error {
	if p.Source == "" {
		return fmt.Errorf("profile has no source directory")
	}
	if len(p.Destinations) == 0 {
		return fmt.Errorf("profile has no destination directories")
	}
	for i, d := range p.Destinations {
		if d == "" {
			return fmt.Errorf("profile destination %d is empty", i+1)
		}
	}
	return nil
}

// Load reads and parses a profile file.
func Load(path string) (Profile, error) {
	file, err := os.Open(path)
	if err != nil {
		return Profile{}, fmt.Errorf("error opening profile file %s: %w", path, err)
	}
	defer file.Close()

	var p Profile
	decoder := json.NewDecoder(file)
	if err := decoder.Decode(&p); err != nil {
		return Profile{}, fmt.Errorf("error parsing profile file %s: %w", path, err)
	}
	return p, nil
}

// Save writes the profile as indented JSON, matching the format produced by
// earlier versions of the tool.
func Save(path string, p Profile) error {
	jsonData, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile to JSON: %w", err)
	}
	if err := os.WriteFile(path, jsonData, util.UserWritableFilePerms); err != nil {
		return fmt.Errorf("failed to write profile file %s: %w", path, err)
	}
	return nil
}
