package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"vrpsearch/internal/opt"
)

// profileFile is the on-disk layout:
//
//	profiles:
//	  fast:
//	    algorithm: lns
//	    maxIterations: 50
type profileFile struct {
	Profiles map[string]opt.Config `yaml:"profiles"`
}

// DecodeProfiles parses a profile document. Unknown keys are errors, and
// every profile must validate once defaults are applied.
func DecodeProfiles(r io.Reader) (map[string]opt.Config, error) {
	var pf profileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: parse profiles: %w", err)
	}
	for name, c := range pf.Profiles {
		if err := c.WithDefaults().Validate(); err != nil {
			return nil, fmt.Errorf("config: profile %q: %w", name, err)
		}
	}
	if pf.Profiles == nil {
		pf.Profiles = map[string]opt.Config{}
	}
	return pf.Profiles, nil
}

// LoadProfiles reads a profile file.
func LoadProfiles(path string) (map[string]opt.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read profiles: %w", err)
	}
	return DecodeProfiles(bytes.NewReader(b))
}

// DecodeConfig parses a single solver config document, as used by
// `vrpsolve solve --config`. Only the keys present in the document are set.
func DecodeConfig(r io.Reader) (Patch, error) {
	var p Patch
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return Patch{}, fmt.Errorf("config: parse solver config: %w", err)
	}
	return p, nil
}
