// Package config loads highway.Settings from a YAML document, with
// environment variable overrides layered on top. It mirrors
// cmd/sneller/main.go's flag/env-var ambient style: the teacher never
// reaches for a CLI/config framework (cobra, viper), so neither does
// this package. sigs.k8s.io/yaml is the teacher's own declared
// dependency; in the retrieved subset of the teacher's source tree it
// has no surviving call site, so this package gives it one: unmarshal
// YAML by first converting it to JSON and decoding with the standard
// "encoding/json" struct tags already on highway.Settings.
package config

import (
	"fmt"
	"os"
	"strconv"

	"sigs.k8s.io/yaml"

	"github.com/sneller-labs/memhighway/highway"
)

// Load reads Settings from the YAML document at path, then applies any
// HIGHWAY_* environment variable overrides on top.
func Load(path string) (highway.Settings, error) {
	s := highway.DefaultSettings()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return s, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &s); err != nil {
			return s, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := applyEnv(&s); err != nil {
		return s, err
	}
	return s, nil
}

func applyEnv(s *highway.Settings) error {
	if v, ok := os.LookupEnv("HIGHWAY_DEFAULT_CAPACITY"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HIGHWAY_DEFAULT_CAPACITY: %w", err)
		}
		s.DefaultCapacity = n
	}
	if v, ok := os.LookupEnv("HIGHWAY_MAX_LANES"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HIGHWAY_MAX_LANES: %w", err)
		}
		s.MaxLanes = n
	}
	if v, ok := os.LookupEnv("HIGHWAY_LANE_AWAIT_MS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: HIGHWAY_LANE_AWAIT_MS: %w", err)
		}
		s.LaneAwaitMS = n
	}
	if v, ok := os.LookupEnv("HIGHWAY_BACKEND"); ok {
		k, err := parseBackend(v)
		if err != nil {
			return err
		}
		s.BackendKind = k
	}
	if v, ok := os.LookupEnv("HIGHWAY_DISPOSAL_POLICY"); ok {
		switch v {
		case "lazy":
			s.DisposalPolicy = highway.Lazy
		case "track-ghosts":
			s.DisposalPolicy = highway.TrackGhosts
		default:
			return fmt.Errorf("config: HIGHWAY_DISPOSAL_POLICY: unknown value %q", v)
		}
	}
	return nil
}

func parseBackend(v string) (highway.BackendKind, error) {
	switch v {
	case "heap":
		return highway.Heap, nil
	case "native":
		return highway.Native, nil
	case "mapped":
		return highway.Mapped, nil
	default:
		return 0, fmt.Errorf("config: HIGHWAY_BACKEND: unknown value %q", v)
	}
}
