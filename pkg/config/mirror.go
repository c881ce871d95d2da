package config

import (
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"

	"github.com/portmirror/portmirror/pkg/errors"
)

const (
	// DefaultMirrorConfigPath is where ParseMirror looks when no --config
	// flag is given.
	DefaultMirrorConfigPath = "~/.portmirror.yaml"

	// InitialMirrorConfigVersion is the first version of the mirror config.
	// Config files that do not specify a version default to this version.
	InitialMirrorConfigVersion = "1.0"

	// SupportedMirrorConfigVersion is the newest mirror config version that
	// this binary understands.
	SupportedMirrorConfigVersion = "1.0"
)

// Mirror is the user-facing configuration for a mirror run: where to write
// the local tree, and which device storages to walk.
type Mirror struct {
	Version     string   `json:"version,omitempty"`
	Destination string   `json:"destination"` // Required.
	Sources     []Source `json:"sources"`     // Required.

	// FailureLimit overrides the number of tolerated transfer failures.
	// Zero means the built-in default.
	FailureLimit int `json:"failureLimit,omitempty"`

	// MetricsAddr exposes Prometheus counters for the run when set, e.g.
	// "localhost:9120".
	MetricsAddr string `json:"metricsAddr,omitempty"`
}

// Source describes one storage on the device, mirrored into its own
// subdirectory of the destination.
type Source struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ParseMirror parses and validates the mirror config at path.
func ParseMirror(path string) (Mirror, error) {
	path, err := homedirExpand(path)
	if err != nil {
		return Mirror{}, errors.WithContext(err, "expand config path")
	}

	config := Mirror{Version: InitialMirrorConfigVersion}
	if err := parseConfig(path, &config, SupportedMirrorConfigVersion); err != nil {
		if _, ok := err.(errors.FileNotFound); ok {
			return Mirror{}, errors.NewFriendlyError("The portmirror config "+
				"file doesn't exist at %q. Create it with a destination and "+
				"the device storages to mirror.", path)
		}
		return Mirror{}, errors.WithContext(err, "parse")
	}

	if config.Destination == "" {
		return Mirror{}, errors.MissingFieldError{Field: "destination"}
	}
	if len(config.Sources) == 0 {
		return Mirror{}, errors.MissingFieldError{Field: "sources"}
	}

	config.Destination, err = homedirExpand(config.Destination)
	if err != nil {
		return Mirror{}, errors.WithContext(err, "expand destination path")
	}

	// Evaluate relative destinations relative to the config path.
	if !filepath.IsAbs(config.Destination) {
		config.Destination = filepath.Join(filepath.Dir(path), config.Destination)
	}

	seen := map[string]bool{}
	for _, source := range config.Sources {
		if source.Name == "" {
			return Mirror{}, errors.MissingFieldError{Field: "sources[].name"}
		}
		if source.URL == "" {
			return Mirror{}, errors.MissingFieldError{Field: "sources[].url"}
		}
		if seen[source.Name] {
			return Mirror{}, errors.NewFriendlyError(
				"The source name %q is used twice in %q. Each storage needs "+
					"its own name because it becomes a destination subdirectory.",
				source.Name, path)
		}
		seen[source.Name] = true
	}

	return config, nil
}

func (c Mirror) getVersion() string {
	return c.Version
}

// homedirExpand will be overridden in mock tests.
var homedirExpand = homedir.Expand
