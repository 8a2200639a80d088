package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xyproto/env/v2"
	"gopkg.in/yaml.v3"

	"wacc/internal/codegen"
)

// DefaultFile is read from the working directory when no path is given.
const DefaultFile = "waccc.yaml"

// Config holds the build settings shared by every input of one run.
type Config struct {
	// Target is an architecture name, or "all" for every backend.
	Target   string `yaml:"target"`
	Optimize bool   `yaml:"optimize"`
	OutDir   string `yaml:"out_dir"`
	Debug    bool   `yaml:"debug"`
	Jobs     int    `yaml:"jobs"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Target: "arm",
		OutDir: "build",
		Jobs:   4,
	}
}

// Load reads path over the defaults and applies WACC_* environment
// overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Target = env.Str("WACC_TARGET", c.Target)
	c.OutDir = env.Str("WACC_OUT_DIR", c.OutDir)
	c.Jobs = env.Int("WACC_JOBS", c.Jobs)
	if env.Has("WACC_OPTIMIZE") {
		c.Optimize = env.Bool("WACC_OPTIMIZE")
	}
	if env.Has("WACC_DEBUG") {
		c.Debug = env.Bool("WACC_DEBUG")
	}
}

// Validate rejects unknown targets and non-positive job counts.
func (c Config) Validate() error {
	if _, err := c.Targets(); err != nil {
		return err
	}
	if c.Jobs <= 0 {
		return fmt.Errorf("config: jobs must be positive, got %d", c.Jobs)
	}
	if c.OutDir == "" {
		return errors.New("config: out_dir is empty")
	}
	return nil
}

// Targets expands Target into the backends to build.
func (c Config) Targets() ([]*codegen.Target, error) {
	if strings.EqualFold(c.Target, "all") {
		out := make([]*codegen.Target, 0, len(codegen.Arches))
		for _, a := range codegen.Arches {
			out = append(out, codegen.NewTarget(a))
		}
		return out, nil
	}
	t, err := codegen.ResolveTarget(c.Target)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return []*codegen.Target{t}, nil
}
