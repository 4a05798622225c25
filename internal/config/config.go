// Package config loads the mdv project configuration.
//
// Sources are layered, the later ones winning: built-in defaults, the mdv.yaml file, MDV_
// environment variables and finally the flags that were explicitly set on the command line.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwtly10/mdv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const (
	DefaultSrcRoot  = "src"
	DefaultCacheDir = ".mdv"
	envPrefix       = "MDV_"
)

// FileNames are the config file names looked up in the working directory, in order
var FileNames = []string{"mdv.yaml", "mdv.yml"}

type Config struct {
	// Directory scanned for .v.md documents
	SrcRoot string `koanf:"src_root"`
	// Directory receiving the compiled artifacts
	CacheDir string `koanf:"cache_dir"`
	// Keep cached components whose source document is gone
	SkipCleanup bool `koanf:"skip_cleanup"`
	// Number of documents compiled in parallel
	Workers int `koanf:"workers"`
	// Chroma style used for code blocks
	Theme              string            `koanf:"theme"`
	CodeBlockComponent string            `koanf:"code_block_component"`
	CustomComponents   map[string]string `koanf:"custom_components"`
	ScriptSetupProps   string            `koanf:"script_setup_props"`
	// Run the script block of every document through esbuild
	CheckScript bool `koanf:"check_script"`
	Debug       bool `koanf:"debug"`

	// The config file that was loaded, empty when none was found
	File string `koanf:"-"`
}

// CompileOptions maps the configuration onto compiler options
func (c *Config) CompileOptions() mdv.Options {
	return mdv.Options{
		CustomComponents:   c.CustomComponents,
		ScriptSetupProps:   c.ScriptSetupProps,
		CodeBlockComponent: c.CodeBlockComponent,
	}
}

func (c *Config) Pretty() string {
	return fmt.Sprintf("src=%s cache=%s workers=%d theme=%s cleanup=%s check_script=%s",
		c.SrcRoot, c.CacheDir, c.Workers, c.Theme, boolToText(!c.SkipCleanup), boolToText(c.CheckScript))
}

func boolToText(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// Load resolves the configuration. cfgFile may be empty, in which case mdv.yaml is looked up in
// the working directory. flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]any{
		"src_root":             DefaultSrcRoot,
		"cache_dir":            DefaultCacheDir,
		"skip_cleanup":         false,
		"workers":              4,
		"theme":                mdv.DefaultTheme,
		"code_block_component": mdv.DefaultCodeBlockComponent,
		"check_script":         false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	used := findConfigFile(cfgFile)
	if used != "" {
		if err := k.Load(file.Provider(used), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", used, err)
		}
		slog.Debug("loaded config file", "path", used)
	}

	// MDV_CACHE_DIR -> cache_dir
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("loading flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.File = used

	if err := cfg.resolve(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	for _, name := range FileNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// resolve makes the directories absolute, relative to the config file when there is one
func (c *Config) resolve() error {
	base := "."
	if c.File != "" {
		base = filepath.Dir(c.File)
	}

	var err error
	if c.SrcRoot, err = absFrom(base, c.SrcRoot); err != nil {
		return fmt.Errorf("resolving src_root: %w", err)
	}
	if c.CacheDir, err = absFrom(base, c.CacheDir); err != nil {
		return fmt.Errorf("resolving cache_dir: %w", err)
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	return nil
}

func absFrom(base, path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	return filepath.Abs(path)
}
