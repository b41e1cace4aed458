package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codalotl/mergeview/internal/align"
	"github.com/codalotl/mergeview/internal/diff"
	"github.com/codalotl/mergeview/internal/mergeview"
	"github.com/codalotl/mergeview/internal/paneview"
	"github.com/codalotl/mergeview/internal/tui"
)

// Config is mergeview's configuration loaded from a cascade of sources, lowest precedence first:
//   - built-in defaults
//   - ~/.mergeview/config.json
//   - the nearest .mergeview/config.json, walking up from the working directory
//   - MERGEVIEW_* environment variables (ex: MERGEVIEW_COLLAPSEMARGIN=3)
//   - command-line flags
//
// Unknown keys in config files are an error.
type Config struct {
	Align            bool   `mapstructure:"align" json:"align"`
	Collapse         bool   `mapstructure:"collapse" json:"collapse"`
	CollapseMargin   int    `mapstructure:"collapsemargin" json:"collapsemargin"`
	IgnoreWhitespace bool   `mapstructure:"ignorewhitespace" json:"ignorewhitespace"`
	Algorithm        string `mapstructure:"algorithm" json:"algorithm"`

	// Theme is a chroma style name, "none", or empty for one matching the palette.
	Theme   string `mapstructure:"theme" json:"theme"`
	Palette string `mapstructure:"palette" json:"palette"`
	Wrap    bool   `mapstructure:"wrap" json:"wrap"`

	// Debounce delays of diff recomputation, in milliseconds.
	FastDelayMS int `mapstructure:"fastdelayms" json:"fastdelayms"`
	SlowDelayMS int `mapstructure:"slowdelayms" json:"slowdelayms"`

	ScrollLock     bool `mapstructure:"scrolllock" json:"scrolllock"`
	MatchTolerance int  `mapstructure:"matchtolerance" json:"matchtolerance"`
}

const (
	configDirName  = ".mergeview"
	configFileName = "config.json"
	envPrefix      = "MERGEVIEW"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("align", true)
	v.SetDefault("collapse", false)
	v.SetDefault("collapsemargin", 2)
	v.SetDefault("ignorewhitespace", false)
	v.SetDefault("algorithm", string(diff.AlgorithmChars))
	v.SetDefault("theme", "")
	v.SetDefault("palette", string(tui.PaletteAuto))
	v.SetDefault("wrap", false)
	v.SetDefault("fastdelayms", 20)
	v.SetDefault("slowdelayms", 250)
	v.SetDefault("scrolllock", true)
	v.SetDefault("matchtolerance", 0)
}

// flagKeys maps flag names to config keys. Flags are bound only if the command defines them.
var flagKeys = map[string]string{
	"align":             "align",
	"collapse":          "collapse",
	"margin":            "collapsemargin",
	"ignore-whitespace": "ignorewhitespace",
	"algorithm":         "algorithm",
	"theme":             "theme",
	"palette":           "palette",
	"wrap":              "wrap",
	"scroll-lock":       "scrolllock",
}

// loadConfig loads the configuration cascade, with cmd's flags on top. cmd may be nil.
func loadConfig(cmd *cobra.Command) (Config, error) {
	v := viper.New()
	v.SetConfigType("json")
	setDefaults(v)

	var files []string
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		files = append(files, filepath.Join(home, configDirName, configFileName))
	}
	if wd, err := os.Getwd(); err == nil {
		if p := nearestFile(wd, filepath.Join(configDirName, configFileName)); p != "" {
			files = append(files, p)
		}
	}
	seen := make(map[string]bool)
	for _, p := range files {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := mergeConfigFile(v, p); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	if cmd != nil {
		for name, key := range flagKeys {
			if f := cmd.Flags().Lookup(name); f != nil {
				_ = v.BindPFlag(key, f)
			}
		}
	}

	var cfg Config
	if err := v.UnmarshalExact(&cfg); err != nil {
		return Config{}, fmt.Errorf("load configuration: %w", err)
	}
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// mergeConfigFile merges the JSON file at path into v. A missing file is not an error.
func mergeConfigFile(v *viper.Viper, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	defer f.Close()
	if err := v.MergeConfig(f); err != nil {
		return fmt.Errorf("load configuration %s: %w", path, err)
	}
	return nil
}

// nearestFile returns the first dir/rel that exists as a regular file, walking up from dir to the filesystem root, or "".
func nearestFile(dir, rel string) string {
	for {
		p := filepath.Join(dir, rel)
		if fi, err := os.Stat(p); err == nil && fi.Mode().IsRegular() {
			return p
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func validateConfig(cfg Config) error {
	if _, err := diff.ParseAlgorithm(cfg.Algorithm); err != nil {
		return fmt.Errorf("invalid configuration: algorithm: %w", err)
	}
	if _, ok := tui.ParsePaletteName(cfg.Palette); !ok {
		return fmt.Errorf("invalid configuration: palette %q (want auto, dark, light or plain)", cfg.Palette)
	}
	if cfg.CollapseMargin < 0 {
		return fmt.Errorf("invalid configuration: collapsemargin must be >= 0 (got %d)", cfg.CollapseMargin)
	}
	if cfg.FastDelayMS <= 0 || cfg.SlowDelayMS <= 0 {
		return fmt.Errorf("invalid configuration: fastdelayms and slowdelayms must be > 0")
	}
	if cfg.FastDelayMS > cfg.SlowDelayMS {
		return fmt.Errorf("invalid configuration: fastdelayms (%d) must not exceed slowdelayms (%d)", cfg.FastDelayMS, cfg.SlowDelayMS)
	}
	if cfg.MatchTolerance < 0 {
		return fmt.Errorf("invalid configuration: matchtolerance must be >= 0 (got %d)", cfg.MatchTolerance)
	}
	return nil
}

func writeConfigJSON(w io.Writer, cfg Config) error {
	b, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	_, err = w.Write(b)
	return err
}

// diffOptions returns the diff options of cfg. cfg must be valid.
func (cfg Config) diffOptions() diff.Options {
	alg, _ := diff.ParseAlgorithm(cfg.Algorithm)
	return diff.Options{IgnoreWhitespace: cfg.IgnoreWhitespace, Algorithm: alg}
}

// sessionOptions returns the merge session options of cfg. cfg must be valid.
func (cfg Config) sessionOptions() mergeview.Options {
	return mergeview.Options{
		Diff: paneview.Options{
			Diff:      cfg.diffOptions(),
			FastDelay: time.Duration(cfg.FastDelayMS) * time.Millisecond,
			SlowDelay: time.Duration(cfg.SlowDelayMS) * time.Millisecond,
		},
		Align:          cfg.Align,
		AlignOptions:   align.Options{MatchTolerance: cfg.MatchTolerance},
		Collapse:       cfg.Collapse,
		CollapseMargin: cfg.CollapseMargin,
		ScrollLock:     cfg.ScrollLock,
	}
}
