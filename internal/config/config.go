// Package config loads the YAML configuration through viper, with include
// files, key-aware defaults, validation and hot reload.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"conductor/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func Load(path string) (*Config, error) {
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	if p := strings.TrimSpace(cfg.Optimization.TunablesPath); p != "" {
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(files[len(files)-1]), p)
		}
		extra, err := LoadTunables(p)
		if err != nil {
			return nil, err
		}
		cfg.Optimization.Tunables = mergeTunables(cfg.Optimization.Tunables, extra)
	}
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type tunablesFile struct {
	Tunables []TunableConfig `yaml:"tunables"`
}

// LoadTunables reads a standalone tunables file. Unknown keys are rejected.
func LoadTunables(path string) ([]TunableConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading tunables failed (%s): %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	var file tunablesFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("parsing tunables failed (%s): %w", path, err)
	}
	return file.Tunables, nil
}

// mergeTunables appends extra to base; entries in extra win on name clashes.
func mergeTunables(base, extra []TunableConfig) []TunableConfig {
	idx := make(map[string]int, len(base))
	out := append([]TunableConfig(nil), base...)
	for i, t := range out {
		idx[strings.TrimSpace(t.Name)] = i
	}
	for _, t := range extra {
		name := strings.TrimSpace(t.Name)
		if i, ok := idx[name]; ok {
			out[i] = t
			continue
		}
		idx[name] = len(out)
		out = append(out, t)
	}
	return out
}

// Watch reloads the file on change and hands every valid result to onChange.
// Invalid edits are logged and skipped; the previous config stays in force.
func Watch(path string, onChange func(*Config)) error {
	if onChange == nil {
		return fmt.Errorf("config watch requires a callback")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("watch config %s: %w", path, err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if !evt.Has(fsnotify.Write) && !evt.Has(fsnotify.Create) {
			return
		}
		cfg, err := Load(path)
		if err != nil {
			logger.Errorf("config reload failed: %v", err)
			return
		}
		logger.Infof("config reloaded from %s (%s)", evt.Name, cfg)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

// resolveConfigIncludes returns path and everything it includes, depth
// first, so later files override earlier ones.
func resolveConfigIncludes(path string) ([]string, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	r := includeResolver{done: map[string]bool{}, active: map[string]bool{}}
	if err := r.walk(abs); err != nil {
		return nil, err
	}
	return r.files, nil
}

type includeResolver struct {
	done   map[string]bool
	active map[string]bool
	files  []string
}

func (r *includeResolver) walk(path string) error {
	path = filepath.Clean(path)
	switch {
	case r.active[path]:
		return fmt.Errorf("include cycle detected: %s", path)
	case r.done[path]:
		return nil
	}
	r.active[path] = true
	includes, err := readIncludes(path)
	if err != nil {
		return fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := r.walk(inc); err != nil {
			return err
		}
	}
	delete(r.active, path)
	r.done[path] = true
	r.files = append(r.files, path)
	return nil
}

func readIncludes(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	var raw []any
	switch val := v.Get("include").(type) {
	case nil:
		return nil, nil
	case []any:
		raw = val
	case []string:
		for _, s := range val {
			raw = append(raw, s)
		}
	default:
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	for k, v := range settings {
		markKeys(strings.ToLower(strings.TrimSpace(k)), v, dest)
	}
}

func markKeys(prefix string, node any, dest keySet) {
	if prefix == "" {
		return
	}
	if m, ok := node.(map[string]any); ok {
		for k, v := range m {
			key := strings.ToLower(strings.TrimSpace(k))
			if key != "" {
				markKeys(prefix+"."+key, v, dest)
			}
		}
		return
	}
	dest.mark(prefix)
}
