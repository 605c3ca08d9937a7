package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides for secrets, e.g. STACKER_EXCHANGES_BINANCE_API_KEY.
const EnvPrefix = "STACKER"

var secretKeys = []string{
	"exchanges.binance.api_key",
	"exchanges.binance.api_secret",
	"notify.telegram.bot_token",
	"notify.telegram.chat_id",
}

// Load reads path and its include files (later files win), applies secret
// overrides from the environment, fills defaults and validates.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}
	root, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	v := viper.New()
	v.SetConfigType("yaml")
	inc := &includeLoader{into: v, loaded: map[string]bool{}, open: map[string]bool{}}
	if err := inc.load(root); err != nil {
		return nil, err
	}

	// Only keys present in the files count as explicitly set; env bindings do not.
	setKeys := make(keySet)
	for _, key := range v.AllKeys() {
		setKeys.mark(key)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for _, key := range secretKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// includeLoader merges a config file after the files it includes, depth first.
// Each file is read once; a file reached twice through different parents is merged once.
type includeLoader struct {
	into   *viper.Viper
	loaded map[string]bool
	open   map[string]bool
}

func (l *includeLoader) load(path string) error {
	path = filepath.Clean(path)
	if l.open[path] {
		return fmt.Errorf("include cycle detected: %s", path)
	}
	if l.loaded[path] {
		return nil
	}
	l.open[path] = true
	defer delete(l.open, path)

	file := viper.New()
	file.SetConfigFile(path)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file failed (%s): %w", path, err)
	}
	for _, inc := range file.GetStringSlice("include") {
		if inc = strings.TrimSpace(inc); inc == "" {
			continue
		}
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		if err := l.load(inc); err != nil {
			return err
		}
	}

	settings := file.AllSettings()
	delete(settings, "include")
	if err := l.into.MergeConfigMap(settings); err != nil {
		return fmt.Errorf("merging config file failed (%s): %w", path, err)
	}
	l.loaded[path] = true
	return nil
}
