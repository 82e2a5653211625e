package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/mattn/go-shellwords"
	"github.com/spf13/viper"
)

// DirName is the per-project state directory.
const DirName = ".flowverify"

// LoadOptions controls configuration loading.
type LoadOptions struct {
	// ProjectDir is used to locate .flowverify/config.toml. Defaults to CWD when empty.
	ProjectDir string
	// ConfigPath overrides the project config path if provided.
	ConfigPath string
	// FlagOverrides are highest-priority overrides from CLI flags (dot-notated keys).
	FlagOverrides map[string]any
	// SkipUserConfig ignores ~/.flowverify/config.toml (used by tests).
	SkipUserConfig bool
}

// Load returns the effective configuration after applying precedence:
// defaults < user < project < env (FLOWVERIFY_*) < flags.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()
	if err := setDefaults(v); err != nil {
		return Config{}, err
	}

	projectDir := opts.ProjectDir
	if projectDir == "" {
		if cwd, err := os.Getwd(); err == nil {
			projectDir = cwd
		}
	}

	if !opts.SkipUserConfig {
		if err := mergeConfigFile(v, userConfigPath()); err != nil {
			return Config{}, err
		}
	}
	if err := mergeConfigFile(v, ProjectConfigPath(projectDir, opts.ConfigPath)); err != nil {
		return Config{}, err
	}
	if err := applyEnvOverrides(v); err != nil {
		return Config{}, err
	}
	for k, val := range opts.FlagOverrides {
		v.Set(k, val)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.resolvePaths(projectDir)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// resolvePaths anchors relative artifact and history paths at the project dir.
func (c *Config) resolvePaths(projectDir string) {
	if projectDir == "" {
		return
	}
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(projectDir, p)
	}
	c.Artifacts.ScreenshotPath = abs(c.Artifacts.ScreenshotPath)
	c.Artifacts.FailureDir = abs(c.Artifacts.FailureDir)
	c.Artifacts.LogDir = abs(c.Artifacts.LogDir)
	c.History.DatabasePath = abs(c.History.DatabasePath)
}

// Args splits browser.extra_args with shell quoting rules.
func (b BrowserConfig) Args() ([]string, error) {
	if strings.TrimSpace(b.ExtraArgs) == "" {
		return nil, nil
	}
	args, err := shellwords.Parse(b.ExtraArgs)
	if err != nil {
		return nil, fmt.Errorf("parsing browser.extra_args: %w", err)
	}
	return args, nil
}

// setDefaults seeds viper with built-in defaults.
func setDefaults(v *viper.Viper) error {
	flat, err := flatten(DefaultConfig())
	if err != nil {
		return err
	}
	for k, val := range flat {
		v.SetDefault(k, val)
	}
	return nil
}

// mergeConfigFile merges the TOML config file if it exists.
func mergeConfigFile(v *viper.Viper, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat config %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("config path %s is a directory", path)
	}
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("merge config %s: %w", path, err)
	}
	return nil
}

// envAliases are short names kept for CI convenience.
var envAliases = []struct {
	Env string
	Key string
}{
	{"FLOWVERIFY_BASE_URL", "target.base_url"},
	{"FLOWVERIFY_DRIVER", "browser.driver"},
	{"FLOWVERIFY_HEADLESS", "browser.headless"},
	{"FLOWVERIFY_CHROME_BIN", "browser.bin"},
	{"FLOWVERIFY_ADMIN_EMAIL", "admin.email"},
	{"FLOWVERIFY_ADMIN_PASSWORD", "admin.password"},
}

// EnvName returns the FLOWVERIFY_* variable bound to a dot-notated key.
func EnvName(key string) string {
	return "FLOWVERIFY_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// applyEnvOverrides reads FLOWVERIFY_* env vars and applies them.
func applyEnvOverrides(v *viper.Viper) error {
	apply := func(env, key string) error {
		raw := os.Getenv(env)
		if raw == "" {
			return nil
		}
		parsed, err := ParseValue(key, raw)
		if err != nil {
			return fmt.Errorf("env %s: %w", env, err)
		}
		v.Set(key, parsed)
		return nil
	}

	for _, a := range envAliases {
		if err := apply(a.Env, a.Key); err != nil {
			return err
		}
	}
	for _, key := range Keys() {
		if err := apply(EnvName(key), key); err != nil {
			return err
		}
	}
	return nil
}

// ConfigPaths returns the user and project config file paths.
func ConfigPaths(projectDir, configOverride string) (string, string) {
	return userConfigPath(), ProjectConfigPath(projectDir, configOverride)
}

func userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, DirName, "config.toml")
}

// ProjectConfigPath returns the config file used for a project directory.
func ProjectConfigPath(projectDir, override string) string {
	if override != "" {
		return override
	}
	if projectDir == "" {
		return filepath.Join(DirName, "config.toml")
	}
	return filepath.Join(projectDir, DirName, "config.toml")
}

// Keys returns every dot-notated configuration key, sorted.
func Keys() []string {
	flat, err := flatten(DefaultConfig())
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ParseValue parses a raw string into the expected type for a given config key.
func ParseValue(key, raw string) (any, error) {
	flat, err := flatten(DefaultConfig())
	if err != nil {
		return nil, err
	}
	def, ok := flat[key]
	if !ok {
		return nil, fmt.Errorf("unsupported key %q", key)
	}
	switch def.(type) {
	case bool:
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("expected boolean: %w", err)
		}
		return v, nil
	case int64:
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("expected integer: %w", err)
		}
		return v, nil
	default:
		return raw, nil
	}
}

// GetValue retrieves a dot-notated value (a leaf or a whole section) from the Config.
func GetValue(cfg Config, key string) (any, bool) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, false
	}
	var current any = m
	for _, seg := range strings.Split(key, ".") {
		section, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = section[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// WriteValue sets a single key/value into the specified TOML config file (creating it if needed).
func WriteValue(path, key string, value any) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	existing := map[string]any{}
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &existing); err != nil {
			return fmt.Errorf("decode config: %w", err)
		}
	}

	if err := setNested(existing, key, value); err != nil {
		return err
	}
	return writeTOML(path, existing)
}

// WriteDefault writes the default configuration to path unless it already
// exists and force is false. Returns true when the file was written.
func WriteDefault(path string, force bool) (bool, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return false, nil
	}
	if err := writeTOML(path, DefaultConfig()); err != nil {
		return false, err
	}
	return true, nil
}

func writeTOML(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	enc.Indent = "  "
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

func setNested(m map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	cur := m
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("invalid key %q", key)
		}
		if i == len(parts)-1 {
			cur[p] = value
			return nil
		}
		next, ok := cur[p]
		if !ok {
			child := map[string]any{}
			cur[p] = child
			cur = child
			continue
		}
		childMap, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("cannot set %s: %s is not a table", key, strings.Join(parts[:i+1], "."))
		}
		cur = childMap
	}
	return nil
}

// toMap round-trips cfg through TOML so keys follow the toml tags.
func toMap(cfg Config) (map[string]any, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	m := map[string]any{}
	if _, err := toml.Decode(buf.String(), &m); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return m, nil
}

func flatten(cfg Config) (map[string]any, error) {
	m, err := toMap(cfg)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	var walk func(prefix string, m map[string]any)
	walk = func(prefix string, m map[string]any) {
		for k, v := range m {
			key := k
			if prefix != "" {
				key = prefix + "." + k
			}
			if child, ok := v.(map[string]any); ok {
				walk(key, child)
				continue
			}
			out[key] = v
		}
	}
	walk("", m)
	return out, nil
}
