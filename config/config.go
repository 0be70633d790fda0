// Package config loads the server configuration from flags, environment
// variables and an optional JSONC file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/goccy/go-json"
	flag "github.com/spf13/pflag"
	"github.com/tailscale/hujson"

	"github.com/stevemurr/plaindb/codec"
	"github.com/stevemurr/plaindb/store"
)

var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config")
)

// Config holds the server settings.
type Config struct {
	Addr           string `json:"addr"`
	Backend        string `json:"backend"`
	DataDir        string `json:"data_dir"`
	Codec          string `json:"codec"`
	Compress       string `json:"compress"`
	DefaultTable   string `json:"default_table"`
	LogLevel       string `json:"log_level"`
	LogFormat      string `json:"log_format"`
	AllowedOrigins string `json:"allowed_origins"`

	// File is the config file that was loaded, if any.
	File string `json:"-"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Addr:           "0.0.0.0:8080",
		Backend:        "json",
		DataDir:        "./data",
		DefaultTable:   "_default",
		LogLevel:       "info",
		LogFormat:      "text",
		AllowedOrigins: "*",
	}
}

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PLAINDB_"

type option struct {
	name  string
	usage string
	field func(*Config) *string
}

var options = []option{
	{"addr", "listen address", func(c *Config) *string { return &c.Addr }},
	{"backend", "storage backend: json, yaml, sqlite or memory", func(c *Config) *string { return &c.Backend }},
	{"data-dir", "directory holding the database file", func(c *Config) *string { return &c.DataDir }},
	{"codec", "file encoding: json, go-json or yaml (default: chosen by backend)", func(c *Config) *string { return &c.Codec }},
	{"compress", "file compression: zstd or lz4", func(c *Config) *string { return &c.Compress }},
	{"default-table", "table the root document methods use", func(c *Config) *string { return &c.DefaultTable }},
	{"log-level", "debug, info, warn or error", func(c *Config) *string { return &c.LogLevel }},
	{"log-format", "text or json", func(c *Config) *string { return &c.LogFormat }},
	{"allowed-origins", "comma separated CORS origins", func(c *Config) *string { return &c.AllowedOrigins }},
}

// envName maps a flag name to its environment variable: data-dir becomes
// PLAINDB_DATA_DIR.
func envName(flagName string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

func newFlagSet(into *Config, configPath *string) *flag.FlagSet {
	fs := flag.NewFlagSet("plaindb", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	def := Default()
	for _, o := range options {
		fs.StringVar(o.field(into), o.name, *o.field(&def), fmt.Sprintf("%s [$%s]", o.usage, envName(o.name)))
	}
	fs.StringVarP(configPath, "config", "c", "", fmt.Sprintf("JSONC config file [$%s]", envName("config")))
	return fs
}

// Usage returns the flag help text.
func Usage() string {
	var c Config
	var path string
	return newFlagSet(&c, &path).FlagUsages()
}

// Load resolves the configuration. Precedence, highest first: command line
// flags, PLAINDB_* environment variables, the config file named by --config
// or PLAINDB_CONFIG, defaults.
//
// A --help flag yields flag.ErrHelp.
func Load(args []string, getenv func(string) string) (Config, error) {
	var flags Config
	var configPath string
	fs := newFlagSet(&flags, &configPath)
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	if fs.NArg() > 0 {
		return Config{}, fmt.Errorf("%w: unexpected arguments %v", ErrConfigInvalid, fs.Args())
	}

	cfg := Default()

	if !fs.Changed("config") {
		configPath = getenv(envName("config"))
	}
	if configPath != "" {
		if err := loadFile(&cfg, configPath); err != nil {
			return Config{}, err
		}
		cfg.File = configPath
	}

	for _, o := range options {
		if v := getenv(envName(o.name)); v != "" {
			*o.field(&cfg) = v
		}
	}
	for _, o := range options {
		if fs.Changed(o.name) {
			*o.field(&cfg) = *o.field(&flags)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadFile overlays the settings present in a JSONC file onto cfg.
func loadFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigFileNotFound, path)
		}
		return fmt.Errorf("%w: %s: %w", ErrConfigFileRead, path, err)
	}

	// Standardize JSONC to JSON
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return fmt.Errorf("%w %s: invalid JSONC: %w", ErrConfigInvalid, path, err)
	}
	dec := json.NewDecoder(bytes.NewReader(standardized))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w %s: %w", ErrConfigInvalid, path, err)
	}
	return nil
}

// backendCodecs lists the codecs that can encode each backend's file. The
// file extension is fixed by the backend, so the encoding has to agree.
var backendCodecs = map[string][]string{
	"json": {"json", "go-json"},
	"yaml": {"yaml"},
}

// Validate checks that every setting names something that exists.
func (c Config) Validate() error {
	switch c.Backend {
	case "json", "yaml", "sqlite", "memory":
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrConfigInvalid, c.Backend)
	}
	if c.Codec != "" {
		cd, ok := codec.ByName(c.Codec)
		if !ok {
			return fmt.Errorf("%w: unknown codec %q (have %s)", ErrConfigInvalid, c.Codec, strings.Join(codec.Names(), ", "))
		}
		if fits := backendCodecs[c.Backend]; !slices.Contains(fits, cd.Name()) {
			if len(fits) == 0 {
				return fmt.Errorf("%w: backend %q does not take a codec", ErrConfigInvalid, c.Backend)
			}
			return fmt.Errorf("%w: codec %q cannot write the %s backend's file (use %s)",
				ErrConfigInvalid, c.Codec, c.Backend, strings.Join(fits, " or "))
		}
	}
	if _, err := store.ParseCompression(c.Compress); err != nil {
		return fmt.Errorf("%w: %w", ErrConfigInvalid, err)
	}
	if c.Addr == "" {
		return fmt.Errorf("%w: empty listen address", ErrConfigInvalid)
	}
	if c.DefaultTable == "" {
		return fmt.Errorf("%w: empty default table", ErrConfigInvalid)
	}
	if _, err := c.level(); err != nil {
		return err
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("%w: unknown log format %q", ErrConfigInvalid, c.LogFormat)
	}
	return nil
}

// Origins splits AllowedOrigins.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("%w: log level: %w", ErrConfigInvalid, err)
	}
	return l, nil
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	l, _ := c.level()
	opts := &slog.HandlerOptions{Level: l}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
