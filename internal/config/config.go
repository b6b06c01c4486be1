// Package config loads medcat settings from a YAML file, MEDCAT_ environment
// variables and built-in defaults, in increasing order of precedence:
// defaults < file < environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// AppName names the config directory and the environment prefix
	AppName = "medcat"
	// FileName is the config file looked up in the working directory
	FileName = "medcat.yaml"
	// EnvConfig points at an explicit config file
	EnvConfig = "MEDCAT_CONFIG"
)

// Default file names under data_dir
const (
	CatalogFile   = "catalog.json"
	HierarchyFile = "tag_hierarchy.json"
	GroupsFile    = "tag_groups.json"
)

type IDs struct {
	Scheme string `mapstructure:"scheme"`
	Prefix string `mapstructure:"prefix"`
	Width  int    `mapstructure:"width"`
}

type Export struct {
	FullText    bool `mapstructure:"full_text"`
	SearchIndex bool `mapstructure:"search_index"`
	SQLiteIndex bool `mapstructure:"sqlite_index"`
	TextLimit   int  `mapstructure:"text_limit"`
	CopyPDFs    bool `mapstructure:"copy_pdfs"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

// Config is the resolved configuration. Store paths are absolute or relative
// to the working directory once Load returns.
type Config struct {
	DataDir       string `mapstructure:"data_dir"`
	CatalogPath   string `mapstructure:"catalog_path"`
	HierarchyPath string `mapstructure:"hierarchy_path"`
	GroupsPath    string `mapstructure:"groups_path"`
	IDs           IDs    `mapstructure:"ids"`
	Export        Export `mapstructure:"export"`
	Log           Log    `mapstructure:"log"`
	Server        Server `mapstructure:"server"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		DataDir: ".",
		IDs:     IDs{Scheme: "sequential", Prefix: "paper", Width: 3},
		Export:  Export{SearchIndex: true, TextLimit: 5000},
		Log:     Log{Level: "info"},
		Server:  Server{Addr: "127.0.0.1:8080"},
	}
}

// Load reads the configuration. An explicit path must exist; otherwise the
// first of $MEDCAT_CONFIG, ./medcat.yaml and $XDG_CONFIG_HOME/medcat/config.yaml
// that exists is used, and none at all means defaults plus environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("catalog_path", d.CatalogPath)
	v.SetDefault("hierarchy_path", d.HierarchyPath)
	v.SetDefault("groups_path", d.GroupsPath)
	v.SetDefault("ids.scheme", d.IDs.Scheme)
	v.SetDefault("ids.prefix", d.IDs.Prefix)
	v.SetDefault("ids.width", d.IDs.Width)
	v.SetDefault("export.full_text", d.Export.FullText)
	v.SetDefault("export.search_index", d.Export.SearchIndex)
	v.SetDefault("export.sqlite_index", d.Export.SQLiteIndex)
	v.SetDefault("export.text_limit", d.Export.TextLimit)
	v.SetDefault("export.copy_pdfs", d.Export.CopyPDFs)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("server.addr", d.Server.Addr)

	v.SetEnvPrefix(AppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	file := path
	if file != "" {
		if !fileExists(file) {
			return nil, fmt.Errorf("config file not found: %s", file)
		}
	} else {
		file = lookup()
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.File = file
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	return &cfg, nil
}

func lookup() string {
	if p := os.Getenv(EnvConfig); p != "" && fileExists(p) {
		return p
	}
	if fileExists(FileName) {
		return FileName
	}
	if dir, err := Dir(); err == nil {
		if p := filepath.Join(dir, "config.yaml"); fileExists(p) {
			return p
		}
	}
	return ""
}

// Dir returns $XDG_CONFIG_HOME/medcat, defaulting to ~/.config/medcat
func Dir() (string, error) {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, AppName), nil
}

func (c *Config) validate() error {
	var errs []error
	switch c.IDs.Scheme {
	case "sequential", "uuid":
	default:
		errs = append(errs, fmt.Errorf("ids.scheme: unknown scheme %q", c.IDs.Scheme))
	}
	if c.IDs.Width < 1 {
		errs = append(errs, fmt.Errorf("ids.width: must be positive, got %d", c.IDs.Width))
	}
	if c.Export.TextLimit < 0 {
		errs = append(errs, fmt.Errorf("export.text_limit: must not be negative, got %d", c.Export.TextLimit))
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level: unknown level %q", c.Log.Level))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) resolvePaths() {
	if c.CatalogPath == "" {
		c.CatalogPath = filepath.Join(c.DataDir, CatalogFile)
	}
	if c.HierarchyPath == "" {
		c.HierarchyPath = filepath.Join(c.DataDir, HierarchyFile)
	}
	if c.GroupsPath == "" {
		c.GroupsPath = filepath.Join(c.DataDir, GroupsFile)
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
