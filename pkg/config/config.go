// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads fluxcheck settings from defaults, an optional YAML
// file with profile overlay, FLUXCHECK_ environment variables and CLI
// overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/jllopis/fluxcheck/pkg/jobspec"
)

// EnvPrefix is stripped from environment variables before mapping them to
// keys: FLUXCHECK_SERVER_ADDR -> server.addr.
const EnvPrefix = "FLUXCHECK_"

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Server     ServerConfig     `koanf:"server"`
	Validation ValidationConfig `koanf:"validation"`
	Audit      AuditConfig      `koanf:"audit"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter     string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint string `koanf:"otlp_endpoint"`
	OTLPInsecure bool   `koanf:"otlp_insecure"`
}

type ServerConfig struct {
	Name      string `koanf:"name"`
	Transport string `koanf:"transport"` // stdio, http
	Addr      string `koanf:"addr"`
}

type ValidationConfig struct {
	Mode     string `koanf:"mode"` // collect-all, fail-fast
	MaxDepth int    `koanf:"max_depth"`
}

// ValidationMode parses Mode.
func (v ValidationConfig) ValidationMode() (jobspec.Mode, error) {
	return jobspec.ParseMode(v.Mode)
}

type AuditConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"` // sqlite file; empty keeps records in memory
}

var defaults = map[string]interface{}{
	"log.level":               "info",
	"log.format":              "text",
	"telemetry.exporter":      "none",
	"telemetry.otlp_endpoint": "",
	"telemetry.otlp_insecure": false,
	"server.name":             "fluxcheck",
	"server.transport":        "stdio",
	"server.addr":             ":8089",
	"validation.mode":         "collect-all",
	"validation.max_depth":    jobspec.DefaultMaxDepth,
	"audit.enabled":           false,
	"audit.path":              "",
}

// Load reads the config file at path (optional) and the environment.
func Load(path string) (*Config, error) {
	return load(cliOverrides{configPath: path})
}

// LoadWithProfile overlays config.<profile>.yaml next to path when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(cliOverrides{configPath: path, profile: profile})
}

// LoadWithCLI understands --config, --profile (alias --env) and repeated
// --set key=value arguments. Other arguments are ignored.
func LoadWithCLI(args []string) (*Config, error) {
	o, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(o)
}

type cliOverrides struct {
	configPath string
	profile    string
	sets       map[string]interface{}
}

func load(o cliOverrides) (*Config, error) {
	k := koanf.New(".")
	for key, v := range defaults {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if o.configPath != "" {
		if err := k.Load(file.Provider(o.configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config %s: %w", o.configPath, err)
		}
		if p := profileConfigPath(o.configPath, o.profile); p != "" {
			if err := k.Load(file.Provider(p), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load profile config %s: %w", p, err)
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	for key, v := range o.sets {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	if _, err := cfg.Validation.ValidationMode(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FLUXCHECK_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
}

func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	ext := filepath.Ext(base)
	p := strings.TrimSuffix(base, ext) + "." + profile + ext
	if _, err := os.Stat(p); err != nil {
		return ""
	}
	return p
}

func parseCLIOverrides(args []string) (cliOverrides, error) {
	o := cliOverrides{sets: map[string]interface{}{}}
	for i := 0; i < len(args); i++ {
		name, value, inline := strings.Cut(args[i], "=")
		switch name {
		case "--config", "--profile", "--env", "--set":
		default:
			continue
		}
		if !inline {
			if i+1 >= len(args) {
				return o, fmt.Errorf("missing value for %s", name)
			}
			i++
			value = args[i]
		}
		switch name {
		case "--config":
			o.configPath = value
		case "--profile", "--env":
			o.profile = value
		case "--set":
			key, raw, ok := strings.Cut(value, "=")
			if !ok || strings.TrimSpace(key) == "" {
				return o, fmt.Errorf("invalid --set value %q, expected key=value", value)
			}
			o.sets[strings.TrimSpace(key)] = parseValue(raw)
		}
	}
	return o, nil
}

// parseValue decodes a --set value as YAML so numbers, booleans and inline
// maps keep their type. Anything that fails to decode stays a string.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := yamlv3.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}
