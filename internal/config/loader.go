package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pelletier/go-toml/v2"
)

// Environment variables read by Load.
const (
	EnvPrefix  = "SCOUT_"
	EnvConfig  = EnvPrefix + "CONFIG"
	EnvDotEnv  = EnvPrefix + "ENV_FILE"
	defaultEnv = ".env"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New(ctx))
//  2. file (YAML or TOML) if SCOUT_CONFIG is set
//  3. .env file (or SCOUT_ENV_FILE); never overrides the real environment
//  4. env (prefix SCOUT_)
func Load(ctx context.Context) (*Config, error) {
	base := New(ctx)

	k := koanf.New(".")

	if path := os.Getenv(EnvConfig); path != "" {
		parser, err := parserFor(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	// Map env keys like SCOUT_OPR_QUEUE_SIZE -> opr_queue_size (flat keys).
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func parserFor(path string) (koanf.Parser, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Parser(), nil
	case ".toml":
		return tomlParser{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported config format %q", ErrLoadConfig, filepath.Ext(path))
	}
}

// loadDotEnv exports variables from the dotenv file. A missing default file
// is fine; a missing explicit one is not.
func loadDotEnv() error {
	path, explicit := os.LookupEnv(EnvDotEnv)
	if !explicit || path == "" {
		path = defaultEnv
	}
	if err := godotenv.Load(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
	}
	return nil
}

// tomlParser adapts go-toml to koanf.Parser.
type tomlParser struct{}

func (tomlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := toml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (tomlParser) Marshal(m map[string]interface{}) ([]byte, error) {
	return toml.Marshal(m)
}
