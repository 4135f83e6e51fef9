package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes environment overrides, e.g. PAGEGEN_WORKFLOW_CYCLE_LIMIT.
const EnvPrefix = "PAGEGEN_"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads a JSON or YAML (by extension) config file, substitutes ${VAR}
// placeholders, applies PAGEGEN_* environment overrides and defaults, and
// validates the result. An empty path yields the defaults plus overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := Parse(data, filepath.Ext(path), cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Parse decodes data into cfg after ${VAR} substitution. ext selects the
// format: ".yaml" and ".yml" are YAML, anything else JSON.
func Parse(data []byte, ext string, cfg *Config) error {
	expanded := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
		if value := os.Getenv(match[2 : len(match)-1]); value != "" {
			return value
		}
		return match // unset variables stay visible
	})

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("failed to parse config YAML: %w", err)
		}
	default:
		if err := json.Unmarshal([]byte(expanded), cfg); err != nil {
			return fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	v := reflect.ValueOf(cfg).Elem()
	applyEnvOverridesRecursive(v, v.Type(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, t reflect.Type, prefix string) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}
		envKey := prefix + strings.ToUpper(strings.Split(jsonTag, ",")[0])

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, field.Type(), envKey+"_")
			continue
		}
		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	if field.Type() == reflect.TypeOf(Duration(0)) {
		if d, err := time.ParseDuration(envValue); err == nil {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(envValue); err == nil {
			field.SetInt(int64(val))
		}
	case reflect.Float32, reflect.Float64:
		if val, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(envValue); err == nil {
			field.SetBool(val)
		}
	default:
	}
}
