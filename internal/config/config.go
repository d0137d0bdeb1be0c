package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2/casing"
	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/framescale/internal/backend"
	"github.com/smazurov/framescale/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every `env` tag.
const EnvPrefix = "FRAMESCALE_"

// File is the reloadable part of the TOML config file.
type File struct {
	Logging  logging.Config
	Backends map[string]backend.CommandConfig
}

// LoadConfig fills opts with precedence CLI args > env vars > config file.
// opts must point to a struct; its Config field names the TOML file, `toml`
// tags give dotted paths into it and `env` tags name FRAMESCALE_ variables.
// Flags explicitly set on cmd are never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changedFlags := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		})
	}

	var configPath string
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String {
		configPath = f.String()
	}

	doc, err := readTOML(configPath)
	if err != nil {
		return err
	}

	for i := range v.NumField() {
		field := v.Field(i)
		fieldType := t.Field(i)
		if changedFlags[flagName(fieldType)] {
			continue
		}

		if tomlPath := fieldType.Tag.Get("toml"); tomlPath != "" && doc != nil {
			if value := getNestedValue(doc, tomlPath); value != nil {
				setFieldValue(field, value)
			}
		}
		if envKey := fieldType.Tag.Get("env"); envKey != "" {
			if envValue := os.Getenv(EnvPrefix + envKey); envValue != "" {
				setFieldValueFromString(field, envValue)
			}
		}
	}

	return nil
}

// readTOML parses path into a generic document. A missing file yields nil.
func readTOML(path string) (map[string]any, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse TOML config: %w", err)
	}
	return doc, nil
}

// flagName returns the CLI flag registered for a struct field: its `name`
// tag, or the kebab-cased field name as humacli derives it.
// Example: "LoggingLevel" -> "logging-level", "CRF" -> "crf".
func flagName(field reflect.StructField) string {
	if name := field.Tag.Get("name"); name != "" {
		return name
	}
	return casing.Kebab(field.Name)
}

// getNestedValue retrieves a value from nested map using dot notation.
func getNestedValue(data map[string]any, path string) any {
	current := data
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return current[parts[len(parts)-1]]
}

// setFieldValue assigns a decoded TOML value, ignoring type mismatches.
func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		// Numeric flags are strings on the CLI, ratio = 1.5 must still apply
		switch s := value.(type) {
		case string:
			field.SetString(s)
		case int64:
			field.SetString(strconv.FormatInt(s, 10))
		case float64:
			field.SetString(strconv.FormatFloat(s, 'f', -1, 64))
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch n := value.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		if arr, ok := value.([]any); ok {
			slice := make([]string, 0, len(arr))
			for _, item := range arr {
				if s, strOk := item.(string); strOk {
					slice = append(slice, s)
				}
			}
			field.Set(reflect.ValueOf(slice))
		}
	}
}

// setFieldValueFromString assigns an environment value, ignoring values that
// do not parse.
func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
}

// LoadFile reads the logging and backend sections of a TOML config file.
// Unlike LoadLoggingConfig it reports every failure, which is what a reload
// needs to keep the previous settings.
func LoadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, err
	}

	var raw struct {
		Logging  map[string]string                `toml:"logging"`
		Backends map[string]backend.CommandConfig `toml:"backends"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return File{}, fmt.Errorf("failed to parse TOML config: %w", err)
	}

	return File{
		Logging:  loggingConfig(raw.Logging),
		Backends: raw.Backends,
	}, nil
}

// LoadLoggingConfig loads logging configuration from a TOML config file.
// Returns default config if file doesn't exist or can't be parsed.
func LoadLoggingConfig(configPath string) logging.Config {
	if configPath == "" {
		return loggingConfig(nil)
	}
	f, err := LoadFile(configPath)
	if err != nil {
		return loggingConfig(nil)
	}
	return f.Logging
}

// LoadBackends returns the `[backends.<family>]` tables of the config file,
// keyed by family. A missing file or section yields an empty map.
func LoadBackends(configPath string) (map[string]backend.CommandConfig, error) {
	if configPath == "" {
		return map[string]backend.CommandConfig{}, nil
	}
	f, err := LoadFile(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]backend.CommandConfig{}, nil
	}
	if err != nil {
		return nil, err
	}
	if f.Backends == nil {
		return map[string]backend.CommandConfig{}, nil
	}
	return f.Backends, nil
}

// loggingConfig splits the [logging] table into global settings and
// per-module levels.
func loggingConfig(table map[string]string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	for key, value := range table {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
