package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// envPrefix namespaces every environment override.
const envPrefix = "SC0710_"

// LoadConfig fills opts with proper precedence: CLI args > env vars >
// TOML file > struct defaults. If cmd is provided, flags explicitly set
// on the command line are never overwritten.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	// The Config field names the TOML file itself.
	var path string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			path = v.Field(i).String()
			break
		}
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var file map[string]any
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("config: parse %s: %w", path, err)
			}
			for i := 0; i < v.NumField(); i++ {
				ft := t.Field(i)
				if changed[flagName(ft.Name)] {
					continue
				}
				if key := ft.Tag.Get("toml"); key != "" {
					if value := nestedValue(file, key); value != nil {
						setField(v.Field(i), value)
					}
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		ft := t.Field(i)
		if changed[flagName(ft.Name)] {
			continue
		}
		if key := ft.Tag.Get("env"); key != "" {
			if value := os.Getenv(envPrefix + key); value != "" {
				setFieldString(v.Field(i), value)
			}
		}
	}

	return nil
}

// LoadFile reads the TOML file at path into a fresh Options value. It
// is the loader used by the config watcher, so only file-backed fields
// move on reload.
func LoadFile(path string) (Options, error) {
	var opts Options
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config: %w", err)
	}
	var file map[string]any
	if err := toml.Unmarshal(data, &file); err != nil {
		return opts, fmt.Errorf("parse config: %w", err)
	}

	v := reflect.ValueOf(&opts).Elem()
	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		ft := t.Field(i)
		if def := ft.Tag.Get("default"); def != "" {
			setFieldString(v.Field(i), def)
		}
		if key := ft.Tag.Get("toml"); key != "" {
			if value := nestedValue(file, key); value != nil {
				setField(v.Field(i), value)
			}
		}
	}
	opts.Config = path
	return opts, nil
}

// flagName converts a struct field name to its CLI flag name,
// e.g. "LoggingLevel" -> "logging-level".
func flagName(field string) string {
	var out []rune
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// nestedValue resolves a dot path ("signal.poll_interval_ms") in the
// decoded TOML tree.
func nestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	cur := data
	for i, part := range parts {
		if i == len(parts)-1 {
			return cur[part]
		}
		next, ok := cur[part].(map[string]any)
		if !ok {
			return nil
		}
		cur = next
	}
	return nil
}

func setField(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
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
	}
}

func setFieldString(field reflect.Value, value string) {
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
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	}
}
