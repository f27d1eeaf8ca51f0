package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/fakecam/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag, e.g. FAKECAM_VIDEO_DEVICE.
const EnvPrefix = "FAKECAM_"

var durationType = reflect.TypeOf(time.Duration(0))

// LoadConfig fills the tagged fields of the struct opts points to.
// Precedence is CLI flags > FAKECAM_* env vars > TOML file > current value.
// The file is named by a string field called Config; a missing file is
// not an error. Flags explicitly set on cmd are left alone.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	fromCLI := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().Visit(func(f *pflag.Flag) { fromCLI[f.Name] = true })
	}

	var file map[string]any
	if cfg := v.FieldByName("Config"); cfg.IsValid() && cfg.Kind() == reflect.String && cfg.String() != "" {
		data, err := os.ReadFile(cfg.String())
		switch {
		case err == nil:
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("failed to parse TOML config %s: %w", cfg.String(), err)
			}
		case !os.IsNotExist(err):
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		field := v.Field(i)
		if !field.CanSet() || fromCLI[fieldNameToFlag(sf.Name)] {
			continue
		}

		if key := sf.Tag.Get("toml"); key != "" && file != nil {
			if value := getNestedValue(file, key); value != nil {
				setFieldValue(field, value)
			}
		}
		if key := sf.Tag.Get("env"); key != "" {
			if value, ok := os.LookupEnv(EnvPrefix + key); ok && value != "" {
				setFieldValueFromString(field, value)
			}
		}
	}
	return nil
}

// fieldNameToFlag converts a struct field name to its humacli flag name,
// e.g. "LogFile" -> "log-file".
func fieldNameToFlag(fieldName string) string {
	var b strings.Builder
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('-')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// getNestedValue resolves a dotted key such as "process.stop_timeout".
func getNestedValue(data map[string]any, path string) any {
	table := data
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := table[part].(map[string]any)
		if !ok {
			return nil
		}
		table = next
	}
	return table[parts[len(parts)-1]]
}

// setFieldValue assigns a decoded TOML value. Mismatched types are ignored.
func setFieldValue(field reflect.Value, value any) {
	if field.Type() == durationType {
		if d, ok := durationFromValue(value); ok {
			field.SetInt(int64(d))
		}
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
	case reflect.Int, reflect.Int64:
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Float64:
		switch f := value.(type) {
		case float64:
			field.SetFloat(f)
		case int64:
			field.SetFloat(float64(f))
		}
	case reflect.Slice:
		arr, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return
		}
		out := make([]string, 0, len(arr))
		for _, item := range arr {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// setFieldValueFromString assigns an env var value. Lists are comma
// separated.
func setFieldValueFromString(field reflect.Value, value string) {
	if field.Type() == durationType {
		if d, ok := durationFromValue(value); ok {
			field.SetInt(int64(d))
		}
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int, reflect.Int64:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	case reflect.Float64:
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			field.SetFloat(f)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		var out []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		field.Set(reflect.ValueOf(out))
	}
}

// durationFromValue accepts Go duration strings ("1500ms") or plain numbers
// of seconds, as written in TOML or env vars.
func durationFromValue(value any) (time.Duration, bool) {
	switch v := value.(type) {
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(f * float64(time.Second)), true
		}
	case int64:
		return time.Duration(v) * time.Second, true
	case float64:
		return time.Duration(v * float64(time.Second)), true
	}
	return 0, false
}

// LoadLoggingConfig reads the [logging] table. level, format and file are
// global; every other key sets a per-module level, e.g. ffmpeg = "warn".
// A missing or unreadable file yields the defaults.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return cfg
	}
	var raw struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &raw); err != nil {
		return cfg
	}

	for key, value := range raw.Logging {
		s, ok := value.(string)
		if !ok {
			continue
		}
		switch key {
		case "level":
			cfg.Level = s
		case "format":
			cfg.Format = s
		case "file":
			cfg.File = s
		default:
			cfg.Modules[key] = s
		}
	}
	return cfg
}
