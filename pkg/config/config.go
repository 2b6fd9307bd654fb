// Package config provides YAML configuration loading with environment variable override.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var durationType = reflect.TypeOf(time.Duration(0))

// DefaultPath returns the per-user config file location for app,
// e.g. ~/.config/<app>/config.yaml.
func DefaultPath(app string) string {
	return filepath.Join(xdg.ConfigHome, app, "config.yaml")
}

// LoadDotEnv loads variables from the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load reads a YAML configuration file into the given struct.
// It also applies environment variable overrides using struct tags.
func Load(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	// Expand environment variables in the YAML
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), out); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	return ApplyEnv(out)
}

// LoadOrDefault loads config from path when it exists. Otherwise out keeps
// its current values and only environment overrides are applied.
func LoadOrDefault(path string, out any) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return ApplyEnv(out)
	}
	return Load(path, out)
}

// ApplyEnv sets struct fields from environment variables.
// It uses the `env` struct tag to determine the env var name; a tag may list
// several names separated by commas, the first one set wins.
func ApplyEnv(v any) error {
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil
	}

	t := val.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		fieldVal := val.Field(i)

		// Recurse into struct fields
		if fieldVal.Kind() == reflect.Struct {
			if fieldVal.CanAddr() {
				if err := ApplyEnv(fieldVal.Addr().Interface()); err != nil {
					return err
				}
			}
			continue
		}

		envTag := field.Tag.Get("env")
		if envTag == "" || !fieldVal.CanSet() {
			continue
		}

		envName, envVal, ok := lookupAny(strings.Split(envTag, ","))
		if !ok {
			continue
		}
		if err := setField(fieldVal, envVal); err != nil {
			return fmt.Errorf("env %s: %w", envName, err)
		}
	}
	return nil
}

func lookupAny(names []string) (string, string, bool) {
	for _, name := range names {
		name = strings.TrimSpace(name)
		if v, ok := os.LookupEnv(name); ok && v != "" {
			return name, v, true
		}
	}
	return "", "", false
}

func setField(fieldVal reflect.Value, envVal string) error {
	if fieldVal.Type() == durationType {
		d, err := time.ParseDuration(envVal)
		if err != nil {
			return err
		}
		fieldVal.SetInt(int64(d))
		return nil
	}

	switch fieldVal.Kind() {
	case reflect.String:
		fieldVal.SetString(envVal)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(envVal, 10, 64)
		if err != nil {
			return err
		}
		fieldVal.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(envVal, 64)
		if err != nil {
			return err
		}
		fieldVal.SetFloat(f)
	case reflect.Bool:
		fieldVal.SetBool(strings.EqualFold(envVal, "true") || envVal == "1")
	case reflect.Slice:
		if fieldVal.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", fieldVal.Type())
		}
		var items []string
		for _, s := range strings.Split(envVal, ",") {
			if s = strings.TrimSpace(s); s != "" {
				items = append(items, s)
			}
		}
		fieldVal.Set(reflect.ValueOf(items))
	}
	return nil
}
