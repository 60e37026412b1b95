package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoaderConfig configures where configuration is read from
type LoaderConfig struct {
	ConfigFile      string
	EnvironmentFile string
	ServiceName     string
}

// Loader fills a tagged struct from defaults, a YAML file, an env file and the environment.
//
// Precedence, lowest first: `default:"..."` tags, YAML, environment. The env file only
// seeds variables that are not already present in the process environment.
type Loader struct {
	config LoaderConfig
}

// NewLoader creates a new configuration loader
func NewLoader(cfg LoaderConfig) *Loader {
	return &Loader{config: cfg}
}

// Load loads configuration into target, which must be a pointer to a struct
func (l *Loader) Load(target interface{}) error {
	if err := l.walk(reflect.ValueOf(target), "", l.applyDefault); err != nil {
		return fmt.Errorf("failed to set defaults: %w", err)
	}

	if l.config.ConfigFile != "" {
		if err := l.loadYAML(target, l.config.ConfigFile); err != nil {
			return fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if l.config.EnvironmentFile != "" {
		if err := loadEnvironmentFile(l.config.EnvironmentFile); err != nil {
			return fmt.Errorf("failed to load environment file: %w", err)
		}
	}

	if err := l.walk(reflect.ValueOf(target), "", l.applyEnv); err != nil {
		return fmt.Errorf("failed to load from environment: %w", err)
	}

	return nil
}

type fieldFunc func(field reflect.Value, sf reflect.StructField, prefix string) error

// walk visits every settable leaf field. Nested structs extend the env prefix with
// their upper-cased field name.
func (l *Loader) walk(v reflect.Value, prefix string, fn fieldFunc) error {
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			v.Set(reflect.New(v.Type().Elem()))
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		sf := t.Field(i)
		if !field.CanSet() {
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Time{}) {
			if err := l.walk(field.Addr(), joinEnv(prefix, strings.ToUpper(sf.Name)), fn); err != nil {
				return err
			}
			continue
		}

		if err := fn(field, sf, prefix); err != nil {
			return err
		}
	}
	return nil
}

func (l *Loader) applyDefault(field reflect.Value, sf reflect.StructField, _ string) error {
	def := sf.Tag.Get("default")
	if def == "" {
		return nil
	}
	if err := setFieldValue(field, def); err != nil {
		return fmt.Errorf("failed to set default for field %s: %w", sf.Name, err)
	}
	return nil
}

func (l *Loader) applyEnv(field reflect.Value, sf reflect.StructField, prefix string) error {
	name := sf.Tag.Get("env")
	if name == "" {
		name = joinEnv(prefix, strings.ToUpper(sf.Name))
	}

	candidates := []string{name}
	if l.config.ServiceName != "" {
		candidates = append([]string{strings.ToUpper(l.config.ServiceName) + "_" + name}, candidates...)
	}

	for _, key := range candidates {
		value, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("failed to set field %s from env %s: %w", sf.Name, key, err)
		}
		return nil
	}
	return nil
}

func joinEnv(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

func (l *Loader) loadYAML(target interface{}, filename string) error {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}
	return nil
}

func loadEnvironmentFile(filename string) error {
	data, err := os.ReadFile(filename)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read environment file %s: %w", filename, err)
	}

	for lineNum, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("invalid line %d in environment file %s: %s", lineNum+1, filename, line)
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)

		if _, exists := os.LookupEnv(key); !exists {
			os.Setenv(key, value)
		}
	}
	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			field.SetBool(true)
		case "false", "0", "no", "off":
			field.SetBool(false)
		default:
			return fmt.Errorf("invalid boolean value: %s", value)
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return fmt.Errorf("invalid duration value: %s", value)
			}
			field.SetInt(int64(d))
			return nil
		}
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid integer value: %s", value)
		}
		field.SetInt(n)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid float value: %s", value)
		}
		field.SetFloat(f)
	default:
		return fmt.Errorf("unsupported field type: %s", field.Type())
	}
	return nil
}

// FindConfigFile searches the usual locations for <service>.yaml
func FindConfigFile(serviceName string) string {
	name := serviceName + ".yaml"
	paths := []string{
		name,
		filepath.Join("config", name),
		filepath.Join("configs", name),
		filepath.Join("/etc", serviceName, name),
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, "."+serviceName, name))
	}
	return firstExisting(paths)
}

// FindEnvironmentFile searches for .env or <service>.env
func FindEnvironmentFile(serviceName string) string {
	name := serviceName + ".env"
	return firstExisting([]string{
		".env",
		name,
		filepath.Join("config", ".env"),
		filepath.Join("config", name),
		filepath.Join("configs", ".env"),
		filepath.Join("configs", name),
	})
}

func firstExisting(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
