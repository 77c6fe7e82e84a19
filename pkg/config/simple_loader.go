package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/formatflow/pkg/errors"
)

// EnvPrefix prefixes environment overrides of top-level settings
const EnvPrefix = "FORMATFLOW"

// Load reads the configuration document at filePath
func Load(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the command line
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to read config file")
	}

	configType, err := typeFromPath(filePath)
	if err != nil {
		return nil, err
	}
	return Parse(data, configType)
}

// Parse decodes a configuration document of the given type (yaml, json or
// toml) after environment substitution
func Parse(data []byte, configType string) (*Document, error) {
	content := substituteEnvVars(string(data))

	v := viper.New()
	v.SetConfigType(configType)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadConfig(strings.NewReader(content)); err != nil {
		return nil, errors.Wrapf(err, errors.ErrorTypeConfig, "failed to parse %s config", configType)
	}

	var doc Document
	if err := v.Unmarshal(&doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to decode config")
	}
	return &doc, nil
}

// Save writes the document as YAML
func Save(filePath string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to marshal YAML")
	}

	if err := os.WriteFile(filePath, data, 0o644); err != nil { //nolint:gosec
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to write config file")
	}
	return nil
}

func typeFromPath(path string) (string, error) {
	switch ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")); ext {
	case "yaml", "yml", "":
		return "yaml", nil
	case "json", "toml":
		return ext, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unsupported config file type %q", ext)
	}
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values.
// ${VAR_NAME:-fallback} uses fallback when the variable is unset or empty.
func substituteEnvVars(content string) string {
	var b strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		expr := content[start+2 : end]
		name, fallback, hasFallback := strings.Cut(expr, ":-")
		envValue := os.Getenv(name)
		if envValue == "" && hasFallback {
			envValue = fallback
		}

		b.WriteString(content[:start])
		b.WriteString(envValue)
		content = content[end+1:]
	}
	b.WriteString(content)
	return b.String()
}
