package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"jan-server/services/dispatch-api/internal/infrastructure/logger"
)

const DefaultProviderConfigFile = "config/providers.yml"

// ProviderBootstrapEntry describes a provider and its key pool to upsert on startup.
type ProviderBootstrapEntry struct {
	Code         string              `validate:"required,max=64"`
	DisplayName  string              `validate:"required,max=255"`
	Adapter      string              `validate:"required"`
	Endpoint     string              `validate:"omitempty,url"`
	DefaultModel string              `validate:"max=255"`
	Enabled      bool
	Config       map[string]any
	Keys         []KeyBootstrapEntry `validate:"dive"`
}

// KeyBootstrapEntry is one plaintext provider key; it is encrypted before it is stored.
type KeyBootstrapEntry struct {
	Key        string  `validate:"required"`
	Label      string  `validate:"max=255"`
	ModelID    *string `validate:"omitempty,min=1"`
	DailyLimit *int64  `validate:"omitempty,gt=0"`
}

// ProviderBootstrapConfig maintains all configured provider sets.
type ProviderBootstrapConfig struct {
	sets map[string][]ProviderBootstrapEntry
}

// ProvidersForSet returns a copy of the providers defined for the requested set.
func (c *ProviderBootstrapConfig) ProvidersForSet(name string) []ProviderBootstrapEntry {
	if c == nil {
		return nil
	}
	set := strings.TrimSpace(name)
	if set == "" {
		set = "default"
	}
	list := c.sets[set]
	if len(list) == 0 {
		return nil
	}
	result := make([]ProviderBootstrapEntry, len(list))
	copy(result, list)
	return result
}

var validate = validator.New()

// LoadProviderBootstrapConfig parses the yaml file at the provided path.
func LoadProviderBootstrapConfig(path string) (*ProviderBootstrapConfig, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("provider config path is empty")
	}

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !filepath.IsAbs(cleanPath) {
			altPath := filepath.Clean(filepath.Join("services", "dispatch-api", cleanPath))
			altData, altErr := os.ReadFile(altPath)
			if altErr != nil {
				return nil, fmt.Errorf("read provider config %q: %w", altPath, altErr)
			}
			data = altData
			cleanPath = altPath
		} else {
			return nil, fmt.Errorf("read provider config %q: %w", cleanPath, err)
		}
	}
	log := logger.GetLogger()
	log.Info().Str("path", cleanPath).Msg("loading provider config file")

	return ParseProviderBootstrapConfig(data, cleanPath)
}

// ParseProviderBootstrapConfig parses provider sets from yaml; source names the input in errors.
func ParseProviderBootstrapConfig(data []byte, source string) (*ProviderBootstrapConfig, error) {
	log := logger.GetLogger()

	var doc providerConfigDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse provider config %q: %w", source, err)
	}
	if len(doc.Providers) == 0 {
		return nil, fmt.Errorf("provider config %q has no providers defined", source)
	}

	result := &ProviderBootstrapConfig{
		sets: make(map[string][]ProviderBootstrapEntry),
	}

	for rawSet, entries := range doc.Providers {
		setName := strings.TrimSpace(rawSet)
		if setName == "" || len(entries) == 0 {
			continue
		}
		for idx, entry := range entries {
			entryLogger := log.With().Str("set", setName).Int("index", idx).Str("code", entry.Code).Logger()
			enabled, err := parseEnabled(entry.EnableRaw)
			if err != nil {
				return nil, fmt.Errorf("providers.%s[%d]: %w", setName, idx, err)
			}
			if !enabled {
				entryLogger.Info().Msg("skipping provider (enable=false)")
				continue
			}
			normalized, err := normalizeProviderEntry(entry)
			if err != nil {
				return nil, fmt.Errorf("providers.%s[%d]: %w", setName, idx, err)
			}
			if err := validate.Struct(normalized); err != nil {
				return nil, fmt.Errorf("providers.%s[%d]: %w", setName, idx, err)
			}
			entryLogger.Info().
				Str("adapter", normalized.Adapter).
				Str("endpoint", normalized.Endpoint).
				Int("keys", len(normalized.Keys)).
				Msg("including provider for bootstrap")
			result.sets[setName] = append(result.sets[setName], normalized)
		}
	}

	if len(result.sets) == 0 {
		return nil, fmt.Errorf("provider config %q has no valid provider entries", source)
	}
	return result, nil
}

type providerConfigDocument struct {
	Providers map[string][]providerConfigEntry `yaml:"providers"`
}

type providerConfigEntry struct {
	EnableRaw    string           `yaml:"enable"`
	Code         string           `yaml:"code"`
	Name         string           `yaml:"name"`
	Adapter      string           `yaml:"adapter"`
	Type         string           `yaml:"type"`
	URL          string           `yaml:"url"`
	Endpoint     string           `yaml:"endpoint"`
	DefaultModel string           `yaml:"default_model"`
	Active       *bool            `yaml:"active"`
	Config       map[string]any   `yaml:"config"`
	Keys         []keyConfigEntry `yaml:"keys"`
}

type keyConfigEntry struct {
	Key        string `yaml:"key"`
	APIKey     string `yaml:"api_key"`
	Label      string `yaml:"label"`
	ModelID    string `yaml:"model_id"`
	DailyLimit *int64 `yaml:"daily_limit"`
}

func normalizeProviderEntry(entry providerConfigEntry) (ProviderBootstrapEntry, error) {
	code := strings.ToLower(strings.TrimSpace(entry.Code))
	if code == "" {
		return ProviderBootstrapEntry{}, errors.New("provider code is required")
	}

	adapter := strings.ToLower(strings.TrimSpace(firstNonEmpty(entry.Adapter, entry.Type)))
	if adapter == "" {
		adapter = code
	}

	name := strings.TrimSpace(os.ExpandEnv(entry.Name))
	if name == "" {
		name = fmt.Sprintf("%s Provider", strings.ToUpper(code))
	}

	active := true
	if entry.Active != nil {
		active = *entry.Active
	}

	keys := make([]KeyBootstrapEntry, 0, len(entry.Keys))
	for idx, k := range entry.Keys {
		secret := strings.TrimSpace(os.ExpandEnv(firstNonEmpty(k.Key, k.APIKey)))
		if secret == "" {
			// unset env placeholder
			continue
		}
		label := strings.TrimSpace(k.Label)
		if label == "" {
			label = fmt.Sprintf("%s-%d", code, idx+1)
		}
		var modelID *string
		if m := strings.TrimSpace(k.ModelID); m != "" {
			modelID = &m
		}
		keys = append(keys, KeyBootstrapEntry{
			Key:        secret,
			Label:      label,
			ModelID:    modelID,
			DailyLimit: k.DailyLimit,
		})
	}

	return ProviderBootstrapEntry{
		Code:         code,
		DisplayName:  name,
		Adapter:      adapter,
		Endpoint:     strings.TrimSpace(os.ExpandEnv(firstNonEmpty(entry.Endpoint, entry.URL))),
		DefaultModel: strings.TrimSpace(entry.DefaultModel),
		Enabled:      active,
		Config:       entry.Config,
		Keys:         keys,
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func parseEnabled(raw string) (bool, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return true, nil
	}

	resolved := strings.TrimSpace(expandWithDefault(value))
	if resolved == "" {
		return true, nil
	}

	parsed, err := strconv.ParseBool(resolved)
	if err != nil {
		return false, fmt.Errorf("enable: %w", err)
	}
	return parsed, nil
}

// expandWithDefault expands ${VAR} and ${VAR:-default} syntax using os envs.
func expandWithDefault(raw string) string {
	start := strings.Index(raw, "${")
	if start == -1 {
		return os.ExpandEnv(raw)
	}
	end := strings.Index(raw[start:], "}")
	if end == -1 {
		return os.ExpandEnv(raw)
	}
	end = start + end
	expr := raw[start+2 : end]
	defaultVal := ""
	varName := expr
	if strings.Contains(expr, ":-") {
		parts := strings.SplitN(expr, ":-", 2)
		varName = parts[0]
		defaultVal = parts[1]
	}
	val := os.Getenv(varName)
	if val == "" {
		val = defaultVal
	}
	return os.ExpandEnv(raw[:start] + val + raw[end+1:])
}
