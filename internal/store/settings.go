package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Well-known setting keys.
const (
	SettingPreferLocal = "prefer_local"
	SettingLocalOnly   = "local_only"
	SettingLanguage    = "language"
	SettingPrePrompt   = "pre_prompt"
)

// Settings provides typed accessors over the settings key space.
// Values are stored as strings; typed getters fall back to the supplied
// default when the key is missing or unparsable.
type Settings struct {
	store Store
}

// NewSettings wraps a store with settings accessors.
func NewSettings(s Store) *Settings {
	return &Settings{store: s}
}

func settingKey(key string) string {
	return PrefixSettings + key
}

// GetString returns the string setting or def when absent.
func (s *Settings) GetString(key, def string) string {
	v, ok, err := s.store.Get(settingKey(key))
	if err != nil || !ok {
		return def
	}
	return string(v)
}

// SetString stores a string setting.
func (s *Settings) SetString(key, value string) error {
	return s.store.Set(settingKey(key), []byte(value))
}

// GetBool returns the boolean setting or def when absent or unparsable.
func (s *Settings) GetBool(key string, def bool) bool {
	v, ok, err := s.store.Get(settingKey(key))
	if err != nil || !ok {
		return def
	}
	b, err := strconv.ParseBool(string(v))
	if err != nil {
		return def
	}
	return b
}

// SetBool stores a boolean setting.
func (s *Settings) SetBool(key string, value bool) error {
	return s.store.Set(settingKey(key), []byte(strconv.FormatBool(value)))
}

// GetInt returns the integer setting or def when absent or unparsable.
func (s *Settings) GetInt(key string, def int) int {
	v, ok, err := s.store.Get(settingKey(key))
	if err != nil || !ok {
		return def
	}
	n, err := strconv.Atoi(string(v))
	if err != nil {
		return def
	}
	return n
}

// SetInt stores an integer setting.
func (s *Settings) SetInt(key string, value int) error {
	return s.store.Set(settingKey(key), []byte(strconv.Itoa(value)))
}

// GetFloat returns the float setting or def when absent or unparsable.
func (s *Settings) GetFloat(key string, def float64) float64 {
	v, ok, err := s.store.Get(settingKey(key))
	if err != nil || !ok {
		return def
	}
	f, err := strconv.ParseFloat(string(v), 64)
	if err != nil {
		return def
	}
	return f
}

// SetFloat stores a float setting.
func (s *Settings) SetFloat(key string, value float64) error {
	return s.store.Set(settingKey(key), []byte(strconv.FormatFloat(value, 'g', -1, 64)))
}

// Delete removes a setting.
func (s *Settings) Delete(key string) error {
	return s.store.Delete(settingKey(key))
}

// All returns every stored setting keyed by its short name.
func (s *Settings) All() (map[string]string, error) {
	keys, err := s.store.Keys(PrefixSettings)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		v, ok, err := s.store.Get(k)
		if err != nil {
			return nil, fmt.Errorf("failed to read setting %q: %w", k, err)
		}
		if ok {
			out[strings.TrimPrefix(k, PrefixSettings)] = string(v)
		}
	}
	return out, nil
}
