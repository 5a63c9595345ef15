package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
)

// Load reads the config at path. An empty path yields Default().
//
// Unknown keys and trailing data are rejected so typos surface immediately.
func Load(path string) (*Config, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(path, b)
}

// Parse decodes data as JSON, or as YAML when path ends in .yaml/.yml.
func Parse(path string, data []byte) (*Config, error) {
	jb, format, err := coerceToJSONBytes(path, data)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	dec := json.NewDecoder(bytes.NewReader(jb))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("%s config: %w", format, err)
	}
	// reject trailing tokens (e.g. concatenated JSON)
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		if err == nil {
			return nil, fmt.Errorf("invalid config: trailing data")
		}
		return nil, err
	}

	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	e := &cfg.Endpoints
	if strings.TrimSpace(e.Submit) == "" {
		e.Submit = DefaultSubmitEndpoint
	}
	if strings.TrimSpace(e.SelfAddress) == "" {
		e.SelfAddress = DefaultSelfAddressEndpoint
	}
	if strings.TrimSpace(e.Geolocation) == "" {
		e.Geolocation = DefaultGeolocationEndpoint
	}
}

// Validate checks field formats after defaults have been applied.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if _, err := ParseDurationField("http.timeout", cfg.HTTP.Timeout); err != nil {
		return err
	}
	for _, f := range []struct{ path, raw string }{
		{"endpoints.submit", cfg.Endpoints.Submit},
		{"endpoints.self_address", cfg.Endpoints.SelfAddress},
		{"endpoints.geolocation", strings.ReplaceAll(cfg.Endpoints.Geolocation, "{ip}", "0.0.0.0")},
	} {
		u, err := url.Parse(f.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", f.path, err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s: scheme must be http or https, got %q", f.path, u.Scheme)
		}
	}
	if !strings.Contains(cfg.Endpoints.Geolocation, "{ip}") {
		return fmt.Errorf("endpoints.geolocation: missing {ip} placeholder")
	}
	if cfg.Logging.Telegram.Enabled {
		if strings.TrimSpace(cfg.Telegram.Token) == "" {
			return fmt.Errorf("logging.telegram.enabled requires telegram.token")
		}
		if cfg.Telegram.ChatID == 0 {
			return fmt.Errorf("logging.telegram.enabled requires telegram.chat_id")
		}
	}
	return nil
}
