package config

type Config struct {
	Logging   LoggingConfig   `json:"logging"`
	Telegram  TelegramConfig  `json:"telegram"`
	HTTP      HTTPConfig      `json:"http"`
	Endpoints EndpointsConfig `json:"endpoints"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TelegramConfig is the bot used by the Telegram log mirror.
// The token is never logged.
type TelegramConfig struct {
	Token    string `json:"token"`
	ChatID   int64  `json:"chat_id"`
	ThreadID int    `json:"thread_id,omitempty"`
}

// HTTPConfig controls the outbound client shared by both commands.
//
// Timeout is a Go duration string (e.g. "10s"). "0s" keeps the transport
// defaults (no overall request timeout).
type HTTPConfig struct {
	Timeout           string `json:"timeout,omitempty"`
	UserAgent         string `json:"user_agent,omitempty"`
	DisableKeepAlives bool   `json:"disable_keep_alives,omitempty"`
}

// EndpointsConfig overrides the remote services. Leave empty for the public defaults.
type EndpointsConfig struct {
	Submit      string `json:"submit,omitempty"`
	SelfAddress string `json:"self_address,omitempty"`
	// Geolocation is a URL template; "{ip}" is replaced by the address.
	Geolocation string `json:"geolocation,omitempty"`
}

const (
	DefaultSubmitEndpoint      = "https://ngl.link/api/submit"
	DefaultSelfAddressEndpoint = "https://api.ipify.org?format=json"
	DefaultGeolocationEndpoint = "https://ipapi.co/{ip}/json/"
)

// Default returns the configuration used when no config file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info", Console: true},
		Endpoints: EndpointsConfig{
			Submit:      DefaultSubmitEndpoint,
			SelfAddress: DefaultSelfAddressEndpoint,
			Geolocation: DefaultGeolocationEndpoint,
		},
	}
}
