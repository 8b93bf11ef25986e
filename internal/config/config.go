// Package config handles configuration loading, saving, and schema definition.
package config

// Config is the top-level heyodo configuration.
// Uses json tags in camelCase to match the JSON config file format.
type Config struct {
	Bot     BotConfig     `json:"bot"`
	Warn    WarnConfig    `json:"warn"`
	Relay   RelayConfig   `json:"relay"`
	Session SessionConfig `json:"session"`
	Redis   RedisConfig   `json:"redis"`

	// RepliesFile points to an optional YAML file overriding reply texts.
	RepliesFile string `json:"repliesFile,omitempty"`
}

// BotConfig holds platform connection settings.
type BotConfig struct {
	Name    string `json:"name"`
	Token   string `json:"token"`
	APIBase string `json:"apiBase,omitempty"`
	RTMURL  string `json:"rtmUrl,omitempty"`
}

// WarnConfig controls the glyph-abuse warning behavior.
type WarnConfig struct {
	Enabled       bool    `json:"enabled"`
	Mode          string  `json:"mode"` // "any" or "ratio"
	Threshold     float64 `json:"threshold,omitempty"`
	RedactOnRelay bool    `json:"redactOnRelay,omitempty"`
}

// RelayConfig controls the anonymous relay behavior.
type RelayConfig struct {
	EnableUserRelay bool `json:"enableUserRelay"`
	Impersonation   bool `json:"impersonation"`
}

// SessionConfig controls pending relay state lifetime.
// TTLMinutes of 0 means entries live until explicitly cleared.
type SessionConfig struct {
	TTLMinutes int `json:"ttlMinutes"`
}

// RedisConfig holds optional Redis settings for session state.
// When URL is empty the in-memory store is used.
type RedisConfig struct {
	URL      string `json:"url,omitempty"`
	Password string `json:"password,omitempty"`
	DB       int    `json:"db,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Bot: BotConfig{
			Name:    "传声筒",
			APIBase: "https://api.bearychat.com/v1",
			RTMURL:  "wss://rtm.bearychat.com",
		},
		Warn: WarnConfig{
			Enabled:       true,
			Mode:          "ratio",
			Threshold:     0.02,
			RedactOnRelay: true,
		},
		Relay: RelayConfig{
			EnableUserRelay: true,
			Impersonation:   true,
		},
		Session: SessionConfig{
			TTLMinutes: 1440,
		},
	}
}
