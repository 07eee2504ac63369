package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/viper"
)

// ErrSettingsNotFound is returned together with default settings when the
// settings file does not exist.
var ErrSettingsNotFound = errors.New("settings file not found")

const settingsEnvPrefix = "CHAT_SKILLS_SETTINGS"

// Settings configures the message handlers. It is read from a YAML file and
// may change at runtime.
type Settings struct {
	URI    URISettings    `mapstructure:"uri"`
	Hatena HatenaSettings `mapstructure:"hatena"`
	LLEval LLEvalSettings `mapstructure:"lleval"`
}

type URISettings struct {
	Regexp              string        `mapstructure:"regexp"`
	EnableNotification  bool          `mapstructure:"enable_notification"`
	NotificationFormats []string      `mapstructure:"notification_formats"`
	HistoryLimitPerChat int           `mapstructure:"history_limit_per_chat"`
	ResolveTimeout      time.Duration `mapstructure:"resolve_timeout"`
}

type HatenaSettings struct {
	Enabled           bool          `mapstructure:"enabled"`
	ClientKey         string        `mapstructure:"client_key"`
	ClientSecret      string        `mapstructure:"client_secret"`
	AccessToken       string        `mapstructure:"access_token"`
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	PostURI           string        `mapstructure:"post_uri"`
	PostTemplate      string        `mapstructure:"post_template"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

type LLEvalSettings struct {
	Enabled       bool          `mapstructure:"enabled"`
	Endpoint      string        `mapstructure:"endpoint"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerMinute float64       `mapstructure:"rate_per_minute"`
	Burst         int           `mapstructure:"burst"`
}

// DefaultURIRegexp matches http(s) links up to whitespace or quoting.
const DefaultURIRegexp = `https?://[^\s<>"'` + "`" + `]+`

func setSettingsDefaults(v *viper.Viper) {
	v.SetDefault("uri.regexp", DefaultURIRegexp)
	v.SetDefault("uri.enable_notification", true)
	v.SetDefault("uri.notification_formats", []string{
		"That link was already posted {{.Ago}}: {{.Title}}",
		"Seen it {{.Ago}}. {{.URI}}",
	})
	v.SetDefault("uri.history_limit_per_chat", 100)
	v.SetDefault("uri.resolve_timeout", 10*time.Second)

	v.SetDefault("hatena.enabled", false)
	v.SetDefault("hatena.client_key", "")
	v.SetDefault("hatena.client_secret", "")
	v.SetDefault("hatena.access_token", "")
	v.SetDefault("hatena.access_token_secret", "")
	v.SetDefault("hatena.post_uri", "https://b.hatena.ne.jp/atom/post")
	v.SetDefault("hatena.post_template", "")
	v.SetDefault("hatena.timeout", 15*time.Second)

	v.SetDefault("lleval.enabled", true)
	v.SetDefault("lleval.endpoint", "http://api.dan.co.jp/lleval.cgi")
	v.SetDefault("lleval.timeout", 20*time.Second)
	v.SetDefault("lleval.rate_per_minute", 6.0)
	v.SetDefault("lleval.burst", 3)
}

// LoadSettings reads the settings file at path. A missing file yields the
// defaults along with ErrSettingsNotFound; a malformed one is an error.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()
	setSettingsDefaults(v)
	v.SetEnvPrefix(settingsEnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var missing error
	path = strings.TrimSpace(path)
	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return Settings{}, fmt.Errorf("read settings %s: %w", path, err)
			}
			missing = fmt.Errorf("%w: %s", ErrSettingsNotFound, path)
		}
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("decode settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		return Settings{}, err
	}
	return settings, missing
}

// Validate checks the values that would otherwise fail on first use.
func (s Settings) Validate() error {
	if _, err := s.URIPattern(); err != nil {
		return err
	}
	if s.LLEval.Enabled && strings.TrimSpace(s.LLEval.Endpoint) == "" {
		return fmt.Errorf("lleval endpoint is required when lleval is enabled")
	}
	return nil
}

func (s Settings) URIPattern() (*regexp.Regexp, error) {
	expr := strings.TrimSpace(s.URI.Regexp)
	if expr == "" {
		expr = DefaultURIRegexp
	}
	pattern, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile uri regexp: %w", err)
	}
	return pattern, nil
}

// LiveSettings holds the active settings and swaps them on reload.
type LiveSettings struct {
	path    string
	logger  *slog.Logger
	current atomic.Pointer[Settings]
}

func NewLiveSettings(path string, logger *slog.Logger) (*LiveSettings, error) {
	if logger == nil {
		logger = slog.Default()
	}
	live := &LiveSettings{path: strings.TrimSpace(path), logger: logger}
	settings, err := LoadSettings(live.path)
	if err != nil {
		if !errors.Is(err, ErrSettingsNotFound) {
			return nil, err
		}
		logger.Warn("settings file missing, using defaults", "path", live.path)
	}
	live.current.Store(&settings)
	return live, nil
}

func (l *LiveSettings) Path() string {
	return l.path
}

func (l *LiveSettings) Current() Settings {
	return *l.current.Load()
}

// Reload re-reads the file; on failure the previous settings stay active.
func (l *LiveSettings) Reload() error {
	settings, err := LoadSettings(l.path)
	if err != nil && !errors.Is(err, ErrSettingsNotFound) {
		l.logger.Error("settings reload failed, keeping previous settings", "path", l.path, "error", err)
		return err
	}
	l.current.Store(&settings)
	l.logger.Info("settings reloaded", "path", l.path)
	return nil
}
