package settings

import (
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	DefaultBaseURL        = "http://localhost:8000"
	DefaultReplyTimeout   = 60 * time.Second
	DefaultWelcomeTimeout = 10 * time.Second
	DefaultOverlapPolicy  = "reject"
)

// ClientSettings configures the connection to the chat service.
type ClientSettings struct {
	BaseURL            string        `yaml:"base_url" mapstructure:"base-url"`
	UserAgent          string        `yaml:"user_agent,omitempty" mapstructure:"user-agent"`
	ReplyTimeout       time.Duration `yaml:"reply_timeout" mapstructure:"reply-timeout"`
	WelcomeTimeout     time.Duration `yaml:"welcome_timeout" mapstructure:"welcome-timeout"`
	AllowHTTP          bool          `yaml:"allow_http" mapstructure:"allow-http"`
	AllowLocalNetworks bool          `yaml:"allow_local_networks" mapstructure:"allow-local-networks"`
}

func NewClientSettings() *ClientSettings {
	return &ClientSettings{
		BaseURL:            DefaultBaseURL,
		ReplyTimeout:       DefaultReplyTimeout,
		WelcomeTimeout:     DefaultWelcomeTimeout,
		AllowHTTP:          true,
		AllowLocalNetworks: true,
	}
}

func (cs *ClientSettings) Clone() *ClientSettings {
	return clone.Clone(cs).(*ClientSettings)
}

// ChatSettings configures the conversation view.
type ChatSettings struct {
	OverlapPolicy string `yaml:"overlap_policy" mapstructure:"overlap-policy"`
	Markdown      bool   `yaml:"markdown,omitempty" mapstructure:"markdown"`
	NoWelcome     bool   `yaml:"no_welcome,omitempty" mapstructure:"no-welcome"`
}

func NewChatSettings() *ChatSettings {
	return &ChatSettings{
		OverlapPolicy: DefaultOverlapPolicy,
	}
}

func (s *ChatSettings) Clone() *ChatSettings {
	return clone.Clone(s).(*ChatSettings)
}

// Settings bundles everything the chat commands need.
type Settings struct {
	Client *ClientSettings `yaml:"client"`
	Chat   *ChatSettings   `yaml:"chat"`
}

func (s *Settings) Clone() *Settings {
	return &Settings{
		Client: s.Client.Clone(),
		Chat:   s.Chat.Clone(),
	}
}

// NewSettingsFromViper reads the flat palaver keys, falling back to defaults for unset keys.
func NewSettingsFromViper(v *viper.Viper) (*Settings, error) {
	ret := &Settings{
		Client: NewClientSettings(),
		Chat:   NewChatSettings(),
	}

	if v.IsSet("base-url") {
		ret.Client.BaseURL = v.GetString("base-url")
	}
	if v.IsSet("user-agent") {
		ret.Client.UserAgent = v.GetString("user-agent")
	}
	if v.IsSet("reply-timeout") {
		ret.Client.ReplyTimeout = v.GetDuration("reply-timeout")
	}
	if v.IsSet("welcome-timeout") {
		ret.Client.WelcomeTimeout = v.GetDuration("welcome-timeout")
	}
	if v.IsSet("allow-http") {
		ret.Client.AllowHTTP = v.GetBool("allow-http")
	}
	if v.IsSet("allow-local-networks") {
		ret.Client.AllowLocalNetworks = v.GetBool("allow-local-networks")
	}
	if v.IsSet("overlap-policy") {
		ret.Chat.OverlapPolicy = strings.ToLower(strings.TrimSpace(v.GetString("overlap-policy")))
	}
	ret.Chat.Markdown = v.GetBool("markdown")
	ret.Chat.NoWelcome = v.GetBool("no-welcome")

	if err := ret.Validate(); err != nil {
		return nil, err
	}

	return ret, nil
}

func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Client.BaseURL) == "" {
		return errors.New("base-url must not be empty")
	}
	if s.Client.ReplyTimeout < 0 {
		return errors.Errorf("reply-timeout must not be negative, got %s", s.Client.ReplyTimeout)
	}
	if s.Client.WelcomeTimeout < 0 {
		return errors.Errorf("welcome-timeout must not be negative, got %s", s.Client.WelcomeTimeout)
	}
	switch s.Chat.OverlapPolicy {
	case "reject", "queue":
	default:
		return errors.Errorf("unknown overlap-policy %q (expected reject or queue)", s.Chat.OverlapPolicy)
	}
	return nil
}
