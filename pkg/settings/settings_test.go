package settings

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSettingsFromViperDefaults(t *testing.T) {
	s, err := NewSettingsFromViper(viper.New())
	require.NoError(t, err)

	assert.Equal(t, DefaultBaseURL, s.Client.BaseURL)
	assert.Equal(t, 60*time.Second, s.Client.ReplyTimeout)
	assert.Equal(t, 10*time.Second, s.Client.WelcomeTimeout)
	assert.True(t, s.Client.AllowHTTP)
	assert.True(t, s.Client.AllowLocalNetworks)
	assert.Equal(t, "reject", s.Chat.OverlapPolicy)
	assert.False(t, s.Chat.Markdown)
}

func TestNewSettingsFromViperOverrides(t *testing.T) {
	v := viper.New()
	v.Set("base-url", "https://chat.example.com")
	v.Set("reply-timeout", "5s")
	v.Set("overlap-policy", " Queue ")
	v.Set("allow-local-networks", false)
	v.Set("markdown", true)

	s, err := NewSettingsFromViper(v)
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.com", s.Client.BaseURL)
	assert.Equal(t, 5*time.Second, s.Client.ReplyTimeout)
	assert.Equal(t, "queue", s.Chat.OverlapPolicy)
	assert.False(t, s.Client.AllowLocalNetworks)
	assert.True(t, s.Chat.Markdown)
}

func TestNewSettingsFromViperRejectsUnknownPolicy(t *testing.T) {
	v := viper.New()
	v.Set("overlap-policy", "interleave")

	_, err := NewSettingsFromViper(v)
	require.Error(t, err)
}

func TestSettingsCloneIsDeep(t *testing.T) {
	s := &Settings{Client: NewClientSettings(), Chat: NewChatSettings()}
	c := s.Clone()
	c.Client.BaseURL = "https://elsewhere.example.com"
	c.Chat.OverlapPolicy = "queue"

	assert.Equal(t, DefaultBaseURL, s.Client.BaseURL)
	assert.Equal(t, "reject", s.Chat.OverlapPolicy)
}
