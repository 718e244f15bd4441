package cmds

import (
	"fmt"

	"github.com/go-go-golems/palaver/pkg/client"
	"github.com/go-go-golems/palaver/pkg/controller"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/spf13/viper"
)

const version = "0.1.0"

func loadSettings() (*settings.Settings, error) {
	return settings.NewSettingsFromViper(viper.GetViper())
}

// newController wires a fresh, empty conversation to the configured chat service.
func newController(s *settings.Settings) (*controller.Controller, *client.Client, error) {
	cs := s.Client.Clone()
	if cs.UserAgent == "" {
		cs.UserAgent = fmt.Sprintf("palaver/%s", version)
	}

	c, err := client.NewClient(cs)
	if err != nil {
		return nil, nil, err
	}

	policy, err := controller.ParseOverlapPolicy(s.Chat.OverlapPolicy)
	if err != nil {
		return nil, nil, err
	}

	ctrl := controller.NewController(
		conversation.NewStore(),
		c,
		controller.WithOverlapPolicy(policy),
		controller.WithReplyTimeout(cs.ReplyTimeout),
		controller.WithWelcomeTimeout(cs.WelcomeTimeout),
	)

	return ctrl, c, nil
}
