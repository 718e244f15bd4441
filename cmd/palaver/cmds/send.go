package cmds

import (
	"context"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	glazed_settings "github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/palaver/pkg/controller"
	"github.com/go-go-golems/palaver/pkg/conversation"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// rowAdder is the part of the glaze processor the row emitters need.
type rowAdder interface {
	AddRow(ctx context.Context, row types.Row) error
}

type SendSettings struct {
	ReplyOnly bool     `glazed.parameter:"reply-only"`
	Text      []string `glazed.parameter:"text"`
}

type SendCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &SendCommand{}

func NewSendCommand() (*cobra.Command, error) {
	glazedParameterLayer, err := glazed_settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	sendCmd := &SendCommand{
		CommandDescription: cmds.NewCommandDescription(
			"send",
			cmds.WithShort("Send a single message and print the transcript"),
			cmds.WithLong("Fetches the welcome message unless --no-welcome is set, sends TEXT and "+
				"prints one row per transcript message. Exits with an error if no reply arrived."),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"reply-only",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Only print the reply"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"text",
					parameters.ParameterTypeStringList,
					parameters.WithHelp("Message to send, words are joined with spaces"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithLayersList(
				glazedParameterLayer,
			),
		),
	}

	cobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(sendCmd)
	if err != nil {
		return nil, err
	}
	// a failed turn is not a usage error
	cobraCmd.SilenceUsage = true

	return cobraCmd, nil
}

func (c *SendCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	ss := &SendSettings{}
	err := parsedLayers.InitializeStruct(layers.DefaultSlug, ss)
	if err != nil {
		return errors.Wrap(err, "failed to initialize settings")
	}

	s, err := loadSettings()
	if err != nil {
		return err
	}

	ctrl, _, err := newController(s)
	if err != nil {
		return err
	}

	return runSend(ctx, ctrl, strings.Join(ss.Text, " "), !s.Chat.NoWelcome, ss.ReplyOnly, gp)
}

// runSend submits text and emits the resulting transcript. The rows are emitted even when the
// turn failed, the returned error then carries the outcome.
func runSend(
	ctx context.Context,
	ctrl *controller.Controller,
	text string,
	welcome bool,
	replyOnly bool,
	gp rowAdder,
) error {
	if welcome {
		// failure is logged, the message is sent without a welcome
		_ = ctrl.Bootstrap(ctx)
	}

	res, err := ctrl.Submit(ctx, text)
	if err != nil {
		return err
	}

	messages := ctrl.Store().Read()
	if replyOnly {
		messages = nil
		if res.Reply != nil {
			messages = conversation.Transcript{*res.Reply}
		}
	}
	for _, m := range messages {
		if err := gp.AddRow(ctx, messageRow(m)); err != nil {
			return err
		}
	}

	if res.Outcome == controller.OutcomeReplied {
		return nil
	}
	if res.Err == nil {
		return errors.Errorf("no reply (%s)", res.Outcome)
	}
	return errors.Wrapf(res.Err, "no reply (%s)", res.Outcome)
}

func messageRow(m conversation.Message) types.Row {
	return types.NewRow(
		types.MRP("id", m.ID),
		types.MRP("role", string(m.Role)),
		types.MRP("time", m.Clock()),
		types.MRP("createTime", m.CreateTime),
		types.MRP("content", m.Content),
	)
}
