package cmds

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	glazed_settings "github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func NewConfigCommand() (*cobra.Command, error) {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit the palaver configuration",
	}

	showCmd, err := NewConfigShowCommand()
	if err != nil {
		return nil, err
	}
	showCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(showCmd)
	if err != nil {
		return nil, err
	}

	cmd.AddCommand(showCobraCmd)
	cmd.AddCommand(newConfigGetCommand())
	cmd.AddCommand(newConfigSetCommand())
	cmd.AddCommand(newConfigPathCommand())

	return cmd, nil
}

// configFilePath is the file that was loaded, or the default location for a new one.
func configFilePath() (string, error) {
	if p := viper.ConfigFileUsed(); p != "" {
		return p, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "could not determine config directory")
	}
	return filepath.Join(dir, "palaver", "config.yaml"), nil
}

type ConfigShowCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &ConfigShowCommand{}

func NewConfigShowCommand() (*ConfigShowCommand, error) {
	glazedParameterLayer, err := glazed_settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, errors.Wrap(err, "could not create Glazed parameter layer")
	}

	return &ConfigShowCommand{
		CommandDescription: cmds.NewCommandDescription(
			"show",
			cmds.WithShort("Print the effective settings, after flags, environment and config file"),
			cmds.WithLayersList(
				glazedParameterLayer,
			),
		),
	}, nil
}

func (c *ConfigShowCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s, err := loadSettings()
	if err != nil {
		return err
	}
	return addSettingsRows(ctx, s, gp)
}

// addSettingsRows emits one key/value row per effective setting, in config key order.
func addSettingsRows(ctx context.Context, s *settings.Settings, gp rowAdder) error {
	values := s.Flatten()
	for _, key := range settings.ConfigKeys {
		v, ok := values[key]
		if !ok {
			continue
		}
		row := types.NewRow(
			types.MRP("key", key),
			types.MRP("value", v),
		)
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func newConfigGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Print the values stored in the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			root, err := settings.ReadConfigFile(path)
			if err != nil {
				return err
			}

			values := settings.ConfigValues(root)
			if len(values) == 0 {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "No values set in %s\n", path)
				return nil
			}
			for _, kv := range values {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", kv[0], kv[1])
			}
			return nil
		},
	}
}

func newConfigSetCommand() *cobra.Command {
	keys := append([]string{}, settings.ConfigKeys...)
	sort.Strings(keys)

	return &cobra.Command{
		Use:       "set KEY VALUE",
		Short:     "Store a value in the config file",
		Args:      cobra.ExactArgs(2),
		ValidArgs: keys,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			root, err := settings.ReadConfigFile(path)
			if err != nil {
				return err
			}

			if err := settings.SetConfigValue(root, args[0], args[1]); err != nil {
				return err
			}
			if err := settings.WriteConfigFile(path, root); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set %s in %s\n", args[0], path)
			return nil
		},
	}
}

func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the path of the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configFilePath()
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
