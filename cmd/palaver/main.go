package main

import (
	"embed"
	"os"
	"strings"

	"github.com/go-go-golems/glazed/pkg/help"
	"github.com/go-go-golems/palaver/cmd/palaver/cmds"
	"github.com/go-go-golems/palaver/pkg/settings"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//go:embed doc/*
var docFS embed.FS

var rootCmd = &cobra.Command{
	Use:   "palaver",
	Short: "palaver is a terminal client for a single-conversation chat service",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// reinitialize the logger because we can now parse --log-level and co
		// from the command line flag
		return cmds.InitLoggerFromViper(true)
	},
	// errors are printed once, by cobra.CheckErr in main
	SilenceUsage:  true,
	SilenceErrors: true,
}

func initCommands(rootCmd *cobra.Command, configPath string) error {
	viper.SetEnvPrefix("palaver")

	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.palaver")

		xdgConfigPath, err := os.UserConfigDir()
		if err == nil {
			viper.AddConfigPath(xdgConfigPath + "/palaver")
		}
	}

	err := viper.ReadInConfig()
	// if the file does not exist, continue normally
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Config file not found; ignore error
	} else if err != nil && !os.IsNotExist(err) {
		return err
	}
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	err = viper.BindPFlags(rootCmd.PersistentFlags())
	if err != nil {
		return err
	}

	// this still won't pick up on --verbose when the commands are parsed,
	// but at least it will configure it based on the config file
	err = cmds.InitLoggerFromViper(true)
	if err != nil {
		return err
	}

	log.Debug().
		Str("config", viper.ConfigFileUsed()).
		Msg("Loaded configuration")

	return nil
}

func main() {
	cobra.CheckErr(rootCmd.Execute())
}

func initHelp(rootCmd *cobra.Command) error {
	helpSystem := help.NewHelpSystem()
	err := helpSystem.LoadSectionsFromFS(docFS, ".")
	if err != nil {
		return err
	}

	helpFunc, usageFunc := help.GetCobraHelpUsageFuncs(helpSystem)
	helpTemplate, usageTemplate := help.GetCobraHelpUsageTemplates(helpSystem)

	rootCmd.SetHelpFunc(helpFunc)
	rootCmd.SetUsageFunc(usageFunc)
	rootCmd.SetHelpTemplate(helpTemplate)
	rootCmd.SetUsageTemplate(usageTemplate)

	helpCmd := help.NewCobraHelpCommand(helpSystem)
	rootCmd.SetHelpCommand(helpCmd)

	return nil
}

func init() {
	// logging flags
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.palaver/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	// chat service flags
	rootCmd.PersistentFlags().String("base-url", settings.DefaultBaseURL, "Base URL of the chat service")
	rootCmd.PersistentFlags().String("user-agent", "", "User-Agent header sent to the chat service")
	rootCmd.PersistentFlags().Duration("reply-timeout", settings.DefaultReplyTimeout, "How long to wait for a reply (0 waits forever)")
	rootCmd.PersistentFlags().Duration("welcome-timeout", settings.DefaultWelcomeTimeout, "How long to wait for the welcome message")
	rootCmd.PersistentFlags().Bool("allow-http", true, "Allow plain http:// service URLs")
	rootCmd.PersistentFlags().Bool("allow-local-networks", true, "Allow service URLs on loopback and private networks")
	rootCmd.PersistentFlags().String("overlap-policy", settings.DefaultOverlapPolicy, "What to do with a message sent while a reply is pending (reject, queue)")
	rootCmd.PersistentFlags().Bool("markdown", false, "Render assistant replies as markdown")
	rootCmd.PersistentFlags().Bool("no-welcome", false, "Do not fetch the welcome message")

	// parse the flags one time just to catch --config
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			configFile = strings.TrimPrefix(arg, "--config=")
		}
	}

	err := initCommands(rootCmd, configFile)
	if err != nil {
		panic(err)
	}

	err = initHelp(rootCmd)
	cobra.CheckErr(err)

	sendCmd, err := cmds.NewSendCommand()
	cobra.CheckErr(err)
	configCmd, err := cmds.NewConfigCommand()
	cobra.CheckErr(err)

	rootCmd.AddCommand(cmds.NewChatCommand())
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(configCmd)
}
