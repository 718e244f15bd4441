package cmds

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
	// Console writes to stderr. The terminal UI turns it off so log lines do not tear the screen.
	Console bool
}

// InitLoggerFromViper configures the global logger from the log-* settings.
func InitLoggerFromViper(console bool) error {
	logLevel := viper.GetString("log-level")
	verbose := viper.GetBool("verbose")
	if verbose && logLevel != "trace" {
		logLevel = "debug"
	}

	return InitLogger(&LogConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
		Console:    console,
	})
}

func InitLogger(config *LogConfig) error {
	logger := zerolog.New(io.Discard).With().Timestamp().Logger()
	if config.WithCaller {
		logger = logger.With().Caller().Logger()
	}

	var writers []io.Writer
	if config.Console {
		// default is json
		if config.LogFormat == "text" {
			writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr})
		} else {
			writers = append(writers, os.Stderr)
		}
	}

	if config.LogFile != "" {
		writers = append(writers, zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   config.LogFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28,    //days
				Compress:   false, // disabled by default
			},
		})
	}

	switch len(writers) {
	case 0:
		log.Logger = logger
	case 1:
		log.Logger = logger.Output(writers[0])
	default:
		log.Logger = logger.Output(io.MultiWriter(writers...))
	}

	level, err := zerolog.ParseLevel(config.Level)
	if err != nil || config.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	return nil
}
