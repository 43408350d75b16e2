package main

import (
	"fmt"
	"io"
	"os"

	"github.com/martinemde/toolchat/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var rootCmd = &cobra.Command{
	Use:   "toolchat",
	Short: "toolchat is a terminal chat with a model that can read, list and edit files",
	Long: "toolchat sends each message to the model together with three file tools\n" +
		"(read_file, list_files, edit_file) scoped to the working directory and runs\n" +
		"the tools the model asks for until it answers in plain text.",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	settings.AddFlags(rootCmd.Flags())
}

func initLogger(config settings.Log) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	// default is text, logs go to stderr so they do not mix with the chat
	var logWriter io.Writer
	if config.Format == "json" {
		logWriter = os.Stderr
	} else {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	if config.File != "" {
		// with a log file the terminal stays clean
		logWriter = zerolog.ConsoleWriter{
			NoColor: true,
			Out: &lumberjack.Logger{
				Filename:   config.File,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, //days
			},
		}
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn", "":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	default:
		return errors.Errorf("unknown log level %q", config.Level)
	}
	return nil
}

func loadSettings(cmd *cobra.Command) (*settings.Settings, error) {
	if err := settings.LoadDotEnv(".env"); err != nil {
		return nil, err
	}
	configFile, _ := cmd.Flags().GetString("config")

	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	s, err := settings.Load(v, configFile)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
