package main

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/dasmlab/neurotranslate/pkg/config"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	v := config.New()
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "neurotranslate",
		Short: "Neural machine translation service",
		Long: `neurotranslate translates text and .txt files between a fixed set of
languages using opus-mt models, with automatic source language detection.

Available commands:
  serve      - Run the gRPC and HTTP servers
  translate  - Translate text or a file once and exit
  languages  - List supported languages`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a config file (yaml, toml or json)")
	flags.String("log-level", "info", "Log level: debug, info, warn, error")
	flags.String("engine", "huggingface", "Inference backend: huggingface, python or echo")
	flags.String("device", "cpu", "Compute device handed to the backend, e.g. cpu or cuda:0")
	bindFlags(v, rootCmd, map[string]string{
		"log.level":      "log-level",
		"engine.backend": "engine",
		"engine.device":  "device",
	})

	load := func() (*config.Config, *logrus.Logger, error) {
		cfg, err := config.Load(v, configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg, newLogger(cfg.Log.Level), nil
	}

	rootCmd.AddCommand(newServeCommand(v, load))
	rootCmd.AddCommand(newTranslateCommand(load))
	rootCmd.AddCommand(newLanguagesCommand())

	return rootCmd
}

type loadFunc func() (*config.Config, *logrus.Logger, error)

func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) {
	for key, name := range keys {
		flag := cmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = cmd.Flags().Lookup(name)
		}
		if err := v.BindPFlag(key, flag); err != nil {
			panic(err)
		}
	}
}

func newLogger(level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	logger.SetLevel(level)
	return logger
}
