// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the transcript-engine CLI.
// Subcommands: transcribe (audio to text), convert (text to PDF),
// catalog (index and search transcripts), models, and version.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/internal/secrets"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// loadedSecrets holds credentials loaded from .secrets/ at startup.
var loadedSecrets secrets.Store

// secretDefault returns fallback when set, else the loaded secret for key.
func secretDefault(key, fallback string) string {
	return loadedSecrets.Default(key, fallback)
}

// rootCmd is the base command for the transcript-engine CLI.
var rootCmd = &cobra.Command{
	Use:   "transcript-engine",
	Short: "Batch audio transcription and transcript publishing",
	Long: `transcript-engine turns a directory of audio recordings into timestamped
plain-text transcripts, and renders those transcripts as styled PDF documents.

transcribe reads audio_files/ and writes transcripts_output/; convert reads
transcripts_output/ and writes output/. catalog indexes the transcripts in a
local SQLite database for full-text search.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Init(logging.Config{Level: logLevel()}); err != nil {
			return err
		}
		log := logging.L()
		_, _ = maxprocs.Set(maxprocs.Logger(log.Debugf))

		s, err := secrets.Load(".secrets/")
		if err != nil {
			return err
		}
		loadedSecrets = s
		if len(s) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded secrets: %v\n", s.Keys())
		}
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./transcript-engine.yaml or ~/.config/transcript-engine/transcript-engine.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "shorthand for --log-level debug")

	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("transcript-engine")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "transcript-engine"))
		}
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// envOnlyKeys are config keys without a flag. Viper decodes only keys it
// knows about, so they are bound to their environment variable explicitly.
var envOnlyKeys = []string{
	"transcription.openai.api_key",
}

// configureEnv maps TRANSCRIPT_ENGINE_<KEY> variables onto config keys, so
// TRANSCRIPT_ENGINE_TRANSCRIPTION_MODEL_SIZE overrides transcription.model_size.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix("TRANSCRIPT_ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}
}

func logLevel() string {
	if v, _ := rootCmd.PersistentFlags().GetBool("verbose"); v {
		return "debug"
	}
	return viper.GetString("log_level")
}

// loadPipelineConfig decodes every stage configuration from v on top of
// the built-in defaults. Keys follow the yaml layout of types.PipelineConfig.
func loadPipelineConfig(v *viper.Viper) (types.PipelineConfig, error) {
	cfg := types.DefaultPipelineConfig()
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	cfg.Transcription.OpenAI.APIKey = secretDefault("openai-api-key", cfg.Transcription.OpenAI.APIKey)
	return cfg, nil
}

// bindFlags binds each flag name to a config key so that config files,
// TRANSCRIPT_ENGINE_* variables and flags share one precedence order.
func bindFlags(cmd *cobra.Command, keys map[string]string) {
	for flag, key := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(flag)); err != nil {
			panic(fmt.Sprintf("binding --%s: %v", flag, err))
		}
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
