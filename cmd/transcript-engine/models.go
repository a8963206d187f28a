// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/transcript-engine/internal/recognize"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage whisper.cpp model files (download, list)",
}

var modelsDownloadCmd = &cobra.Command{
	Use:   "download [size...]",
	Short: "Download ggml models into the models directory",
	Long: `Download fetches the ggml model for each size (default: the configured
transcription.model_size) at the configured compute type. Models already
present are left alone.`,
	RunE: runModelsDownload,
}

func runModelsDownload(cmd *cobra.Command, args []string) error {
	pipeline, err := loadPipelineConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg := pipeline.Transcription

	sizes := args
	if len(sizes) == 0 {
		sizes = []string{cfg.ModelSize}
	}
	for _, size := range sizes {
		if !types.ValidModelSize(size) {
			return fmt.Errorf("%w: %q", types.ErrInvalidModelSize, size)
		}
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	dl := &recognize.Downloader{
		Progress: os.Stderr,
		Token:    secretDefault("huggingface-token", ""),
	}
	for _, size := range sizes {
		path, err := dl.Ensure(ctx, cfg.ModelsDir, recognize.ModelFile(size, cfg.ComputeType))
		if err != nil {
			return err
		}
		fmt.Println(path)
	}
	return nil
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded models",
	RunE: func(cmd *cobra.Command, args []string) error {
		pipeline, err := loadPipelineConfig(viper.GetViper())
		if err != nil {
			return err
		}
		dir := pipeline.Transcription.ModelsDir

		models, err := recognize.ListModels(dir)
		if err != nil {
			return err
		}
		if len(models) == 0 {
			fmt.Printf("No models in %s/\n", dir)
			return nil
		}
		for _, m := range models {
			fmt.Printf("%-32s  %8.1f MB\n", m.File, float64(m.Size)/(1<<20))
		}
		return nil
	},
}

func init() {
	modelsCmd.AddCommand(modelsDownloadCmd)
	modelsCmd.AddCommand(modelsListCmd)

	rootCmd.AddCommand(modelsCmd)
}
