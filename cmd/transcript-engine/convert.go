// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/transcript-engine/internal/convert"
	"github.com/pdiddy/transcript-engine/internal/logging"
	"github.com/pdiddy/transcript-engine/internal/transcript"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Render transcripts as styled PDF documents",
	Long: `Convert reads every .txt transcript in the input directory and writes one
<stem>.pdf per file to the output directory. Header lines become metadata,
timestamp lines are set in bold, and the full text starts on a new page.

Pages are printed by headless Chrome. Set ROD_BROWSER_BIN to use an
installed browser; otherwise one is downloaded on first use.`,
	RunE: runConvert,
}

func runConvert(cmd *cobra.Command, args []string) error {
	pipeline, err := loadPipelineConfig(viper.GetViper())
	if err != nil {
		return err
	}
	cfg := pipeline.Conversion
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := notifyContext(context.Background())
	defer stop()

	files, err := transcript.List(cfg.InputDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	renderer := convert.NewRodRenderer(cfg.Timeout)
	defer func() {
		if err := renderer.Close(); err != nil {
			logging.L().Warn("closing browser", "err", err)
		}
	}()

	result := convert.ConvertBatch(ctx, renderer, files, cfg, os.Stdout)
	if result.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", result.Failed)
	}
	return nil
}

func init() {
	d := types.DefaultConversionConfig()
	f := convertCmd.Flags()

	f.String("input-dir", d.InputDir, "directory holding .txt transcripts")
	f.String("output-dir", d.OutputDir, "directory receiving <stem>.pdf files")
	f.String("page-size", string(d.PageSize), "paper size: letter or a4")
	f.Float64("font-size", d.FontSize, "body text size in points")
	f.String("font-name", d.FontName, "body font family")
	f.Duration("timeout", d.Timeout, "timeout for rendering one PDF")
	f.Bool("skip-existing", d.SkipExisting, "leave transcripts whose PDF already exists")

	bindFlags(convertCmd, map[string]string{
		"input-dir":     "conversion.input_dir",
		"output-dir":    "conversion.output_dir",
		"page-size":     "conversion.page_size",
		"font-size":     "conversion.font_size",
		"font-name":     "conversion.font_name",
		"timeout":       "conversion.timeout",
		"skip-existing": "conversion.skip_existing",
	})

	rootCmd.AddCommand(convertCmd)
}
