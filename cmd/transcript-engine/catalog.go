// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/transcript-engine/internal/catalog"
	"github.com/pdiddy/transcript-engine/internal/transcript"
	"github.com/pdiddy/transcript-engine/pkg/types"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Index and search transcripts (store, search, export)",
	Long: `Catalog manages a local SQLite index of transcript segments. Use
subcommands to index the transcripts directory, search it, or export it.`,
}

// --- store subcommand ---

var catalogStoreCmd = &cobra.Command{
	Use:   "store",
	Short: "Index the transcripts directory",
	Long: `Store parses every transcript in the transcripts directory and indexes
its segments with FTS5. Unchanged transcripts are skipped on later runs and
entries whose file was deleted are removed. export.yaml is rewritten when
anything changed.`,
	RunE: runCatalogStore,
}

func runCatalogStore(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	summary, err := store.Ingest(context.Background(), os.Stdout)
	if err != nil {
		return err
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d transcript(s) failed indexing", summary.Failed)
	}
	return nil
}

// --- search subcommand ---

var catalogSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search transcript segments with full-text search and filters",
	Long: `Search queries the catalog with an FTS5 expression, filters
(--transcript, --language), or both. Results list the transcript, the
segment time range and its text.

Use --context with --transcript and --segment to print a segment with its
neighbours.`,
	RunE: runCatalogSearch,
}

func runCatalogSearch(cmd *cobra.Command, args []string) error {
	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")

	if cmd.Flags().Changed("segment") {
		id, _ := cmd.Flags().GetString("transcript")
		if id == "" {
			return fmt.Errorf("--segment requires --transcript")
		}
		index, _ := cmd.Flags().GetInt("segment")
		window, _ := cmd.Flags().GetInt("context")
		results, err := store.Context(context.Background(), id, index, window)
		if err != nil {
			return err
		}
		return formatSearchOutput(os.Stdout, results, jsonOutput)
	}

	opts := queryOptsFromFlags(cmd, args)
	if opts.IsEmpty() {
		return fmt.Errorf("query or filter required: provide a search query, --transcript, or --language")
	}

	results, err := store.Search(context.Background(), opts)
	if err != nil {
		return err
	}
	return formatSearchOutput(os.Stdout, results, jsonOutput)
}

func formatSearchOutput(w io.Writer, results []catalog.SearchResult, jsonOutput bool) error {
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}

	fmt.Fprintf(w, "%-4s  %-24s  %-5s  %-21s  %s\n",
		"Rank", "Transcript", "Seg", "Time", "Text")
	fmt.Fprintln(w, strings.Repeat("-", 110))

	for i, r := range results {
		id := r.TranscriptID
		if len(id) > 24 {
			id = id[:21] + "..."
		}
		text := r.Text
		if len(text) > 50 {
			text = text[:47] + "..."
		}
		fmt.Fprintf(w, "%-4d  %-24s  %-5d  %-21s  %s\n",
			i+1, id, r.Index, transcript.TimestampLine(r.Start, r.End), text)
	}

	fmt.Fprintf(w, "\n%d results\n", len(results))
	return nil
}

// --- export subcommand ---

var catalogExportCmd = &cobra.Command{
	Use:   "export [query]",
	Short: "Export the catalog to YAML or JSON",
	Long: `Export writes the catalog (or a filtered subset) to
<catalog-dir>/index/export.yaml or export.json, grouped by transcript.
Takes the same filters as search.`,
	RunE: runCatalogExport,
}

func runCatalogExport(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	store, err := openCatalog()
	if err != nil {
		return err
	}
	defer store.Close()

	opts := queryOptsFromFlags(cmd, args)

	var path string
	switch format {
	case "yaml", "":
		path, err = store.ExportYAML(context.Background(), opts)
	case "json":
		path, err = store.ExportJSON(context.Background(), opts)
	default:
		return fmt.Errorf("unsupported format %q: use yaml or json", format)
	}
	if err != nil {
		return err
	}
	fmt.Println("Exported to", path)
	return nil
}

// --- shared helpers ---

func openCatalog() (*catalog.Store, error) {
	pipeline, err := loadPipelineConfig(viper.GetViper())
	if err != nil {
		return nil, err
	}
	return catalog.NewStore(pipeline.Catalog)
}

func queryOptsFromFlags(cmd *cobra.Command, args []string) catalog.QueryOptions {
	queryText, _ := cmd.Flags().GetString("query")
	if queryText == "" && len(args) > 0 {
		queryText = strings.Join(args, " ")
	}
	id, _ := cmd.Flags().GetString("transcript")
	lang, _ := cmd.Flags().GetString("language")
	limit, _ := cmd.Flags().GetInt("limit")

	return catalog.QueryOptions{
		Query:        queryText,
		TranscriptID: id,
		Language:     lang,
		MaxResults:   limit,
	}
}

func init() {
	d := types.DefaultCatalogConfig()

	// Shared flags on the parent command, inherited by subcommands.
	pf := catalogCmd.PersistentFlags()
	pf.String("transcripts-dir", d.TranscriptsDir, "directory of .txt transcripts to index")
	pf.String("catalog-dir", d.CatalogDir, "base directory for the catalog (contains index/)")
	pf.Int("max-results", d.MaxResults, "default maximum number of search results")
	for flag, key := range map[string]string{
		"transcripts-dir": "catalog.transcripts_dir",
		"catalog-dir":     "catalog.catalog_dir",
		"max-results":     "catalog.max_results",
	} {
		_ = viper.BindPFlag(key, pf.Lookup(flag))
	}

	// Search flags.
	catalogSearchCmd.Flags().String("query", "", "full-text search query")
	catalogSearchCmd.Flags().String("transcript", "", "filter by transcript ID (file stem)")
	catalogSearchCmd.Flags().String("language", "", "filter by language code")
	catalogSearchCmd.Flags().Int("limit", 0, "maximum results (0 = use default)")
	catalogSearchCmd.Flags().Int("segment", 0, "show this segment of --transcript with its neighbours")
	catalogSearchCmd.Flags().Int("context", 2, "neighbouring segments shown on each side with --segment")
	catalogSearchCmd.Flags().Bool("json", false, "output results as JSON")

	// Export flags.
	catalogExportCmd.Flags().String("format", "yaml", "export format: yaml or json")
	catalogExportCmd.Flags().String("query", "", "full-text search filter for partial export")
	catalogExportCmd.Flags().String("transcript", "", "filter by transcript ID for partial export")
	catalogExportCmd.Flags().String("language", "", "filter by language for partial export")

	// Wire subcommands.
	catalogCmd.AddCommand(catalogStoreCmd)
	catalogCmd.AddCommand(catalogSearchCmd)
	catalogCmd.AddCommand(catalogExportCmd)

	rootCmd.AddCommand(catalogCmd)
}
