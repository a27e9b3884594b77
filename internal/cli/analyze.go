package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gstgraph/internal/cache"
	"github.com/ppiankov/gstgraph/internal/ingest"
	"github.com/ppiankov/gstgraph/internal/model"
	"github.com/ppiankov/gstgraph/internal/pipeline"
)

var (
	outDir  string
	timeout time.Duration
	workers int
	idMode  string
	noCache bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze <dir>",
	Short: "Analyze one dataset directory and write the results",
	Long: `Analyze loads the five filing tables from a directory and:
- Reconciles GSTR-1 against GSTR-2B and GSTR-3B credit claims
- Detects circular trading, shell companies, reciprocal and fake invoices
- Flags statistical anomalies in invoice values and credit ratios
- Scores every taxpayer and synthesizes prioritized alerts

Results are written as JSON sections plus a Markdown summary.

Example:
  gstgraph analyze ./data
  gstgraph analyze ./data --out ./reports/march --id-mode checksum`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: output.dir from config)")
	analyzeCmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall analysis timeout")
	analyzeCmd.Flags().IntVar(&workers, "workers", 0, "analysis stage workers (default: concurrency.workers from config)")
	analyzeCmd.Flags().StringVar(&idMode, "id-mode", "", "tax ID validation: off, length or checksum")
	analyzeCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable the rendered section cache")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	dir := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "Analyzing: %s\n", dir)
		fmt.Fprintf(os.Stderr, "Output:    %s\n", cfg.Output.Dir)
		fmt.Fprintf(os.Stderr, "Workers:   %d\n", cfg.Concurrency.Workers)
		fmt.Fprintf(os.Stderr, "ID mode:   %s\n", cfg.Validation.IDMode)
		fmt.Fprintln(os.Stderr)
	}

	engine, err := newEngine(cfg, dir)
	if err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Building snapshot...\n")
	}

	snap, err := engine.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("analyze failed: %w", err)
	}

	renderer := newRenderer(cfg)
	files, err := renderer.WriteDir(snap, cfg.Output.Dir)
	if err != nil {
		return fmt.Errorf("render failed: %w", err)
	}

	if verbose {
		for _, f := range files {
			fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", f)
		}
		for _, w := range snap.Warnings {
			fmt.Fprintf(os.Stderr, "⚠️  %s: %s\n", w.Kind, w.Message)
		}
		fmt.Fprintln(os.Stderr)
	}

	renderer.RenderSummary(os.Stdout, snap)
	return nil
}

// commandConfig loads the layered config and applies the flags a command set explicitly
func commandConfig(cmd *cobra.Command) (*model.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("out") {
		cfg.Output.Dir = outDir
	}
	if flags.Changed("workers") {
		cfg.Concurrency.Workers = workers
	}
	if flags.Changed("id-mode") {
		cfg.Validation.IDMode = idMode
	}
	if flags.Changed("no-cache") {
		cfg.Cache.Enabled = !noCache
	}
	cfg.Output.Verbose = cfg.Output.Verbose || verbose
	return cfg, nil
}

// newEngine wires a directory source into a fresh engine
func newEngine(cfg *model.Config, dir string) (*pipeline.Engine, error) {
	p, err := pipeline.NewPipeline(cfg, ingest.NewDirSource(dir, ingest.NewRegistry()))
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	return pipeline.NewEngine(p), nil
}

// newRenderer builds a renderer backed by the in-memory section cache when enabled
func newRenderer(cfg *model.Config) *pipeline.Renderer {
	var c cache.Cache
	if cfg.Cache.Enabled {
		c = cache.NewMemoryCache(cfg.Cache.TTL, 2*cfg.Cache.TTL)
	}
	return pipeline.NewRenderer(c, cfg.Cache.TTL, cfg.Output.Indent, cfg.Score.LeaderboardSize)
}
