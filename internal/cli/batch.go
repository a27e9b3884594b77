package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/gstgraph/internal/model"
	"github.com/ppiankov/gstgraph/internal/pipeline"
	"github.com/ppiankov/gstgraph/internal/worker"
)

var (
	concurrency  int
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <file>",
	Short: "Analyze multiple dataset directories in parallel",
	Long: `Batch analyzes several independent dataset directories concurrently:
- Read directories from the input file (one per line, # for comments)
- Build each directory with its own engine and snapshot
- Write each result set to <output-dir>/<directory name>

Relative directories are resolved against the input file's location.

Example:
  gstgraph batch periods.txt
  gstgraph batch periods.txt --concurrency 4 --out ./reports`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", runtime.NumCPU(), "number of datasets built concurrently")
	batchCmd.Flags().StringVarP(&outDir, "out", "o", "", "output root directory (default: output.dir from config)")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().StringVar(&idMode, "id-mode", "", "tax ID validation: off, length or checksum")
}

func runBatch(cmd *cobra.Command, args []string) error {
	file := args[0]
	ctx, cancel := context.WithTimeout(context.Background(), batchTimeout)
	defer cancel()

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("concurrency") {
		cfg.Concurrency.BatchWorkers = concurrency
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  gstgraph Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input file:   %s\n", file)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.BatchWorkers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(cfg.Output.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	// Datasets share one renderer; its cache is keyed by fingerprint
	builder := pipeline.NewDirBuilder(cfg, newRenderer(cfg), cfg.Output.Dir)
	processor := worker.NewBatchProcessor(builder, cfg.Concurrency.BatchWorkers)

	fmt.Fprintf(os.Stderr, "⚙️  Reading directories from file...\n")
	results, err := processor.ProcessFile(ctx, file)
	if err != nil {
		return fmt.Errorf("process file: %w", err)
	}

	fmt.Fprintf(os.Stderr, "✓ Processed %d directories\n", len(results))
	fmt.Fprintf(os.Stderr, "\n")

	successCount := 0
	failureCount := 0

	for _, result := range results {
		if result.Error != nil {
			failureCount++
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Dir, result.Error)
			continue
		}

		successCount++
		fmt.Fprintf(os.Stderr, "✓ %s → %s (%s)\n", result.Dir, builder.OutputDir(result.Dir), batchLine(result.Snapshot))
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:     %d directories\n", len(results))
	fmt.Fprintf(os.Stderr, "  Success:   %d\n", successCount)
	fmt.Fprintf(os.Stderr, "  Failures:  %d\n", failureCount)
	fmt.Fprintf(os.Stderr, "  Output:    %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "\n")

	if failureCount > 0 {
		return fmt.Errorf("%d of %d datasets failed", failureCount, len(results))
	}
	return nil
}

// batchLine summarizes one snapshot on a single line
func batchLine(snap *model.Snapshot) string {
	critical := 0
	for _, a := range snap.Alerts {
		if a.Severity == model.SeverityCritical {
			critical++
		}
	}
	return fmt.Sprintf("%d taxpayers, %d patterns, %d critical alerts",
		len(snap.Graph.Nodes), snap.Patterns.Summary.TotalPatterns, critical)
}
