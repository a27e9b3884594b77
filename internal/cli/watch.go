package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ppiankov/gstgraph/internal/ingest"
	"github.com/ppiankov/gstgraph/internal/logger"
	"github.com/ppiankov/gstgraph/internal/metrics"
	"github.com/ppiankov/gstgraph/internal/pipeline"
	"github.com/ppiankov/gstgraph/internal/worker"
)

var (
	metricsAddr string
	debounce    time.Duration
)

// watchCmd represents the watch command
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Rebuild whenever the input tables change",
	Long: `Watch builds a snapshot of a dataset directory, then rebuilds it each
time one of the input tables is written. Bursts of writes are debounced and
rebuilds are rate limited per directory. Requests arriving while a build is
running are coalesced into a single follow-up build.

A failed rebuild keeps serving the previous snapshot.

With --metrics-addr, Prometheus metrics are served at /metrics and the
current snapshot sections at /snapshot/<section>.

Example:
  gstgraph watch ./data
  gstgraph watch ./data --out ./live --metrics-addr :9090`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: output.dir from config)")
	watchCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /snapshot on this address")
	watchCmd.Flags().DurationVar(&debounce, "debounce", 0, "quiet period before a rebuild (default: watch.debounce from config)")
	watchCmd.Flags().StringVar(&idMode, "id-mode", "", "tax ID validation: off, length or checksum")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := commandConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("metrics-addr") {
		cfg.Metrics.Addr = metricsAddr
	}
	if cmd.Flags().Changed("debounce") {
		cfg.Watch.Debounce = debounce
	}

	engine, err := newEngine(cfg, dir)
	if err != nil {
		return err
	}
	renderer := newRenderer(cfg)

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  gstgraph Watch\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input dir:    %s\n", dir)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", cfg.Output.Dir)
	fmt.Fprintf(os.Stderr, "  Debounce:     %v\n", cfg.Watch.Debounce)
	fmt.Fprintf(os.Stderr, "  Rate:         %.1f rebuilds/min\n", cfg.Watch.RebuildsPerMinute)
	if cfg.Metrics.Addr != "" {
		fmt.Fprintf(os.Stderr, "  Metrics:      http://%s/metrics\n", cfg.Metrics.Addr)
	}
	fmt.Fprintf(os.Stderr, "\n")

	if cfg.Metrics.Addr != "" {
		srv := &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           newServeMux(engine, renderer),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// A broken initial dataset is not fatal; the next write may fix it
	rebuildAndWrite(ctx, engine, renderer, cfg.Output.Dir)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	limiter := worker.NewLimiter(cfg.Watch.RebuildsPerMinute, cfg.Watch.Burst)
	registry := ingest.NewRegistry()
	absOut, _ := filepath.Abs(cfg.Output.Dir)

	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(os.Stderr, "\n✓ Stopped watching %s\n", dir)
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(ev, registry, absOut) {
				continue
			}
			logger.Debug("input changed", zap.String("file", ev.Name), zap.String("op", ev.Op.String()))
			timer.Reset(cfg.Watch.Debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error", zap.Error(err))

		case <-timer.C:
			if !limiter.Allow(dir) {
				metrics.RecordThrottled(dir)
				logger.Info("rebuild throttled", zap.String("dir", dir))
				if err := limiter.Wait(ctx, dir); err != nil {
					continue
				}
			}
			rebuildAndWrite(ctx, engine, renderer, cfg.Output.Dir)
		}
	}
}

// relevantEvent reports whether ev touched an input table outside the output directory
func relevantEvent(ev fsnotify.Event, registry *ingest.Registry, absOut string) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	if registry.FindAdapter(ev.Name) == nil {
		return false
	}
	if abs, err := filepath.Abs(ev.Name); err == nil && absOut != "" {
		if abs == absOut || strings.HasPrefix(abs, absOut+string(filepath.Separator)) {
			return false
		}
	}
	return true
}

// rebuildAndWrite rebuilds, writes the sections and prints a summary.
// Failures are reported and the previous outputs stay in place.
func rebuildAndWrite(ctx context.Context, engine *pipeline.Engine, renderer *pipeline.Renderer, out string) {
	snap, err := engine.Rebuild(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "✗ Build failed: %v\n", err)
		if prev := engine.Current(); prev != nil {
			fmt.Fprintf(os.Stderr, "  Still serving v%d\n", prev.Version)
		}
		return
	}
	if _, err := renderer.WriteDir(snap, out); err != nil {
		fmt.Fprintf(os.Stderr, "✗ Write failed: %v\n", err)
		return
	}
	renderer.RenderSummary(os.Stderr, snap)
	fmt.Fprintln(os.Stderr)
}

// newServeMux exposes Prometheus metrics and the current snapshot sections
func newServeMux(engine *pipeline.Engine, renderer *pipeline.Renderer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/snapshot/{section}", func(w http.ResponseWriter, r *http.Request) {
		snap := engine.Current()
		if snap == nil {
			http.Error(w, "no snapshot published yet", http.StatusServiceUnavailable)
			return
		}
		name := r.PathValue("section")
		if !slices.Contains(pipeline.Sections, name) {
			http.NotFound(w, r)
			return
		}
		data, err := renderer.Section(snap, name)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if strings.HasSuffix(name, ".md") {
			w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		} else {
			w.Header().Set("Content-Type", "application/json")
		}
		w.Header().Set("X-Snapshot-Version", fmt.Sprint(snap.Version))
		_, _ = w.Write(data)
	})
	return mux
}
