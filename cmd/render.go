package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/osm2svg/internal/idlist"
	"github.com/wegman-software/osm2svg/internal/index"
	"github.com/wegman-software/osm2svg/internal/logger"
	"github.com/wegman-software/osm2svg/internal/metrics"
	"github.com/wegman-software/osm2svg/internal/render"
	"github.com/wegman-software/osm2svg/internal/style"
)

var renderCmd = &cobra.Command{
	Use:   "render <input.osm.pbf>",
	Short: "Render requested relations and ways to SVG",
	Long: `Decode an OSM PBF extract, resolve the requested relation and way ids
into geometry, and write an SVG document.

The relation and way lists are plain text files with one id per line.
Output contains one top-level <g> per requested relation (nested to mirror
the relation tree) followed by one top-level <path> per requested way, in
list order. Missing ids, dangling references and relation cycles are
reported as warnings and do not fail the run.`,
	Args: cobra.ExactArgs(1),
	Run:  runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&cfg.RelationsFile, "relations", "r", "", "File with relation ids to render, one per line")
	renderCmd.Flags().StringVarP(&cfg.WaysFile, "ways", "w", "", "File with extra way ids to render, one per line")
	renderCmd.Flags().StringVarP(&cfg.OutputFile, "output", "o", "", "SVG output path (default stdout)")
	renderCmd.Flags().StringVar(&cfg.StyleFile, "style", "", "YAML file with document stroke settings")
	renderCmd.Flags().Float64Var(&cfg.Scale, "scale", cfg.Scale, "Output pixels per projected meter")
	renderCmd.Flags().IntVar(&cfg.Precision, "precision", cfg.Precision, "Decimal places for emitted coordinates")
	renderCmd.Flags().StringVar(&cfg.NodeIndexFile, "node-index", "", "Spill the node index to a sparse mmap file at this path (default in-memory)")
	renderCmd.Flags().IntVar(&cfg.WayCacheSize, "way-cache", cfg.WayCacheSize, "Entries in the assembled-way cache")
}

func runRender(cmd *cobra.Command, args []string) {
	cfg.InputFile = args[0]
	log := logger.Get()

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	st := style.Default()
	if cfg.StyleFile != "" {
		var err error
		st, err = style.Load(cfg.StyleFile)
		if err != nil {
			exitWithError("failed to load style", err)
		}
	}

	var relIDs, wayIDs []int64
	var err error
	if cfg.RelationsFile != "" {
		if relIDs, err = idlist.ParseFile(cfg.RelationsFile); err != nil {
			exitWithError("failed to read relation list", err)
		}
	}
	if cfg.WaysFile != "" {
		if wayIDs, err = idlist.ParseFile(cfg.WaysFile); err != nil {
			exitWithError("failed to read way list", err)
		}
	}
	if len(relIDs) == 0 && len(wayIDs) == 0 {
		exitWithError("no relation or way ids requested", nil)
	}

	// SIGINT/SIGTERM abort the decode pass and release the node index.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.MetricsInterval > 0 {
		collector := metrics.NewCollector(cfg.MetricsInterval, log)
		go collector.Start(ctx)
	}

	log.Info("Starting render",
		zap.String("input", cfg.InputFile),
		zap.Int("relations", len(relIDs)),
		zap.Int("ways", len(wayIDs)),
		zap.Int("workers", cfg.Workers),
	)

	f, err := os.Open(cfg.InputFile)
	if err != nil {
		exitWithError("failed to open input file", err)
	}
	defer f.Close()

	nodes, err := newNodeStore()
	if err != nil {
		exitWithError("failed to create node store", err)
	}

	start := time.Now()
	idx, buildStats, err := index.Build(ctx, f, nodes, cfg.Workers)
	if err != nil {
		nodes.Close()
		exitWithError("failed to build entity index", err)
	}
	defer idx.Close()

	log.Info("Entity index built",
		zap.Int64("nodes", buildStats.Nodes),
		zap.Int64("ways", buildStats.Ways),
		zap.Int64("relations", buildStats.Relations),
		zap.Duration("duration", buildStats.Duration.Round(time.Millisecond)),
	)

	out := os.Stdout
	if cfg.OutputFile != "" {
		out, err = os.Create(cfg.OutputFile)
		if err != nil {
			exitWithError("failed to create output file", err)
		}
		defer out.Close()
	}

	renderer, err := render.New(cfg, idx)
	if err != nil {
		exitWithError("failed to create renderer", err)
	}

	stats, err := renderer.Render(ctx, relIDs, wayIDs, out, st)
	if err != nil {
		exitWithError("render failed", err)
	}

	log.Info("Render complete",
		zap.Int64("groups", stats.Groups),
		zap.Int64("paths", stats.Paths),
		zap.Int64("warnings", stats.Warnings),
		zap.Duration("duration", time.Since(start).Round(time.Millisecond)),
	)
	logger.Sync()
}

func newNodeStore() (index.NodeStore, error) {
	if cfg.NodeIndexFile != "" {
		return index.NewMmapStore(cfg.NodeIndexFile)
	}
	return index.NewMemStore(), nil
}
