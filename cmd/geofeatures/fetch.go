package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/epigeo/geofeatures/internal/cds"
	"github.com/epigeo/geofeatures/internal/infrastructure/monitoring"
	"github.com/epigeo/geofeatures/internal/raster"
)

var fetchFlags struct {
	years      []int
	archiveDir string
	unpack     bool
	bounds     []float64
	outDir     string
}

var fetchLandcoverCmd = &cobra.Command{
	Use:   "fetch-landcover",
	Short: "Retrieve ESA CCI land-cover archives from the Climate Data Store",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, cfg := newLogger(cmd)
		defer log.Sync()

		if len(fetchFlags.years) == 0 {
			return errors.New("at least one --years value is required")
		}
		if fetchFlags.unpack && len(fetchFlags.bounds) != 4 {
			return errors.New("--unpack requires --bounds minx,miny,maxx,maxy")
		}

		archiveDir := fetchFlags.archiveDir
		if archiveDir == "" {
			archiveDir = cfg.Fetch.ArchiveDir
		}
		if err := os.MkdirAll(archiveDir, 0o755); err != nil {
			return err
		}

		metrics := monitoring.New(prometheus.NewRegistry())
		client, err := cds.NewClient(cfg.CDS,
			cds.WithLogger(log.Named("cds")),
			cds.WithMetrics(metrics))
		if err != nil {
			return err
		}
		client.SetPollInterval(time.Duration(cfg.Fetch.PollSeconds) * time.Second)

		scheduler := cds.NewScheduler(client, cfg.Fetch.MaxConcurrent, log.Named("scheduler"))

		var summary cds.SummaryFunc
		if fetchFlags.unpack {
			bounds := raster.Bounds{
				MinX: fetchFlags.bounds[0],
				MinY: fetchFlags.bounds[1],
				MaxX: fetchFlags.bounds[2],
				MaxY: fetchFlags.bounds[3],
			}
			outDir := fetchFlags.outDir
			if outDir == "" {
				outDir = archiveDir
			}
			summary = func(ctx context.Context, outName string, query cds.Query) (interface{}, error) {
				return nil, cds.UnpackLandcover(outName, bounds, outDir)
			}
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		results, err := cds.FetchLandcover(ctx, scheduler, fetchFlags.years, archiveDir, summary, log)
		if err != nil {
			return err
		}

		failed := 0
		for _, res := range results {
			if res.Err != nil {
				failed++
				log.Error("retrieval failed",
					zap.String("file", res.OutName),
					zap.Error(res.Err))
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d retrievals failed", failed, len(results))
		}
		log.Info("all retrievals complete", zap.Int("total", len(results)))
		return nil
	},
}

func init() {
	flags := fetchLandcoverCmd.Flags()
	flags.IntSliceVar(&fetchFlags.years, "years", nil, "years to retrieve (e.g. 2000,2005,2010)")
	flags.StringVar(&fetchFlags.archiveDir, "archive-dir", "", "directory for downloaded archives (default from FETCH_ARCHIVE_DIR)")
	flags.BoolVar(&fetchFlags.unpack, "unpack", false, "unpack archives to rasters and a class legend")
	flags.Float64SliceVar(&fetchFlags.bounds, "bounds", nil, "clip bounds as minx,miny,maxx,maxy (WGS84)")
	flags.StringVar(&fetchFlags.outDir, "out-dir", "", "directory for unpacked rasters (default: archive dir)")
	rootCmd.AddCommand(fetchLandcoverCmd)
}
