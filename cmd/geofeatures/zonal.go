package main

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/epigeo/geofeatures/internal/raster"
	"github.com/epigeo/geofeatures/internal/vector"
	"github.com/epigeo/geofeatures/internal/zonal"
)

var zonalFlags struct {
	rasterPath   string
	polygonsPath string
	locationProp string
	stat         string
	categorical  bool
	proportion   bool
	allTouched   bool
}

var zonalCmd = &cobra.Command{
	Use:   "zonal",
	Short: "Summarise raster values over polygons, CSV to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		log, _ := newLogger(cmd)
		defer log.Sync()

		grid, err := loadRaster(zonalFlags.rasterPath)
		if err != nil {
			return err
		}
		polygons, err := vector.ReadGeoJSON(zonalFlags.polygonsPath, zonalFlags.locationProp)
		if err != nil {
			return err
		}

		w := csv.NewWriter(os.Stdout)
		defer w.Flush()

		if zonalFlags.categorical {
			results, err := zonal.SummarizeCategorical(grid, polygons, zonal.CategoricalOptions{
				Proportion: zonalFlags.proportion,
				AllTouched: zonalFlags.allTouched,
				Logger:     log,
			})
			if err != nil {
				return err
			}
			return writeCategoricalCSV(w, results)
		}

		results, err := zonal.Summarize(grid, polygons, zonal.Stat(zonalFlags.stat), zonal.Options{
			AllTouched: zonalFlags.allTouched,
			Logger:     log,
		})
		if err != nil {
			return err
		}

		if err := w.Write([]string{"location", zonalFlags.stat}); err != nil {
			return err
		}
		for _, res := range results {
			if err := w.Write([]string{res.Location, formatValue(res.Value)}); err != nil {
				return err
			}
		}
		return nil
	},
}

// loadRaster reads a raster by extension: TIFF or raw .npy array, both with
// world-file and CRS sidecars.
func loadRaster(path string) (*raster.Grid, error) {
	switch filepath.Ext(path) {
	case ".npy":
		return raster.LoadGridNPY(path)
	case ".tif", ".tiff":
		return raster.ReadTIFF(path)
	default:
		return nil, fmt.Errorf("unsupported raster format %q", filepath.Ext(path))
	}
}

// writeCategoricalCSV writes one row per polygon with a column per category,
// in sorted category order.
func writeCategoricalCSV(w *csv.Writer, results []zonal.CategoricalResult) error {
	if len(results) == 0 {
		return nil
	}

	categories := make([]string, 0, len(results[0].Values))
	for category := range results[0].Values {
		categories = append(categories, category)
	}
	sort.Strings(categories)

	if err := w.Write(append([]string{"location"}, categories...)); err != nil {
		return err
	}
	for _, res := range results {
		row := make([]string, 0, len(categories)+1)
		row = append(row, res.Location)
		for _, category := range categories {
			row = append(row, formatValue(res.Values[category]))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func init() {
	flags := zonalCmd.Flags()
	flags.StringVar(&zonalFlags.rasterPath, "raster", "", "raster file (.tif or .npy)")
	flags.StringVar(&zonalFlags.polygonsPath, "polygons", "", "GeoJSON polygon file")
	flags.StringVar(&zonalFlags.locationProp, "location-property", vector.DefaultLocationProperty, "feature property naming each polygon")
	flags.StringVar(&zonalFlags.stat, "stat", string(zonal.Mean), "summary statistic (mean, sum, min, max, count, median, std)")
	flags.BoolVar(&zonalFlags.categorical, "categorical", false, "treat raster values as categories")
	flags.BoolVar(&zonalFlags.proportion, "proportion", false, "report category proportions instead of counts")
	flags.BoolVar(&zonalFlags.allTouched, "all-touched", true, "include cells touched by a polygon, not only cell centers")
	cobra.CheckErr(zonalCmd.MarkFlagRequired("raster"))
	cobra.CheckErr(zonalCmd.MarkFlagRequired("polygons"))
	rootCmd.AddCommand(zonalCmd)
}
