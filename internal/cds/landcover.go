package cds

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"

	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
	"github.com/epigeo/geofeatures/internal/raster"
)

// LandcoverDataset is the CDS dataset name for the ESA CCI land-cover
// product.
const LandcoverDataset = "satellite-land-cover"

// landcoverFirstYear is the first year of the product. Change counts are
// also expressed relative to it.
const landcoverFirstYear = 1992

var (
	ErrDuplicateYears = errors.New("requested years should be unique")
	ErrNoYears        = errors.New("no requested years are available")
)

// CheckYears validates the requested years and drops those outside the
// product's availability window with a warning. Data is released with
// roughly a two year delay, so the newest available year is currentYear-2.
func CheckYears(years []int, log *logging.Logger) ([]int, error) {
	log = logging.OrNop(log)

	seen := make(map[int]struct{}, len(years))
	for _, y := range years {
		if _, dup := seen[y]; dup {
			return nil, ErrDuplicateYears
		}
		seen[y] = struct{}{}
	}

	lastAvailable := time.Now().Year() - 2

	out := make([]int, 0, len(years))
	for _, y := range years {
		switch {
		case y < landcoverFirstYear:
			log.Warn("years before 1992 are not available, ignoring",
				zap.Int("year", y))
		case y > lastAvailable:
			log.Warn("year not yet available, ignoring",
				zap.Int("year", y),
				zap.Int("last_available", lastAvailable))
		default:
			out = append(out, y)
		}
	}

	if len(out) == 0 {
		return nil, ErrNoYears
	}
	sort.Ints(out)
	return out, nil
}

// landcoverVersion returns the product version covering a year. v2.1.1
// contains 2016 onwards but no earlier data.
func landcoverVersion(year int) string {
	if year < 2016 {
		return "v2.0.7cds"
	}
	return "v2.1.1"
}

// LandcoverRequests builds one retrieval request per year, writing archives
// into archiveDir.
func LandcoverRequests(years []int, archiveDir string) []Request {
	requests := make([]Request, len(years))
	for i, year := range years {
		requests[i] = Request{
			OutName: filepath.Join(archiveDir, fmt.Sprintf("satellite-land-cover_%d.zip", year)),
			Query: Query{
				"variable": "all",
				"format":   "zip",
				"year":     year,
				"version":  landcoverVersion(year),
			},
		}
	}
	return requests
}

// FetchLandcover validates years, schedules the retrievals and runs the
// optional per-file summary.
func FetchLandcover(ctx context.Context, s *Scheduler, years []int, archiveDir string, summary SummaryFunc, log *logging.Logger) ([]Result, error) {
	log = logging.OrNop(log)

	years, err := CheckYears(years, log)
	if err != nil {
		return nil, err
	}

	requests := LandcoverRequests(years, archiveDir)
	log.Info("scheduling landcover queries",
		zap.Int("queries", len(requests)),
		zap.String("archive_dir", archiveDir))

	return s.Run(ctx, LandcoverDataset, requests, summary)
}

// UnpackLandcover extracts a downloaded landcover archive and writes three
// files to outDir, where <yyyy> is the archive's year:
//
//   - landcover_lccs_category_<yyyy>.tif: land-cover class
//   - landcover_change_count_<yyyy>.npy: rate of land-cover change per year
//   - landcover_lccs_legend_<yyyy>.json: class value to label mapping
//
// Rasters are clipped to bounds before writing. The netCDF payload is
// removed once converted.
func UnpackLandcover(archivePath string, bounds raster.Bounds, outDir string) error {
	year, err := landcoverYear(archivePath)
	if err != nil {
		return err
	}

	netcdfPath, err := extractSingleNetCDF(archivePath)
	if err != nil {
		return err
	}
	defer os.Remove(netcdfPath)

	data, err := readLandcoverNetCDF(netcdfPath)
	if err != nil {
		return fmt.Errorf("read %s: %w", netcdfPath, err)
	}

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	data.normaliseUnsigned()

	// Land-cover class. Zero is the product's "no data" flag and must be
	// declared for later summaries.
	data.classes.SetNoData(0)
	clippedClasses, err := data.classes.Clip(bounds)
	if err != nil {
		return fmt.Errorf("clip land-cover classes: %w", err)
	}
	classFile := filepath.Join(outDir, fmt.Sprintf("landcover_lccs_category_%d.tif", year))
	if err := raster.WriteTIFF(classFile, clippedClasses); err != nil {
		return err
	}

	// Change counts accumulate since the product's first year; normalise to
	// a yearly rate so different years are comparable.
	elapsed := year - landcoverFirstYear
	if elapsed > 0 {
		data.changes.Scale(1 / float64(elapsed))
	}
	clippedChanges, err := data.changes.Clip(bounds)
	if err != nil {
		return fmt.Errorf("clip change counts: %w", err)
	}
	// No missing values expected; the value is arbitrary.
	clippedChanges.SetNoData(100)
	changeFile := filepath.Join(outDir, fmt.Sprintf("landcover_change_count_%d.npy", year))
	if err := raster.SaveGridNPY(changeFile, clippedChanges); err != nil {
		return err
	}

	legendFile := filepath.Join(outDir, fmt.Sprintf("landcover_lccs_legend_%d.json", year))
	legendJSON, err := json.MarshalIndent(data.legend, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(legendFile, legendJSON, 0o644)
}

// landcoverYear parses the year out of an archive name built by
// LandcoverRequests.
func landcoverYear(archivePath string) (int, error) {
	base := strings.TrimSuffix(filepath.Base(archivePath), ".zip")
	_, yearStr, ok := strings.Cut(base, "_")
	if !ok {
		return 0, fmt.Errorf("cannot determine year from archive name %q", archivePath)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return 0, fmt.Errorf("cannot determine year from archive name %q: %w", archivePath, err)
	}
	return year, nil
}

// extractSingleNetCDF extracts the archive's only member, which must be a
// netCDF file extracting into the archive's directory.
func extractSingleNetCDF(archivePath string) (string, error) {
	archive, err := zip.OpenReader(archivePath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", archivePath, err)
	}
	defer archive.Close()

	if len(archive.File) != 1 {
		return "", fmt.Errorf("%s: expected exactly one archive member, found %d", archivePath, len(archive.File))
	}

	member := archive.File[0]
	name := member.Name
	if !strings.HasSuffix(name, ".nc") {
		return "", fmt.Errorf("%s: expected a netCDF member, found %q", archivePath, name)
	}
	if name != filepath.Base(name) {
		return "", fmt.Errorf("%s: archive member %q must extract to the archive directory", archivePath, name)
	}

	outPath := filepath.Join(filepath.Dir(archivePath), name)
	src, err := member.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, err := os.Create(outPath)
	if err != nil {
		return "", err
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("extract %s: %w", name, err)
	}
	return outPath, dst.Close()
}
