package vector

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/epigeo/geofeatures/internal/infrastructure/logging"
)

// SampleOptions controls random point sampling.
type SampleOptions struct {
	// ExclusionZones are areas no sampled point may fall in. Optional.
	ExclusionZones *Collection
	// Buffer widens each exclusion zone by a planar distance.
	Buffer float64
	// MaxRetries bounds the replacement rounds when exclusion zones reject
	// points. Defaults to 100.
	MaxRetries int
	// Seed makes sampling reproducible. Zero uses a fixed default seed.
	Seed int64
	// Logger receives shortfall warnings. Optional.
	Logger *logging.Logger
}

// SamplePoints draws n random points inside each polygon, avoiding any
// exclusion zones. Exclusion checking is brute force: it is intended for
// the case where excluded areas are a small fraction of the sampled area,
// so only a few points ever need replacing. When replacement rounds are
// exhausted the shortfall is logged and the valid points are returned.
func SamplePoints(polygons *Collection, n int, opts SampleOptions) (*Collection, error) {
	if n <= 0 {
		return nil, errors.New("n must be positive")
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 100
	}
	if opts.MaxRetries < 0 {
		return nil, errors.New("max retries must be positive")
	}
	log := logging.OrNop(opts.Logger)

	seed := opts.Seed
	if seed == 0 {
		seed = 1
	}
	rng := rand.New(rand.NewSource(seed))

	var exclusions *Collection
	if opts.ExclusionZones != nil && len(opts.ExclusionZones.Features) > 0 {
		reprojected, err := opts.ExclusionZones.ToCRS(polygons.EPSG)
		if err != nil {
			return nil, fmt.Errorf("exclusion zones: %w", err)
		}
		exclusions = reprojected
	}

	out := &Collection{EPSG: polygons.EPSG}
	shortPolygons := 0
	totalMissing := 0

	for _, f := range polygons.Features {
		points, missing := samplePolygon(rng, f.Geometry, n, exclusions, opts.Buffer, opts.MaxRetries)
		for _, p := range points {
			out.Features = append(out.Features, Feature{
				Location:   f.Location,
				Geometry:   p,
				Properties: f.Properties,
			})
		}
		if missing > 0 {
			shortPolygons++
			totalMissing += missing
		}
	}

	if shortPolygons > 0 {
		log.Warn("could not place all sampled points",
			zap.Int("polygons_short", shortPolygons),
			zap.Int("max_retries", opts.MaxRetries),
			zap.Float64("mean_missing_per_polygon", float64(totalMissing)/float64(shortPolygons)),
		)
	}
	return out, nil
}

// samplePolygon draws up to n valid points in g, returning the points and
// the number it failed to place.
func samplePolygon(rng *rand.Rand, g orb.Geometry, n int, exclusions *Collection, buffer float64, maxRetries int) ([]orb.Point, int) {
	bound := g.Bound()
	points := make([]orb.Point, 0, n)

	// Each round may draw many candidates: a round only counts against the
	// retry budget once the polygon itself is being hit reliably.
	budget := maxRetries * (n + 20)

	for len(points) < n && budget > 0 {
		budget--

		p := orb.Point{
			bound.Min[0] + rng.Float64()*(bound.Max[0]-bound.Min[0]),
			bound.Min[1] + rng.Float64()*(bound.Max[1]-bound.Min[1]),
		}
		if !Contains(g, p) {
			continue
		}
		if excluded(p, exclusions, buffer) {
			continue
		}
		points = append(points, p)
	}
	return points, n - len(points)
}

func excluded(p orb.Point, exclusions *Collection, buffer float64) bool {
	if exclusions == nil {
		return false
	}
	for _, zone := range exclusions.Features {
		if buffer <= 0 {
			if Contains(zone.Geometry, p) {
				return true
			}
			continue
		}
		if DistanceTo(zone.Geometry, p) <= buffer {
			return true
		}
	}
	return false
}
