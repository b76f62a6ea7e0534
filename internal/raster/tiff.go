package raster

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/image/tiff"
)

// TIFF raster exchange with ESRI world-file georeferencing. A raster named
// landcover.tif is accompanied by landcover.tfw (affine coefficients, pixel
// centers) and landcover.crs ("EPSG:<code>"). Pixel values are 16-bit
// grayscale, which covers categorical products such as land-cover classes.

// WriteTIFF writes g as a grayscale TIFF plus world-file and CRS sidecars.
// Values must fit uint16; missing cells are written as the declared nodata
// value (or 0).
func WriteTIFF(filename string, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}

	img := image.NewGray16(image.Rect(0, 0, g.Width, g.Height))
	fill := uint16(0)
	if g.HasNoData && g.NoData >= 0 && g.NoData <= math.MaxUint16 {
		fill = uint16(g.NoData)
	}

	for row := 0; row < g.Height; row++ {
		for col := 0; col < g.Width; col++ {
			v := g.At(row, col)
			if g.IsNoData(v) {
				img.SetGray16(col, row, color.Gray16{Y: fill})
				continue
			}
			if v < 0 || v > math.MaxUint16 {
				return fmt.Errorf("value %g at (%d, %d) does not fit uint16", v, row, col)
			}
			img.SetGray16(col, row, color.Gray16{Y: uint16(v)})
		}
	}

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := tiff.Encode(f, img, &tiff.Options{Compression: tiff.Deflate}); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := writeWorldFile(worldFileName(filename), g.Transform); err != nil {
		return err
	}
	if g.EPSG != 0 {
		return os.WriteFile(crsFileName(filename), []byte(fmt.Sprintf("EPSG:%d\n", g.EPSG)), 0o644)
	}
	return nil
}

// ReadTIFF reads a grayscale TIFF and its sidecars into a Grid. A missing
// world file yields an identity transform; a missing CRS sidecar leaves
// EPSG at 0 so callers can apply their own fallback.
func ReadTIFF(filename string) (*Grid, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := tiff.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filename, err)
	}

	bounds := img.Bounds()
	g := NewGrid(bounds.Dx(), bounds.Dy(), Affine{A: 1, E: -1})

	switch im := img.(type) {
	case *image.Gray:
		for row := 0; row < g.Height; row++ {
			for col := 0; col < g.Width; col++ {
				g.Set(row, col, float64(im.GrayAt(bounds.Min.X+col, bounds.Min.Y+row).Y))
			}
		}
	case *image.Gray16:
		for row := 0; row < g.Height; row++ {
			for col := 0; col < g.Width; col++ {
				g.Set(row, col, float64(im.Gray16At(bounds.Min.X+col, bounds.Min.Y+row).Y))
			}
		}
	default:
		return nil, fmt.Errorf("%s: unsupported TIFF color model %T", filename, img)
	}

	if transform, err := readWorldFile(worldFileName(filename)); err == nil {
		g.Transform = transform
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if epsg, err := readCRSFile(crsFileName(filename)); err == nil {
		g.EPSG = epsg
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	return g, nil
}

func worldFileName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".tfw"
}

func crsFileName(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename)) + ".crs"
}

// writeWorldFile writes the six-line ESRI world file. World files reference
// the center of the top-left pixel, not its corner.
func writeWorldFile(filename string, t Affine) error {
	cx := t.A*0.5 + t.B*0.5 + t.C
	cy := t.D*0.5 + t.E*0.5 + t.F

	lines := []float64{t.A, t.D, t.B, t.E, cx, cy}
	var sb strings.Builder
	for _, v := range lines {
		sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		sb.WriteByte('\n')
	}
	return os.WriteFile(filename, []byte(sb.String()), 0o644)
}

func readWorldFile(filename string) (Affine, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return Affine{}, err
	}

	fields := strings.Fields(string(raw))
	if len(fields) != 6 {
		return Affine{}, fmt.Errorf("world file %s: expected 6 values, got %d", filename, len(fields))
	}

	vals := make([]float64, 6)
	for i, field := range fields {
		vals[i], err = strconv.ParseFloat(field, 64)
		if err != nil {
			return Affine{}, fmt.Errorf("world file %s: %w", filename, err)
		}
	}

	t := Affine{A: vals[0], D: vals[1], B: vals[2], E: vals[3]}
	t.C = vals[4] - t.A*0.5 - t.B*0.5
	t.F = vals[5] - t.D*0.5 - t.E*0.5
	return t, nil
}

func readCRSFile(filename string) (int, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return 0, err
	}

	s := strings.TrimSpace(string(raw))
	s = strings.TrimPrefix(s, "EPSG:")
	epsg, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("crs file %s: %w", filename, err)
	}
	return epsg, nil
}
