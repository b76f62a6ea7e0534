package cds

import (
	"fmt"
	"strings"

	"github.com/batchatco/go-native-netcdf/netcdf"
	"github.com/batchatco/go-native-netcdf/netcdf/api"

	"github.com/epigeo/geofeatures/internal/raster"
)

// Variable names inside the ESA CCI land-cover netCDF payload.
const (
	ncClassVar  = "lccs_class"
	ncChangeVar = "change_count"
	ncLatVar    = "lat"
	ncLonVar    = "lon"
)

type landcoverData struct {
	classes *raster.Grid
	changes *raster.Grid
	legend  map[int]string
}

// readLandcoverNetCDF pulls the class and change-count bands plus the class
// legend out of a land-cover netCDF file. Both bands are returned on a
// north-up WGS84 grid derived from the file's coordinate variables.
func readLandcoverNetCDF(filename string) (*landcoverData, error) {
	group, err := netcdf.Open(filename)
	if err != nil {
		return nil, err
	}
	defer group.Close()

	transform, width, height, err := ncTransform(group)
	if err != nil {
		return nil, err
	}

	classVar, err := group.GetVariable(ncClassVar)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", ncClassVar, err)
	}
	classes, err := ncGrid(classVar.Values, width, height, transform)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", ncClassVar, err)
	}

	changeVar, err := group.GetVariable(ncChangeVar)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", ncChangeVar, err)
	}
	changes, err := ncGrid(changeVar.Values, width, height, transform)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", ncChangeVar, err)
	}

	legend, err := ncLegend(classVar.Attributes)
	if err != nil {
		return nil, fmt.Errorf("variable %s: %w", ncClassVar, err)
	}

	return &landcoverData{classes: classes, changes: changes, legend: legend}, nil
}

// normaliseUnsigned re-wraps class codes into the 0..255 range. The product
// stores them as bytes, which the reader surfaces as signed int8.
func (d *landcoverData) normaliseUnsigned() {
	for i, v := range d.classes.Data {
		if v < 0 {
			d.classes.Data[i] = v + 256
		}
	}
	for k, label := range d.legend {
		if k < 0 {
			delete(d.legend, k)
			d.legend[k+256] = label
		}
	}
}

// ncTransform builds a north-up affine transform from the 1-D lat and lon
// coordinate variables, which hold cell centers.
func ncTransform(group api.Group) (raster.Affine, int, int, error) {
	lonVar, err := group.GetVariable(ncLonVar)
	if err != nil {
		return raster.Affine{}, 0, 0, fmt.Errorf("variable %s: %w", ncLonVar, err)
	}
	lon, err := ncFloats(lonVar.Values)
	if err != nil {
		return raster.Affine{}, 0, 0, fmt.Errorf("variable %s: %w", ncLonVar, err)
	}

	latVar, err := group.GetVariable(ncLatVar)
	if err != nil {
		return raster.Affine{}, 0, 0, fmt.Errorf("variable %s: %w", ncLatVar, err)
	}
	lat, err := ncFloats(latVar.Values)
	if err != nil {
		return raster.Affine{}, 0, 0, fmt.Errorf("variable %s: %w", ncLatVar, err)
	}

	if len(lon) < 2 || len(lat) < 2 {
		return raster.Affine{}, 0, 0, fmt.Errorf("degenerate coordinate axes (%d x %d)", len(lon), len(lat))
	}

	pixelWidth := lon[1] - lon[0]
	pixelHeight := lat[1] - lat[0]
	// Coordinates are cell centers; shift out by half a cell to get the
	// grid origin.
	originX := lon[0] - pixelWidth/2
	originY := lat[0] - pixelHeight/2

	return raster.NorthUp(originX, originY, pixelWidth, pixelHeight), len(lon), len(lat), nil
}

// ncFloats converts a 1-D coordinate payload to float64.
func ncFloats(values interface{}) ([]float64, error) {
	switch v := values.(type) {
	case []float64:
		return v, nil
	case []float32:
		out := make([]float64, len(v))
		for i, x := range v {
			out[i] = float64(x)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported coordinate type %T", values)
	}
}

// ncGrid converts a 2-D band, possibly wrapped in a singleton time
// dimension, into a Grid.
func ncGrid(values interface{}, width, height int, transform raster.Affine) (*raster.Grid, error) {
	rows, err := ncRows(values)
	if err != nil {
		return nil, err
	}
	if len(rows) != height {
		return nil, fmt.Errorf("expected %d rows, got %d", height, len(rows))
	}

	g := raster.NewGrid(width, height, transform)
	g.EPSG = 4326
	for r, row := range rows {
		if len(row) != width {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", r, width, len(row))
		}
		copy(g.Data[r*width:], row)
	}
	return g, nil
}

// ncRows flattens the supported band layouts to [][]float64.
func ncRows(values interface{}) ([][]float64, error) {
	switch v := values.(type) {
	case [][]uint8:
		return convertRows(v), nil
	case [][]int8:
		return convertRows(v), nil
	case [][]int16:
		return convertRows(v), nil
	case [][]int32:
		return convertRows(v), nil
	case [][]float32:
		return convertRows(v), nil
	case [][]float64:
		return v, nil
	case [][][]uint8:
		return singleBand(v)
	case [][][]int8:
		return singleBand(v)
	case [][][]int16:
		return singleBand(v)
	case [][][]int32:
		return singleBand(v)
	case [][][]float32:
		return singleBand(v)
	case [][][]float64:
		return singleBand(v)
	default:
		return nil, fmt.Errorf("unsupported band type %T", values)
	}
}

func convertRows[T uint8 | int8 | int16 | int32 | float32](rows [][]T) [][]float64 {
	out := make([][]float64, len(rows))
	for r, row := range rows {
		out[r] = make([]float64, len(row))
		for c, v := range row {
			out[r][c] = float64(v)
		}
	}
	return out
}

func singleBand[T uint8 | int8 | int16 | int32 | float32 | float64](bands [][][]T) ([][]float64, error) {
	if len(bands) != 1 {
		return nil, fmt.Errorf("expected a single time step, got %d", len(bands))
	}
	return ncRows(bands[0])
}

// ncLegend reads the class legend from the band's flag_values and
// flag_meanings attributes.
func ncLegend(attrs api.AttributeMap) (map[int]string, error) {
	flagValues, has := attrs.Get("flag_values")
	if !has {
		return nil, fmt.Errorf("missing flag_values attribute")
	}
	flagMeanings, has := attrs.Get("flag_meanings")
	if !has {
		return nil, fmt.Errorf("missing flag_meanings attribute")
	}

	meaningsStr, ok := flagMeanings.(string)
	if !ok {
		return nil, fmt.Errorf("flag_meanings: expected string, got %T", flagMeanings)
	}
	meanings := strings.Fields(meaningsStr)

	values, err := ncFlagValues(flagValues)
	if err != nil {
		return nil, err
	}
	if len(values) != len(meanings) {
		return nil, fmt.Errorf("%d flag values but %d meanings", len(values), len(meanings))
	}

	legend := make(map[int]string, len(values))
	for i, v := range values {
		legend[v] = meanings[i]
	}
	return legend, nil
}

func ncFlagValues(values interface{}) ([]int, error) {
	switch v := values.(type) {
	case []uint8:
		return convertFlags(v), nil
	case []int8:
		return convertFlags(v), nil
	case []int16:
		return convertFlags(v), nil
	case []int32:
		return convertFlags(v), nil
	case []int64:
		return convertFlags(v), nil
	default:
		return nil, fmt.Errorf("flag_values: unsupported type %T", values)
	}
}

func convertFlags[T uint8 | int8 | int16 | int32 | int64](values []T) []int {
	out := make([]int, len(values))
	for i, v := range values {
		out[i] = int(v)
	}
	return out
}
