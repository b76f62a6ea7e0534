package raster

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// NumPy ".npy" version 1.0 codec for 2-D little-endian float64 arrays in C
// order. This matches the format the cached edge-feature matrices were
// historically persisted in, so existing files remain readable.

var npyMagic = []byte("\x93NUMPY")

var ErrNPYFormat = errors.New("unsupported npy file")

// WriteNPY writes a rows x cols float64 matrix in npy v1.0 format.
func WriteNPY(w io.Writer, data []float64, rows, cols int) error {
	if len(data) != rows*cols {
		return fmt.Errorf("npy: data length %d does not match %dx%d", len(data), rows, cols)
	}

	header := fmt.Sprintf("{'descr': '<f8', 'fortran_order': False, 'shape': (%d, %d), }", rows, cols)
	// Total preamble (magic + version + length field + header + newline) must
	// be a multiple of 64.
	pad := 64 - (len(npyMagic)+2+2+len(header)+1)%64
	if pad == 64 {
		pad = 0
	}
	header += strings.Repeat(" ", pad) + "\n"

	bw := bufio.NewWriter(w)
	bw.Write(npyMagic)
	bw.Write([]byte{1, 0})
	binary.Write(bw, binary.LittleEndian, uint16(len(header)))
	bw.WriteString(header)

	buf := make([]byte, 8)
	for _, v := range data {
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v))
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadNPY reads a 2-D float64 matrix from npy v1.0/v2.0 data.
func ReadNPY(r io.Reader) (data []float64, rows, cols int, err error) {
	br := bufio.NewReader(r)

	magic := make([]byte, 8)
	if _, err = io.ReadFull(br, magic); err != nil {
		return nil, 0, 0, err
	}
	if string(magic[:6]) != string(npyMagic) {
		return nil, 0, 0, fmt.Errorf("%w: bad magic", ErrNPYFormat)
	}

	var headerLen int
	switch magic[6] {
	case 1:
		var l uint16
		if err = binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, 0, 0, err
		}
		headerLen = int(l)
	case 2:
		var l uint32
		if err = binary.Read(br, binary.LittleEndian, &l); err != nil {
			return nil, 0, 0, err
		}
		headerLen = int(l)
	default:
		return nil, 0, 0, fmt.Errorf("%w: version %d.%d", ErrNPYFormat, magic[6], magic[7])
	}

	raw := make([]byte, headerLen)
	if _, err = io.ReadFull(br, raw); err != nil {
		return nil, 0, 0, err
	}
	header := string(raw)

	if !strings.Contains(header, "'descr': '<f8'") {
		return nil, 0, 0, fmt.Errorf("%w: only '<f8' arrays supported", ErrNPYFormat)
	}
	if !strings.Contains(header, "'fortran_order': False") {
		return nil, 0, 0, fmt.Errorf("%w: fortran order not supported", ErrNPYFormat)
	}

	rows, cols, err = parseShape(header)
	if err != nil {
		return nil, 0, 0, err
	}

	data = make([]float64, rows*cols)
	buf := make([]byte, 8)
	for i := range data {
		if _, err = io.ReadFull(br, buf); err != nil {
			return nil, 0, 0, err
		}
		data[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf))
	}
	return data, rows, cols, nil
}

func parseShape(header string) (rows, cols int, err error) {
	open := strings.Index(header, "(")
	close := strings.Index(header, ")")
	if open < 0 || close < open {
		return 0, 0, fmt.Errorf("%w: missing shape", ErrNPYFormat)
	}

	parts := strings.Split(header[open+1:close], ",")
	dims := make([]int, 0, 2)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		d, err := strconv.Atoi(p)
		if err != nil {
			return 0, 0, fmt.Errorf("%w: bad shape element %q", ErrNPYFormat, p)
		}
		dims = append(dims, d)
	}

	switch len(dims) {
	case 1:
		return 1, dims[0], nil
	case 2:
		return dims[0], dims[1], nil
	default:
		return 0, 0, fmt.Errorf("%w: %d-dimensional arrays not supported", ErrNPYFormat, len(dims))
	}
}

// SaveNPY writes a matrix to a file.
func SaveNPY(filename string, data []float64, rows, cols int) error {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := WriteNPY(f, data, rows, cols); err != nil {
		return err
	}
	return f.Close()
}

// LoadNPY reads a matrix from a file.
func LoadNPY(filename string) (data []float64, rows, cols int, err error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	return ReadNPY(f)
}

// SaveGridNPY writes g's values as a .npy array plus the same world-file and
// CRS sidecars WriteTIFF produces. Unlike the TIFF form it keeps full float64
// precision, so it suits continuous rasters such as change rates.
func SaveGridNPY(filename string, g *Grid) error {
	if err := g.Validate(); err != nil {
		return err
	}
	if err := SaveNPY(filename, g.Data, g.Height, g.Width); err != nil {
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

// LoadGridNPY reads a .npy array and its sidecars into a Grid. Sidecar
// handling matches ReadTIFF.
func LoadGridNPY(filename string) (*Grid, error) {
	data, rows, cols, err := LoadNPY(filename)
	if err != nil {
		return nil, err
	}

	g := NewGrid(cols, rows, Affine{A: 1, E: -1})
	g.Data = data

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
