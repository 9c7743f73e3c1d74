package elevation

import (
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
)

// RasterReader loads one terrain tile. Implementations return an error coded util.ErrMissingTile
// when no data covers the key.
type RasterReader interface {
	ReadTile(key TileKey) (*Tile, error)
}

const (
	srtm1Size = 3601 // 1 arc-second
	srtm3Size = 1201 // 3 arc-second
)

// HGTReader reads SRTM .hgt tiles (optionally gzip compressed as .hgt.gz) from a directory.
type HGTReader struct {
	dir string
}

func NewHGTReader(dir string) (*HGTReader, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "cannot access terrain tile directory %s", dir)
	}
	if !info.IsDir() {
		return nil, util.NewErrorf(util.ErrIO, "terrain tile path %s is not a directory", dir)
	}
	return &HGTReader{dir: dir}, nil
}

func (h *HGTReader) ReadTile(key TileKey) (*Tile, error) {
	plain := filepath.Join(h.dir, key.String()+".hgt")
	compressed := plain + ".gz"

	f, err := os.Open(plain)
	if errors.Is(err, fs.ErrNotExist) {
		return h.readCompressed(key, compressed)
	}
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "cannot open terrain tile %s", plain)
	}
	defer f.Close()

	return decodeHGT(key, f, plain)
}

func (h *HGTReader) readCompressed(key TileKey, path string) (*Tile, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, util.WrapErrorf(err, util.ErrMissingTile, "no terrain tile %s.hgt in %s", key, h.dir)
	}
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "cannot open terrain tile %s", path)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrDecode, "terrain tile %s is not gzip", path)
	}
	defer gz.Close()

	return decodeHGT(key, gz, path)
}

func decodeHGT(key TileKey, r io.Reader, path string) (*Tile, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "cannot read terrain tile %s", path)
	}

	var size int
	switch len(raw) {
	case 2 * srtm1Size * srtm1Size:
		size = srtm1Size
	case 2 * srtm3Size * srtm3Size:
		size = srtm3Size
	default:
		return nil, util.NewErrorf(util.ErrDecode, "terrain tile %s has unexpected size %d bytes", path, len(raw))
	}

	samples := make([]int16, size*size)
	for i := range samples {
		samples[i] = int16(binary.BigEndian.Uint16(raw[2*i:]))
	}
	return NewTile(key, size, samples)
}

// EncodeHGT writes samples in the .hgt layout: big-endian int16, north row first.
func EncodeHGT(w io.Writer, samples []int16) error {
	return binary.Write(w, binary.BigEndian, samples)
}
