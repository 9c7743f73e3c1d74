package elevation

import (
	"fmt"
	"math"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
)

// SRTM marks missing samples with this value.
const VoidSample int16 = -32768

// TileKey is the integer south-west corner of a one-degree terrain tile.
type TileKey struct {
	Lat int
	Lon int
}

func KeyFor(lat, lon float64) TileKey {
	return TileKey{
		Lat: int(math.Floor(lat)),
		Lon: int(math.Floor(lon)),
	}
}

// String returns the SRTM file stem, e.g. N48E008 or S08W111.
func (k TileKey) String() string {
	ns, ew := 'N', 'E'
	lat, lon := k.Lat, k.Lon
	if lat < 0 {
		ns = 'S'
		lat = -lat
	}
	if lon < 0 {
		ew = 'W'
		lon = -lon
	}
	return fmt.Sprintf("%c%02d%c%03d", ns, lat, ew, lon)
}

// Tile is a size x size grid of samples. Row 0 is the northern edge, column 0 the western edge;
// neighbouring tiles share their border rows/columns.
type Tile struct {
	key     TileKey
	size    int
	samples []int16
}

func NewTile(key TileKey, size int, samples []int16) (*Tile, error) {
	if size < 2 || len(samples) != size*size {
		return nil, util.NewErrorf(util.ErrDecode, "tile %s: expected %dx%d samples, got %d", key, size, size, len(samples))
	}
	return &Tile{
		key:     key,
		size:    size,
		samples: samples,
	}, nil
}

func (t *Tile) GetKey() TileKey {
	return t.key
}

func (t *Tile) GetSize() int {
	return t.size
}

func (t *Tile) sample(row, col int) int16 {
	return t.samples[row*t.size+col]
}

// Elevation interpolates bilinearly between the four samples surrounding (lat, lon). Void samples
// are left out and the remaining weights renormalised.
func (t *Tile) Elevation(lat, lon float64) (float64, error) {
	n := float64(t.size - 1)

	row := clampF((float64(t.key.Lat+1)-lat)*n, 0, n)
	col := clampF((lon-float64(t.key.Lon))*n, 0, n)

	r0 := int(math.Floor(row))
	c0 := int(math.Floor(col))
	r1 := min(r0+1, t.size-1)
	c1 := min(c0+1, t.size-1)
	fr := row - float64(r0)
	fc := col - float64(c0)

	corners := [4]struct {
		r, c int
		w    float64
	}{
		{r0, c0, (1 - fr) * (1 - fc)},
		{r0, c1, (1 - fr) * fc},
		{r1, c0, fr * (1 - fc)},
		{r1, c1, fr * fc},
	}

	sum, weight := 0.0, 0.0
	for _, corner := range corners {
		h := t.sample(corner.r, corner.c)
		if h == VoidSample || corner.w == 0 {
			continue
		}
		sum += float64(h) * corner.w
		weight += corner.w
	}
	if weight == 0 {
		return 0, util.NewErrorf(util.ErrMissingTile, "tile %s has only void samples around (%.7f, %.7f)",
			t.key, lat, lon)
	}
	return sum / weight, nil
}

func clampF(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
