package elevation

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/geo"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"golang.org/x/sync/singleflight"
)

// Sampler resolves coordinates to meters above sea level. A coordinate is sampled at most once,
// also when several goroutines ask for it at the same time.
type Sampler struct {
	cache *TileCache

	mu      sync.RWMutex
	memo    map[geo.Coordinate]float64
	group   singleflight.Group
	samples atomic.Int64
}

func NewSampler(cache *TileCache) *Sampler {
	return &Sampler{
		cache: cache,
		memo:  make(map[geo.Coordinate]float64),
	}
}

func (s *Sampler) lookup(coord geo.Coordinate) (float64, bool) {
	s.mu.RLock()
	h, ok := s.memo[coord]
	s.mu.RUnlock()
	return h, ok
}

func (s *Sampler) ElevationAt(lat, lon float64) (float64, error) {
	coord := geo.NewCoordinate(lat, lon)
	if h, ok := s.lookup(coord); ok {
		return h, nil
	}

	if !geo.ValidCoordinate(lat, lon) {
		return 0, util.NewErrorf(util.ErrMissingTile, "coordinate (%v, %v) is outside any terrain tile", lat, lon)
	}

	key := strconv.FormatFloat(lat, 'g', -1, 64) + "," + strconv.FormatFloat(lon, 'g', -1, 64)
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// an earlier flight may have finished between the lookup and Do.
		if h, ok := s.lookup(coord); ok {
			return h, nil
		}

		tile, err := s.cache.Get(KeyFor(lat, lon))
		if err != nil {
			return nil, fmt.Errorf("elevation at (%.7f, %.7f): %w", lat, lon, err)
		}
		h, err := tile.Elevation(lat, lon)
		if err != nil {
			return nil, err
		}
		s.samples.Add(1)

		s.mu.Lock()
		s.memo[coord] = h
		s.mu.Unlock()
		return h, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

// Samples is the number of interpolations performed so far.
func (s *Sampler) Samples() int64 {
	return s.samples.Load()
}
