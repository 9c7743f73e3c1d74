package elevation

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// TileCache keeps every loaded tile for the lifetime of the run. Concurrent first accesses to the
// same tile share one load.
type TileCache struct {
	reader RasterReader

	mu    sync.RWMutex
	tiles map[TileKey]*Tile
	group singleflight.Group
	loads atomic.Int64
}

func NewTileCache(reader RasterReader) *TileCache {
	return &TileCache{
		reader: reader,
		tiles:  make(map[TileKey]*Tile),
	}
}

func (c *TileCache) Get(key TileKey) (*Tile, error) {
	c.mu.RLock()
	tile, ok := c.tiles[key]
	c.mu.RUnlock()
	if ok {
		return tile, nil
	}

	v, err, _ := c.group.Do(key.String(), func() (interface{}, error) {
		c.mu.RLock()
		tile, ok := c.tiles[key]
		c.mu.RUnlock()
		if ok {
			return tile, nil
		}

		tile, err := c.reader.ReadTile(key)
		if err != nil {
			return nil, err
		}
		c.loads.Add(1)

		c.mu.Lock()
		c.tiles[key] = tile
		c.mu.Unlock()
		return tile, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Tile), nil
}

func (c *TileCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tiles)
}

// Loads counts successful reads from the raster reader.
func (c *TileCache) Loads() int64 {
	return c.loads.Load()
}

func (c *TileCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tiles = make(map[TileKey]*Tile)
}
