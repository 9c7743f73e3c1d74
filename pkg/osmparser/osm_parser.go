package osmparser

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/geo"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"github.com/paulmach/osm"
	"github.com/paulmach/osm/osmpbf"
	"github.com/paulmach/osm/osmxml"
	"go.uber.org/zap"
)

// Source yields primitives into out and closes it when done. A Source can be streamed once.
type Source interface {
	Stream(ctx context.Context, out chan<- Primitive) error
}

type Format uint8

const (
	FORMAT_PBF Format = iota
	FORMAT_XML
)

// Reader decodes an OSM PBF or XML stream into primitives. Relations are ignored.
type Reader struct {
	r        io.Reader
	closers  []io.Closer
	format   Format
	name     string
	pbfProcs int
	logger   *zap.Logger
	streamed atomic.Bool
}

func NewReader(r io.Reader, format Format, name string, pbfProcs int, logger *zap.Logger) *Reader {
	return &Reader{
		r:        r,
		format:   format,
		name:     name,
		pbfProcs: max(pbfProcs, 1),
		logger:   logger,
	}
}

// OpenReader picks the decoder from the file extension: .pbf, .osm/.xml, or .osm.bz2.
func OpenReader(path string, pbfProcs int, logger *zap.Logger) (*Reader, error) {
	lower := strings.ToLower(path)

	var format Format
	switch {
	case strings.HasSuffix(lower, ".pbf"):
		format = FORMAT_PBF
	case strings.HasSuffix(lower, ".osm"), strings.HasSuffix(lower, ".xml"),
		strings.HasSuffix(lower, ".osm.bz2"):
		format = FORMAT_XML
	default:
		return nil, util.NewErrorf(util.ErrDecode, "unsupported street network format %q (want .pbf, .osm, .xml or .osm.bz2)",
			filepath.Base(path))
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "cannot open street network %s", path)
	}

	var r io.Reader = f
	closers := []io.Closer{f}
	if strings.HasSuffix(lower, ".bz2") {
		bz, err := bzip2.NewReader(f, nil)
		if err != nil {
			f.Close()
			return nil, util.WrapErrorf(err, util.ErrDecode, "cannot open bzip2 stream of %s", path)
		}
		r = bz
		closers = append([]io.Closer{bz}, closers...)
	}

	reader := NewReader(r, format, path, pbfProcs, logger)
	reader.closers = closers
	return reader, nil
}

func (rd *Reader) Close() error {
	var firstErr error
	for _, c := range rd.closers {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	rd.closers = nil
	return firstErr
}

func (rd *Reader) newScanner(ctx context.Context) osm.Scanner {
	if rd.format == FORMAT_PBF {
		scanner := osmpbf.New(ctx, rd.r, rd.pbfProcs)
		scanner.SkipRelations = true
		return scanner
	}
	return osmxml.New(ctx, rd.r)
}

func (rd *Reader) Stream(ctx context.Context, out chan<- Primitive) error {
	defer close(out)
	if rd.streamed.Swap(true) {
		return util.NewErrorf(util.ErrIO, "street network %s has already been streamed", rd.name)
	}

	scanner := rd.newScanner(ctx)
	defer scanner.Close()

	skippedWays, objects := 0, 0
	for scanner.Scan() {
		objects++
		var p Primitive

		switch o := scanner.Object().(type) {
		case *osm.Node:
			if !geo.ValidCoordinate(o.Lat, o.Lon) {
				return util.NewErrorf(util.ErrDecode, "%s: node %d has invalid coordinate (%v, %v)",
					rd.name, o.ID, o.Lat, o.Lon)
			}
			p = NewNodePrimitive(int64(o.ID), o.Lat, o.Lon)
		case *osm.Way:
			if len(o.Nodes) < 2 {
				skippedWays++
				continue
			}
			nodeIDs := make([]int64, len(o.Nodes))
			for i, wn := range o.Nodes {
				nodeIDs[i] = int64(wn.ID)
			}
			p = NewWayPrimitive(int64(o.ID), nodeIDs, o.Tags.Map())
		default:
			continue
		}

		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	if skippedWays > 0 {
		rd.logger.Debug("skipped ways with fewer than two nodes", zap.String("file", rd.name),
			zap.Int("count", skippedWays))
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return util.WrapErrorf(err, util.ErrIO, "cannot read street network %s", rd.name)
		}
		return util.WrapErrorf(err, util.ErrDecode, "malformed street network %s", rd.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// a zero-byte or cut-off download decodes cleanly to nothing.
	if objects == 0 {
		return util.NewErrorf(util.ErrDecode, "%s: empty street network", rd.name)
	}
	return nil
}

// SliceSource streams primitives held in memory.
type SliceSource struct {
	prims    []Primitive
	streamed atomic.Bool
}

func NewSliceSource(prims ...Primitive) *SliceSource {
	return &SliceSource{prims: prims}
}

func (s *SliceSource) Stream(ctx context.Context, out chan<- Primitive) error {
	defer close(out)
	if s.streamed.Swap(true) {
		return util.NewErrorf(util.ErrIO, "primitive slice has already been streamed")
	}
	for _, p := range s.prims {
		select {
		case out <- p:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
