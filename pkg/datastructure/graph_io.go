package datastructure

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dsnet/compress/bzip2"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/suitability"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
)

const (
	graphHeader = "# bikegraph v1"

	// written precision: 1e-7 degrees for coordinates, centimeters for lengths.
	coordDecimals = 7
	meterDecimals = 2

	ctxCheckInterval = 4096
)

var bzip2Magic = []byte("BZh")

type WriteOptions struct {
	Compress bool // bzip2
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// WriteGraph serializes g to filename and returns the number of bytes on disk. The graph is
// written to a temporary file in the same directory and renamed into place, so filename is either
// complete or untouched, also when ctx is cancelled midway.
func (g *Graph) WriteGraph(ctx context.Context, filename string, opts WriteOptions) (int64, error) {
	dir, base := filepath.Split(filename)
	if dir == "" {
		dir = "."
	}
	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot create temporary file for %s", filename)
	}

	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	cw := &countingWriter{w: tmp}
	var sink io.Writer = cw
	var bz *bzip2.Writer
	if opts.Compress {
		bz, err = bzip2.NewWriter(cw, &bzip2.WriterConfig{Level: bzip2.BestCompression})
		if err != nil {
			return 0, util.WrapErrorf(err, util.ErrIO, "cannot create bzip2 writer for %s", filename)
		}
		sink = bz
	}

	w := bufio.NewWriter(sink)
	if err := g.encode(ctx, w); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return 0, err
		}
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot write graph %s", filename)
	}
	if err := w.Flush(); err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot write graph %s", filename)
	}
	if bz != nil {
		if err := bz.Close(); err != nil {
			return 0, util.WrapErrorf(err, util.ErrIO, "cannot finish bzip2 stream of %s", filename)
		}
	}
	if err := tmp.Sync(); err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot sync %s", tmp.Name())
	}
	if err := tmp.Chmod(0o644); err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot chmod %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot close %s", tmp.Name())
	}

	// last chance to abort before the output becomes visible.
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), filename); err != nil {
		return 0, util.WrapErrorf(err, util.ErrIO, "cannot move graph into place at %s", filename)
	}
	committed = true
	return cw.n, nil
}

func (g *Graph) encode(ctx context.Context, w *bufio.Writer) error {
	fmt.Fprintf(w, "%s\n", graphHeader)
	fmt.Fprintf(w, "%d %d\n", len(g.nodes), len(g.edges))

	bb := g.boundingBox
	fmt.Fprintf(w, "%s %s %s %s\n", formatCoord(bb.minLat), formatCoord(bb.minLon),
		formatCoord(bb.maxLat), formatCoord(bb.maxLon))

	for i, n := range g.nodes {
		if i%ctxCheckInterval == 0 && util.StopConcurrentOperation(ctx) {
			return ctx.Err()
		}
		fmt.Fprintf(w, "%d %d %s %s %s\n", n.id, n.osmId, formatCoord(n.lat), formatCoord(n.lon),
			formatMeter(n.elevation))
	}

	for i, e := range g.edges {
		if i%ctxCheckInterval == 0 && util.StopConcurrentOperation(ctx) {
			return ctx.Err()
		}
		_, err := fmt.Fprintf(w, "%d %d %s %s %d %d\n", e.source, e.target, formatMeter(e.distance),
			formatMeter(e.ascent), e.suitability, e.direction)
		if err != nil {
			return err
		}
	}
	return nil
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', coordDecimals, 64)
}

// formatMeter never emits "-0.00".
func formatMeter(v float64) string {
	v = util.RoundFloat(v, meterDecimals)
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', meterDecimals, 64)
}

// ReadGraph parses a graph written by WriteGraph, compressed or not.
func ReadGraph(filename string) (*Graph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrIO, "cannot open graph %s", filename)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	magic, err := br.Peek(len(bzip2Magic))
	if err == nil && bytes.Equal(magic, bzip2Magic) {
		bz, err := bzip2.NewReader(br, nil)
		if err != nil {
			return nil, util.WrapErrorf(err, util.ErrDecode, "cannot open bzip2 stream of %s", filename)
		}
		defer bz.Close()
		br = bufio.NewReader(bz)
	}

	g, err := decodeGraph(br)
	if err != nil {
		return nil, util.WrapErrorf(err, util.ErrDecode, "malformed graph %s", filename)
	}
	return g, nil
}

func decodeGraph(br *bufio.Reader) (*Graph, error) {
	line, err := util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	if line != graphHeader {
		return nil, fmt.Errorf("unexpected header %q", line)
	}

	line, err = util.ReadLine(br)
	if err != nil {
		return nil, err
	}
	tokens := util.Fields(line)
	if len(tokens) != 2 {
		return nil, fmt.Errorf("expected 2 counts, got %d", len(tokens))
	}
	numNodes, err := ParseIndex(tokens[0])
	if err != nil {
		return nil, err
	}
	numEdges, err := strconv.ParseUint(tokens[1], 10, 64)
	if err != nil {
		return nil, err
	}

	// bounding box is recomputed from the nodes
	if _, err = util.ReadLine(br); err != nil {
		return nil, err
	}

	nodes := make([]*GraphNode, numNodes)
	for i := 0; i < int(numNodes); i++ {
		line, err := util.ReadLine(br)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
		nodes[i], err = parseNode(line)
		if err != nil {
			return nil, fmt.Errorf("node %d: %w", i, err)
		}
	}

	edges := make([]GraphEdge, numEdges)
	for i := 0; i < int(numEdges); i++ {
		line, err := util.ReadLine(br)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		edges[i], err = parseEdge(line)
		if err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
	}

	if rest, err := util.ReadLine(br); err == nil && strings.TrimSpace(rest) != "" {
		return nil, fmt.Errorf("trailing data after %d edges", numEdges)
	}

	return NewGraph(nodes, edges)
}

func parseNode(line string) (*GraphNode, error) {
	tokens := util.Fields(line)
	if len(tokens) != 5 {
		return nil, fmt.Errorf("expected 5 fields, got %d", len(tokens))
	}
	id, err := ParseIndex(tokens[0])
	if err != nil {
		return nil, err
	}
	osmID, err := strconv.ParseInt(tokens[1], 10, 64)
	if err != nil {
		return nil, err
	}
	lat, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return nil, fmt.Errorf("lat: %w", err)
	}
	lon, err := strconv.ParseFloat(tokens[3], 64)
	if err != nil {
		return nil, fmt.Errorf("lon: %w", err)
	}
	elevation, err := strconv.ParseFloat(tokens[4], 64)
	if err != nil {
		return nil, fmt.Errorf("elevation: %w", err)
	}
	n := NewGraphNode(id, osmID, lat, lon)
	n.SetElevation(elevation)
	return n, nil
}

func parseEdge(line string) (GraphEdge, error) {
	tokens := util.Fields(line)
	if len(tokens) != 6 {
		return GraphEdge{}, fmt.Errorf("expected 6 fields, got %d", len(tokens))
	}
	source, err := ParseIndex(tokens[0])
	if err != nil {
		return GraphEdge{}, err
	}
	target, err := ParseIndex(tokens[1])
	if err != nil {
		return GraphEdge{}, err
	}
	dist, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return GraphEdge{}, fmt.Errorf("distance: %w", err)
	}
	ascent, err := strconv.ParseFloat(tokens[3], 64)
	if err != nil {
		return GraphEdge{}, fmt.Errorf("ascent: %w", err)
	}
	score, err := strconv.ParseInt(tokens[4], 10, 8)
	if err != nil {
		return GraphEdge{}, fmt.Errorf("suitability: %w", err)
	}
	direction, err := strconv.ParseUint(tokens[5], 10, 8)
	if err != nil || Direction(direction) > REVERSE {
		return GraphEdge{}, fmt.Errorf("invalid direction %q", tokens[5])
	}
	return NewGraphEdge(source, target, dist, ascent, suitability.Score(score), Direction(direction)), nil
}

func ParseIndex(s string) (Index, error) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, err
	}
	if u > math.MaxUint32 {
		return 0, fmt.Errorf("value %s overflows uint32", s)
	}
	return Index(u), nil
}
