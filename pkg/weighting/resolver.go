package weighting

import (
	"context"
	"fmt"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/concurrent"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/geo"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/osmparser"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const candidateBatchSize = 4096

// ElevationSampler is satisfied by *elevation.Sampler.
type ElevationSampler interface {
	ElevationAt(lat, lon float64) (float64, error)
}

// Resolver turns edge candidates into weighted directed edges.
type Resolver struct {
	sampler ElevationSampler
	workers int
	logger  *zap.Logger
}

func NewResolver(sampler ElevationSampler, workers int, logger *zap.Logger) *Resolver {
	return &Resolver{
		sampler: sampler,
		workers: max(workers, 1),
		logger:  logger,
	}
}

func (r *Resolver) Resolve(ctx context.Context, network *osmparser.Network) (*datastructure.Graph, error) {
	nodes := network.GetNodes()
	if err := r.resolveElevations(ctx, nodes); err != nil {
		return nil, err
	}
	r.logger.Sugar().Infof("resolved elevation of %d nodes", len(nodes))

	edges, err := r.resolveEdges(ctx, nodes, network.GetCandidates())
	if err != nil {
		return nil, err
	}

	datastructure.SortEdges(edges)
	collapsed := CollapseParallelEdges(edges)
	if dropped := len(edges) - len(collapsed); dropped > 0 {
		r.logger.Sugar().Debugf("collapsed %d parallel edges", dropped)
	}

	return datastructure.NewGraph(nodes, collapsed)
}

func (r *Resolver) resolveElevations(ctx context.Context, nodes []*datastructure.GraphNode) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	for _, n := range nodes {
		if gctx.Err() != nil {
			break
		}
		n := n
		g.Go(func() error {
			h, err := r.sampler.ElevationAt(n.GetLat(), n.GetLon())
			if err != nil {
				return fmt.Errorf("osm node %d: %w", n.GetOsmID(), err)
			}
			n.SetElevation(h)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

func (r *Resolver) resolveEdges(ctx context.Context, nodes []*datastructure.GraphNode,
	candidates []osmparser.EdgeCandidate) ([]datastructure.GraphEdge, error) {

	batches := make([][]osmparser.EdgeCandidate, 0, len(candidates)/candidateBatchSize+1)
	for start := 0; start < len(candidates); start += candidateBatchSize {
		end := min(start+candidateBatchSize, len(candidates))
		batches = append(batches, candidates[start:end])
	}

	results, err := concurrent.Map(ctx, r.workers, batches, func(batch []osmparser.EdgeCandidate) []datastructure.GraphEdge {
		edges := make([]datastructure.GraphEdge, 0, 2*len(batch))
		for _, c := range batch {
			edges = ExpandCandidate(edges, nodes[c.GetFrom()], nodes[c.GetTo()], c)
		}
		return edges
	})
	if err != nil {
		return nil, err
	}

	edges := make([]datastructure.GraphEdge, 0, 2*len(candidates))
	for _, res := range results {
		edges = append(edges, res...)
	}
	return edges, nil
}

// ExpandCandidate appends the directed edges of c. Ascent is computed separately per direction.
func ExpandCandidate(edges []datastructure.GraphEdge, from, to *datastructure.GraphNode,
	c osmparser.EdgeCandidate) []datastructure.GraphEdge {

	dist := geo.DistanceInMeter(from.GetCoordinate(), to.GetCoordinate())

	if c.IsOneWay() {
		return append(edges, datastructure.NewGraphEdge(from.GetID(), to.GetID(), dist,
			Ascent(from.GetElevation(), to.GetElevation()), c.GetSuitability(), datastructure.ONE_WAY))
	}

	return append(edges,
		datastructure.NewGraphEdge(from.GetID(), to.GetID(), dist,
			Ascent(from.GetElevation(), to.GetElevation()), c.GetSuitability(), datastructure.FORWARD),
		datastructure.NewGraphEdge(to.GetID(), from.GetID(), dist,
			Ascent(to.GetElevation(), from.GetElevation()), c.GetSuitability(), datastructure.REVERSE),
	)
}

func Ascent(sourceElevation, targetElevation float64) float64 {
	return max(0, targetElevation-sourceElevation)
}

// CollapseParallelEdges keeps one edge per (source, target) of edges sorted by SortEdges: the
// highest suitability, then the shortest, then the flattest.
func CollapseParallelEdges(edges []datastructure.GraphEdge) []datastructure.GraphEdge {
	if len(edges) == 0 {
		return edges
	}

	out := make([]datastructure.GraphEdge, 0, len(edges))
	out = append(out, edges[0])
	for _, e := range edges[1:] {
		last := &out[len(out)-1]
		if e.GetSource() != last.GetSource() || e.GetTarget() != last.GetTarget() {
			out = append(out, e)
			continue
		}
		if better(e, *last) {
			*last = e
		}
	}
	return out
}

func better(a, b datastructure.GraphEdge) bool {
	if a.GetSuitability() != b.GetSuitability() {
		return a.GetSuitability() > b.GetSuitability()
	}
	if a.GetDistance() != b.GetDistance() {
		return a.GetDistance() < b.GetDistance()
	}
	if a.GetAscent() != b.GetAscent() {
		return a.GetAscent() < b.GetAscent()
	}
	return a.GetDirection() < b.GetDirection()
}
