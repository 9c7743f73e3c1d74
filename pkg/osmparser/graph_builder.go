package osmparser

import (
	"context"
	"sync"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/geo"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/suitability"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	nodeProgressInterval = 1_000_000
	wayProgressInterval  = 100_000
)

// NodeRegistry maps external node ids to coordinates.
type NodeRegistry struct {
	mu     sync.RWMutex
	coords map[int64]geo.Coordinate
}

func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{coords: make(map[int64]geo.Coordinate)}
}

func (r *NodeRegistry) Put(id int64, lat, lon float64) {
	r.mu.Lock()
	r.coords[id] = geo.NewCoordinate(lat, lon)
	r.mu.Unlock()
}

func (r *NodeRegistry) Get(id int64) (geo.Coordinate, bool) {
	r.mu.RLock()
	c, ok := r.coords[id]
	r.mu.RUnlock()
	return c, ok
}

func (r *NodeRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.coords)
}

type AssemblyStats struct {
	Nodes         int
	Ways          int
	IgnoredWays   int // no highway tag
	UnusableWays  int
	RetainedWays  int
	Candidates    int
	PromotedNodes int
}

// Network is the assembled street network: promoted nodes in first-seen order and the
// directed edge candidates between them.
type Network struct {
	nodes      []*datastructure.GraphNode
	candidates []EdgeCandidate
	stats      AssemblyStats
}

func NewNetwork(nodes []*datastructure.GraphNode, candidates []EdgeCandidate) *Network {
	return &Network{
		nodes:      nodes,
		candidates: candidates,
		stats: AssemblyStats{
			Candidates:    len(candidates),
			PromotedNodes: len(nodes),
		},
	}
}

func (n *Network) GetNodes() []*datastructure.GraphNode {
	return n.nodes
}

func (n *Network) GetCandidates() []EdgeCandidate {
	return n.candidates
}

func (n *Network) NumberOfNodes() int {
	return len(n.nodes)
}

func (n *Network) GetStats() AssemblyStats {
	return n.stats
}

type wayCandidate struct {
	from   int64
	to     int64
	score  suitability.Score
	oneWay bool
	wayID  int64
}

type Assembler struct {
	classifier *suitability.Classifier
	bufferSize int
	logger     *zap.Logger
}

func NewAssembler(classifier *suitability.Classifier, bufferSize int, logger *zap.Logger) *Assembler {
	return &Assembler{
		classifier: classifier,
		bufferSize: max(bufferSize, 1),
		logger:     logger,
	}
}

// Assemble consumes src once. Decoding runs in its own goroutine and hands primitives over a
// bounded channel. Node references are checked after the stream ends, so ways may precede
// their nodes.
func (a *Assembler) Assemble(ctx context.Context, src Source) (*Network, error) {
	registry := NewNodeRegistry()
	primitives := make(chan Primitive, a.bufferSize)

	var (
		pending []wayCandidate
		stats   AssemblyStats
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return src.Stream(gctx, primitives)
	})
	g.Go(func() error {
		for p := range primitives {
			switch p.Type {
			case NODE_PRIMITIVE:
				registry.Put(p.Node.ID, p.Node.Lat, p.Node.Lon)
				stats.Nodes++
				if stats.Nodes%nodeProgressInterval == 0 {
					a.logger.Sugar().Infof("processing openstreetmap nodes: %d...", stats.Nodes)
				}
			case WAY_PRIMITIVE:
				stats.Ways++
				pending = a.appendWayCandidates(pending, p.Way, &stats)
				if stats.Ways%wayProgressInterval == 0 {
					a.logger.Sugar().Infof("processing openstreetmap ways: %d...", stats.Ways)
				}
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	network, err := promote(registry, pending)
	if err != nil {
		return nil, err
	}
	stats.Candidates = network.stats.Candidates
	stats.PromotedNodes = network.stats.PromotedNodes
	network.stats = stats

	a.logger.Sugar().Infof("assembled street network: %d nodes, %d ways read, %d retained, %d edge candidates",
		stats.Nodes, stats.Ways, stats.RetainedWays, stats.Candidates)
	return network, nil
}

func (a *Assembler) appendWayCandidates(pending []wayCandidate, way *OsmWay, stats *AssemblyStats) []wayCandidate {
	if _, ok := way.Tags[suitability.KeyHighway]; !ok {
		stats.IgnoredWays++
		return pending
	}

	score := a.classifier.Classify(way.Tags)
	if !score.IsUsable() {
		stats.UnusableWays++
		return pending
	}
	stats.RetainedWays++

	oneWay, reversed := suitability.OneWay(way.Tags)
	nodeIDs := way.NodeIDs
	if reversed {
		nodeIDs = util.ReverseG(nodeIDs)
	}

	for i := 0; i < len(nodeIDs)-1; i++ {
		if nodeIDs[i] == nodeIDs[i+1] {
			continue
		}
		pending = append(pending, wayCandidate{
			from:   nodeIDs[i],
			to:     nodeIDs[i+1],
			score:  score,
			oneWay: oneWay,
			wayID:  way.ID,
		})
	}
	return pending
}

// promote assigns dense ids to candidate endpoints in first-seen order.
func promote(registry *NodeRegistry, pending []wayCandidate) (*Network, error) {
	nodeIDMap := make(map[int64]datastructure.Index)
	nodes := make([]*datastructure.GraphNode, 0)
	candidates := make([]EdgeCandidate, 0, len(pending))

	indexOf := func(osmID, wayID int64) (datastructure.Index, error) {
		if id, ok := nodeIDMap[osmID]; ok {
			return id, nil
		}
		coord, ok := registry.Get(osmID)
		if !ok {
			return 0, util.NewErrorf(util.ErrDanglingReference, "way %d references node %d which is not in the street network",
				wayID, osmID)
		}
		id := datastructure.Index(len(nodes))
		nodeIDMap[osmID] = id
		nodes = append(nodes, datastructure.NewGraphNode(id, osmID, coord.GetLat(), coord.GetLon()))
		return id, nil
	}

	for _, c := range pending {
		from, err := indexOf(c.from, c.wayID)
		if err != nil {
			return nil, err
		}
		to, err := indexOf(c.to, c.wayID)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, NewEdgeCandidate(from, to, c.score, c.oneWay, c.wayID))
	}

	return NewNetwork(nodes, candidates), nil
}
