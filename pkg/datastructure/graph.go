package datastructure

import (
	"sort"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/geo"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/suitability"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
)

type Index uint32

type Direction uint8

const (
	ONE_WAY Direction = iota // way may only be ridden along its node order
	FORWARD                  // forward half of a mirrored pair
	REVERSE                  // mirrored half, target -> source of the way order
)

func (d Direction) String() string {
	switch d {
	case ONE_WAY:
		return "oneway"
	case FORWARD:
		return "forward"
	case REVERSE:
		return "reverse"
	default:
		return "unknown"
	}
}

type GraphNode struct {
	id        Index
	osmId     int64 // lookup only
	lat       float64
	lon       float64
	elevation float64
}

func NewGraphNode(id Index, osmId int64, lat, lon float64) *GraphNode {
	return &GraphNode{
		id:    id,
		osmId: osmId,
		lat:   lat,
		lon:   lon,
	}
}

func (n *GraphNode) GetID() Index {
	return n.id
}

func (n *GraphNode) GetOsmID() int64 {
	return n.osmId
}

func (n *GraphNode) GetLat() float64 {
	return n.lat
}

func (n *GraphNode) GetLon() float64 {
	return n.lon
}

func (n *GraphNode) GetCoordinate() geo.Coordinate {
	return geo.NewCoordinate(n.lat, n.lon)
}

func (n *GraphNode) GetElevation() float64 {
	return n.elevation
}

func (n *GraphNode) SetElevation(elevation float64) {
	n.elevation = elevation
}

type GraphEdge struct {
	source      Index
	target      Index
	distance    float64 // meters
	ascent      float64 // meters, >= 0
	suitability suitability.Score
	direction   Direction
}

func NewGraphEdge(source, target Index, distance, ascent float64, score suitability.Score,
	direction Direction) GraphEdge {
	return GraphEdge{
		source:      source,
		target:      target,
		distance:    distance,
		ascent:      ascent,
		suitability: score,
		direction:   direction,
	}
}

func (e GraphEdge) GetSource() Index {
	return e.source
}

func (e GraphEdge) GetTarget() Index {
	return e.target
}

func (e GraphEdge) GetDistance() float64 {
	return e.distance
}

func (e GraphEdge) GetAscent() float64 {
	return e.ascent
}

func (e GraphEdge) GetSuitability() suitability.Score {
	return e.suitability
}

func (e GraphEdge) GetDirection() Direction {
	return e.direction
}

type BoundingBox struct {
	minLat, minLon float64
	maxLat, maxLon float64
}

func NewBoundingBox(minLat, minLon, maxLat, maxLon float64) *BoundingBox {
	return &BoundingBox{minLat: minLat,
		minLon: minLon,
		maxLat: maxLat,
		maxLon: maxLon}
}

func (b *BoundingBox) GetMinLat() float64 {
	return b.minLat
}

func (b *BoundingBox) GetMinLon() float64 {
	return b.minLon
}

func (b *BoundingBox) GetMaxLat() float64 {
	return b.maxLat
}

func (b *BoundingBox) GetMaxLon() float64 {
	return b.maxLon
}

// Graph is the immutable output of one extraction run. Nodes are indexed by their id, edges are
// ordered by (source, target).
type Graph struct {
	nodes       []*GraphNode
	edges       []GraphEdge
	boundingBox *BoundingBox
}

// NewGraph checks that node ids are dense and that every edge references an existing node, then
// orders the edges. Edges with equal (source, target) keep their relative order.
func NewGraph(nodes []*GraphNode, edges []GraphEdge) (*Graph, error) {
	for i, n := range nodes {
		if n.id != Index(i) {
			return nil, util.NewErrorf(util.ErrBadParamInput, "node at position %d has id %d", i, n.id)
		}
	}
	numNodes := Index(len(nodes))
	for i, e := range edges {
		if e.source >= numNodes || e.target >= numNodes {
			return nil, util.NewErrorf(util.ErrBadParamInput, "edge %d (%d -> %d) references a node outside [0, %d)",
				i, e.source, e.target, numNodes)
		}
	}

	sorted := make([]GraphEdge, len(edges))
	copy(sorted, edges)
	SortEdges(sorted)

	coords := make([]geo.Coordinate, len(nodes))
	for i, n := range nodes {
		coords[i] = n.GetCoordinate()
	}
	minLat, minLon, maxLat, maxLon := geo.RectCorners(geo.BoundingRect(coords))

	return &Graph{
		nodes:       nodes,
		edges:       sorted,
		boundingBox: NewBoundingBox(minLat, minLon, maxLat, maxLon),
	}, nil
}

func SortEdges(edges []GraphEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].source != edges[j].source {
			return edges[i].source < edges[j].source
		}
		return edges[i].target < edges[j].target
	})
}

func (g *Graph) NumberOfNodes() int {
	return len(g.nodes)
}

func (g *Graph) NumberOfEdges() int {
	return len(g.edges)
}

func (g *Graph) GetNode(id Index) *GraphNode {
	return g.nodes[id]
}

func (g *Graph) GetNodes() []*GraphNode {
	return g.nodes
}

func (g *Graph) GetEdges() []GraphEdge {
	return g.edges
}

func (g *Graph) GetBoundingBox() *BoundingBox {
	return g.boundingBox
}
