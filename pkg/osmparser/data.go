package osmparser

import (
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/suitability"
)

type PrimitiveType uint8

const (
	NODE_PRIMITIVE PrimitiveType = iota
	WAY_PRIMITIVE
)

type OsmNode struct {
	ID  int64
	Lat float64
	Lon float64
}

type OsmWay struct {
	ID      int64
	NodeIDs []int64 // at least 2
	Tags    map[string]string
}

// Primitive is either a node or a way, as indicated by Type.
type Primitive struct {
	Type PrimitiveType
	Node OsmNode
	Way  *OsmWay
}

func NewNodePrimitive(id int64, lat, lon float64) Primitive {
	return Primitive{
		Type: NODE_PRIMITIVE,
		Node: OsmNode{ID: id, Lat: lat, Lon: lon},
	}
}

func NewWayPrimitive(id int64, nodeIDs []int64, tags map[string]string) Primitive {
	return Primitive{
		Type: WAY_PRIMITIVE,
		Way:  &OsmWay{ID: id, NodeIDs: nodeIDs, Tags: tags},
	}
}

// EdgeCandidate is one consecutive node pair of a retained way, already in travel direction.
type EdgeCandidate struct {
	from        datastructure.Index
	to          datastructure.Index
	suitability suitability.Score
	oneWay      bool
	wayID       int64
}

func NewEdgeCandidate(from, to datastructure.Index, score suitability.Score, oneWay bool, wayID int64) EdgeCandidate {
	return EdgeCandidate{
		from:        from,
		to:          to,
		suitability: score,
		oneWay:      oneWay,
		wayID:       wayID,
	}
}

func (e EdgeCandidate) GetFrom() datastructure.Index {
	return e.from
}

func (e EdgeCandidate) GetTo() datastructure.Index {
	return e.to
}

func (e EdgeCandidate) GetSuitability() suitability.Score {
	return e.suitability
}

func (e EdgeCandidate) IsOneWay() bool {
	return e.oneWay
}

func (e EdgeCandidate) GetWayID() int64 {
	return e.wayID
}
