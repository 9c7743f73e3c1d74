package osmparser

import (
	"context"
	"testing"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/suitability"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestAssembler() *Assembler {
	return NewAssembler(suitability.NewClassifier(suitability.DefaultPolicy()), 2, zap.NewNop())
}

func candidateEnds(t *testing.T, n *Network) [][2]int64 {
	t.Helper()
	nodes := n.GetNodes()
	ends := make([][2]int64, 0, len(n.GetCandidates()))
	for _, c := range n.GetCandidates() {
		ends = append(ends, [2]int64{nodes[c.GetFrom()].GetOsmID(), nodes[c.GetTo()].GetOsmID()})
	}
	return ends
}

func TestAssembleDropsMotorway(t *testing.T) {
	src := NewSliceSource(
		NewNodePrimitive(1, 0, 0),
		NewNodePrimitive(2, 0, 0.001),
		NewNodePrimitive(3, 0.001, 0.001),
		NewNodePrimitive(4, 0.002, 0.002),
		NewWayPrimitive(10, []int64{1, 2}, map[string]string{"highway": "residential"}),
		NewWayPrimitive(11, []int64{2, 3, 4}, map[string]string{"highway": "motorway"}),
	)

	network, err := newTestAssembler().Assemble(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, 2, network.NumberOfNodes())
	assert.Equal(t, int64(1), network.GetNodes()[0].GetOsmID())
	assert.Equal(t, int64(2), network.GetNodes()[1].GetOsmID())

	require.Len(t, network.GetCandidates(), 1)
	c := network.GetCandidates()[0]
	assert.Equal(t, datastructure.Index(0), c.GetFrom())
	assert.Equal(t, datastructure.Index(1), c.GetTo())
	assert.Equal(t, suitability.Score(4), c.GetSuitability())
	assert.False(t, c.IsOneWay())
	assert.Equal(t, int64(10), c.GetWayID())

	stats := network.GetStats()
	assert.Equal(t, 4, stats.Nodes)
	assert.Equal(t, 2, stats.Ways)
	assert.Equal(t, 1, stats.UnusableWays)
	assert.Equal(t, 1, stats.RetainedWays)
}

func TestAssembleDanglingReference(t *testing.T) {
	src := NewSliceSource(
		NewNodePrimitive(1, 0, 0),
		NewWayPrimitive(77, []int64{1, 99}, map[string]string{"highway": "path"}),
	)

	_, err := newTestAssembler().Assemble(context.Background(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, util.ErrDanglingReference)
	assert.Contains(t, err.Error(), "way 77")
	assert.Contains(t, err.Error(), "node 99")
}

func TestAssembleWays(t *testing.T) {
	nodes := []Primitive{
		NewNodePrimitive(1, 0, 0),
		NewNodePrimitive(2, 0, 0.001),
		NewNodePrimitive(3, 0, 0.002),
	}

	testCases := []struct {
		name       string
		way        Primitive
		wantEnds   [][2]int64
		wantOneWay bool
	}{
		{
			name:     "bidirectional way keeps node order",
			way:      NewWayPrimitive(1, []int64{1, 2, 3}, map[string]string{"highway": "residential"}),
			wantEnds: [][2]int64{{1, 2}, {2, 3}},
		},
		{
			name:       "oneway=-1 is reversed",
			way:        NewWayPrimitive(1, []int64{1, 2, 3}, map[string]string{"highway": "residential", "oneway": "-1"}),
			wantEnds:   [][2]int64{{3, 2}, {2, 1}},
			wantOneWay: true,
		},
		{
			name:       "oneway=yes keeps order",
			way:        NewWayPrimitive(1, []int64{1, 2}, map[string]string{"highway": "tertiary", "oneway": "yes"}),
			wantEnds:   [][2]int64{{1, 2}},
			wantOneWay: true,
		},
		{
			name:     "consecutive duplicate refs are skipped",
			way:      NewWayPrimitive(1, []int64{1, 1, 2}, map[string]string{"highway": "path"}),
			wantEnds: [][2]int64{{1, 2}},
		},
		{
			name:     "way without highway is ignored",
			way:      NewWayPrimitive(1, []int64{1, 2}, map[string]string{"building": "yes"}),
			wantEnds: [][2]int64{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			prims := append(append([]Primitive{}, nodes...), tc.way)
			network, err := newTestAssembler().Assemble(context.Background(), NewSliceSource(prims...))
			require.NoError(t, err)

			assert.Equal(t, tc.wantEnds, candidateEnds(t, network))
			for _, c := range network.GetCandidates() {
				assert.Equal(t, tc.wantOneWay, c.IsOneWay())
			}
		})
	}
}

func TestAssembleWayBeforeNodes(t *testing.T) {
	src := NewSliceSource(
		NewWayPrimitive(5, []int64{3, 1}, map[string]string{"highway": "cycleway"}),
		NewNodePrimitive(1, 1, 1),
		NewNodePrimitive(3, 3, 3),
	)

	network, err := newTestAssembler().Assemble(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, 2, network.NumberOfNodes())
	// first seen in the way, not in the stream.
	assert.Equal(t, int64(3), network.GetNodes()[0].GetOsmID())
	assert.Equal(t, 3.0, network.GetNodes()[0].GetLat())
	assert.Equal(t, suitability.MaxTier, network.GetCandidates()[0].GetSuitability())
}

func TestAssembleIDsAreDense(t *testing.T) {
	src := NewSliceSource(
		NewNodePrimitive(40, 0, 0),
		NewNodePrimitive(10, 0, 0.001),
		NewNodePrimitive(30, 0, 0.002),
		NewNodePrimitive(20, 0, 0.003),
		NewNodePrimitive(50, 0, 0.004),
		NewWayPrimitive(1, []int64{10, 20}, map[string]string{"highway": "service"}),
		NewWayPrimitive(2, []int64{20, 30, 10}, map[string]string{"highway": "track"}),
	)

	network, err := newTestAssembler().Assemble(context.Background(), src)
	require.NoError(t, err)

	require.Equal(t, 3, network.NumberOfNodes())
	for i, n := range network.GetNodes() {
		assert.Equal(t, datastructure.Index(i), n.GetID())
	}
	assert.Equal(t, [][2]int64{{10, 20}, {20, 30}, {30, 10}}, candidateEnds(t, network))
}

func TestAssembleCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := NewSliceSource(NewNodePrimitive(1, 0, 0))
	_, err := newTestAssembler().Assemble(ctx, src)
	assert.ErrorIs(t, err, context.Canceled)
}
