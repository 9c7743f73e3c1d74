package osmparser

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/protobuf/encoding/protowire"
)

// pbf field numbers, see osmformat.proto and fileformat.proto.
const (
	blobHeaderType     = 1
	blobHeaderDatasize = 3

	blobRawSize  = 2
	blobZlibData = 3

	headerRequiredFeatures = 4

	blockStringTable    = 1
	blockPrimitiveGroup = 2
	blockGranularity    = 17

	stringTableS = 1

	groupDense = 2
	groupWays  = 3

	denseID       = 1
	denseInfo     = 5
	denseLat      = 8
	denseLon      = 9
	denseKeysVals = 10

	infoVersion   = 1
	infoTimestamp = 2
	infoChangeset = 3
	infoUID       = 4
	infoUserSID   = 5

	wayID   = 1
	wayKeys = 2
	wayVals = 3
	wayInfo = 4
	wayRefs = 8
)

func appendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendPacked(b []byte, num protowire.Number, vals []uint64) []byte {
	var packed []byte
	for _, v := range vals {
		packed = protowire.AppendVarint(packed, v)
	}
	return appendMessage(b, num, packed)
}

// appendPackedDelta writes vals delta coded and zigzag encoded (sint64).
func appendPackedDelta(b []byte, num protowire.Number, vals []int64) []byte {
	enc := make([]uint64, len(vals))
	prev := int64(0)
	for i, v := range vals {
		enc[i] = protowire.EncodeZigZag(v - prev)
		prev = v
	}
	return appendPacked(b, num, enc)
}

func appendBlob(t *testing.T, file []byte, blobType string, payload []byte) []byte {
	t.Helper()
	var zbuf bytes.Buffer
	zw := zlib.NewWriter(&zbuf)
	_, err := zw.Write(payload)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	var blob []byte
	blob = appendVarintField(blob, blobRawSize, uint64(len(payload)))
	blob = appendMessage(blob, blobZlibData, zbuf.Bytes())

	var header []byte
	header = protowire.AppendTag(header, blobHeaderType, protowire.BytesType)
	header = protowire.AppendString(header, blobType)
	header = appendVarintField(header, blobHeaderDatasize, uint64(len(blob)))

	size := make([]byte, 4)
	binary.BigEndian.PutUint32(size, uint32(len(header)))
	file = append(file, size...)
	file = append(file, header...)
	return append(file, blob...)
}

type pbfNode struct {
	id       int64
	lat, lon float64
}

// buildPBF encodes nodes as one dense group and a single way tagged highway=<highway>.
func buildPBF(t *testing.T, nodes []pbfNode, id int64, refs []int64, highway string) []byte {
	t.Helper()

	var headerBlock []byte
	for _, feature := range []string{"OsmSchema-V0.6", "DenseNodes"} {
		headerBlock = protowire.AppendTag(headerBlock, headerRequiredFeatures, protowire.BytesType)
		headerBlock = protowire.AppendString(headerBlock, feature)
	}

	var stringTable []byte
	for _, s := range []string{"", "highway", highway} {
		stringTable = protowire.AppendTag(stringTable, stringTableS, protowire.BytesType)
		stringTable = protowire.AppendString(stringTable, s)
	}

	ids := make([]int64, len(nodes))
	lats := make([]int64, len(nodes))
	lons := make([]int64, len(nodes))
	ones := make([]int64, len(nodes))
	zeros := make([]int64, len(nodes))
	versions := make([]uint64, len(nodes))
	keysVals := make([]uint64, len(nodes))
	for i, n := range nodes {
		ids[i] = n.id
		// granularity 100 nanodegrees
		lats[i] = int64(n.lat * 1e7)
		lons[i] = int64(n.lon * 1e7)
		ones[i] = 1
		versions[i] = 1
	}

	var info []byte
	info = appendPacked(info, infoVersion, versions)
	info = appendPackedDelta(info, infoTimestamp, ones)
	info = appendPackedDelta(info, infoChangeset, ones)
	info = appendPackedDelta(info, infoUID, ones)
	info = appendPackedDelta(info, infoUserSID, zeros)

	var dense []byte
	dense = appendPackedDelta(dense, denseID, ids)
	dense = appendMessage(dense, denseInfo, info)
	dense = appendPackedDelta(dense, denseLat, lats)
	dense = appendPackedDelta(dense, denseLon, lons)
	dense = appendPacked(dense, denseKeysVals, keysVals)

	var wayInfoMsg []byte
	wayInfoMsg = appendVarintField(wayInfoMsg, infoVersion, 1)
	wayInfoMsg = appendVarintField(wayInfoMsg, infoTimestamp, 1)
	wayInfoMsg = appendVarintField(wayInfoMsg, infoChangeset, 1)
	wayInfoMsg = appendVarintField(wayInfoMsg, infoUID, 1)
	wayInfoMsg = appendVarintField(wayInfoMsg, infoUserSID, 0)

	var way []byte
	way = appendVarintField(way, wayID, uint64(id))
	way = appendPacked(way, wayKeys, []uint64{1})
	way = appendPacked(way, wayVals, []uint64{2})
	way = appendMessage(way, wayInfo, wayInfoMsg)
	way = appendPackedDelta(way, wayRefs, refs)

	var block []byte
	block = appendMessage(block, blockStringTable, stringTable)
	block = appendMessage(block, blockPrimitiveGroup, appendMessage(nil, groupDense, dense))
	block = appendMessage(block, blockPrimitiveGroup, appendMessage(nil, groupWays, way))
	block = appendVarintField(block, blockGranularity, 100)

	var file []byte
	file = appendBlob(t, file, "OSMHeader", headerBlock)
	return appendBlob(t, file, "OSMData", block)
}

func TestReaderPBF(t *testing.T) {
	valid := buildPBF(t, []pbfNode{{id: 1, lat: 0, lon: 0}, {id: 2, lat: 0, lon: 0.001}},
		10, []int64{1, 2}, "residential")

	testCases := []struct {
		name     string
		content  []byte
		wantErr  error
		wantMsg  string
		wantWays int
	}{
		{
			name:     "valid extract",
			content:  valid,
			wantWays: 1,
		},
		{
			name:    "empty file",
			content: []byte{},
			wantErr: util.ErrDecode,
			wantMsg: "empty street network",
		},
		{
			name:    "oversized blob header",
			content: []byte{0xff, 0xff, 0xff, 0xff, 0x0a, 0x01},
			wantErr: util.ErrDecode,
		},
		{
			name:    "truncated blob header",
			content: []byte{0x00, 0x00, 0x00, 0x0e, 0x0a, 0x09, 'O', 'S'},
			wantErr: util.ErrDecode,
		},
		{
			name:    "cut off after the header blob",
			content: valid[:len(valid)-7],
			wantErr: util.ErrDecode,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "extract.osm.pbf")
			require.NoError(t, os.WriteFile(path, tc.content, 0o644))

			reader, err := OpenReader(path, 2, zap.NewNop())
			require.NoError(t, err)
			defer reader.Close()

			prims, err := collect(t, reader)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				assert.Contains(t, err.Error(), tc.wantMsg)
				return
			}
			require.NoError(t, err)

			ways := 0
			nodes := make(map[int64]OsmNode)
			for _, p := range prims {
				switch p.Type {
				case NODE_PRIMITIVE:
					nodes[p.Node.ID] = p.Node
				case WAY_PRIMITIVE:
					ways++
					assert.Equal(t, []int64{1, 2}, p.Way.NodeIDs)
					assert.Equal(t, "residential", p.Way.Tags["highway"])
				}
			}
			assert.Equal(t, tc.wantWays, ways)
			require.Len(t, nodes, 2)
			assert.InDelta(t, 0.001, nodes[2].Lon, 1e-9)
			assert.InDelta(t, 0.0, nodes[2].Lat, 1e-9)
		})
	}
}

func TestReaderEmptyXML(t *testing.T) {
	testCases := []struct {
		name    string
		content string
	}{
		{name: "zero bytes", content: ""},
		{name: "root without elements", content: `<?xml version="1.0"?><osm version="0.6"></osm>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			reader, err := OpenReader(writeFile(t, "empty.osm", tc.content), 1, zap.NewNop())
			require.NoError(t, err)
			defer reader.Close()

			_, err = collect(t, reader)
			assert.ErrorIs(t, err, util.ErrDecode)
			assert.Contains(t, err.Error(), "empty street network")
		})
	}
}
