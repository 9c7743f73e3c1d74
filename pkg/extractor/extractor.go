package extractor

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/datastructure"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/elevation"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/osmparser"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/suitability"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/weighting"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

type Config struct {
	Workers      int `validate:"min=1"`
	PbfProcs     int `validate:"min=1"`
	StreamBuffer int `validate:"min=1"`
	Compress     bool
	Policy       suitability.Policy
}

func ConfigFromViper(v *viper.Viper) (Config, error) {
	policy, err := suitability.PolicyFromViper(v)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{
		Workers:      v.GetInt("workers"),
		PbfProcs:     v.GetInt("pbf_procs"),
		StreamBuffer: v.GetInt("stream_buffer"),
		Compress:     v.GetBool("graph.compress"),
		Policy:       policy,
	}
	return cfg, util.ValidateStruct(cfg)
}

type Summary struct {
	Nodes    int
	Edges    int
	Bytes    int64
	Tiles    int
	Duration time.Duration
}

// Extractor runs the whole pipeline: read the street network, assemble it, resolve edge
// weights against the terrain tiles and write the graph.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

func NewExtractor(cfg Config, logger *zap.Logger) *Extractor {
	return &Extractor{
		cfg:    cfg,
		logger: logger,
	}
}

// Run produces exactly one graph at outPath, or nothing when any step fails.
func (e *Extractor) Run(ctx context.Context, networkPath, tileDir, outPath string) (Summary, error) {
	start := time.Now()

	hgtReader, err := elevation.NewHGTReader(tileDir)
	if err != nil {
		return Summary{}, err
	}
	tileCache := elevation.NewTileCache(hgtReader)

	reader, err := osmparser.OpenReader(networkPath, e.cfg.PbfProcs, e.logger)
	if err != nil {
		return Summary{}, err
	}
	defer reader.Close()

	e.logger.Info("reading street network", zap.String("file", networkPath))
	assembler := osmparser.NewAssembler(suitability.NewClassifier(e.cfg.Policy), e.cfg.StreamBuffer, e.logger)
	network, err := assembler.Assemble(ctx, reader)
	if err != nil {
		return Summary{}, err
	}

	e.logger.Info("resolving edge weights", zap.String("tiles", tileDir), zap.Int("workers", e.cfg.Workers))
	resolver := weighting.NewResolver(elevation.NewSampler(tileCache), e.cfg.Workers, e.logger)
	graph, err := resolver.Resolve(ctx, network)
	if err != nil {
		return Summary{}, err
	}

	written, err := graph.WriteGraph(ctx, outPath, datastructure.WriteOptions{Compress: e.cfg.Compress})
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{
		Nodes:    graph.NumberOfNodes(),
		Edges:    graph.NumberOfEdges(),
		Bytes:    written,
		Tiles:    tileCache.Len(),
		Duration: time.Since(start),
	}
	e.logger.Sugar().Infof("wrote %s: %s nodes, %s edges, %s, %d terrain tiles, took %v",
		outPath, humanize.Comma(int64(summary.Nodes)), humanize.Comma(int64(summary.Edges)),
		humanize.Bytes(uint64(summary.Bytes)), summary.Tiles, summary.Duration.Round(time.Millisecond))
	return summary, nil
}
