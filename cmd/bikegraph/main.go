package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/extractor"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/logger"
	"github.com/lintang-b-s/navigatorx-bikegraph/pkg/util"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stderr io.Writer) int {
	fs := flag.NewFlagSet("bikegraph", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var (
		configFile = fs.String("config", "", "optional config file (yaml, toml or json)")
		compress   = fs.Bool("compress", false, "bzip2 compress the output graph")
		workers    = fs.Int("workers", 0, "number of workers resolving elevations and edges (default: number of cpus)")
		verbose    = fs.Bool("verbose", false, "debug logging")
	)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: bikegraph [flags] <street-network-file> <terrain-tile-directory> <output-graph-file>\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if fs.NArg() != 3 {
		fs.Usage()
		return exitUsage
	}
	networkPath, tileDir, outPath := fs.Arg(0), fs.Arg(1), fs.Arg(2)

	if err := util.ReadConfig(*configFile); err != nil {
		fmt.Fprintf(stderr, "bikegraph: %v\n", err)
		return exitFatal
	}
	if *compress {
		viper.Set("graph.compress", true)
	}
	if *workers > 0 {
		viper.Set("workers", *workers)
	}
	if *verbose {
		viper.Set("log.verbose", true)
	}

	log, err := logger.NewWithConfig(logger.Config{
		Verbose: viper.GetBool("log.verbose"),
		Logfile: viper.GetString("log.file"),
		MaxSize: viper.GetInt("log.max_size"),
		MaxAge:  viper.GetInt("log.max_age"),
	})
	if err != nil {
		fmt.Fprintf(stderr, "bikegraph: %v\n", err)
		return exitFatal
	}
	defer log.Sync()

	cfg, err := extractor.ConfigFromViper(viper.GetViper())
	if err != nil {
		fmt.Fprintf(stderr, "bikegraph: %v\n", err)
		return exitFatal
	}
	log.Debug("configuration", zap.String("config", util.DescribeConfig()))

	if _, err := extractor.NewExtractor(cfg, log).Run(ctx, networkPath, tileDir, outPath); err != nil {
		fmt.Fprintf(stderr, "bikegraph: %v\n", err)
		return exitFatal
	}
	return exitOK
}
