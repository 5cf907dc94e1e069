// Command lookup runs a keys lookup over an exposure file without a server.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"iter"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"keyslookup/internal/adapters/csvref"
	"keyslookup/internal/adapters/exposure"
	"keyslookup/internal/adapters/output"
	"keyslookup/internal/config"
	"keyslookup/internal/logging"
	"keyslookup/internal/lookup"
	"keyslookup/internal/ports"
	"keyslookup/internal/services/keys"
)

var (
	configPath = flag.String("config", "./config/keys.yaml", "config file path")
	inPath     = flag.String("in", "", "exposure file (csv, xlsx or json)")
	outPath    = flag.String("out", "-", "result file, - for stdout")
	format     = flag.String("format", output.FormatCSV, "result format: csv or ndjson")
	countries  = flag.String("countries", "", "comma-separated country codes to keep")
)

func main() {
	flag.Parse()
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "lookup:", err)
		os.Exit(1)
	}
}

func run() error {
	if *inPath == "" {
		return fmt.Errorf("-in is required")
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	// the offline command always reads reference csv files
	cfg.Model.Source = config.SourceCSV
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.App.LogLevel, "console", cfg.App.Name)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deriv, err := config.LoadDerivation(cfg.Model.DerivationFile)
	if err != nil {
		return err
	}
	svc := keys.New(csvref.New(cfg.Model.KeysDataPath, cfg.Model.ID), deriv, cfg.Model.PerilPrecedence(), logger)
	if err := svc.Reload(ctx); err != nil {
		return err
	}

	reader, err := exposure.ForFormat(exposure.FormatFromPath(*inPath))
	if err != nil {
		return err
	}
	in, err := os.Open(*inPath)
	if err != nil {
		return err
	}
	defer in.Close()
	table, err := reader.Read(bufio.NewReader(in))
	if err != nil {
		return err
	}

	var dst io.Writer = os.Stdout
	if *outPath != "-" {
		f, err := os.Create(*outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		dst = f
	}
	buf := bufio.NewWriter(dst)
	defer buf.Flush()
	out, err := output.New(*format, buf)
	if err != nil {
		return err
	}

	var opts []lookup.RunOption
	if *countries != "" {
		opts = append(opts, lookup.OnlyCountries(strings.Split(*countries, ",")...))
	}

	rows, err := writeBatches(svc.Lookup(ctx, table, opts...), out, logger)
	if err != nil {
		return err
	}
	logger.Info("done", zap.Int("locations", len(table.Rows)), zap.Int("rows", rows))
	return nil
}

// writeBatches writes each country batch to out and returns the row count.
// out is flushed on every exit so a failed run keeps the countries already
// written.
func writeBatches(seq iter.Seq2[lookup.Batch, error], out ports.ResultWriter, logger *zap.Logger) (rows int, err error) {
	defer func() {
		if ferr := out.Flush(); err == nil {
			err = ferr
		}
	}()
	for b, err := range seq {
		if err != nil {
			return rows, err
		}
		if err := out.Write(b.Results); err != nil {
			return rows, err
		}
		rows += len(b.Results)
		logger.Info("country written", zap.String("country", b.Country.Code), zap.Int("rows", len(b.Results)))
	}
	return rows, nil
}
