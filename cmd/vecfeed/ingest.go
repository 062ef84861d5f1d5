package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/config"
	ingestuc "github.com/kailas-cloud/vecfeed/internal/usecase/ingest"
)

func runIngest(args []string, cfg config.Config, logger *zap.Logger) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	domainName := fs.StringP("domain", "d", "", "Target domain: recruit, candidate or skill_dic")
	file := fs.StringP("file", "f", "", "Source file (.csv, .parquet, .pkl); relative paths resolve under --data-dir")
	dataDir := fs.String("data-dir", cfg.Ingest.DataDir, "Directory relative source files are resolved in")
	chunkSize := fs.Int("chunk-size", 0, "Rows per read batch (0 selects the configured default)")
	from := fs.String("checkpoint", "", "Stream only records after this id")
	resume := fs.Bool("resume", false, "Resume after the stored checkpoint of this file")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: vecfeed ingest --domain <name> --file <path> [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *domainName == "" || *file == "" {
		fs.Usage()
		return errors.New("--domain and --file are required")
	}

	path := *file
	if !filepath.IsAbs(path) {
		path = filepath.Join(*dataDir, path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	res, err := a.ingest.Ingest(ctx, ingestuc.Request{
		Domain:     *domainName,
		Path:       path,
		ChunkSize:  *chunkSize,
		Checkpoint: *from,
		Resume:     *resume,
	})
	printResult(res)
	return err
}

func printResult(res ingestuc.Result) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"run_id":           res.RunID,
		"state":            res.State,
		"success":          res.Ack.Success,
		"received_chunks":  res.Ack.ChunksReceived,
		"message":          res.Ack.Message,
		"chunk_size":       res.Summary.ChunkSize,
		"rows_read":        res.Summary.Preprocess.Input,
		"rows_kept":        res.Summary.Preprocess.Output,
		"records_streamed": res.Summary.Streamed,
		"last_id":          res.Summary.LastID,
		"warnings":         res.Summary.Warnings,
	})
}
