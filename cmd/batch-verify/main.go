package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/goodnatureofminers/smartinvoice/internal/config"
	"github.com/goodnatureofminers/smartinvoice/internal/extract"
	"github.com/goodnatureofminers/smartinvoice/internal/ledger"
	"github.com/goodnatureofminers/smartinvoice/internal/metrics"
	"github.com/goodnatureofminers/smartinvoice/internal/scoring"
	"github.com/goodnatureofminers/smartinvoice/internal/service"
	"github.com/goodnatureofminers/smartinvoice/internal/settlement"
	"github.com/goodnatureofminers/smartinvoice/pkg/workerpool"
	"github.com/jessevdk/go-flags"
	"go.uber.org/zap"
)

type batchConfig struct {
	Workers int  `long:"workers" env:"BATCH_VERIFY_WORKERS" description:"documents processed concurrently" default:"4"`
	DryRun  bool `long:"dry-run" description:"number records after the existing history but do not write the ledger"`

	Settlement config.Settlement `group:"Settlement Options"`
	Ledger     config.Ledger     `group:"Ledger Options"`
	Extractor  config.Extractor  `group:"Extractor Options"`

	Args struct {
		Files []string `positional-arg-name:"file" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	cfg := batchConfig{}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := zap.NewDevelopment()
	if err != nil {
		panic("can't initialize zap logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync()
	}()

	if _, err := flags.Parse(&cfg); err != nil {
		var ferr *flags.Error
		if errors.As(err, &ferr) && ferr.Type == flags.ErrHelp {
			return
		}
		logger.Fatal("failed to parse flags", zap.Error(err))
	}
	for _, w := range cfg.Settlement.Warnings() {
		logger.Warn(w)
	}

	failed, err := run(ctx, cfg, os.Stdout, logger)
	if err != nil {
		logger.Fatal("batch verify failed", zap.Error(err))
	}
	if failed > 0 {
		_ = logger.Sync()
		os.Exit(1)
	}
}

// run processes every file and returns how many ended up Failed.
func run(ctx context.Context, cfg batchConfig, out io.Writer, logger *zap.Logger) (int, error) {
	settings, err := cfg.Settlement.PipelineSettings()
	if err != nil {
		return 0, fmt.Errorf("settlement options: %w", err)
	}
	if err := cfg.Ledger.Validate(); err != nil {
		return 0, err
	}

	store, err := openStore(cfg.Ledger.Path, cfg.DryRun)
	if err != nil {
		return 0, err
	}
	history, err := ledger.Open(store, metrics.NewLedger(), logger)
	if err != nil {
		return 0, fmt.Errorf("open ledger: %w", err)
	}

	client, err := settlement.NewClient(cfg.Settlement.ClientConfig(), logger)
	if err != nil {
		return 0, fmt.Errorf("init settlement client: %w", err)
	}
	pipeline, err := service.NewPipeline(
		extract.New(cfg.Extractor.OCRCommand, logger),
		scoring.New(),
		settlement.NewObservedClient(client, metrics.NewSettlementClient()),
		history,
		metrics.NewPipeline(),
		settings,
		logger,
	)
	if err != nil {
		return 0, err
	}

	outcomes, mapErr := workerpool.Map(ctx, cfg.Workers, cfg.Args.Files, func(ctx context.Context, path string) (service.Outcome, error) {
		body, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("read document", zap.String("path", path), zap.Error(err))
		}
		return pipeline.Process(ctx, service.Document{Name: filepath.Base(path), Body: body, ReadErr: err}), nil
	})

	// Outcomes that ran are printed even when the run was cancelled.
	failed := 0
	for i, o := range outcomes {
		if o.Record.Invoice == 0 {
			continue
		}
		if !o.Record.Paid() {
			failed++
		}
		if err := printOutcome(out, cfg.Args.Files[i], o); err != nil {
			return failed, err
		}
	}
	if mapErr != nil {
		return failed, fmt.Errorf("batch interrupted: %w", mapErr)
	}
	return failed, nil
}

// openStore returns the file store, or an overlay of it that never writes for
// dry runs.
func openStore(path string, dryRun bool) (ledger.Store, error) {
	fs, err := ledger.NewFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("init ledger store: %w", err)
	}
	if dryRun {
		return ledger.NewOverlayStore(fs), nil
	}
	return fs, nil
}

func printOutcome(w io.Writer, path string, o service.Outcome) error {
	rec := o.Record
	_, err := fmt.Fprintf(w, "invoice=%d status=%s confidence=%d tx=%s amount=%s file=%s reason=%q",
		rec.Invoice, rec.Status, rec.Confidence, rec.Payment.TxID, rec.Payment.Amount, path, rec.Reason)
	if err != nil {
		return err
	}
	if o.PersistErr != nil {
		_, err = fmt.Fprintf(w, " persist_error=%q", o.PersistErr.Error())
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w)
	return err
}
