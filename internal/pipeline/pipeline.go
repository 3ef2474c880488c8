// Package pipeline orchestrates the run: parallel extraction, then
// transform, validate and load, each stage consuming the previous
// stage's full in-memory snapshot.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/commercelake/reportfeed/internal/clock"
	"github.com/commercelake/reportfeed/internal/config"
	"github.com/commercelake/reportfeed/internal/extract"
	"github.com/commercelake/reportfeed/internal/load"
	"github.com/commercelake/reportfeed/internal/logging"
	"github.com/commercelake/reportfeed/internal/metrics"
	"github.com/commercelake/reportfeed/internal/transform"
	"github.com/commercelake/reportfeed/internal/validate"
)

// Version information (set via ldflags)
var (
	Version = "v0.1.0"
	GitSHA  = "unknown"
)

// Pipeline wires the four stages together.
type Pipeline struct {
	cfg         config.Config
	extractor   *extract.Extractor
	transformer *transform.Transformer
	validator   *validate.Validator
	loader      *load.Loader
	store       load.Store
	log         *slog.Logger
}

// New builds a pipeline from configuration. The clock is injected so
// load timestamps and date-range checks are testable.
func New(cfg config.Config, clk clock.Clock) (*Pipeline, error) {
	orders, err := extract.NewOrderSource(cfg.Orders, clk)
	if err != nil {
		return nil, fmt.Errorf("create order source: %w", err)
	}

	store, err := load.NewStore(cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("create output store: %w", err)
	}

	return &Pipeline{
		cfg:         cfg,
		extractor:   extract.New(extract.NewProductFetcher(cfg.API), orders),
		transformer: transform.New(cfg.Transform, clk),
		validator:   validate.New(cfg.Validation, clk),
		loader:      load.New(cfg.Output, store),
		store:       store,
		log:         logging.Component("pipeline"),
	}, nil
}

// Close releases the output store.
func (p *Pipeline) Close() error {
	return p.store.Close()
}

// Run executes one end-to-end pass. Any returned error is fatal: the
// run aborts and no output file is written. Row-scoped validation
// failures do not surface here unless they cross the aggregate
// rejection threshold.
func (p *Pipeline) Run(ctx context.Context) error {
	runID := uuid.NewString()
	ctx = logging.WithRunID(ctx, runID)
	log := p.log.With("run_id", runID)
	start := time.Now()

	log.Info("pipeline starting",
		"version", Version,
		"git_sha", GitSHA,
		"api_url", p.cfg.API.URL,
		"orders_mode", p.cfg.Orders.Mode,
		"output", p.cfg.Output.Path,
	)

	products, orders, err := p.extractor.Run(ctx)
	if err != nil {
		return p.fail(log, err)
	}

	result := p.transformer.Transform(ctx, products, orders)

	report, err := p.validator.Validate(ctx, result.Records, products)
	if err != nil {
		return p.fail(log, err)
	}

	written, err := p.loader.Load(ctx, report.Valid)
	if err != nil {
		return p.fail(log, err)
	}

	log.Info("pipeline complete",
		"products", len(products),
		"orders", len(orders),
		"unmatched_dropped", result.Unmatched,
		"rejected", len(report.Rejected),
		"rows_written", written.RowCount,
		"output", written.Path,
		"checksum", written.Checksum,
		"duration", time.Since(start).String(),
	)
	if m := metrics.Get(); m != nil {
		m.IncRuns("success")
	}
	return nil
}

// fail logs a fatal error with its classification and cause, records
// the failed run, and passes the error through.
func (p *Pipeline) fail(log *slog.Logger, err error) error {
	log.Error("pipeline aborted",
		"error_type", classify(err),
		"error", err,
		"cause", errors.Unwrap(err),
	)
	if m := metrics.Get(); m != nil {
		m.IncRuns("failed")
	}
	return err
}

// classify maps a fatal error to its taxonomy bucket.
func classify(err error) string {
	var (
		extractErr *extract.Error
		schemaErr  *validate.SchemaError
		loadErr    *load.Error
	)
	switch {
	case errors.As(err, &extractErr):
		return "extraction"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &loadErr):
		return "load"
	default:
		return "internal"
	}
}
