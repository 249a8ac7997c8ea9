// Package pipeline drives the three-phase ingest: extract the raw export,
// transform it into a committed processed file, and load the star schema.
//
// Phases hand their results to each other explicitly. Extract produces an
// Extraction, Transform consumes it and returns the processed file path, and
// Load consumes that path and returns the inserted fact count. Each phase is
// also runnable on its own from the CLI.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"retaildw/internal/config"
	"retaildw/internal/encdetect"
	"retaildw/internal/logging"
	"retaildw/internal/metrics"
	"retaildw/internal/superstore"
	"retaildw/internal/warehouse"
)

// Extraction is the extract phase's result: the verified source plus its
// detected encoding. Transform uses the embedded encoding to decode the
// source to UTF-8.
type Extraction struct {
	SourcePath string
	Encoding   encdetect.Result
	Bytes      int
}

// TransformResult is the transform phase's result: the committed processed
// file plus the per-stage row counts.
type TransformResult struct {
	ProcessedPath string
	Counts        superstore.StageCounts
}

// Summary reports one full pipeline run.
type Summary struct {
	RunID         string
	Encoding      string
	Confidence    float64
	Counts        superstore.StageCounts
	ProcessedPath string
	FactRows      int64
}

// Driver executes pipeline phases against one configuration. Each Driver
// carries a unique run ID that tags its logs and its processed file.
type Driver struct {
	cfg   *config.Config
	runID string

	openRepo func(ctx context.Context, cfg warehouse.Config) (warehouse.Repository, error)
	now      func() time.Time
}

// New constructs a Driver with a fresh run ID.
func New(cfg *config.Config) *Driver {
	return &Driver{
		cfg:      cfg,
		runID:    uuid.NewString(),
		openRepo: warehouse.New,
		now:      time.Now,
	}
}

// RunID returns the identifier tagging this driver's run.
func (d *Driver) RunID() string { return d.runID }

// Extract verifies the source file and detects its encoding.
//
// A low-confidence detection proceeds with the best guess and a warning
// unless encoding.fail_below is configured, in which case a detection below
// the floor aborts with an AmbiguousEncodingError.
func (d *Driver) Extract(ctx context.Context) (Extraction, error) {
	if err := ctx.Err(); err != nil {
		return Extraction{}, err
	}

	raw, err := os.ReadFile(d.cfg.Source)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract: read source: %w", err)
	}

	res, err := encdetect.Detect(raw)
	if err != nil {
		return Extraction{}, fmt.Errorf("extract %s: %w", d.cfg.Source, err)
	}

	if floor := d.cfg.Encoding.FailBelow; floor > 0 && res.Confidence < floor {
		return Extraction{}, fmt.Errorf("extract %s: %w", d.cfg.Source,
			&encdetect.AmbiguousEncodingError{Name: res.Name, Confidence: res.Confidence})
	}
	if res.Confidence < 1 {
		logging.Warn().
			Str("run_id", d.runID).
			Str("source", d.cfg.Source).
			Str("encoding", res.Name).
			Float64("confidence", res.Confidence).
			Msg("proceeding with uncertain encoding")
	}

	logging.Info().
		Str("run_id", d.runID).
		Str("source", d.cfg.Source).
		Str("encoding", res.Name).
		Int("bytes", len(raw)).
		Msg("extract complete")
	metrics.IncCounter("retaildw.extract.bytes", float64(len(raw)))

	return Extraction{SourcePath: d.cfg.Source, Encoding: res, Bytes: len(raw)}, nil
}

// Transform decodes the extracted source, normalizes its rows, and commits
// the processed file. The file is written to a temp path and renamed, so a
// half-written processed file is never visible to Load.
func (d *Driver) Transform(ctx context.Context, ext Extraction) (TransformResult, error) {
	if err := ctx.Err(); err != nil {
		return TransformResult{}, err
	}

	f, err := os.Open(ext.SourcePath)
	if err != nil {
		return TransformResult{}, fmt.Errorf("transform: open source: %w", err)
	}
	defer f.Close()

	malformed := 0
	raw, err := superstore.ReadRaw(ext.Encoding.NewReader(f), func(line int, rowErr error) {
		malformed++
		logging.Warn().
			Str("run_id", d.runID).
			Int("line", line).
			Err(rowErr).
			Msg("skipping malformed row")
	})
	if err != nil {
		return TransformResult{}, fmt.Errorf("transform %s: %w", ext.SourcePath, err)
	}

	res := superstore.Normalize(raw)

	logging.Info().
		Str("run_id", d.runID).
		Int("input", res.Counts.Input).
		Int("malformed", malformed).
		Int("duplicates", res.Counts.Duplicates).
		Int("invalid", res.Counts.Invalid).
		Int("output", res.Counts.Output).
		Msg("transform complete")
	metrics.IncCounter("retaildw.rows.read", float64(res.Counts.Input))
	metrics.IncCounter("retaildw.rows.malformed", float64(malformed))
	metrics.IncCounter("retaildw.rows.dropped", float64(res.Counts.Duplicates), "reason:duplicate")
	metrics.IncCounter("retaildw.rows.dropped", float64(res.Counts.Invalid), "reason:invalid")
	metrics.IncCounter("retaildw.rows.normalized", float64(res.Counts.Output))

	path, err := d.commitProcessed(res.Records)
	if err != nil {
		return TransformResult{}, err
	}
	return TransformResult{ProcessedPath: path, Counts: res.Counts}, nil
}

func (d *Driver) commitProcessed(recs []superstore.NormalizedRecord) (string, error) {
	if err := os.MkdirAll(d.cfg.ProcessedDir, 0o755); err != nil {
		return "", fmt.Errorf("transform: create processed dir: %w", err)
	}

	final := filepath.Join(d.cfg.ProcessedDir, fmt.Sprintf("processed-%s.csv", d.runID))
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("transform: create processed file: %w", err)
	}
	if err := superstore.WriteProcessed(f, recs); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", fmt.Errorf("transform: write processed file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("transform: close processed file: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("transform: commit processed file: %w", err)
	}
	return final, nil
}

// Load reads a committed processed file and loads the star schema:
// dimensions first (insert-if-absent), then surrogate resolution, then the
// fact append in a single unit of work. Returns the inserted fact count.
//
// The repository handle is closed on every exit path.
func (d *Driver) Load(ctx context.Context, processedPath string) (int64, error) {
	f, err := os.Open(processedPath)
	if err != nil {
		return 0, fmt.Errorf("load: open processed file: %w", err)
	}
	recs, err := superstore.ReadProcessed(f)
	f.Close()
	if err != nil {
		return 0, fmt.Errorf("load %s: %w", processedPath, err)
	}

	repo, err := d.openRepo(ctx, warehouse.Config{
		Kind:      d.cfg.Warehouse.Kind,
		DSN:       os.ExpandEnv(d.cfg.Warehouse.DSN),
		BatchSize: d.cfg.Warehouse.BatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("load: connect warehouse: %w", err)
	}
	defer repo.Close()

	if err := repo.EnsureSchema(ctx); err != nil {
		return 0, fmt.Errorf("load: ensure schema: %w", err)
	}

	keys, err := loadDimensions(ctx, repo, recs)
	if err != nil {
		return 0, err
	}

	factRows, err := buildFactRows(recs, keys)
	if err != nil {
		return 0, err
	}

	inserted, err := repo.InsertFactRows(ctx, warehouse.TableFactSales, warehouse.FactColumns, factRows)
	if err != nil {
		var commitErr *warehouse.CommitError
		if errors.As(err, &commitErr) {
			logging.Error().
				Str("run_id", d.runID).
				Str("table", commitErr.Table).
				Err(commitErr.Err).
				Msg("fact load rolled back")
		}
		return 0, err
	}

	logging.Info().
		Str("run_id", d.runID).
		Str("warehouse", d.cfg.Warehouse.Kind).
		Int("records", len(recs)).
		Int64("facts_inserted", inserted).
		Msg("load complete")
	metrics.IncCounter("retaildw.facts.inserted", float64(inserted))

	return inserted, nil
}

// Run executes extract, transform, and load in order and reports the run.
// Stage durations are observed per phase.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: d.runID}

	var ext Extraction
	err := d.timed("extract", func() error {
		var stageErr error
		ext, stageErr = d.Extract(ctx)
		return stageErr
	})
	if err != nil {
		return sum, err
	}
	sum.Encoding = ext.Encoding.Name
	sum.Confidence = ext.Encoding.Confidence

	var tr TransformResult
	err = d.timed("transform", func() error {
		var stageErr error
		tr, stageErr = d.Transform(ctx, ext)
		return stageErr
	})
	if err != nil {
		return sum, err
	}
	sum.ProcessedPath = tr.ProcessedPath
	sum.Counts = tr.Counts

	var inserted int64
	err = d.timed("load", func() error {
		var stageErr error
		inserted, stageErr = d.Load(ctx, tr.ProcessedPath)
		return stageErr
	})
	if err != nil {
		return sum, err
	}
	sum.FactRows = inserted

	logging.Info().
		Str("run_id", d.runID).
		Int64("facts_inserted", inserted).
		Msg("pipeline run complete")
	return sum, nil
}

// timed runs one stage and observes its wall-clock duration, successful or
// not.
func (d *Driver) timed(stage string, fn func() error) error {
	start := d.now()
	err := fn()
	metrics.ObserveDuration("retaildw.stage."+stage, d.now().Sub(start), "stage:"+stage)
	return err
}
