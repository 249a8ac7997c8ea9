// Package warehouse defines the backend-agnostic interface to the
// dimensional store, plus the star schema the pipeline loads.
//
// Backends register themselves under a kind string ("postgres", "mssql",
// "sqlite") and implement the same semantics in their own idiomatic way:
// Postgres ON CONFLICT, SQL Server NOT EXISTS, SQLite OR IGNORE.
package warehouse

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to create a repository.
type Config struct {
	Kind string
	DSN  string

	// BatchSize caps rows per multi-row statement. Backends additionally
	// clamp to their own placeholder limits. Zero means the default.
	BatchSize int
}

// DefaultBatchSize is used when Config.BatchSize is zero.
const DefaultBatchSize = 500

// Repository is the warehouse connection handle for one pipeline run.
//
// All write operations are set-based. Dimension inserts are
// insert-if-absent on the natural key and safe to re-run; a natural-key
// uniqueness conflict raised by a concurrent run is benign by contract, and
// callers recover the mapping with SelectSurrogateKeys afterwards. Fact
// inserts are all-or-nothing per call.
type Repository interface {
	// Close releases backend resources. Safe to call once per run; callers
	// must close on every exit path, including failures.
	Close()

	// EnsureSchema creates the star schema tables if they do not exist.
	// Idempotent; safe to run on every pipeline invocation.
	EnsureSchema(ctx context.Context) error

	// InsertDimensionRows inserts dimension rows whose natural key
	// (keyColumn, one of columns) is not already present. Existing keys are
	// left untouched: first write wins, no attribute merge.
	InsertDimensionRows(ctx context.Context, table string, keyColumn string, columns []string, rows [][]any) error

	// SelectSurrogateKeys bulk-reads the natural-key to surrogate-key
	// mapping for the given keys. Keys absent from the store are simply
	// absent from the result map; map keys are normalized with NormalizeKey.
	SelectSurrogateKeys(ctx context.Context, table string, keyColumn string, surrogateColumn string, keys []any) (map[string]int64, error)

	// InsertFactRows appends fact rows inside a single unit of work. Either
	// every row commits or none do; failures are reported as *CommitError.
	InsertFactRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// CommitError marks a failed fact unit of work. The transaction was rolled
// back in full; nothing is partially visible.
type CommitError struct {
	Table string
	Err   error
}

func (e *CommitError) Error() string {
	return fmt.Sprintf("warehouse: commit to %s failed (rolled back): %v", e.Table, e.Err)
}

func (e *CommitError) Unwrap() error { return e.Err }

// ---- backend factories ----

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Called from backend package
// init functions; registering the same kind twice panics to fail fast on
// ambiguous backend selection.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("warehouse: Register called with empty kind")
	}
	if f == nil {
		panic("warehouse: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("warehouse: factory already registered for kind=%q", kind))
	}

	factories[kind] = f
}

// New constructs a Repository using the registered backend factory.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("warehouse: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("warehouse: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}
