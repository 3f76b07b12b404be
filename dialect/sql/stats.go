package sql

import (
	"context"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/uber-go/tally/v4"

	"github.com/mobilizeio/partitioned/dialect"
)

// TableStats counts the statements that targeted one physical table.
type TableStats struct {
	Statements int64
	Failures   int64
	Slow       int64
	Duration   time.Duration
}

// SlowQueryHook is called for statements slower than the threshold.
type SlowQueryHook func(ctx context.Context, table, query string, args []any, took time.Duration)

// StatsDriver wraps a dialect.Driver and accounts every statement to the
// table it targets, so the partitions a workload touches can be observed.
// Counters are kept in memory and mirrored to tally, tagged by table and
// statement verb.
type StatsDriver struct {
	dialect.Driver
	scope     tally.Scope
	threshold time.Duration
	hook      SlowQueryHook

	mu     sync.Mutex
	tables map[string]*TableStats
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a statement is slow.
// Defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryHook sets the callback for slow statements.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow statements as warnings.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	return WithSlowQueryHook(func(ctx context.Context, table, query string, args []any, took time.Duration) {
		logger.WarnContext(ctx, "sql: slow statement", "table", table, "took", took, "query", query, "args", args)
	})
}

// WithStatsScope mirrors the counters to scope, under the "sql" prefix.
func WithStatsScope(scope tally.Scope) StatsOption {
	return func(s *StatsDriver) {
		s.scope = scope.SubScope("sql")
	}
}

// NewStatsDriver wraps drv with per-table statement accounting.
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		scope:     tally.NoopScope,
		threshold: 100 * time.Millisecond,
		tables:    make(map[string]*TableStats),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tables returns a copy of the counters, keyed by table name.
func (d *StatsDriver) Tables() map[string]TableStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]TableStats, len(d.tables))
	for name, ts := range d.tables {
		out[name] = *ts
	}
	return out
}

// TableNames returns the tables statements were accounted to, sorted.
func (d *StatsDriver) TableNames() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Sorted(maps.Keys(d.tables))
}

// Query implements dialect.ExecQuerier.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	d.account(ctx, query, args, time.Since(start), err)
	return err
}

// Exec implements dialect.ExecQuerier.
func (d *StatsDriver) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Exec(ctx, query, args, v)
	d.account(ctx, query, args, time.Since(start), err)
	return err
}

// Tx starts a transaction whose statements are accounted too.
func (d *StatsDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &statsTx{Tx: tx, drv: d}, nil
}

func (d *StatsDriver) account(ctx context.Context, query string, args any, took time.Duration, err error) {
	verb, table := TargetOf(query)
	slow := took > d.threshold

	d.mu.Lock()
	ts, ok := d.tables[table]
	if !ok {
		ts = &TableStats{}
		d.tables[table] = ts
	}
	ts.Statements++
	ts.Duration += took
	if err != nil {
		ts.Failures++
	}
	if slow {
		ts.Slow++
	}
	d.mu.Unlock()

	scope := d.scope.Tagged(map[string]string{"table": table, "verb": verb})
	scope.Counter("statements").Inc(1)
	scope.Timer("latency").Record(took)
	if err != nil {
		scope.Counter("failures").Inc(1)
	}
	if slow {
		scope.Counter("slow").Inc(1)
		if d.hook != nil {
			list, _ := args.([]any)
			d.hook(ctx, table, query, list, took)
		}
	}
}

type statsTx struct {
	dialect.Tx
	drv *StatsDriver
}

func (tx *statsTx) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Query(ctx, query, args, v)
	tx.drv.account(ctx, query, args, time.Since(start), err)
	return err
}

func (tx *statsTx) Exec(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := tx.Tx.Exec(ctx, query, args, v)
	tx.drv.account(ctx, query, args, time.Since(start), err)
	return err
}

var targetRe = regexp.MustCompile("(?is)^\\s*(insert\\s+into|update|delete\\s+from|select\\b.*?\\bfrom)\\s+[`\"]?([A-Za-z_][A-Za-z0-9_]*)")

// TargetOf returns the lower-cased verb of a statement and the table it
// targets. Statements the builders of this package do not produce are
// reported as ("other", "").
func TargetOf(query string) (verb, table string) {
	m := targetRe.FindStringSubmatch(query)
	if m == nil {
		return "other", ""
	}
	verb = strings.ToLower(strings.Fields(m[1])[0])
	return verb, m[2]
}

// DebugDriver wraps a Driver and logs every statement at debug level,
// together with the table it targets.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv with debug logging. A nil logger uses
// slog.Default().
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query implements dialect.ExecQuerier.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, d.logger, false, query, args)
	return d.Driver.Query(ctx, query, args, v)
}

// Exec implements dialect.ExecQuerier.
func (d *DebugDriver) Exec(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, d.logger, false, query, args)
	return d.Driver.Exec(ctx, query, args, v)
}

// Tx starts a transaction with debug logging.
func (d *DebugDriver) Tx(ctx context.Context) (dialect.Tx, error) {
	d.logger.DebugContext(ctx, "sql: begin")
	tx, err := d.Driver.Tx(ctx)
	if err != nil {
		return nil, err
	}
	return &debugTx{Tx: tx, ctx: ctx, logger: d.logger}, nil
}

type debugTx struct {
	dialect.Tx
	ctx    context.Context
	logger *slog.Logger
}

func (tx *debugTx) Query(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, tx.logger, true, query, args)
	return tx.Tx.Query(ctx, query, args, v)
}

func (tx *debugTx) Exec(ctx context.Context, query string, args, v any) error {
	logStatement(ctx, tx.logger, true, query, args)
	return tx.Tx.Exec(ctx, query, args, v)
}

func (tx *debugTx) Commit() error {
	tx.logger.DebugContext(tx.ctx, "sql: commit")
	return tx.Tx.Commit()
}

func (tx *debugTx) Rollback() error {
	tx.logger.DebugContext(tx.ctx, "sql: rollback")
	return tx.Tx.Rollback()
}

func logStatement(ctx context.Context, logger *slog.Logger, inTx bool, query string, args any) {
	verb, table := TargetOf(query)
	logger.DebugContext(ctx, "sql: "+verb, "table", table, "tx", inTx, "query", query, "args", args)
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Tx     = (*statsTx)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
	_ dialect.Tx     = (*debugTx)(nil)
)
