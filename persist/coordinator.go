package persist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
	"github.com/uber-go/tally/v4"

	"github.com/mobilizeio/partitioned"
	"github.com/mobilizeio/partitioned/dialect"
	"github.com/mobilizeio/partitioned/partition"
	"github.com/mobilizeio/partitioned/privacy"
	"github.com/mobilizeio/partitioned/schema"
	"github.com/mobilizeio/partitioned/statement"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
	opSelect = "select"
)

// Coordinator runs the operations of registered entities.
type Coordinator struct {
	driver    dialect.Driver
	registry  *schema.Registry
	executor  Executor
	sequencer Sequencer
	builder   *statement.Builder
	logger    *slog.Logger
	metrics   *Metrics
	policy    privacy.Rule
	moves     bool
	shared    bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		c.logger = logger
	}
}

// WithMetrics sets the metrics. Defaults to metrics on tally.NoopScope.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithExecutor replaces the SQL executor of the driver.
func WithExecutor(e Executor) Option {
	return func(c *Coordinator) {
		c.executor = e
	}
}

// WithSequencer replaces the sequencer of the driver.
func WithSequencer(s Sequencer) Option {
	return func(c *Coordinator) {
		c.sequencer = s
	}
}

// WithPolicy evaluates policy on every statement before it executes. A
// denied statement is not executed and the decision is returned.
func WithPolicy(policy privacy.Rule) Option {
	return func(c *Coordinator) {
		c.policy = policy
	}
}

// WithPartitionMoves makes updates that change the partition of a record
// delete the row from its old partition and insert it into the new one, in
// one transaction. The inserted row holds the record's current values only,
// so a move requires every known column of the entity to be loaded; moving
// a record read from a partial projection fails before any statement runs.
// Without this option, such updates fail with a RoutingError matching
// partitioned.ErrPartitionKeyChanged.
func WithPartitionMoves() Option {
	return func(c *Coordinator) {
		c.moves = true
	}
}

// WithSharedTable publishes the physical table on the entry's SharedTable
// while a statement executes.
func WithSharedTable() Option {
	return func(c *Coordinator) {
		c.shared = true
	}
}

// New returns a Coordinator for the entities of reg, executing on drv.
func New(drv dialect.Driver, reg *schema.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		driver:   drv,
		registry: reg,
		builder:  statement.NewBuilder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.executor == nil {
		c.executor = NewSQLExecutor(drv, drv.Dialect())
	}
	if c.sequencer == nil {
		c.sequencer = NewSequencer(drv, drv.Dialect())
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.metrics == nil {
		c.metrics = NewMetrics(tally.NoopScope)
	}
	return c
}

// Registry returns the registry of the coordinator.
func (c *Coordinator) Registry() *schema.Registry { return c.registry }

// Create inserts a new record into its partition and returns its primary
// key. Keys of sequence, uuid and ksuid entities are generated before the
// insert; identity keys are read back from the database.
func (c *Coordinator) Create(ctx context.Context, rec *Record) (id any, err error) {
	defer c.track(opCreate, time.Now(), &err)
	entry, err := c.entry(rec.Descriptor())
	if err != nil {
		return nil, err
	}
	desc := entry.Descriptor
	if !rec.IsNew() {
		return nil, partitioned.NewMutationError(desc.Table(), opCreate, errors.New("record already persisted"))
	}
	if err := c.generateID(ctx, desc, rec); err != nil {
		return nil, partitioned.NewMutationError(desc.Table(), opCreate, err)
	}
	ws := schema.WithPartitionColumnsForced(rec.current, rec.Changed(), desc)
	table, err := partition.Resolve(desc, entry.Router, rec.current)
	if err != nil {
		return nil, partitioned.NewMutationError(desc.Table(), opCreate, err)
	}
	returning := ""
	if desc.IDStrategy() == schema.IDIdentity && !ws.Has(desc.PrimaryKey()) {
		returning = desc.PrimaryKey()
	}
	ins, err := c.builder.Insert(table, ws, returning)
	if err != nil {
		return nil, partitioned.NewMutationError(desc.Table(), opCreate, err)
	}
	res, err := c.execute(ctx, entry, c.executor, ins)
	if err != nil {
		return nil, partitioned.NewMutationError(desc.Table(), opCreate, err)
	}
	if returning != "" && res.GeneratedID != nil {
		rec.Set(returning, res.GeneratedID)
	}
	rec.markPersisted()
	return rec.ID(), nil
}

// Update writes the changed columns of a persisted record and returns the
// number of affected rows. Partition-key columns are always written, so the
// statement targets the record's partition. A record without changes on an
// unpartitioned entity is a no-op affecting zero rows.
func (c *Coordinator) Update(ctx context.Context, rec *Record) (affected int64, err error) {
	defer c.track(opUpdate, time.Now(), &err)
	entry, err := c.entry(rec.Descriptor())
	if err != nil {
		return 0, err
	}
	desc := entry.Descriptor
	if rec.IsNew() || rec.IsDeleted() {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, errors.New("record is not persisted"))
	}
	ws := schema.WithPartitionColumnsForced(rec.current, rec.Changed(), desc)
	if ws.Empty() {
		c.metrics.NoopUpdate.Inc(1)
		return 0, nil
	}
	table, err := partition.Resolve(desc, entry.Router, rec.current)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	if entry.Routable() {
		from, err := partition.Resolve(desc, entry.Router, rec.stored())
		if err != nil {
			return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
		}
		if from != table {
			if !c.moves {
				c.logger.WarnContext(ctx, "persist: update changes partition",
					"entity", desc.Table(), "from", from, "to", table)
				err := partitioned.NewRoutingError(desc.Table(), nil,
					fmt.Errorf("%w: from %s to %s", partitioned.ErrPartitionKeyChanged, from, table))
				return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
			}
			return c.move(ctx, entry, rec, from, table)
		}
	}
	constraints, err := identity(desc, rec)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	upd, err := c.builder.Update(table, ws, constraints)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	res, err := c.execute(ctx, entry, c.executor, upd)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	rec.markPersisted()
	return res.RowsAffected, nil
}

// move deletes the row from its old partition and inserts the current
// values into the new one, in one transaction.
func (c *Coordinator) move(ctx context.Context, entry *schema.Entry, rec *Record, from, to string) (int64, error) {
	desc := entry.Descriptor
	var missing []string
	for _, col := range desc.Columns() {
		if !rec.current.Has(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate,
			fmt.Errorf("cannot move partial record from %s to %s (unloaded columns: %s)", from, to, strings.Join(missing, ", ")))
	}
	constraints, err := identity(desc, rec)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	del, err := c.builder.Delete(from, constraints)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	ins, err := c.builder.Insert(to, rec.current, "")
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	exec := NewSQLExecutor(tx, c.driver.Dialect())
	rollback := func(err error) (int64, error) {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, partitioned.NewAggregateError(err, tx.Rollback()))
	}
	res, err := c.execute(ctx, entry, exec, del)
	if err != nil {
		return rollback(err)
	}
	if res.RowsAffected == 0 {
		return rollback(partitioned.NewNotFoundError(from, rec.ID()))
	}
	if _, err := c.execute(ctx, entry, exec, ins); err != nil {
		return rollback(err)
	}
	if err := tx.Commit(); err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opUpdate, err)
	}
	c.metrics.PartitionMove.Inc(1)
	c.logger.InfoContext(ctx, "persist: moved record", "entity", desc.Table(), "from", from, "to", to)
	rec.markPersisted()
	return res.RowsAffected, nil
}

// Delete removes a persisted record from the partition it is stored in and
// returns the number of affected rows.
func (c *Coordinator) Delete(ctx context.Context, rec *Record) (affected int64, err error) {
	defer c.track(opDelete, time.Now(), &err)
	entry, err := c.entry(rec.Descriptor())
	if err != nil {
		return 0, err
	}
	desc := entry.Descriptor
	if rec.IsNew() {
		return 0, partitioned.NewMutationError(desc.Table(), opDelete, errors.New("record is not persisted"))
	}
	constraints, err := identity(desc, rec)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opDelete, err)
	}
	table, err := partition.Resolve(desc, entry.Router, rec.stored())
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opDelete, err)
	}
	del, err := c.builder.Delete(table, constraints)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opDelete, err)
	}
	res, err := c.execute(ctx, entry, c.executor, del)
	if err != nil {
		return 0, partitioned.NewMutationError(desc.Table(), opDelete, err)
	}
	rec.markDeleted()
	return res.RowsAffected, nil
}

// Select returns the rows of an entity matching the criteria. When the
// criteria pins every partition-key column with an equality constraint,
// only that partition is queried; otherwise the logical table is.
func (c *Coordinator) Select(ctx context.Context, desc *schema.Descriptor, criteria statement.Criteria) (rows []*schema.Attributes, err error) {
	defer c.track(opSelect, time.Now(), &err)
	entry, err := c.entry(desc)
	if err != nil {
		return nil, err
	}
	desc = entry.Descriptor
	table, err := Scope(entry, criteria.Where)
	if err != nil {
		return nil, partitioned.NewQueryError(desc.Table(), err)
	}
	sel, err := c.builder.Select(table, knownColumns(desc), criteria)
	if err != nil {
		return nil, partitioned.NewQueryError(desc.Table(), err)
	}
	res, err := c.execute(ctx, entry, c.executor, sel)
	if err != nil {
		return nil, partitioned.NewQueryError(desc.Table(), err)
	}
	return res.Rows, nil
}

// Find loads the record identified by key, which holds the primary key and,
// for partitioned entities, the partition-key values.
func (c *Coordinator) Find(ctx context.Context, desc *schema.Descriptor, key *schema.Attributes) (*Record, error) {
	if desc == nil {
		return nil, errors.New("persist: nil descriptor")
	}
	if !key.Has(desc.PrimaryKey()) {
		return nil, partitioned.NewQueryError(desc.Table(), fmt.Errorf("missing primary key %s", desc.PrimaryKey()))
	}
	where := make([]statement.Constraint, 0, key.Len())
	for _, col := range key.Columns() {
		v, _ := key.Get(col)
		where = append(where, statement.EQ(col, v))
	}
	rows, err := c.Select(ctx, desc, statement.Criteria{Where: where, Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		id, _ := key.Get(desc.PrimaryKey())
		return nil, partitioned.NewNotFoundError(desc.Table(), id)
	}
	return LoadRecord(desc, rows[0]), nil
}

// Save creates new records and updates persisted ones.
func (c *Coordinator) Save(ctx context.Context, rec *Record) error {
	if rec.IsNew() {
		_, err := c.Create(ctx, rec)
		return err
	}
	_, err := c.Update(ctx, rec)
	return err
}

func (c *Coordinator) entry(desc *schema.Descriptor) (*schema.Entry, error) {
	if desc == nil {
		return nil, errors.New("persist: nil descriptor")
	}
	entry, ok := c.registry.Lookup(desc.Table())
	if !ok {
		return nil, fmt.Errorf("persist: entity %s is not registered", desc.Table())
	}
	return entry, nil
}

func (c *Coordinator) execute(ctx context.Context, entry *schema.Entry, exec Executor, st statement.Statement) (Result, error) {
	if c.policy != nil {
		if err := c.policy.EvalStatement(ctx, st); err != nil {
			return Result{}, err
		}
	}
	if c.shared && entry.Shared != nil {
		release := entry.Shared.Borrow(st.Table())
		defer release()
	}
	c.logger.DebugContext(ctx, "persist: executing statement",
		"entity", entry.Descriptor.Table(), "op", st.Kind().String(), "table", st.Table())
	return exec.Execute(ctx, st)
}

func (c *Coordinator) track(op string, start time.Time, err *error) {
	c.metrics.Latency.Record(time.Since(start))
	c.metrics.observe(op, *err)
	if partitioned.IsRoutingError(*err) {
		c.metrics.RoutingError.Inc(1)
	}
}

func (c *Coordinator) generateID(ctx context.Context, desc *schema.Descriptor, rec *Record) error {
	if rec.ID() != nil {
		return nil
	}
	switch desc.IDStrategy() {
	case schema.IDSequence:
		id, err := c.sequencer.Next(ctx, desc.SequenceName())
		if err != nil {
			return err
		}
		rec.Set(desc.PrimaryKey(), id)
	case schema.IDUUID:
		rec.Set(desc.PrimaryKey(), uuid.NewString())
	case schema.IDKSUID:
		rec.Set(desc.PrimaryKey(), ksuid.New().String())
	}
	return nil
}

// identity returns the constraints identifying the stored row of rec.
func identity(desc *schema.Descriptor, rec *Record) ([]statement.Constraint, error) {
	id, ok := rec.stored().Get(desc.PrimaryKey())
	if !ok || id == nil {
		return nil, fmt.Errorf("missing primary key %s", desc.PrimaryKey())
	}
	return []statement.Constraint{statement.EQ(desc.PrimaryKey(), id)}, nil
}

// Scope returns the table a select on entry reads: the partition when every
// partition-key column is pinned by an equality constraint, otherwise the
// logical table.
func Scope(entry *schema.Entry, where []statement.Constraint) (string, error) {
	desc := entry.Descriptor
	if !entry.Routable() {
		return desc.Table(), nil
	}
	key, ok := partitionScope(desc, where)
	if !ok {
		return desc.Table(), nil
	}
	return partition.Resolve(desc, entry.Router, key)
}

// partitionScope returns the partition-key values pinned by equality
// constraints, if all of them are.
func partitionScope(desc *schema.Descriptor, where []statement.Constraint) (*schema.Attributes, bool) {
	key := &schema.Attributes{}
	for _, c := range where {
		if c.Op == statement.OpEQ && desc.IsPartitionKey(c.Column) {
			key.Set(c.Column, c.Value)
		}
	}
	return key, len(partition.MissingColumns(desc, key)) == 0
}

func knownColumns(desc *schema.Descriptor) []string {
	cols := desc.Columns()
	for _, c := range append([]string{desc.PrimaryKey()}, desc.PartitionKeys()...) {
		if !slices.Contains(cols, c) {
			cols = append(cols, c)
		}
	}
	return cols
}
