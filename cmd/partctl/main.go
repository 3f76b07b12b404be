package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/lib/pq"
	"gopkg.in/alecthomas/kingpin.v2"
	_ "modernc.org/sqlite"

	"github.com/mobilizeio/partitioned/config"
	"github.com/mobilizeio/partitioned/dialect"
	"github.com/mobilizeio/partitioned/dialect/sql"
	"github.com/mobilizeio/partitioned/persist"
	"github.com/mobilizeio/partitioned/schema"
)

var (
	app = kingpin.New("partctl", "Inspect and query partitioned tables")

	configFile = app.Flag(
		"config",
		"YAML entity registration file (set $PARTITIONED_CONFIG to override)").
		Short('c').
		Envar("PARTITIONED_CONFIG").
		Required().
		ExistingFile()

	debug = app.Flag(
		"debug",
		"log every statement").
		Short('d').
		Default("false").
		Bool()

	jsonFormat = app.Flag(
		"json",
		"print JSON output").
		Short('j').
		Default("false").
		Bool()

	tables = app.Command("tables", "list registered entities")

	resolve       = app.Command("resolve", "print the partition of each key set")
	resolveEntity = resolve.Arg("entity", "logical table").Required().String()
	resolveKeys   = resolve.Arg("keys", "comma separated column=value pairs, one argument per row").Required().Strings()

	explain        = app.Command("explain", "print the SQL of a statement")
	explainDialect = explain.Flag("dialect", "SQL dialect").
			Default(dialect.Postgres).
			Enum(dialect.Postgres, dialect.MySQL, dialect.SQLite)
	explainKind   = explain.Arg("kind", "statement kind").Required().Enum("insert", "update", "delete", "select")
	explainEntity = explain.Arg("entity", "logical table").Required().String()
	explainSet    = explain.Flag("set", "column=value to write").Short('s').Strings()
	explainWhere  = explain.Flag("where", "column=value equality constraint").Short('w').Strings()

	query        = app.Command("query", "run a select against the database")
	queryEntity  = query.Arg("entity", "logical table").Required().String()
	queryColumns = query.Flag("column", "column to select").Strings()
	queryWhere   = query.Flag("where", "column=value equality constraint").Short('w').Strings()
	queryLimit   = query.Flag("limit", "maximum number of rows").Default("100").Int()
	queryDriver  = query.Flag(
		"driver",
		"database/sql driver name (set $PARTITIONED_DRIVER to override)").
		Default("postgres").
		Envar("PARTITIONED_DRIVER").
		Enum("postgres", "pgx", "mysql", "sqlite")
	queryDSN = query.Flag(
		"dsn",
		"data source name (set $PARTITIONED_DSN to override)").
		Envar("PARTITIONED_DSN").
		Required().
		String()
	queryTimeout = query.Flag("timeout", "query timeout").Default("30s").Duration()
	querySlow    = query.Flag("slow", "log queries slower than this").Default("1s").Duration()
)

func main() {
	app.HelpFlag.Short('h')
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	reg, err := config.LoadRegistry(*configFile)
	app.FatalIfError(err, "loading %s", *configFile)

	out := newPrinter(os.Stdout, *jsonFormat)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch cmd {
	case tables.FullCommand():
		err = tablesAction(out, reg)
	case resolve.FullCommand():
		err = resolveAction(ctx, out, reg, *resolveEntity, *resolveKeys)
	case explain.FullCommand():
		err = explainAction(out, reg, *explainDialect, *explainKind, *explainEntity, *explainSet, *explainWhere)
	case query.FullCommand():
		err = runQuery(ctx, out, reg, logger)
	}
	app.FatalIfError(err, "%s", cmd)
}

func runQuery(ctx context.Context, out *printer, reg *schema.Registry, logger *slog.Logger) error {
	drv, err := sql.Open(*queryDriver, *queryDSN)
	if err != nil {
		return err
	}
	defer drv.Close()

	stats := sql.NewStatsDriver(drv,
		sql.WithSlowThreshold(*querySlow),
		sql.WithSlowQueryLog(logger),
	)
	var conn dialect.Driver = stats
	if *debug {
		conn = sql.NewDebugDriver(conn, logger)
	}
	coord := persist.New(conn, reg, persist.WithLogger(logger))

	ctx, cancel := context.WithTimeout(ctx, *queryTimeout)
	defer cancel()
	start := time.Now()
	err = queryAction(ctx, out, coord, *queryEntity, *queryColumns, *queryWhere, *queryLimit)
	logger.DebugContext(ctx, "partctl: query done", "entity", *queryEntity, "tables", stats.TableNames(), "took", time.Since(start))
	return err
}
