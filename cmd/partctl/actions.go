package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"golang.org/x/sync/errgroup"

	"github.com/mobilizeio/partitioned/partition"
	"github.com/mobilizeio/partitioned/persist"
	"github.com/mobilizeio/partitioned/schema"
	"github.com/mobilizeio/partitioned/statement"
)

// printer writes command output as aligned text or JSON lines.
type printer struct {
	w    io.Writer
	json bool
}

func newPrinter(w io.Writer, jsonFormat bool) *printer {
	return &printer{w: w, json: jsonFormat}
}

func (p *printer) rows(header []string, rows [][]string) error {
	if p.json {
		enc := json.NewEncoder(p.w)
		for _, r := range rows {
			obj := make(map[string]string, len(header))
			for i, h := range header {
				obj[h] = r[i]
			}
			if err := enc.Encode(obj); err != nil {
				return err
			}
		}
		return nil
	}
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	return tw.Flush()
}

func tablesAction(p *printer, reg *schema.Registry) error {
	var rows [][]string
	for _, t := range reg.Tables() {
		e, _ := reg.Lookup(t)
		router := "-"
		if e.Routable() {
			router = fmt.Sprint(e.Router)
		}
		rows = append(rows, []string{t, e.Descriptor.PrimaryKey(), e.Descriptor.IDStrategy().String(), router})
	}
	return p.rows([]string{"TABLE", "PRIMARY KEY", "ID", "PARTITIONING"}, rows)
}

// resolveAction resolves every key set concurrently and prints the results
// in argument order.
func resolveAction(ctx context.Context, p *printer, reg *schema.Registry, entity string, keys []string) error {
	e, err := lookup(reg, entity)
	if err != nil {
		return err
	}
	tables := make([]string, len(keys))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, k := range keys {
		g.Go(func() error {
			attrs, err := parsePairs(strings.Split(k, ","))
			if err != nil {
				return err
			}
			t, err := partition.Resolve(e.Descriptor, e.Router, attrs)
			if err != nil {
				return fmt.Errorf("%s: %w", k, err)
			}
			tables[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	rows := make([][]string, len(keys))
	for i := range keys {
		rows[i] = []string{keys[i], tables[i]}
	}
	return p.rows([]string{"KEY", "TABLE"}, rows)
}

func explainAction(p *printer, reg *schema.Registry, dialectName, kind, entity string, set, where []string) error {
	e, err := lookup(reg, entity)
	if err != nil {
		return err
	}
	desc := e.Descriptor
	values, err := parsePairs(set)
	if err != nil {
		return err
	}
	key, err := parsePairs(where)
	if err != nil {
		return err
	}
	constraints := equalities(key)
	b := statement.NewBuilder()

	var st statement.Statement
	switch kind {
	case "insert":
		table, err := partition.Resolve(desc, e.Router, values)
		if err != nil {
			return err
		}
		ws := schema.WithPartitionColumnsForced(values, values.Columns(), desc)
		st, err = b.Insert(table, ws, "")
		if err != nil {
			return err
		}
	case "update":
		table, err := partition.Resolve(desc, e.Router, values.Union(key))
		if err != nil {
			return err
		}
		ws := schema.WithPartitionColumnsForced(values.Union(key), values.Columns(), desc)
		st, err = b.Update(table, ws, constraints)
		if err != nil {
			return err
		}
	case "delete":
		table, err := partition.Resolve(desc, e.Router, key)
		if err != nil {
			return err
		}
		st, err = b.Delete(table, constraints)
		if err != nil {
			return err
		}
	case "select":
		table, err := persist.Scope(e, constraints)
		if err != nil {
			return err
		}
		st, err = b.Select(table, desc.Columns(), statement.Criteria{Where: constraints})
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown statement kind %q", kind)
	}
	q, args, err := st.Query(dialectName)
	if err != nil {
		return err
	}
	strArgs := make([]string, len(args))
	for i, a := range args {
		strArgs[i] = fmt.Sprint(a)
	}
	return p.rows([]string{"TABLE", "QUERY", "ARGS"}, [][]string{{st.Table(), q, strings.Join(strArgs, ", ")}})
}

func queryAction(ctx context.Context, p *printer, coord *persist.Coordinator, entity string, columns, where []string, limit int) error {
	e, err := lookup(coord.Registry(), entity)
	if err != nil {
		return err
	}
	key, err := parsePairs(where)
	if err != nil {
		return err
	}
	rows, err := coord.Select(ctx, e.Descriptor, statement.Criteria{
		Columns: columns,
		Where:   equalities(key),
		Limit:   limit,
	})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return p.rows(columns, nil)
	}
	header := rows[0].Columns()
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = make([]string, len(header))
		for j, c := range header {
			v, _ := r.Get(c)
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			out[i][j] = fmt.Sprint(v)
		}
	}
	return p.rows(header, out)
}

func lookup(reg *schema.Registry, entity string) (*schema.Entry, error) {
	if e, ok := reg.Lookup(entity); ok {
		return e, nil
	}
	if e, ok := reg.Lookup(schema.TableName(entity)); ok {
		return e, nil
	}
	return nil, fmt.Errorf("unknown entity %q (registered: %s)", entity, strings.Join(reg.Tables(), ", "))
}

// parsePairs parses column=value pairs. Integer values are kept as int64.
func parsePairs(pairs []string) (*schema.Attributes, error) {
	attrs := &schema.Attributes{}
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid pair %q, expected column=value", kv)
		}
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			attrs.Set(k, n)
			continue
		}
		attrs.Set(k, v)
	}
	return attrs, nil
}

func equalities(attrs *schema.Attributes) []statement.Constraint {
	cs := make([]statement.Constraint, 0, attrs.Len())
	for _, c := range attrs.Columns() {
		v, _ := attrs.Get(c)
		cs = append(cs, statement.EQ(c, v))
	}
	return cs
}
