package partition

import (
	"fmt"
	"hash/crc32"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Scheme names a partition from partition-key values.
type Scheme interface {
	// Columns returns the partition-key columns the scheme reads.
	Columns() []string
	// Suffix returns the table suffix for the values, keyed by column.
	Suffix(values map[string]any) (string, error)
}

type timeScheme struct {
	column string
	name   string
	format func(time.Time) string
}

func (s timeScheme) Columns() []string { return []string{s.column} }

func (s timeScheme) Suffix(values map[string]any) (string, error) {
	t, err := ParseTime(values[s.column])
	if err != nil {
		return "", fmt.Errorf("%s(%s): %w", s.name, s.column, err)
	}
	return s.format(t.UTC()), nil
}

func (s timeScheme) String() string { return fmt.Sprintf("%s(%s)", s.name, s.column) }

// Monthly names partitions "<YYYY>_<MM>" after the UTC month of column.
func Monthly(column string) Scheme {
	return timeScheme{column: column, name: "monthly", format: func(t time.Time) string {
		return fmt.Sprintf("%04d_%02d", t.Year(), int(t.Month()))
	}}
}

// Yearly names partitions "<YYYY>" after the UTC year of column.
func Yearly(column string) Scheme {
	return timeScheme{column: column, name: "yearly", format: func(t time.Time) string {
		return fmt.Sprintf("%04d", t.Year())
	}}
}

// Weekly names partitions "<YYYY>_w<WW>" after the ISO week of column.
func Weekly(column string) Scheme {
	return timeScheme{column: column, name: "weekly", format: func(t time.Time) string {
		y, w := t.ISOWeek()
		return fmt.Sprintf("%04d_w%02d", y, w)
	}}
}

// Daily names partitions "<YYYY>_<MM>_<DD>" after the UTC day of column.
func Daily(column string) Scheme {
	return timeScheme{column: column, name: "daily", format: func(t time.Time) string {
		return fmt.Sprintf("%04d_%02d_%02d", t.Year(), int(t.Month()), t.Day())
	}}
}

// timeLayouts are tried in order for string values.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseTime converts a partition-key value to a time. Accepted values are
// time.Time, strings in RFC 3339 or "2006-01-02" form, and integers or
// floats holding unix milliseconds.
func ParseTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v != nil {
			return *v, nil
		}
	case string:
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, nil
			}
		}
		return time.Time{}, fmt.Errorf("%w: cannot parse %q as time", ErrInvalidPartitionValue, v)
	case int64:
		return time.UnixMilli(v), nil
	case int:
		return time.UnixMilli(int64(v)), nil
	case float64:
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			return time.UnixMilli(int64(v)), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %T is not a time", ErrInvalidPartitionValue, v)
}

type hashScheme struct {
	column string
	n      uint32
	width  int
}

// HashMod names partitions after the CRC-32 of the column value modulo n,
// zero padded to the width of n-1: HashMod("account_id", 16) yields "00"
// to "15". It panics if n is not positive.
func HashMod(column string, n int) Scheme {
	if n <= 0 || int64(n) > math.MaxUint32 {
		panic(fmt.Sprintf("partition: invalid hash modulus %d", n))
	}
	return hashScheme{column: column, n: uint32(n), width: len(strconv.Itoa(n - 1))}
}

func (s hashScheme) Columns() []string { return []string{s.column} }

func (s hashScheme) Suffix(values map[string]any) (string, error) {
	text, err := canonical(values[s.column])
	if err != nil {
		return "", fmt.Errorf("hash_mod(%s): %w", s.column, err)
	}
	return fmt.Sprintf("%0*d", s.width, crc32.ChecksumIEEE([]byte(text))%s.n), nil
}

func (s hashScheme) String() string { return fmt.Sprintf("hash_mod(%s, %d)", s.column, s.n) }

type rangeScheme struct {
	column string
	bounds []int64
}

// Range names partitions "p<i>" where i is the number of bounds less than
// or equal to the integer column value. Bounds must be ascending:
// Range("n", 100, 200) maps 99 to "p0", 100 to "p1" and 250 to "p2".
func Range(column string, bounds ...int64) Scheme {
	if !slices.IsSorted(bounds) {
		panic("partition: range bounds must be ascending")
	}
	return rangeScheme{column: column, bounds: slices.Clone(bounds)}
}

func (s rangeScheme) Columns() []string { return []string{s.column} }

func (s rangeScheme) Suffix(values map[string]any) (string, error) {
	n, err := toInt64(values[s.column])
	if err != nil {
		return "", fmt.Errorf("range(%s): %w", s.column, err)
	}
	i, found := slices.BinarySearch(s.bounds, n)
	if found {
		// Equal bounds belong to the upper partition.
		for i < len(s.bounds) && s.bounds[i] == n {
			i++
		}
	}
	return "p" + strconv.Itoa(i), nil
}

func (s rangeScheme) String() string { return fmt.Sprintf("range(%s, %v)", s.column, s.bounds) }

type valueScheme struct {
	column string
}

// ByValue names partitions after the column value itself, lower-cased with
// every character outside [a-z0-9_] replaced by an underscore.
func ByValue(column string) Scheme {
	return valueScheme{column: column}
}

func (s valueScheme) Columns() []string { return []string{s.column} }

func (s valueScheme) Suffix(values map[string]any) (string, error) {
	text, err := canonical(values[s.column])
	if err != nil {
		return "", fmt.Errorf("by_value(%s): %w", s.column, err)
	}
	suffix := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, text)
	if suffix == "" {
		return "", fmt.Errorf("by_value(%s): %w: empty value", s.column, ErrInvalidPartitionValue)
	}
	return suffix, nil
}

func (s valueScheme) String() string { return fmt.Sprintf("by_value(%s)", s.column) }

type compositeScheme []Scheme

// Composite joins the suffixes of several schemes with "_", in order.
func Composite(parts ...Scheme) Scheme {
	return compositeScheme(slices.Clone(parts))
}

func (s compositeScheme) Columns() []string {
	var cols []string
	for _, p := range s {
		for _, c := range p.Columns() {
			if !slices.Contains(cols, c) {
				cols = append(cols, c)
			}
		}
	}
	return cols
}

func (s compositeScheme) Suffix(values map[string]any) (string, error) {
	parts := make([]string, len(s))
	for i, p := range s {
		suffix, err := p.Suffix(values)
		if err != nil {
			return "", err
		}
		parts[i] = suffix
	}
	return strings.Join(parts, "_"), nil
}

func (s compositeScheme) String() string {
	names := make([]string, len(s))
	for i, p := range s {
		names[i] = fmt.Sprint(p)
	}
	return "composite(" + strings.Join(names, ", ") + ")"
}

// canonical returns the text a value is hashed or named by. Times are
// written in UTC without the monotonic reading, so equal instants agree.
func canonical(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", fmt.Errorf("%w: nil", ErrInvalidPartitionValue)
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano), nil
	case *time.Time:
		if v == nil {
			return "", fmt.Errorf("%w: nil", ErrInvalidPartitionValue)
		}
		return v.UTC().Format(time.RFC3339Nano), nil
	case fmt.Stringer:
		return v.String(), nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, bool:
		return fmt.Sprint(v), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("%w: unsupported type %T", ErrInvalidPartitionValue, v)
	}
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int:
		return int64(v), nil
	case int8:
		return int64(v), nil
	case int16:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint:
		if uint64(v) <= math.MaxInt64 {
			return int64(v), nil
		}
	case uint8:
		return int64(v), nil
	case uint16:
		return int64(v), nil
	case uint32:
		return int64(v), nil
	case uint64:
		if v <= math.MaxInt64 {
			return int64(v), nil
		}
	case float64:
		if v == math.Trunc(v) && !math.IsInf(v, 0) {
			return int64(v), nil
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("%w: %v (%T) is not an integer", ErrInvalidPartitionValue, v, v)
}
