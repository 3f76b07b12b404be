package partition

import (
	"fmt"
	"sort"
	"strconv"
	"sync"
)

type (
	// Plan names a scheme function and its arguments, as declared in
	// configuration files. The first argument is the column.
	Plan struct {
		Func string   `yaml:"func" validate:"required"`
		Args []string `yaml:"args" validate:"required,min=1,dive,required"`
	}

	// Func builds a scheme from plan arguments.
	Func func(args []string) (Scheme, error)
)

var (
	funcsMu   sync.RWMutex
	functions = map[string]Func{
		"monthly":  columnFunc(Monthly),
		"yearly":   columnFunc(Yearly),
		"weekly":   columnFunc(Weekly),
		"daily":    columnFunc(Daily),
		"by_value": columnFunc(ByValue),
		"hash_mod": hashModFunc,
		"range":    rangeFunc,
	}
)

// RegisterFunc adds a named scheme function. It fails if the name is taken.
func RegisterFunc(name string, f Func) error {
	funcsMu.Lock()
	defer funcsMu.Unlock()
	if _, ok := functions[name]; ok {
		return fmt.Errorf("partition: function %q already registered", name)
	}
	functions[name] = f
	return nil
}

// Funcs returns the registered function names, sorted.
func Funcs() []string {
	funcsMu.RLock()
	defer funcsMu.RUnlock()
	names := make([]string, 0, len(functions))
	for name := range functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the scheme of the given plans. Several plans are combined
// with Composite.
func Build(plans ...Plan) (Scheme, error) {
	if len(plans) == 0 {
		return nil, fmt.Errorf("partition: %w: no plans", ErrMissingArgs)
	}
	parts := make([]Scheme, 0, len(plans))
	for _, p := range plans {
		funcsMu.RLock()
		f, ok := functions[p.Func]
		funcsMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("partition: %q: %w", p.Func, ErrFuncNotFound)
		}
		if len(p.Args) == 0 {
			return nil, fmt.Errorf("partition: %s: %w", p.Func, ErrMissingArgs)
		}
		s, err := f(p.Args)
		if err != nil {
			return nil, fmt.Errorf("partition: error processing partition function %s: %w", p.Func, err)
		}
		parts = append(parts, s)
	}
	if len(parts) == 1 {
		return parts[0], nil
	}
	return Composite(parts...), nil
}

func columnFunc(f func(string) Scheme) Func {
	return func(args []string) (Scheme, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("expected 1 argument, got %d", len(args))
		}
		return f(args[0]), nil
	}
}

func hashModFunc(args []string) (Scheme, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%w: expected column and modulus", ErrMissingArgs)
	}
	n, err := strconv.ParseUint(args[1], 10, 32)
	if err != nil || n == 0 {
		return nil, fmt.Errorf("invalid modulus %q", args[1])
	}
	return HashMod(args[0], int(n)), nil
}

func rangeFunc(args []string) (Scheme, error) {
	if len(args) < 2 {
		return nil, fmt.Errorf("%w: expected column and bounds", ErrMissingArgs)
	}
	bounds := make([]int64, len(args)-1)
	for i, a := range args[1:] {
		n, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid bound %q: %w", a, err)
		}
		if i > 0 && n < bounds[i-1] {
			return nil, fmt.Errorf("bounds must be ascending: %d after %d", n, bounds[i-1])
		}
		bounds[i] = n
	}
	return Range(args[0], bounds...), nil
}
