package schema

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mobilizeio/partitioned/dialect/sql"
)

// ValidationError represents a descriptor validation error.
type ValidationError struct {
	Table   string
	Column  string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s.%s: %s", e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Table, e.Message)
}

// ValidationResult holds the results of descriptor validation.
type ValidationResult struct {
	Errors   []*ValidationError
	Warnings []*ValidationError
}

// HasErrors returns true if there are any validation errors.
func (r *ValidationResult) HasErrors() bool {
	return len(r.Errors) > 0
}

// HasWarnings returns true if there are any validation warnings.
func (r *ValidationResult) HasWarnings() bool {
	return len(r.Warnings) > 0
}

// Err returns the validation errors joined, or nil.
func (r *ValidationResult) Err() error {
	errs := make([]error, len(r.Errors))
	for i, e := range r.Errors {
		errs[i] = e
	}
	return errors.Join(errs...)
}

// String returns a human-readable summary of the validation result.
func (r *ValidationResult) String() string {
	var sb strings.Builder
	if len(r.Errors) > 0 {
		sb.WriteString("Errors:\n")
		for _, e := range r.Errors {
			sb.WriteString("  - ")
			sb.WriteString(e.Error())
			sb.WriteString("\n")
		}
	}
	if len(r.Warnings) > 0 {
		sb.WriteString("Warnings:\n")
		for _, w := range r.Warnings {
			sb.WriteString("  - ")
			sb.WriteString(w.Error())
			sb.WriteString("\n")
		}
	}
	if !r.HasErrors() && !r.HasWarnings() {
		sb.WriteString("No issues found")
	}
	return sb.String()
}

func (r *ValidationResult) errorf(table, column, format string, args ...any) {
	r.Errors = append(r.Errors, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

func (r *ValidationResult) warnf(table, column, format string, args ...any) {
	r.Warnings = append(r.Warnings, &ValidationError{Table: table, Column: column, Message: fmt.Sprintf(format, args...)})
}

// ValidateDescriptor validates a single descriptor.
func ValidateDescriptor(d *Descriptor) *ValidationResult {
	result := &ValidationResult{}
	t := d.table

	if !sql.IsValidIdentifier(t) {
		result.errorf(t, "", "invalid table name")
	}
	if d.primaryKey == "" {
		result.errorf(t, "", "missing primary key")
	} else if !sql.IsValidIdentifier(d.primaryKey) {
		result.errorf(t, d.primaryKey, "invalid primary key column name")
	}

	// Check for duplicate column names
	colNames := make(map[string]bool)
	for _, c := range d.columns {
		if !sql.IsValidIdentifier(c) {
			result.errorf(t, c, "invalid column name")
		}
		if colNames[c] {
			result.errorf(t, c, "duplicate column name")
		}
		colNames[c] = true
	}
	if len(d.columns) > 0 && d.primaryKey != "" && !colNames[d.primaryKey] {
		result.errorf(t, d.primaryKey, "primary key is not a known column")
	}

	// Check partition keys
	keys := make(map[string]bool)
	for _, k := range d.partitionKeys {
		if keys[k] {
			result.errorf(t, k, "duplicate partition key")
		}
		keys[k] = true
		if !sql.IsValidIdentifier(k) {
			result.errorf(t, k, "invalid partition key name")
		}
		if len(d.columns) > 0 && !colNames[k] {
			result.errorf(t, k, "partition key is not a known column")
		}
		if k == d.primaryKey {
			result.warnf(t, k, "primary key used as partition key")
		}
	}

	for c := range d.defaults {
		if len(d.columns) > 0 && !colNames[c] {
			result.warnf(t, c, "default for unknown column")
		}
	}

	switch {
	case d.idStrategy < IDIdentity || d.idStrategy > IDNone:
		result.errorf(t, "", "unknown id strategy %d", int(d.idStrategy))
	case d.idStrategy == IDSequence && !sql.IsValidIdentifier(d.sequence):
		result.errorf(t, "", "invalid sequence name %q", d.sequence)
	case d.idStrategy != IDSequence && d.sequence != "":
		result.warnf(t, "", "sequence %q is unused with id strategy %s", d.sequence, d.idStrategy)
	}
	return result
}

// ValidateDescriptors validates all descriptors of a registration set.
func ValidateDescriptors(descs []*Descriptor) *ValidationResult {
	result := &ValidationResult{}
	tableNames := make(map[string]bool)
	for _, d := range descs {
		if tableNames[d.table] {
			result.errorf(d.table, "", "duplicate table name")
		}
		tableNames[d.table] = true

		r := ValidateDescriptor(d)
		result.Errors = append(result.Errors, r.Errors...)
		result.Warnings = append(result.Warnings, r.Warnings...)
	}
	return result
}
