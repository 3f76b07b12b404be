// Package config loads entity registrations from YAML files.
//
// A registration file declares the entities of an application and how each
// one is partitioned:
//
//	entities:
//	  - name: Event
//	    columns: [id, name, created_at]
//	    sequence: events_id_seq
//	    partition:
//	      - func: monthly
//	        args: [created_at]
//	  - table: accounts
//	    columns: [id, name]
//	    defaults:
//	      name: unnamed
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/mobilizeio/partitioned/partition"
	"github.com/mobilizeio/partitioned/schema"
)

type (
	// File is the root of a registration file.
	File struct {
		Entities []Entity `yaml:"entities" validate:"required,min=1,dive"`
	}

	// Entity declares one logical table. Table defaults to the pluralized,
	// underscored Name.
	Entity struct {
		Name       string           `yaml:"name" validate:"required_without=Table"`
		Table      string           `yaml:"table"`
		PrimaryKey string           `yaml:"primary_key"`
		Columns    []string         `yaml:"columns" validate:"dive,required"`
		Defaults   map[string]any   `yaml:"defaults"`
		Sequence   string           `yaml:"sequence"`
		ID         string           `yaml:"id" validate:"omitempty,oneof=identity sequence uuid ksuid none"`
		Partition  []partition.Plan `yaml:"partition" validate:"dive"`
	}
)

// ValidationError is returned when a file fails struct validation.
type ValidationError struct {
	errs validator.ValidationErrors
}

// Fields returns the namespaces of the invalid fields.
func (e ValidationError) Fields() []string {
	fields := make([]string, len(e.errs))
	for i, fe := range e.errs {
		fields[i] = fe.Namespace()
	}
	return fields
}

// Error returns the error string.
func (e ValidationError) Error() string {
	var w strings.Builder
	fmt.Fprintf(&w, "config: validation failed")
	for _, fe := range e.errs {
		fmt.Fprintf(&w, "\n   %s: failed on %q", fe.Namespace(), fe.Tag())
	}
	return w.String()
}

var validate = validator.New()

// Load reads and parses the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a registration file. Unknown fields are
// rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return nil, ValidationError{errs: verrs}
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	return f, nil
}

// TableName returns the logical table of the entity.
func (e Entity) TableName() string {
	if e.Table != "" {
		return e.Table
	}
	return schema.TableName(e.Name)
}

// Entry builds the descriptor and router of the entity.
func (e Entity) Entry() (*schema.Entry, error) {
	table := e.TableName()
	strategy, err := schema.ParseIDStrategy(e.ID)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", table, err)
	}
	var opts []schema.Option
	if e.PrimaryKey != "" {
		opts = append(opts, schema.PrimaryKey(e.PrimaryKey))
	}
	if len(e.Columns) > 0 {
		opts = append(opts, schema.Columns(e.Columns...))
	}
	for c, v := range e.Defaults {
		opts = append(opts, schema.Default(c, v))
	}
	switch {
	case e.Sequence != "" && e.ID != "" && strategy != schema.IDSequence:
		return nil, fmt.Errorf("config: %s: sequence %s declared with id strategy %s", table, e.Sequence, strategy)
	case e.Sequence != "" || strategy == schema.IDSequence:
		opts = append(opts, schema.Sequence(e.Sequence))
	default:
		opts = append(opts, schema.ID(strategy))
	}
	var router schema.Router
	if len(e.Partition) > 0 {
		scheme, err := partition.Build(e.Partition...)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", table, err)
		}
		opts = append(opts, schema.PartitionKeys(scheme.Columns()...))
		router = partition.By(scheme)
	}
	desc, err := schema.New(table, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", table, err)
	}
	return schema.NewEntry(desc, router)
}

// Entries builds the entries of all entities. Duplicate tables are an
// error.
func (f *File) Entries() ([]*schema.Entry, error) {
	var (
		errs    []error
		entries = make([]*schema.Entry, 0, len(f.Entities))
		seen    = make(map[string]bool, len(f.Entities))
	)
	for _, e := range f.Entities {
		table := e.TableName()
		if seen[table] {
			errs = append(errs, fmt.Errorf("config: duplicate table name %s", table))
			continue
		}
		seen[table] = true
		entry, err := e.Entry()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, entry)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return entries, nil
}

// Registry returns a registry holding the entities of the file.
func (f *File) Registry() (*schema.Registry, error) {
	entries, err := f.Entries()
	if err != nil {
		return nil, err
	}
	reg := schema.NewRegistry()
	if err := reg.Replace(entries...); err != nil {
		return nil, err
	}
	return reg, nil
}

// LoadRegistry loads the file at path into a new registry.
func LoadRegistry(path string) (*schema.Registry, error) {
	f, err := Load(path)
	if err != nil {
		return nil, err
	}
	return f.Registry()
}
