package crud

import (
	"fmt"
	"net/url"
	"slices"

	"github.com/crudgen/crudgen/pkg/schema"
)

// StatusColumn is the lifecycle column every managed table carries.
const StatusColumn = "status_id"

// Status is the tri-state row lifecycle value.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
	StatusDeleted  Status = "deleted"
)

// ParseStatus reads the status query parameter, defaulting to active.
func ParseStatus(values url.Values) (Status, error) {
	raw := values.Get("status")
	if raw == "" {
		return StatusActive, nil
	}
	switch s := Status(raw); s {
	case StatusActive, StatusInactive, StatusDeleted:
		return s, nil
	default:
		return "", fmt.Errorf("%w: status %q", ErrInvalidParam, raw)
	}
}

// DefaultExcludedColumns are audit-only columns never exposed as filter
// parameters. Callers can override the list per resource.
var DefaultExcludedColumns = []string{"created_by", "updated_by", "updated_at", StatusColumn}

// Descriptor is the classified column metadata for one table, derived once
// at route-registration time and immutable afterwards.
type Descriptor struct {
	Schema     string
	Table      string
	PrimaryKey string

	// filterable columns in declaration order, audit columns excluded
	filterOrder []string
	types       map[string]TypeTag // filterable columns only

	// all reflected columns, for sort validation and write filtering
	all map[string]TypeTag
}

// NewDescriptor classifies a reflected table into a Descriptor, dropping the
// excluded columns from filter generation. Pass nil to use
// DefaultExcludedColumns.
func NewDescriptor(table schema.Table, excluded []string) *Descriptor {
	if excluded == nil {
		excluded = DefaultExcludedColumns
	}

	d := &Descriptor{
		Schema:     table.Schema,
		Table:      table.Name,
		PrimaryKey: table.PrimaryKey(),
		types:      make(map[string]TypeTag, len(table.Columns)),
		all:        make(map[string]TypeTag, len(table.Columns)),
	}

	for _, col := range table.Columns {
		tag := ClassifyDataType(col.DataType)
		d.all[col.Name] = tag
		if slices.Contains(excluded, col.Name) {
			continue
		}
		d.filterOrder = append(d.filterOrder, col.Name)
		d.types[col.Name] = tag
	}

	return d
}

// FilterableColumns returns the filter-generating column names in
// declaration order.
func (d *Descriptor) FilterableColumns() []string {
	return slices.Clone(d.filterOrder)
}

// TypeOf returns the storage type of a filterable column.
func (d *Descriptor) TypeOf(column string) (TypeTag, bool) {
	t, ok := d.types[column]
	return t, ok
}

// HasColumn reports whether the table has the column at all, excluded
// audit columns included.
func (d *Descriptor) HasColumn(column string) bool {
	_, ok := d.all[column]
	return ok
}

// ColumnType returns the storage type of any table column, excluded audit
// columns included. Missing columns report TypeUnknown.
func (d *Descriptor) ColumnType(column string) TypeTag {
	return d.all[column]
}
