package crud

import (
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// SelectQuery is a composed, parameterized query over one table: the
// mandatory status predicate, zero or more filter predicates, and ordering.
// All identifiers are sanitized and all values travel as $n placeholders.
type SelectQuery struct {
	table string // sanitized, schema-qualified
	where []string
	args  []any
	order []string
}

// QualifiedTable returns the sanitized, schema-qualified table identifier.
// Tables reflected without a schema render unqualified and resolve through
// the connection's search_path.
func (d *Descriptor) QualifiedTable() string {
	if d.Schema == "" {
		return ident(d.Table)
	}
	return pgx.Identifier{d.Schema, d.Table}.Sanitize()
}

// Compose builds the query for a list/view request. Application order is
// fixed: the status equality predicate first, then one predicate per filter
// ANDed in collection order, then the sort keys in directive order.
//
// Filters are expected to be pre-validated by FilterSet.Collect; an
// operator missing from the translation table still fails closed with
// ErrInvalidParam. A sort key referencing an unknown column fails with
// ErrUnknownSortColumn.
func Compose(d *Descriptor, status Status, filters []Filter, sort []SortKey) (*SelectQuery, error) {
	q := &SelectQuery{table: d.QualifiedTable()}

	q.where = append(q.where, fmt.Sprintf("%s = %s", ident(StatusColumn), q.placeholder(status)))

	for _, f := range filters {
		if !d.HasColumn(f.Column) {
			return nil, fmt.Errorf("%w: no column %q in table %s", ErrInvalidParam, f.Column, d.Table)
		}
		if err := q.applyFilter(f); err != nil {
			return nil, err
		}
	}

	for _, key := range sort {
		if !d.HasColumn(key.Column) {
			return nil, fmt.Errorf("%w: %q in table %s", ErrUnknownSortColumn, key.Column, d.Table)
		}
		dir := "ASC"
		if key.Direction == Desc {
			dir = "DESC"
		}
		q.order = append(q.order, fmt.Sprintf("%s %s", ident(key.Column), dir))
	}

	return q, nil
}

func (q *SelectQuery) applyFilter(f Filter) error {
	sqlOp, ok := operatorSQL[f.Op]
	if !ok {
		return fmt.Errorf("%w: unsupported operator %q", ErrInvalidParam, f.Op)
	}

	if f.Op == OpIn {
		placeholders := make([]string, 0, 4)
		switch values := f.Value.(type) {
		case []int64:
			for _, v := range values {
				placeholders = append(placeholders, q.placeholder(v))
			}
		case []string:
			for _, v := range values {
				placeholders = append(placeholders, q.placeholder(v))
			}
		default:
			return fmt.Errorf("%w: in-list for %q is neither []int64 nor []string", ErrInvalidParam, f.Column)
		}
		q.where = append(q.where, fmt.Sprintf("%s IN (%s)", ident(f.Column), strings.Join(placeholders, ", ")))
		return nil
	}

	q.where = append(q.where, fmt.Sprintf("%s %s %s", ident(f.Column), sqlOp, q.placeholder(f.Value)))
	return nil
}

// WhereEq appends an equality predicate, used by the single-row handlers to
// constrain on the primary key.
func (q *SelectQuery) WhereEq(column string, value any) *SelectQuery {
	q.where = append(q.where, fmt.Sprintf("%s = %s", ident(column), q.placeholder(value)))
	return q
}

// SQL renders the full SELECT with ordering but without a window.
func (q *SelectQuery) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT * FROM ")
	b.WriteString(q.table)
	q.writeWhere(&b)
	if len(q.order) > 0 {
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(q.order, ", "))
	}
	return b.String()
}

// CountSQL renders the count query over the same predicate, pre-window.
// Ordering is irrelevant to a count and omitted.
func (q *SelectQuery) CountSQL() string {
	var b strings.Builder
	b.WriteString("SELECT count(*) FROM ")
	b.WriteString(q.table)
	q.writeWhere(&b)
	return b.String()
}

// WindowSQL renders the SELECT with LIMIT/OFFSET appended. The window
// values are returned as extra args rather than mutating the query, so the
// same SelectQuery serves both the count and the windowed fetch.
func (q *SelectQuery) WindowSQL(limit, offset int) (string, []any) {
	var b strings.Builder
	b.WriteString(q.SQL())
	args := make([]any, len(q.args), len(q.args)+2)
	copy(args, q.args)

	b.WriteString(fmt.Sprintf(" LIMIT $%d", len(args)+1))
	args = append(args, limit)
	b.WriteString(fmt.Sprintf(" OFFSET $%d", len(args)+1))
	args = append(args, offset)

	return b.String(), args
}

// Args returns the placeholder arguments accumulated so far.
func (q *SelectQuery) Args() []any {
	return q.args
}

func (q *SelectQuery) writeWhere(b *strings.Builder) {
	if len(q.where) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(q.where, " AND "))
}

func (q *SelectQuery) placeholder(value any) string {
	q.args = append(q.args, value)
	return fmt.Sprintf("$%d", len(q.args))
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
