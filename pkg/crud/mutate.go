package crud

import (
	"fmt"
	"slices"
	"strings"
)

// serverManagedColumns are never taken from a request body: the primary key
// is storage-assigned and the audit/lifecycle columns are set server-side.
var serverManagedColumns = []string{StatusColumn, "created_at", "updated_at", "created_by", "updated_by"}

func (d *Descriptor) writableColumns(data map[string]any) []string {
	columns := make([]string, 0, len(data))
	for column := range data {
		if !d.HasColumn(column) || column == d.PrimaryKey || slices.Contains(serverManagedColumns, column) {
			continue
		}
		columns = append(columns, column)
	}
	// map iteration order is random; sort for a deterministic statement
	slices.Sort(columns)
	return columns
}

// buildInsert renders the INSERT for a create request. Unknown and
// server-managed body keys are discarded; the row starts in active status
// with the audit columns stamped from the caller subject.
func buildInsert(d *Descriptor, data map[string]any, subject string) (string, []any, error) {
	columns := d.writableColumns(data)
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: no insertable columns in body", ErrInvalidParam)
	}

	var args []any
	idents := make([]string, 0, len(columns)+3)
	placeholders := make([]string, 0, len(columns)+3)
	for _, column := range columns {
		idents = append(idents, ident(column))
		args = append(args, data[column])
		placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
	}

	idents = append(idents, ident(StatusColumn))
	args = append(args, StatusActive)
	placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))

	if subject != "" {
		for _, column := range []string{"created_by", "updated_by"} {
			if !d.HasColumn(column) {
				continue
			}
			idents = append(idents, ident(column))
			args = append(args, subject)
			placeholders = append(placeholders, fmt.Sprintf("$%d", len(args)))
		}
	}

	sql := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s) RETURNING *",
		d.QualifiedTable(),
		strings.Join(idents, ", "),
		strings.Join(placeholders, ", "),
	)
	return sql, args, nil
}

// buildUpdate renders the UPDATE for an update request against one primary
// key. updated_at and updated_by are refreshed in the same statement when
// the table has them.
func buildUpdate(d *Descriptor, data map[string]any, id any, subject string) (string, []any, error) {
	columns := d.writableColumns(data)
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("%w: no updatable columns in body", ErrInvalidParam)
	}

	var args []any
	setClauses := make([]string, 0, len(columns)+2)
	for _, column := range columns {
		args = append(args, data[column])
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", ident(column), len(args)))
	}
	if subject != "" && d.HasColumn("updated_by") {
		args = append(args, subject)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", ident("updated_by"), len(args)))
	}
	if d.HasColumn("updated_at") {
		setClauses = append(setClauses, fmt.Sprintf("%s = now()", ident("updated_at")))
	}

	args = append(args, id)
	sql := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $%d RETURNING *",
		d.QualifiedTable(),
		strings.Join(setClauses, ", "),
		ident(d.PrimaryKey),
		len(args),
	)
	return sql, args, nil
}

// buildStatusTransition renders the soft-delete/restore UPDATE: rows move
// between active and deleted without ever being physically removed. The
// guard comparison enforces eligibility (delete: status <> deleted, restore:
// status = deleted) so an ineligible id yields zero rows.
func buildStatusTransition(d *Descriptor, id any, to Status, guardCmp string, guard Status) (string, []any) {
	setClauses := []string{fmt.Sprintf("%s = $1", ident(StatusColumn))}
	if d.HasColumn("updated_at") {
		setClauses = append(setClauses, fmt.Sprintf("%s = now()", ident("updated_at")))
	}

	sql := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = $2 AND %s %s $3 RETURNING *",
		d.QualifiedTable(),
		strings.Join(setClauses, ", "),
		ident(d.PrimaryKey),
		ident(StatusColumn),
		guardCmp,
	)
	return sql, []any{to, id, guard}
}
