package crud

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crudgen/crudgen/pkg/schema"
)

func testTable() schema.Table {
	return schema.Table{
		Schema: "public",
		Name:   "users",
		Columns: []schema.Column{
			{Name: "id", DataType: "bigint", IsPrimaryKey: true},
			{Name: "name", DataType: "text"},
			{Name: "age", DataType: "integer"},
			{Name: "score", DataType: "double precision"},
			{Name: "enabled", DataType: "boolean"},
			{Name: "created_at", DataType: "timestamp with time zone"},
			{Name: "meta", DataType: "jsonb"},
			{Name: "created_by", DataType: "text"},
			{Name: "updated_by", DataType: "text"},
			{Name: "updated_at", DataType: "timestamp with time zone"},
			{Name: "status_id", DataType: "text"},
		},
		PrimaryKeys: []string{"id"},
	}
}

func TestNewDescriptorExcludesAuditColumns(t *testing.T) {
	d := NewDescriptor(testTable(), nil)

	assert.Equal(t, "users", d.Table)
	assert.Equal(t, "id", d.PrimaryKey)
	assert.Equal(t,
		[]string{"id", "name", "age", "score", "enabled", "created_at", "meta"},
		d.FilterableColumns(),
	)

	// excluded columns still resolve for sorting and writes
	assert.True(t, d.HasColumn("updated_at"))
	assert.True(t, d.HasColumn("status_id"))
	_, filterable := d.TypeOf("status_id")
	assert.False(t, filterable)
}

func TestNewDescriptorCustomExclusions(t *testing.T) {
	d := NewDescriptor(testTable(), []string{"meta", "score"})

	assert.NotContains(t, d.FilterableColumns(), "meta")
	assert.Contains(t, d.FilterableColumns(), "updated_at")
}

func TestDescriptorDefaultPrimaryKey(t *testing.T) {
	table := testTable()
	table.PrimaryKeys = nil
	d := NewDescriptor(table, nil)
	assert.Equal(t, "id", d.PrimaryKey)
}

func TestParseStatus(t *testing.T) {
	testCases := []struct {
		name    string
		query   string
		want    Status
		wantErr bool
	}{
		{name: "default active", query: "", want: StatusActive},
		{name: "explicit inactive", query: "status=inactive", want: StatusInactive},
		{name: "explicit deleted", query: "status=deleted", want: StatusDeleted},
		{name: "unknown value", query: "status=zombie", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := url.ParseQuery(tc.query)
			require.NoError(t, err)

			status, err := ParseStatus(values)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParam)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, status)
		})
	}
}
