package crud

import (
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFilterSet(t *testing.T) *FilterSet {
	t.Helper()
	return NewFilterSet(NewDescriptor(testTable(), nil))
}

func TestNewFilterSetParams(t *testing.T) {
	fs := testFilterSet(t)
	params := fs.Params()

	// one parameter per (column, permitted operator) pair
	assert.Contains(t, params, "filter[name][eq]")
	assert.Contains(t, params, "filter[name][like]")
	assert.Contains(t, params, "filter[name][in]")
	assert.Contains(t, params, "filter[age][eq]")
	assert.Contains(t, params, "filter[age][in]")
	assert.Contains(t, params, "filter[score][eq]")
	assert.Contains(t, params, "filter[enabled][eq]")
	assert.Contains(t, params, "filter[created_at][gte]")
	assert.Contains(t, params, "filter[created_at][lt]")
	// unknown types degrade to equality, never disappear
	assert.Contains(t, params, "filter[meta][eq]")

	// audit columns synthesize nothing
	assert.NotContains(t, params, "filter[status_id][eq]")
	assert.NotContains(t, params, "filter[updated_at][gte]")

	// operators outside the column type's set are not synthesized
	assert.NotContains(t, params, "filter[age][like]")
	assert.NotContains(t, params, "filter[score][in]")
	assert.NotContains(t, params, "filter[created_at][eq]")
}

func TestCollectCoercion(t *testing.T) {
	fs := testFilterSet(t)

	testCases := []struct {
		name  string
		query string
		want  []Filter
	}{
		{
			name:  "like wraps the pattern",
			query: "filter[name][like]=bob",
			want:  []Filter{{"name", OpLike, "%bob%"}},
		},
		{
			name:  "integer eq coerces",
			query: "filter[age][eq]=30",
			want:  []Filter{{"age", OpEq, int64(30)}},
		},
		{
			name:  "float eq coerces",
			query: "filter[score][eq]=1.5",
			want:  []Filter{{"score", OpEq, 1.5}},
		},
		{
			name:  "boolean eq coerces",
			query: "filter[enabled][eq]=true",
			want:  []Filter{{"enabled", OpEq, true}},
		},
		{
			name:  "integer in splits and coerces",
			query: "filter[age][in]=1, 2,3",
			want:  []Filter{{"age", OpIn, []int64{1, 2, 3}}},
		},
		{
			name:  "text in splits and trims",
			query: "filter[name][in]=a, b ,c",
			want:  []Filter{{"name", OpIn, []string{"a", "b", "c"}}},
		},
		{
			name:  "bad element drops the whole in filter",
			query: "filter[age][in]=1,2,x&filter[name][eq]=bob",
			want:  []Filter{{"name", OpEq, "bob"}},
		},
		{
			name:  "empty value is absent",
			query: "filter[name][eq]=",
			want:  nil,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := url.ParseQuery(tc.query)
			require.NoError(t, err)

			filters, err := fs.Collect(values)
			require.NoError(t, err)
			assert.Equal(t, tc.want, filters)
		})
	}
}

func TestCollectTimestamp(t *testing.T) {
	fs := testFilterSet(t)

	values := url.Values{"filter[created_at][gte]": {"2024-01-02"}}
	filters, err := fs.Collect(values)
	require.NoError(t, err)
	require.Len(t, filters, 1)

	ts, ok := filters[0].Value.(time.Time)
	require.True(t, ok)
	assert.Equal(t, 2024, ts.Year())
}

func TestCollectOrderIndependence(t *testing.T) {
	fs := testFilterSet(t)

	a, err := url.ParseQuery("filter[name][eq]=bob&filter[age][eq]=30")
	require.NoError(t, err)
	b, err := url.ParseQuery("filter[age][eq]=30&filter[name][eq]=bob")
	require.NoError(t, err)

	filtersA, err := fs.Collect(a)
	require.NoError(t, err)
	filtersB, err := fs.Collect(b)
	require.NoError(t, err)

	assert.Equal(t, filtersA, filtersB)
}

func TestCollectRejectsUnknownFilterKeys(t *testing.T) {
	fs := testFilterSet(t)

	testCases := []struct {
		name  string
		query string
	}{
		{name: "unknown column", query: "filter[missing][eq]=1"},
		{name: "operator not permitted for type", query: "filter[age][like]=1"},
		{name: "operator not permitted for audit column", query: "filter[status_id][eq]=active"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values, err := url.ParseQuery(tc.query)
			require.NoError(t, err)

			_, err = fs.Collect(values)
			assert.ErrorIs(t, err, ErrInvalidParam)
		})
	}

	// non-filter parameters pass through untouched
	values, err := url.ParseQuery("page=2&sort=name&status=active")
	require.NoError(t, err)
	filters, err := fs.Collect(values)
	require.NoError(t, err)
	assert.Empty(t, filters)
}

func TestCollectRejectsMalformedScalars(t *testing.T) {
	fs := testFilterSet(t)

	for _, query := range []string{
		"filter[age][eq]=abc",
		"filter[score][eq]=1.2.3",
		"filter[enabled][eq]=maybe",
		"filter[created_at][gte]=not-a-date",
	} {
		values, err := url.ParseQuery(query)
		require.NoError(t, err)

		_, err = fs.Collect(values)
		assert.ErrorIs(t, err, ErrInvalidParam, query)
	}
}
