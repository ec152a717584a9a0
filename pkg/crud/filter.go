package crud

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Filter is one (column, operator, value) constraint collected from the
// query string. Value is already coerced to the column's native type; for
// OpIn it is a []string or []int64, for OpLike the %-wrapped pattern.
type Filter struct {
	Column string
	Op     Operator
	Value  any
}

// paramSpec is one synthesized filter parameter. The table of specs is
// built once per resource at registration time and shared read-only across
// requests.
type paramSpec struct {
	column string
	op     Operator
	key    string // external query-string key: filter[column][operator]
	native NativeType
}

// FilterSet holds the synthesized filter parameters of one descriptor and
// collects the provided subset into Filter values at request time.
type FilterSet struct {
	params []paramSpec
	keys   map[string]int // key -> params index
}

// NewFilterSet synthesizes one optional query parameter per
// (column, permitted operator) pair of the descriptor.
func NewFilterSet(d *Descriptor) *FilterSet {
	fs := &FilterSet{keys: make(map[string]int)}

	for _, column := range d.FilterableColumns() {
		tag, _ := d.TypeOf(column)
		for _, op := range OperatorsFor(tag) {
			spec := paramSpec{
				column: column,
				op:     op,
				key:    FilterKey(column, op),
				native: NativeTypeFor(tag),
			}
			fs.keys[spec.key] = len(fs.params)
			fs.params = append(fs.params, spec)
		}
	}

	return fs
}

// FilterKey returns the external query-string key for a column/operator pair.
func FilterKey(column string, op Operator) string {
	return fmt.Sprintf("filter[%s][%s]", column, op)
}

// Params returns the external keys of all synthesized parameters, in
// column-declaration order.
func (fs *FilterSet) Params() []string {
	keys := make([]string, len(fs.params))
	for i, p := range fs.params {
		keys[i] = p.key
	}
	return keys
}

// Collect gathers the provided filter parameters into an ordered Filter
// list. The result depends only on which parameters are present, not on
// their order in the query string.
//
// A filter[...] key that does not correspond to any synthesized parameter
// (unknown column or operator not permitted for the column's type) is
// rejected with ErrInvalidParam. Malformed elements of an "in" list drop
// the whole filter silently; malformed scalar values are ErrInvalidParam.
func (fs *FilterSet) Collect(values url.Values) ([]Filter, error) {
	for key := range values {
		if !strings.HasPrefix(key, "filter[") {
			continue
		}
		if _, ok := fs.keys[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidParam, key)
		}
	}

	var filters []Filter
	for _, spec := range fs.params {
		raw := values.Get(spec.key)
		if raw == "" {
			continue
		}

		switch spec.op {
		case OpLike:
			filters = append(filters, Filter{spec.column, OpLike, "%" + raw + "%"})
		case OpIn:
			value, ok := coerceList(raw, spec.native)
			if !ok {
				continue // lenient-ignore: drop the whole filter
			}
			filters = append(filters, Filter{spec.column, OpIn, value})
		default:
			value, err := coerceScalar(raw, spec.native)
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidParam, spec.key, err)
			}
			filters = append(filters, Filter{spec.column, spec.op, value})
		}
	}

	return filters, nil
}

// coerceList splits a comma-separated list, trims each element and coerces
// integers when the column is integer-typed. Any unparseable element
// invalidates the whole list.
func coerceList(raw string, native NativeType) (any, bool) {
	parts := strings.Split(raw, ",")

	if native == NativeInt {
		ints := make([]int64, 0, len(parts))
		for _, part := range parts {
			n, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return nil, false
			}
			ints = append(ints, n)
		}
		return ints, true
	}

	strs := make([]string, 0, len(parts))
	for _, part := range parts {
		strs = append(strs, strings.TrimSpace(part))
	}
	return strs, true
}

// timestampFormats are accepted in order for timestamp-typed parameters.
var timestampFormats = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func coerceScalar(raw string, native NativeType) (any, error) {
	switch native {
	case NativeInt:
		return strconv.ParseInt(raw, 10, 64)
	case NativeFloat:
		return strconv.ParseFloat(raw, 64)
	case NativeBool:
		return strconv.ParseBool(raw)
	case NativeTime:
		var lastErr error
		for _, format := range timestampFormats {
			t, err := time.Parse(format, raw)
			if err == nil {
				return t, nil
			}
			lastErr = err
		}
		return nil, lastErr
	default:
		return raw, nil
	}
}
