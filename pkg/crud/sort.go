package crud

import "strings"

// Direction is a sort order.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// SortKey is a single (column, direction) ordering instruction.
type SortKey struct {
	Column    string
	Direction Direction
}

// ParseSort parses a comma-separated sort directive string into ordered
// sort keys: "a,-b,c" sorts by a ascending, then b descending, then c
// ascending. Empty tokens and a bare "-" are dropped. Repeated columns are
// kept as-is; the redundant keys are harmless.
func ParseSort(sort string) []SortKey {
	if strings.TrimSpace(sort) == "" {
		return nil
	}

	var keys []SortKey
	for _, token := range strings.Split(sort, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		direction := Asc
		if strings.HasPrefix(token, "-") {
			direction = Desc
			token = strings.TrimSpace(token[1:])
			if token == "" {
				continue
			}
		}

		keys = append(keys, SortKey{Column: token, Direction: direction})
	}

	return keys
}
