package farmos

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// Operator is a JSONAPI filter condition operator.
type Operator string

// Operators accepted by the Drupal JSONAPI filter condition syntax.
const (
	OpEqual        Operator = "="
	OpNotEqual     Operator = "<>"
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpStartsWith   Operator = "STARTS_WITH"
	OpContains     Operator = "CONTAINS"
	OpEndsWith     Operator = "ENDS_WITH"
	OpIn           Operator = "IN"
	OpNotIn        Operator = "NOT IN"
	OpBetween      Operator = "BETWEEN"
	OpNotBetween   Operator = "NOT BETWEEN"
	OpIsNull       Operator = "IS NULL"
	OpIsNotNull    Operator = "IS NOT NULL"
)

// arrayValued operators take their value as "value[]".
func (o Operator) arrayValued() bool {
	switch o {
	case OpIn, OpNotIn, OpGreater, OpLess, OpNotEqual, OpBetween:
		return true
	default:
		return false
	}
}

// Filter builds the query parameters for one JSONAPI filter. Equality
// needs a single "filter[path]" parameter; any other operator produces a
// condition under "filter[{path}_{operator}][condition]". Two filters on
// the same path with the same operator share that key, so merging them
// keeps only the later one.
func Filter(path string, value any, operator Operator) Filters {
	values := filterValues(value)

	if operator == "" || operator == OpEqual {
		return Filters{fmt.Sprintf("filter[%s]", path): values}
	}

	base := fmt.Sprintf("filter[%s_%s][condition]", path, strings.ToLower(string(operator)))

	valueKey := base + "[value]"
	if operator.arrayValued() {
		valueKey += "[]"
	}

	filters := Filters{
		base + "[path]":     {path},
		base + "[operator]": {string(operator)},
	}

	if len(values) > 0 {
		filters[valueKey] = values
	}

	return filters
}

// And merges filters left to right.
func And(filters ...Filters) Filters {
	out := Filters{}
	for _, f := range filters {
		out = MergeFilters(out, f)
	}

	return out
}

// Sort adds a JSONAPI sort parameter. Prefix a field with "-" for descending order.
func Sort(fields ...string) Filters {
	return Filters{"sort": {strings.Join(fields, ",")}}
}

// Include asks the server to embed related records.
func Include(paths ...string) Filters {
	return Filters{"include": {strings.Join(paths, ",")}}
}

// PageLimit sets the JSONAPI page size.
func PageLimit(limit int) Filters {
	return Filters{"page[limit]": {strconv.Itoa(limit)}}
}

func filterValues(value any) []string {
	if value == nil {
		return nil
	}

	switch typed := value.(type) {
	case string:
		return []string{typed}
	case []string:
		return append([]string(nil), typed...)
	case fmt.Stringer:
		return []string{typed.String()}
	}

	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]string, 0, rv.Len())
		for i := range rv.Len() {
			out = append(out, fmt.Sprint(rv.Index(i).Interface()))
		}

		return out
	}

	return []string{fmt.Sprint(value)}
}
