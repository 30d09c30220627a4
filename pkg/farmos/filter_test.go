package farmos_test

import (
	"testing"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/stretchr/testify/assert"
)

type status string

func (s status) String() string { return "status:" + string(s) }

func TestFilter(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		path     string
		value    any
		operator farmos.Operator
		expected farmos.Filters
	}{
		{
			name:     "equality",
			path:     "status",
			value:    "done",
			operator: farmos.OpEqual,
			expected: farmos.Filters{"filter[status]": {"done"}},
		},
		{
			name:     "empty operator is equality",
			path:     "name",
			value:    "Mow",
			expected: farmos.Filters{"filter[name]": {"Mow"}},
		},
		{
			name:     "condition",
			path:     "timestamp",
			value:    1700000000,
			operator: farmos.OpGreaterEqual,
			expected: farmos.Filters{
				"filter[timestamp_>=][condition][path]":     {"timestamp"},
				"filter[timestamp_>=][condition][operator]": {">="},
				"filter[timestamp_>=][condition][value]":    {"1700000000"},
			},
		},
		{
			name:     "array valued",
			path:     "type",
			value:    []string{"seeding", "harvest"},
			operator: farmos.OpIn,
			expected: farmos.Filters{
				"filter[type_in][condition][path]":     {"type"},
				"filter[type_in][condition][operator]": {"IN"},
				"filter[type_in][condition][value][]":  {"seeding", "harvest"},
			},
		},
		{
			name:     "numeric slice",
			path:     "quantity",
			value:    []int{1, 5},
			operator: farmos.OpBetween,
			expected: farmos.Filters{
				"filter[quantity_between][condition][path]":     {"quantity"},
				"filter[quantity_between][condition][operator]": {"BETWEEN"},
				"filter[quantity_between][condition][value][]":  {"1", "5"},
			},
		},
		{
			name:     "no value",
			path:     "notes",
			operator: farmos.OpIsNull,
			expected: farmos.Filters{
				"filter[notes_is null][condition][path]":     {"notes"},
				"filter[notes_is null][condition][operator]": {"IS NULL"},
			},
		},
		{
			name:     "stringer",
			path:     "flag",
			value:    status("priority"),
			expected: farmos.Filters{"filter[flag]": {"status:priority"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, farmos.Filter(tt.path, tt.value, tt.operator))
		})
	}
}

func TestAnd(t *testing.T) {
	t.Parallel()

	base := farmos.Filter("status", "pending", farmos.OpEqual)

	merged := farmos.And(
		base,
		farmos.Filter("status", "done", farmos.OpEqual),
		farmos.Sort("-timestamp", "name"),
		farmos.Include("asset"),
		farmos.PageLimit(25),
	)

	assert.Equal(t, farmos.Filters{
		"filter[status]": {"done"},
		"sort":           {"-timestamp,name"},
		"include":        {"asset"},
		"page[limit]":    {"25"},
	}, merged)
	assert.Equal(t, farmos.Filters{"filter[status]": {"pending"}}, base)
}

func TestMergeFilters(t *testing.T) {
	t.Parallel()

	base := farmos.Filters{"a": {"1"}, "b": {"2"}}
	override := farmos.Filters{"b": {"3"}}

	merged := farmos.MergeFilters(base, override)
	assert.Equal(t, farmos.Filters{"a": {"1"}, "b": {"3"}}, merged)

	merged["a"][0] = "changed"
	assert.Equal(t, "1", base["a"][0])

	assert.Empty(t, farmos.MergeFilters(nil, nil))
}
