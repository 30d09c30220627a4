package farmos

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// Record is a single farmOS record. JSONAPI records are resource objects
// (id, type, attributes, relationships); legacy records are flat objects.
type Record map[string]any

// ID returns the record id as a string. Legacy term records carry "tid".
func (r Record) ID() string {
	if id := r.IDField(); id != "" {
		return id
	}

	if value, ok := r["tid"]; ok && value != nil {
		return stringify(value)
	}

	return ""
}

// IDField returns the "id" member alone. Send tells an update from a
// create by it.
func (r Record) IDField() string {
	if value, ok := r["id"]; ok && value != nil {
		return stringify(value)
	}

	return ""
}

// Type returns the resource type, e.g. "log--activity".
func (r Record) Type() string {
	if value, ok := r["type"].(string); ok {
		return value
	}

	return ""
}

// Attributes returns the JSONAPI attributes object or nil.
func (r Record) Attributes() map[string]any {
	return object(r["attributes"])
}

// Relationships returns the JSONAPI relationships object or nil.
func (r Record) Relationships() map[string]any {
	return object(r["relationships"])
}

// object accepts nested objects built in code as Record and decoded ones as
// plain maps.
func object(value any) map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case Record:
		return typed
	default:
		return nil
	}
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}

	out, _ := cloneValue(map[string]any(r)).(map[string]any)

	return out
}

// Decode copies the record into v through its JSON form.
func (r Record) Decode(v any) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return fmt.Errorf("failed to decode record: %w", err)
	}

	return nil
}

func cloneValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, v := range typed {
			out[k] = cloneValue(v)
		}

		return out
	case Record:
		return Record(cloneValue(map[string]any(typed)).(map[string]any))
	case []any:
		out := make([]any, len(typed))
		for i, v := range typed {
			out[i] = cloneValue(v)
		}

		return out
	default:
		return value
	}
}

func stringify(value any) string {
	switch typed := value.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case json.Number:
		return typed.String()
	default:
		return fmt.Sprint(typed)
	}
}

// Links holds the navigation links of a page.
type Links struct {
	Self  string `json:"self,omitempty"  yaml:"self,omitempty"`
	First string `json:"first,omitempty" yaml:"first,omitempty"`
	Last  string `json:"last,omitempty"  yaml:"last,omitempty"`
	Next  string `json:"next,omitempty"  yaml:"next,omitempty"`
	Prev  string `json:"prev,omitempty"  yaml:"prev,omitempty"`
}

// Page is one page of records plus the cursor needed to fetch the next one.
type Page struct {
	Records  []Record       `json:"data"               yaml:"data"`
	Included []Record       `json:"included,omitempty" yaml:"included,omitempty"`
	Links    Links          `json:"links"              yaml:"links"`
	Meta     map[string]any `json:"meta,omitempty"     yaml:"meta,omitempty"`

	// PageIndex, FirstPage and LastPage are the zero based legacy page
	// numbers parsed from the self, first and last links. They are -1 when
	// the server did not report them.
	PageIndex int `json:"page,omitempty"       yaml:"page,omitempty"`
	FirstPage int `json:"first_page,omitempty" yaml:"first_page,omitempty"`
	LastPage  int `json:"last_page,omitempty"  yaml:"last_page,omitempty"`

	// NextCursor is opaque to callers. Empty means this is the final page.
	NextCursor string `json:"-" yaml:"-"`
}

// HasNext reports whether another page follows this one.
func (p *Page) HasNext() bool {
	return p != nil && p.NextCursor != ""
}

// Response is a raw HTTP response returned by operations that do not decode a body.
type Response struct {
	StatusCode int         `json:"status_code" yaml:"status_code"`
	Headers    http.Header `json:"headers"     yaml:"headers"`
	Body       []byte      `json:"-"           yaml:"-"`
	// Error is set for interceptors when the request failed before a response arrived.
	Error error `json:"-" yaml:"-"`
}

// Filters are the query parameters of a resource request.
type Filters = url.Values

// MergeFilters returns base overlaid with override. Keys present in override win.
func MergeFilters(base, override Filters) Filters {
	out := Filters{}

	for key, values := range base {
		out[key] = append([]string(nil), values...)
	}

	for key, values := range override {
		out[key] = append([]string(nil), values...)
	}

	return out
}
