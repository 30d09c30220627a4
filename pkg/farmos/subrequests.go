package farmos

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/hashicorp/go-multierror"
)

// Action is the kind of operation a subrequest performs.
type Action string

// Subrequest actions understood by the Drupal subrequests module.
const (
	ActionView     Action = "view"
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionReplace  Action = "replace"
	ActionDelete   Action = "delete"
	ActionExists   Action = "exists"
	ActionDiscover Action = "discover"
	ActionNoop     Action = "noop"
)

// Format selects how the subrequests endpoint answers.
type Format string

// Subrequests response formats.
const (
	FormatJSON Format = "json"
	FormatHTML Format = "html"
)

// Subrequest is one request of a blueprint. Either URI or Endpoint must be
// set; Endpoint is a path relative to the server and is turned into a URI
// when the blueprint is sent.
type Subrequest struct {
	RequestID string            `json:"requestId,omitempty" yaml:"requestId,omitempty"`
	Action    Action            `json:"action"              yaml:"action"`
	URI       string            `json:"uri,omitempty"       yaml:"uri,omitempty"`
	Endpoint  string            `json:"endpoint,omitempty"  yaml:"endpoint,omitempty"`
	Body      any               `json:"body,omitempty"      yaml:"body,omitempty"`
	Headers   map[string]string `json:"headers,omitempty"   yaml:"headers,omitempty"`
	WaitFor   []string          `json:"waitFor,omitempty"   yaml:"waitFor,omitempty"`
}

// Validate checks the action and that a target is set.
func (s Subrequest) Validate() error {
	err := validation.ValidateStruct(&s,
		validation.Field(&s.Action, validation.Required, validation.In(
			ActionView, ActionCreate, ActionUpdate, ActionReplace,
			ActionDelete, ActionExists, ActionDiscover, ActionNoop,
		)),
		validation.Field(&s.URI, validation.When(s.Endpoint == "",
			validation.Required.ErrorObject(validation.NewError("validation_uri_or_endpoint", ErrURIOrEndpointRequired.Error())),
		)),
	)
	if err != nil {
		return fmt.Errorf("invalid subrequest %q: %w", s.RequestID, err)
	}

	return nil
}

// Blueprint is an ordered list of subrequests sent in one call.
type Blueprint []Subrequest

// Validate validates every subrequest and reports all failures together.
func (b Blueprint) Validate() error {
	var result *multierror.Error

	for i := range b {
		err := b[i].Validate()
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("subrequest %d: %w", i, err))
		}
	}

	return result.ErrorOrNil()
}

// Subresponse is one entry of a subrequests JSON response.
type Subresponse struct {
	Headers map[string]HeaderValues `json:"headers" yaml:"headers"`
	Body    string                  `json:"body"    yaml:"body"`
}

// HeaderValues are the values of one subresponse header. The server may
// send them as strings or numbers, listed or alone; they are kept as
// strings.
type HeaderValues []string

// UnmarshalJSON accepts a string, a number, or a list of either.
func (h *HeaderValues) UnmarshalJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var raw any

	err := decoder.Decode(&raw)
	if err != nil {
		return fmt.Errorf("failed to decode header values: %w", err)
	}

	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}

	values := make(HeaderValues, 0, len(items))

	for _, item := range items {
		if item != nil {
			values = append(values, stringify(item))
		}
	}

	*h = values

	return nil
}

// Status returns the HTTP status of the subresponse, or 0 when absent.
func (s Subresponse) Status() int {
	for key, values := range s.Headers {
		if !strings.EqualFold(key, "status") || len(values) == 0 {
			continue
		}

		status, err := strconv.Atoi(values[0])
		if err == nil {
			return status
		}
	}

	return 0
}

// Success reports a 2xx status.
func (s Subresponse) Success() bool {
	status := s.Status()

	return status >= http.StatusOK && status < http.StatusMultipleChoices
}

// Decode unmarshals the body, which the server sends as a JSON string.
func (s Subresponse) Decode(v any) error {
	err := json.Unmarshal([]byte(s.Body), v)
	if err != nil {
		return fmt.Errorf("failed to decode subresponse body: %w", err)
	}

	return nil
}

// Record decodes the body's "data" member.
func (s Subresponse) Record() (Record, error) {
	var doc struct {
		Data Record `json:"data"`
	}

	err := s.Decode(&doc)
	if err != nil {
		return nil, err
	}

	return doc.Data, nil
}

// SubrequestsResult is the outcome of sending a blueprint.
type SubrequestsResult struct {
	Format Format `json:"format" yaml:"format"`
	// Responses is keyed by request id. Requests that fan out over a
	// previous response get keys such as "create-asset#body{0}".
	Responses map[string]Subresponse `json:"responses,omitempty" yaml:"responses,omitempty"`
	// Raw holds the undecoded body; it is the only content for FormatHTML.
	Raw []byte `json:"-" yaml:"-"`
}

// Find returns the responses for requestID, including fanned out ones, in key order.
func (r *SubrequestsResult) Find(requestID string) []Subresponse {
	keys := make([]string, 0)

	for key := range r.Responses {
		if key == requestID || strings.HasPrefix(key, requestID+"#") {
			keys = append(keys, key)
		}
	}

	sort.Strings(keys)

	out := make([]Subresponse, 0, len(keys))
	for _, key := range keys {
		out = append(out, r.Responses[key])
	}

	return out
}

// Err collects every non-2xx subresponse into one error.
func (r *SubrequestsResult) Err() error {
	var result *multierror.Error

	keys := make([]string, 0, len(r.Responses))
	for key := range r.Responses {
		keys = append(keys, key)
	}

	sort.Strings(keys)

	for _, key := range keys {
		response := r.Responses[key]
		if response.Success() {
			continue
		}

		status := response.Status()
		if status == 0 {
			result = multierror.Append(result, fmt.Errorf("%s: %w", key, ErrMissingStatus))

			continue
		}

		result = multierror.Append(result, fmt.Errorf("%s: %w", key, ParseResponseError(status, []byte(response.Body))))
	}

	return result.ErrorOrNil()
}
