package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/farmos/internal/constants"
	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/internal/session"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// SubrequestsClient posts blueprints to the Drupal subrequests endpoint.
type SubrequestsClient struct {
	session session.Session
	logger  farmos.Logger
}

// NewSubrequestsClient creates a subrequests client.
func NewSubrequestsClient(s session.Session, logger farmos.Logger) *SubrequestsClient {
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	return &SubrequestsClient{session: s, logger: logger}
}

// wireSubrequest is the serialized form of a subrequest: the body travels
// as a JSON encoded string and the endpoint is folded into the uri.
type wireSubrequest struct {
	RequestID string            `json:"requestId,omitempty"`
	Action    farmos.Action     `json:"action"`
	URI       string            `json:"uri"`
	Body      string            `json:"body,omitempty"`
	Headers   map[string]string `json:"headers"`
	WaitFor   []string          `json:"waitFor,omitempty"`
}

// Send validates and sends blueprint. With FormatJSON the response is
// decoded per request id; with FormatHTML only Raw is set. The caller's
// blueprint is not modified.
func (c *SubrequestsClient) Send(ctx context.Context, blueprint farmos.Blueprint, format farmos.Format) (*farmos.SubrequestsResult, error) {
	if format == "" {
		format = farmos.FormatJSON
	}

	if format != farmos.FormatJSON && format != farmos.FormatHTML {
		return nil, fmt.Errorf("%w: %s", farmos.ErrUnsupportedFormat, format)
	}

	err := blueprint.Validate()
	if err != nil {
		return nil, err //nolint:wrapcheck // multierror lists every invalid subrequest
	}

	wire := make([]wireSubrequest, 0, len(blueprint))

	for i := range blueprint {
		sub, err := c.normalize(blueprint[i])
		if err != nil {
			return nil, fmt.Errorf("subrequest %d: %w", i, err)
		}

		wire = append(wire, sub)
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blueprint: %w", err)
	}

	query := url.Values{}
	if format == farmos.FormatJSON {
		query.Set(constants.SubrequestsFormat, string(farmos.FormatJSON))
	}

	c.logger.Debug("Sending subrequests", map[string]interface{}{
		"count":  len(wire),
		"format": string(format),
	})

	resp, err := c.session.Do(ctx, &internalhttp.Request{
		Method:  http.MethodPost,
		Path:    constants.APIPathSubrequests,
		Query:   query,
		RawBody: raw,
		Headers: map[string]string{constants.HeaderContentType: constants.MediaTypeJSON},
	}, false)
	if err != nil {
		return nil, err
	}

	result := &farmos.SubrequestsResult{Format: format, Raw: resp.Body}
	if format == farmos.FormatHTML {
		return result, nil
	}

	err = internalhttp.DecodeJSON(resp, &result.Responses)
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (c *SubrequestsClient) normalize(sub farmos.Subrequest) (wireSubrequest, error) {
	out := wireSubrequest{
		RequestID: sub.RequestID,
		Action:    sub.Action,
		URI:       sub.URI,
		WaitFor:   sub.WaitFor,
		Headers:   make(map[string]string, len(sub.Headers)+2), //nolint:mnd // Accept and Content-Type
	}

	if out.URI == "" {
		uri, err := c.session.ResolveURL(sub.Endpoint)
		if err != nil {
			return out, err
		}

		out.URI = uri
	}

	for key, value := range sub.Headers {
		out.Headers[key] = value
	}

	if sub.Body != nil {
		body, err := encodeSubrequestBody(sub.Body)
		if err != nil {
			return out, err
		}

		out.Body = body
	}

	setDefaultHeader(out.Headers, constants.HeaderAccept, constants.MediaTypeJSONAPI)

	if out.Body != "" {
		setDefaultHeader(out.Headers, constants.HeaderContentType, constants.MediaTypeJSONAPI)
	}

	return out, nil
}

func encodeSubrequestBody(body any) (string, error) {
	switch typed := body.(type) {
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case json.RawMessage:
		return string(typed), nil
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", farmos.ErrBodyNotSerializable, err)
	}

	return string(data), nil
}

// setDefaultHeader sets key unless the caller already set it in any case.
func setDefaultHeader(headers map[string]string, key, value string) {
	for existing := range headers {
		if http.CanonicalHeaderKey(existing) == http.CanonicalHeaderKey(key) {
			return
		}
	}

	headers[key] = value
}
