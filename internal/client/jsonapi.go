package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/fivetwenty-io/farmos/internal/constants"
	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/internal/session"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// JSONAPIResources implements farmos.ResourceAPI against the farmOS 2.x
// JSONAPI endpoints under /api.
type JSONAPIResources struct {
	session session.Session
	filters farmos.Filters
	logger  farmos.Logger
}

// NewJSONAPIResources creates a JSONAPI accessor.
func NewJSONAPIResources(s session.Session, logger farmos.Logger) *JSONAPIResources {
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	return &JSONAPIResources{
		session: s,
		filters: farmos.Filters{},
		logger:  logger,
	}
}

// WithFilters returns a copy whose requests always carry filters. Filters
// passed to a call take precedence.
func (r *JSONAPIResources) WithFilters(filters farmos.Filters) *JSONAPIResources {
	return &JSONAPIResources{
		session: r.session,
		filters: farmos.MergeFilters(r.filters, filters),
		logger:  r.logger,
	}
}

// Get fetches one page of a bundle.
func (r *JSONAPIResources) Get(ctx context.Context, entityType, bundle string, filters farmos.Filters) (*farmos.Page, error) {
	path := farmos.ResourceEndpoint(entityType, bundleOrEntity(entityType, bundle), "")

	return r.fetch(ctx, path, farmos.MergeFilters(r.filters, filters))
}

// GetID fetches one record. filters adds query parameters such as include.
func (r *JSONAPIResources) GetID(ctx context.Context, entityType, bundle, id string, filters farmos.Filters) (farmos.Record, error) {
	if id == "" {
		return nil, farmos.ErrIDRequired
	}

	path := farmos.ResourceEndpoint(entityType, bundleOrEntity(entityType, bundle), id)

	resp, err := r.session.Do(ctx, &internalhttp.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  farmos.MergeFilters(r.filters, filters),
	}, false)
	if err != nil {
		return nil, notFound(err, path)
	}

	var doc struct {
		Data farmos.Record `json:"data"`
	}

	err = internalhttp.DecodeJSON(resp, &doc)
	if err != nil {
		return nil, err
	}

	if doc.Data == nil {
		return nil, fmt.Errorf("%w: %s", farmos.ErrNotFound, path)
	}

	return doc.Data, nil
}

// Iterate walks every page by following links.next.
func (r *JSONAPIResources) Iterate(ctx context.Context, entityType, bundle string, filters farmos.Filters) *farmos.Iterator {
	return farmos.NewIterator(ctx, func(ctx context.Context, cursor string) (*farmos.Page, error) {
		if cursor == "" {
			return r.Get(ctx, entityType, bundle, filters)
		}

		return r.fetch(ctx, cursor, nil)
	})
}

// Send creates the record with POST, or updates it with PATCH when the
// payload has an id. The payload is not modified.
func (r *JSONAPIResources) Send(ctx context.Context, entityType, bundle string, payload farmos.Record) (farmos.Record, error) {
	bundle = bundleOrEntity(entityType, bundle)

	data := payload.Clone()
	if data == nil {
		data = farmos.Record{}
	}

	data["type"] = farmos.ResourceType(entityType, bundle)

	id := data.IDField()

	req := &internalhttp.Request{
		Method:  http.MethodPost,
		Path:    farmos.ResourceEndpoint(entityType, bundle, ""),
		Body:    map[string]any{"data": data},
		Headers: map[string]string{constants.HeaderContentType: constants.MediaTypeJSONAPI},
	}

	if id != "" {
		req.Method = http.MethodPatch
		req.Path = farmos.ResourceEndpoint(entityType, bundle, id)

		r.logger.Debug("Updating record", map[string]interface{}{"id": id, "type": data.Type()})
	} else {
		r.logger.Debug("Creating record", map[string]interface{}{"type": data.Type()})
	}

	resp, err := r.session.Do(ctx, req, false)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Data farmos.Record `json:"data"`
	}

	err = internalhttp.DecodeJSON(resp, &doc)
	if err != nil {
		return nil, err
	}

	return doc.Data, nil
}

// Delete removes one record.
func (r *JSONAPIResources) Delete(ctx context.Context, entityType, bundle, id string) (*farmos.Response, error) {
	if id == "" {
		return nil, farmos.ErrIDRequired
	}

	r.logger.Debug("Deleting record", map[string]interface{}{"id": id, "entity_type": entityType})

	resp, err := r.session.Do(ctx, &internalhttp.Request{
		Method: http.MethodDelete,
		Path:   farmos.ResourceEndpoint(entityType, bundleOrEntity(entityType, bundle), id),
	}, false)

	return resp.ToFarmOS(), err
}

func (r *JSONAPIResources) fetch(ctx context.Context, path string, query farmos.Filters) (*farmos.Page, error) {
	resp, err := r.session.Do(ctx, &internalhttp.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	}, false)
	if err != nil {
		return nil, err
	}

	var doc jsonapiDocument

	err = internalhttp.DecodeJSON(resp, &doc)
	if err != nil {
		return nil, err
	}

	return doc.page()
}

// jsonapiDocument is a top level JSONAPI document.
type jsonapiDocument struct {
	Data     json.RawMessage            `json:"data"`
	Included []farmos.Record            `json:"included"`
	Links    map[string]json.RawMessage `json:"links"`
	Meta     map[string]any             `json:"meta"`
}

func (d *jsonapiDocument) page() (*farmos.Page, error) {
	page := &farmos.Page{
		Records:   make([]farmos.Record, 0),
		Included:  d.Included,
		Meta:      d.Meta,
		PageIndex: -1,
		FirstPage: -1,
		LastPage:  -1,
		Links: farmos.Links{
			Self:  linkHref(d.Links["self"]),
			First: linkHref(d.Links["first"]),
			Last:  linkHref(d.Links["last"]),
			Next:  linkHref(d.Links["next"]),
			Prev:  linkHref(d.Links["prev"]),
		},
	}

	if len(d.Data) > 0 && string(d.Data) != "null" {
		err := json.Unmarshal(d.Data, &page.Records)
		if err != nil {
			var single farmos.Record

			if json.Unmarshal(d.Data, &single) != nil {
				return nil, fmt.Errorf("failed to decode JSONAPI data: %w", err)
			}

			page.Records = []farmos.Record{single}
		}
	}

	if page.Links.Next != "" {
		page.NextCursor = pathAndQuery(page.Links.Next)
	}

	return page, nil
}

// linkHref reads a JSONAPI link, which is either a string or an object with an href.
func linkHref(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var href string
	if json.Unmarshal(raw, &href) == nil {
		return href
	}

	var link struct {
		Href string `json:"href"`
	}

	if json.Unmarshal(raw, &link) == nil {
		return link.Href
	}

	return ""
}

// pathAndQuery strips the scheme and host from a link so that the next
// request is resolved against the session's own base URL.
func pathAndQuery(link string) string {
	parsed, err := url.Parse(link)
	if err != nil {
		return link
	}

	parsed.Scheme = ""
	parsed.Host = ""
	parsed.User = nil

	return parsed.String()
}

func bundleOrEntity(entityType, bundle string) string {
	if bundle == "" {
		return entityType
	}

	return bundle
}

// notFound maps a 404 response to farmos.ErrNotFound, keeping the response error.
func notFound(err error, path string) error {
	responseErr := &farmos.ResponseError{}
	if errors.As(err, &responseErr) && responseErr.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s: %w", farmos.ErrNotFound, path, err)
	}

	return err
}
