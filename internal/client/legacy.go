package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fivetwenty-io/farmos/internal/constants"
	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/internal/session"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// LegacyResources implements farmos.ResourceAPI against the farmOS 1.x
// restws endpoints ({entity}.json and {entity}/{id}.json).
type LegacyResources struct {
	session  session.Session
	filters  farmos.Filters
	idFilter string
	logger   farmos.Logger
}

// NewLegacyResources creates a legacy accessor.
func NewLegacyResources(s session.Session, logger farmos.Logger) *LegacyResources {
	if logger == nil {
		logger = farmos.NoopLogger{}
	}

	return &LegacyResources{
		session: s,
		filters: farmos.Filters{},
		logger:  logger,
	}
}

// WithFilters returns a copy whose requests always carry filters. Filters
// passed to a call take precedence.
func (r *LegacyResources) WithFilters(filters farmos.Filters) *LegacyResources {
	clone := *r
	clone.filters = farmos.MergeFilters(r.filters, filters)

	return &clone
}

// WithIDFilter returns a copy that looks records up by the key filter on
// the collection endpoint instead of {entity}/{id}.json. Areas are terms
// addressed by "tid".
func (r *LegacyResources) WithIDFilter(key string) *LegacyResources {
	clone := *r
	clone.idFilter = key

	return &clone
}

// Get fetches one page. bundle becomes the "type" filter, or "bundle" for
// taxonomy terms.
func (r *LegacyResources) Get(ctx context.Context, entityType, bundle string, filters farmos.Filters) (*farmos.Page, error) {
	return r.fetch(ctx, entityType, r.query(entityType, bundle, filters))
}

// GetID fetches one record. filters adds query parameters to the request.
func (r *LegacyResources) GetID(ctx context.Context, entityType, bundle, id string, filters farmos.Filters) (farmos.Record, error) {
	if id == "" {
		return nil, farmos.ErrIDRequired
	}

	if r.idFilter != "" {
		query := r.query(entityType, bundle, filters)
		query.Set(r.idFilter, id)

		page, err := r.fetch(ctx, entityType, query)
		if err != nil {
			return nil, err
		}

		if len(page.Records) == 0 {
			return nil, fmt.Errorf("%w: %s %s=%s", farmos.ErrNotFound, entityType, r.idFilter, id)
		}

		return page.Records[0], nil
	}

	path := entityType + "/" + id + constants.LegacyJSONSuffix

	resp, err := r.session.Do(ctx, &internalhttp.Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  filters,
	}, false)
	if err != nil {
		return nil, notFound(err, path)
	}

	var record farmos.Record

	err = internalhttp.DecodeJSON(resp, &record)
	if err != nil {
		return nil, err
	}

	if len(record) == 0 {
		return nil, fmt.Errorf("%w: %s", farmos.ErrNotFound, path)
	}

	return record, nil
}

// Iterate walks the pages until the page index reaches the last page.
func (r *LegacyResources) Iterate(ctx context.Context, entityType, bundle string, filters farmos.Filters) *farmos.Iterator {
	query := r.query(entityType, bundle, filters)

	return farmos.NewIterator(ctx, func(ctx context.Context, cursor string) (*farmos.Page, error) {
		pageQuery := farmos.MergeFilters(query, nil)
		if cursor != "" {
			pageQuery.Set(constants.LegacyPageParam, cursor)
		}

		return r.fetch(ctx, entityType, pageQuery)
	})
}

// Send creates the record with POST {entity}, or updates it with PUT
// {entity}/{id} when the payload has an id. The payload is not modified.
func (r *LegacyResources) Send(ctx context.Context, entityType, bundle string, payload farmos.Record) (farmos.Record, error) {
	data := payload.Clone()
	if data == nil {
		data = farmos.Record{}
	}

	id := data.IDField()
	delete(data, "id")

	req := &internalhttp.Request{
		Method: http.MethodPost,
		Path:   entityType,
		Body:   data,
	}

	if id != "" {
		req.Method = http.MethodPut
		req.Path = entityType + "/" + id
	}

	resp, err := r.session.Do(ctx, req, false)
	if err != nil {
		return nil, err
	}

	if len(resp.Body) == 0 {
		return farmos.Record{"id": id}, nil
	}

	var record farmos.Record

	err = internalhttp.DecodeJSON(resp, &record)
	if err != nil {
		return nil, err
	}

	if record.ID() == "" && id != "" {
		record["id"] = id
	}

	return record, nil
}

// Delete removes one record.
func (r *LegacyResources) Delete(ctx context.Context, entityType, _ string, id string) (*farmos.Response, error) {
	if id == "" {
		return nil, farmos.ErrIDRequired
	}

	resp, err := r.session.Do(ctx, &internalhttp.Request{
		Method: http.MethodDelete,
		Path:   entityType + "/" + id,
	}, false)

	return resp.ToFarmOS(), err
}

func (r *LegacyResources) query(entityType, bundle string, filters farmos.Filters) farmos.Filters {
	query := farmos.MergeFilters(r.filters, nil)

	if bundle != "" {
		key := constants.LegacyTypeFilter
		if entityType == constants.EntityTerm {
			key = constants.LegacyBundleFilter
		}

		query.Set(key, bundle)
	}

	return farmos.MergeFilters(query, filters)
}

func (r *LegacyResources) fetch(ctx context.Context, entityType string, query farmos.Filters) (*farmos.Page, error) {
	resp, err := r.session.Do(ctx, &internalhttp.Request{
		Method: http.MethodGet,
		Path:   entityType + constants.LegacyJSONSuffix,
		Query:  query,
	}, false)
	if err != nil {
		return nil, err
	}

	var doc legacyDocument

	err = internalhttp.DecodeJSON(resp, &doc)
	if err != nil {
		return nil, err
	}

	return doc.page(), nil
}

// legacyDocument is a restws collection response.
type legacyDocument struct {
	Self  string          `json:"self"`
	First string          `json:"first"`
	Last  string          `json:"last"`
	Next  string          `json:"next"`
	Prev  string          `json:"prev"`
	List  []farmos.Record `json:"list"`
}

func (d *legacyDocument) page() *farmos.Page {
	page := &farmos.Page{
		Records:   d.List,
		PageIndex: pageNumber(d.Self),
		FirstPage: pageNumber(d.First),
		LastPage:  pageNumber(d.Last),
		Links: farmos.Links{
			Self:  d.Self,
			First: d.First,
			Last:  d.Last,
			Next:  d.Next,
			Prev:  d.Prev,
		},
	}

	if page.Records == nil {
		page.Records = make([]farmos.Record, 0)
	}

	if page.PageIndex >= 0 && page.LastPage >= 0 && page.PageIndex < page.LastPage {
		page.NextCursor = strconv.Itoa(page.PageIndex + 1)
	}

	return page
}

// pageNumber reads the page query parameter of a restws link. A link
// without one is page 0; a missing link is -1.
func pageNumber(link string) int {
	if link == "" {
		return -1
	}

	parsed, err := url.Parse(link)
	if err != nil {
		return -1
	}

	value := parsed.Query().Get(constants.LegacyPageParam)
	if value == "" {
		return 0
	}

	page, err := strconv.Atoi(value)
	if err != nil {
		return -1
	}

	return page
}
