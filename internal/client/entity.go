package client

import (
	"context"

	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// EntityClient binds a farmos.ResourceAPI to one entity type. An empty
// bundle falls back to defaultBundle.
type EntityClient struct {
	api           farmos.ResourceAPI
	entityType    string
	defaultBundle string
}

// NewEntityClient creates an accessor for entityType.
func NewEntityClient(api farmos.ResourceAPI, entityType, defaultBundle string) *EntityClient {
	return &EntityClient{
		api:           api,
		entityType:    entityType,
		defaultBundle: defaultBundle,
	}
}

// EntityType returns the bound entity type.
func (c *EntityClient) EntityType() string {
	return c.entityType
}

// Get fetches one page.
func (c *EntityClient) Get(ctx context.Context, bundle string, filters farmos.Filters) (*farmos.Page, error) {
	return c.api.Get(ctx, c.entityType, c.bundle(bundle), filters)
}

// GetID fetches one record.
func (c *EntityClient) GetID(ctx context.Context, bundle, id string, filters farmos.Filters) (farmos.Record, error) {
	return c.api.GetID(ctx, c.entityType, c.bundle(bundle), id, filters)
}

// Iterate walks every matching record.
func (c *EntityClient) Iterate(ctx context.Context, bundle string, filters farmos.Filters) *farmos.Iterator {
	return c.api.Iterate(ctx, c.entityType, c.bundle(bundle), filters)
}

// Send creates or updates a record.
func (c *EntityClient) Send(ctx context.Context, bundle string, payload farmos.Record) (farmos.Record, error) {
	return c.api.Send(ctx, c.entityType, c.bundle(bundle), payload)
}

// Delete removes a record.
func (c *EntityClient) Delete(ctx context.Context, bundle, id string) (*farmos.Response, error) {
	return c.api.Delete(ctx, c.entityType, c.bundle(bundle), id)
}

func (c *EntityClient) bundle(bundle string) string {
	if bundle == "" {
		return c.defaultBundle
	}

	return bundle
}
