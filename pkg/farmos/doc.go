// Package farmos provides types, interfaces, and helpers for working with a
// farmOS server.
//
// # Overview
//
// The farmos package defines the record, page and token types and the
// interfaces of the resource clients (ResourceClient, ResourceAPI,
// SubrequestsClient). A concrete implementation is provided by the
// farmclient package, which wires configuration, transport and
// authentication for either the JSONAPI (farmOS 2.x) or the legacy
// (farmOS 1.x) API. Most consumers import farmclient to construct a client
// and then use the interfaces exposed here.
//
// Getting a client
//
//	import (
//	  "context"
//	  "log"
//
//	  "github.com/fivetwenty-io/farmos/pkg/farmclient"
//	  "github.com/fivetwenty-io/farmos/pkg/farmos"
//	)
//
//	func example() {
//	  ctx := context.Background()
//	  cli, err := farmclient.New(ctx, &farmos.Config{
//	    Hostname: "farm.example.com",
//	    Username: "farmer",
//	    Password: "secret",
//	  })
//	  if err != nil { log.Fatal(err) }
//
//	  page, err := cli.Log().Get(ctx, "activity", farmos.Filter("status", "done", farmos.OpEqual))
//	  if err != nil { log.Fatal(err) }
//	  _ = page
//	}
//
// # Filters and pagination
//
// Filter builds JSONAPI filter parameters; And, Sort, Include and PageLimit
// combine with it. Iterate walks every page lazily:
//
//	it := cli.Asset().Iterate(ctx, "animal", nil)
//	for record, err := range it.Seq() {
//	  if err != nil { break }
//	  _ = record
//	}
//
// # Subrequests
//
// BlueprintBuilder assembles a Blueprint that SubrequestsClient.Send posts
// in one call. WaitFor and "{{request.body@$.data.id}}" replacements chain
// requests on the server.
//
// # Errors
//
// ErrNotAuthenticated, ErrInvalidGrant, ErrInvalidClient, ErrInvalidScope and
// ErrNotFound are matched with errors.Is. Non-2xx responses are returned as
// *ResponseError; IsNotFound, IsUnauthorized and IsForbidden branch on the
// common cases.
//
// # Interceptors
//
// InterceptorChain hooks logging, static headers, rate limiting and
// Prometheus metrics into every HTTP request.
package farmos
