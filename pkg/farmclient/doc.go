// Package farmclient provides the primary entry point for constructing a
// farmOS client that implements the farmos.Client interface.
//
// It layers hostname normalisation, session selection and authentication
// on top of the resource interfaces and types defined in the farmos
// package. Most applications import farmclient to build a client and then
// use the returned farmos.Client to reach the resource accessors, for
// example Log(), Asset(), Term() and Area().
//
// Quick start
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
//
//	  // farmOS 2.x with the OAuth2 password grant.
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
//
//	  // farmOS 1.x with the Drupal login form.
//	  legacy, err := farmclient.NewLegacy(ctx, "farm.example.com", "farmer", "secret")
//	  if err != nil { log.Fatal(err) }
//	  _ = legacy
//	}
//
// # Hostnames
//
// A hostname without a scheme gets "https://". Trailing slashes are
// removed. Plain "http://" is kept for local servers.
//
// # Helpers
//
// NewWithToken, NewWithPassword, NewWithAuthorizationCode and NewLegacy
// wrap New with the matching configuration.
package farmclient
