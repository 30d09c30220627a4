// Package session holds the authentication state of a farmOS connection and
// gates every request on it.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	internalhttp "github.com/fivetwenty-io/farmos/internal/http"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
)

// State is the authentication state of a session.
type State int

// Session states.
const (
	Unauthenticated State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Session is an authenticated connection to one farmOS server.
type Session interface {
	// Authenticate logs in with the configured credentials and probes the server.
	Authenticate(ctx context.Context) error
	// IsAuthenticated reports the last known state without a request.
	IsAuthenticated() bool
	// CheckAuthenticated probes the server and updates the state.
	CheckAuthenticated(ctx context.Context) (bool, error)
	// Do sends req. Unless force is set, an unauthenticated session fails
	// with farmos.ErrNotAuthenticated before any request is made.
	Do(ctx context.Context, req *internalhttp.Request, force bool) (*internalhttp.Response, error)
	State() State
	// Hostname returns the base URL of the server.
	Hostname() string
	// Token returns a copy of the OAuth token, nil for legacy sessions.
	Token() *farmos.Token
	// HasUserAccess reports whether the token grants the user_access scope.
	HasUserAccess() bool
	// ResolveURL returns the absolute URL of path on this server.
	ResolveURL(path string) (string, error)
}

// tracker is the mutex guarded state shared by both session kinds.
type tracker struct {
	mu    sync.RWMutex
	state State
}

func (t *tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.state
}

func (t *tracker) IsAuthenticated() bool {
	return t.State() == Authenticated
}

func (t *tracker) setState(state State) {
	t.mu.Lock()
	t.state = state
	t.mu.Unlock()
}

// sender issues one request for probe.
type sender func(ctx context.Context, req *internalhttp.Request) (*internalhttp.Response, error)

// probe GETs path through send and moves the tracker to Authenticated on 200
// and to Unauthenticated on any other status. Transport failures leave the
// state untouched.
func probe(ctx context.Context, send sender, t *tracker, path string) (bool, error) {
	resp, err := send(ctx, &internalhttp.Request{Method: http.MethodGet, Path: path})
	if err != nil {
		responseErr := &farmos.ResponseError{}
		if errors.As(err, &responseErr) {
			t.setState(Unauthenticated)

			return false, nil
		}

		return false, fmt.Errorf("authentication probe failed: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		t.setState(Unauthenticated)

		return false, nil
	}

	t.setState(Authenticated)

	return true, nil
}

// withHeader returns a copy of req with key set to value. The caller's
// request is left untouched.
func withHeader(req *internalhttp.Request, key, value string) *internalhttp.Request {
	out := *req
	out.Headers = make(map[string]string, len(req.Headers)+1)

	for k, v := range req.Headers {
		if http.CanonicalHeaderKey(k) != http.CanonicalHeaderKey(key) {
			out.Headers[k] = v
		}
	}

	out.Headers[key] = value

	return &out
}

func hasHeader(req *internalhttp.Request, key string) bool {
	for k := range req.Headers {
		if http.CanonicalHeaderKey(k) == http.CanonicalHeaderKey(key) {
			return true
		}
	}

	return false
}
