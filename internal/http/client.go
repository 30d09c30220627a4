// Package http is the transport shared by every farmOS session: URL
// building, default headers, opt-in retries and the POST/PUT redirect rule.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/elnormous/contenttype"
	"github.com/fivetwenty-io/farmos/internal/constants"
	"github.com/fivetwenty-io/farmos/pkg/farmos"
	"github.com/hashicorp/go-retryablehttp"
)

const maxRedirects = 10

var (
	errTooManyRedirects = errors.New("stopped after too many redirects")
	htmlMediaType       = contenttype.NewMediaType(constants.MediaTypeHTML)
)

// TokenSource supplies the bearer token sent with every request.
type TokenSource interface {
	GetToken(ctx context.Context) (string, error)
}

// Request describes one call. Path is joined to the base URL unless it is
// absolute. At most one of Body, Form and RawBody is used, in that order
// of precedence: RawBody, Form, Body.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Headers map[string]string
	// Body is encoded as JSON.
	Body interface{}
	// Form is sent url encoded.
	Form url.Values
	// RawBody is sent as is with the caller's Content-Type header.
	RawBody []byte
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	// URL is the URL that produced this response, after redirects.
	URL string
}

// Client is the farmOS HTTP transport.
type Client struct {
	baseURL      *url.URL
	httpClient   *retryablehttp.Client
	tokenSource  TokenSource
	logger       farmos.Logger
	debug        bool
	userAgent    string
	interceptors *farmos.InterceptorChain
}

// Option configures a Client.
type Option func(*Client)

// WithLogger sets the logger.
func WithLogger(logger farmos.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
			c.httpClient.Logger = leveledLogger{logger: logger}
		}
	}
}

// WithDebug enables request and response logging.
func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.userAgent = userAgent
		}
	}
}

// WithRetryConfig enables retries of 5xx, 429 and connection errors.
func WithRetryConfig(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.httpClient.RetryMax = maxRetries

		if waitMin > 0 {
			c.httpClient.RetryWaitMin = waitMin
		}

		if waitMax > 0 {
			c.httpClient.RetryWaitMax = waitMax
		}
	}
}

// WithHTTPClient replaces the underlying http.Client. Its redirect policy is replaced.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient == nil {
			return
		}

		jar := c.httpClient.HTTPClient.Jar
		c.httpClient.HTTPClient = httpClient
		c.httpClient.HTTPClient.CheckRedirect = checkRedirect

		if httpClient.Jar == nil {
			c.httpClient.HTTPClient.Jar = jar
		}
	}
}

// WithTimeout sets the timeout of the underlying http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Timeout = timeout
	}
}

// WithCookieJar keeps cookies across requests.
func WithCookieJar(jar http.CookieJar) Option {
	return func(c *Client) {
		c.httpClient.HTTPClient.Jar = jar
	}
}

// WithInterceptors runs chain around every request.
func WithInterceptors(chain *farmos.InterceptorChain) Option {
	return func(c *Client) {
		c.interceptors = chain
	}
}

// NewClient creates a transport for baseURL. tokenSource may be nil.
func NewClient(baseURL string, tokenSource TokenSource, opts ...Option) *Client {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(baseURL), "/"))
	if err != nil {
		parsed = &url.URL{Path: baseURL}
	}

	retryClient := retryablehttp.NewClient()
	retryClient.HTTPClient = &http.Client{CheckRedirect: checkRedirect}
	retryClient.RetryMax = constants.DefaultRetryMax
	retryClient.RetryWaitMin = constants.DefaultRetryWaitMin
	retryClient.RetryWaitMax = constants.DefaultRetryWaitMax
	retryClient.CheckRetry = retryablehttp.DefaultRetryPolicy
	retryClient.ErrorHandler = retryablehttp.PassthroughErrorHandler
	retryClient.Logger = nil

	client := &Client{
		baseURL:     parsed,
		httpClient:  retryClient,
		tokenSource: tokenSource,
		logger:      farmos.NoopLogger{},
		userAgent:   constants.DefaultUserAgent,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// BaseURL returns the server URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// HTTPClient returns the underlying http.Client, e.g. for OAuth2 token calls.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient.HTTPClient
}

// Jar returns the cookie jar, if any.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.HTTPClient.Jar
}

// Do sends req. A response with status >= 400 is returned together with a
// *farmos.ResponseError. A POST or PUT answered with a 300-308 redirect is
// re-issued once against the Location header with the same method, headers
// and body.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	target, err := c.ResolveURL(req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	body, contentType, err := encodeBody(req)
	if err != nil {
		return nil, err
	}

	resp, err := c.send(ctx, req, target, body, contentType)
	if err != nil {
		return nil, err
	}

	if reissuesRedirect(req.Method) && isRedirect(resp.StatusCode) {
		location := resp.Headers.Get(constants.HeaderLocation)
		if location != "" {
			next, err := resolveReference(target, location)
			if err != nil {
				return nil, err
			}

			c.logger.Debug("Re-issuing request after redirect", map[string]interface{}{
				"method":   req.Method,
				"status":   resp.StatusCode,
				"location": next,
			})

			resp, err = c.send(ctx, req, next, body, contentType)
			if err != nil {
				return nil, err
			}
		}
	}

	if resp.StatusCode >= constants.HTTPStatusBadRequest {
		return resp, farmos.ParseResponseError(resp.StatusCode, resp.Body)
	}

	return resp, nil
}

// ResolveURL joins path to the base URL. Absolute URLs are used as is.
func (c *Client) ResolveURL(path string, query url.Values) (string, error) {
	path = strings.TrimSpace(path)

	var target *url.URL

	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		parsed, err := url.Parse(path)
		if err != nil {
			return "", fmt.Errorf("invalid request URL %q: %w", path, err)
		}

		target = parsed
	} else {
		ref, err := url.Parse(strings.Trim(path, "/"))
		if err != nil {
			return "", fmt.Errorf("invalid request path %q: %w", path, err)
		}

		target = c.baseURL.JoinPath(ref.Path)
		target.RawQuery = ref.RawQuery
	}

	if len(query) > 0 {
		merged := target.Query()
		for key, values := range query {
			merged[key] = values
		}

		target.RawQuery = merged.Encode()
	}

	return target.String(), nil
}

func (c *Client) send(ctx context.Context, req *Request, target string, body []byte, contentType string) (*Response, error) {
	var payload interface{}
	if body != nil {
		payload = body
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, req.Method, target, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set(constants.HeaderAccept, constants.MediaTypeJSON)
	httpReq.Header.Set(constants.HeaderUserAgent, c.userAgent)

	if contentType != "" {
		httpReq.Header.Set(constants.HeaderContentType, contentType)
	}

	if c.tokenSource != nil {
		token, err := c.tokenSource.GetToken(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get token: %w", err)
		}

		if token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	intercepted := &farmos.Request{
		Method:  req.Method,
		URL:     target,
		Headers: httpReq.Header,
		Body:    body,
	}

	if c.interceptors != nil {
		err := c.interceptors.ExecuteRequestInterceptors(ctx, intercepted)
		if err != nil {
			return nil, err
		}
	}

	if c.debug {
		c.logger.Debug("HTTP Request", map[string]interface{}{
			"method":  req.Method,
			"url":     target,
			"headers": redactHeaders(httpReq.Header),
		})
	}

	resp, err := c.receive(httpReq)

	if c.interceptors != nil {
		observed := &farmos.Response{Error: err}
		if resp != nil {
			observed.StatusCode = resp.StatusCode
			observed.Headers = resp.Headers
			observed.Body = resp.Body
		}

		interceptErr := c.interceptors.ExecuteResponseInterceptors(ctx, intercepted, observed)
		if err == nil && interceptErr != nil {
			return nil, interceptErr
		}
	}

	if err != nil {
		return nil, err
	}

	if c.debug {
		c.logger.Debug("HTTP Response", map[string]interface{}{
			"status_code": resp.StatusCode,
			"url":         resp.URL,
			"body_size":   len(resp.Body),
		})
	}

	return resp, nil
}

func (c *Client) receive(httpReq *retryablehttp.Request) (*Response, error) {
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	defer func() {
		_ = httpResp.Body.Close()
	}()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Headers:    httpResp.Header,
		Body:       data,
	}

	if httpResp.Request != nil && httpResp.Request.URL != nil {
		resp.URL = httpResp.Request.URL.String()
	}

	return resp, nil
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodGet,
		Path:   path,
		Query:  query,
	})
}

// Post performs a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   body,
	})
}

// Put performs a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPut,
		Path:   path,
		Body:   body,
	})
}

// Patch performs a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, path string, body interface{}) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodPatch,
		Path:   path,
		Body:   body,
	})
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.Do(ctx, &Request{
		Method: http.MethodDelete,
		Path:   path,
	})
}

// DecodeJSON unmarshals the response body into v. HTML bodies are refused;
// Drupal answers with a page instead of JSON when a route is missing or the
// session expired.
func DecodeJSON(resp *Response, v interface{}) error {
	mediaType, err := contenttype.ParseMediaType(resp.Headers.Get(constants.HeaderContentType))
	if err == nil && mediaType.Matches(htmlMediaType) {
		return fmt.Errorf("%w: %s from %s", farmos.ErrUnexpectedContentType, mediaType.String(), resp.URL)
	}

	err = json.Unmarshal(resp.Body, v)
	if err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// ToFarmOS converts the response to its public form.
func (r *Response) ToFarmOS() *farmos.Response {
	if r == nil {
		return nil
	}

	return &farmos.Response{
		StatusCode: r.StatusCode,
		Headers:    r.Headers,
		Body:       r.Body,
	}
}

func encodeBody(req *Request) ([]byte, string, error) {
	switch {
	case req.RawBody != nil:
		return req.RawBody, "", nil
	case req.Form != nil:
		return []byte(req.Form.Encode()), constants.MediaTypeForm, nil
	case req.Body != nil:
		if raw, ok := req.Body.([]byte); ok {
			return raw, constants.MediaTypeJSON, nil
		}

		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal request body: %w", err)
		}

		return data, constants.MediaTypeJSON, nil
	default:
		return nil, "", nil
	}
}

// checkRedirect lets GET and friends follow redirects and hands POST and
// PUT redirects back to Do.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) > 0 && reissuesRedirect(via[0].Method) {
		return http.ErrUseLastResponse
	}

	if len(via) >= maxRedirects {
		return errTooManyRedirects
	}

	return nil
}

func reissuesRedirect(method string) bool {
	return method == http.MethodPost || method == http.MethodPut
}

func isRedirect(status int) bool {
	return status >= constants.HTTPStatusMultipleChoices && status <= constants.HTTPStatusPermanentRedirect
}

func resolveReference(base, location string) (string, error) {
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid request URL %q: %w", base, err)
	}

	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("invalid redirect location %q: %w", location, err)
	}

	return baseURL.ResolveReference(ref).String(), nil
}

func redactHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))

	for key := range headers {
		switch http.CanonicalHeaderKey(key) {
		case "Authorization", "Cookie", http.CanonicalHeaderKey(constants.HeaderCSRFToken):
			out[key] = "[REDACTED]"
		default:
			out[key] = headers.Get(key)
		}
	}

	return out
}

// leveledLogger adapts farmos.Logger to retryablehttp.LeveledLogger.
type leveledLogger struct {
	logger farmos.Logger
}

func (l leveledLogger) Error(msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, pairs(keysAndValues))
}

func (l leveledLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Info(msg, pairs(keysAndValues))
}

func (l leveledLogger) Debug(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, pairs(keysAndValues))
}

func (l leveledLogger) Warn(msg string, keysAndValues ...interface{}) {
	l.logger.Warn(msg, pairs(keysAndValues))
}

func pairs(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)

	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}

	return fields
}
