package client

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	json "github.com/json-iterator/go"

	"github.com/taxonline/admin/cli/pkg/config"
	"github.com/taxonline/admin/cli/pkg/logger"
)

const (
	UserAgent       = "TaxOnline-CLI/0.1.0"
	RequestIDHeader = "X-Request-ID"
)

// Session is the part of the session store the gateway needs.
type Session interface {
	Token() string
	// Expire ends the session if token is still current and reports
	// whether this call did so.
	Expire(token string) bool
}

// Options configure a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// OnUnauthorized runs once per session when a request carrying the
	// session's token is answered with 401, after the session is cleared.
	OnUnauthorized func()
	// Transport overrides the HTTP transport, mainly for tests.
	Transport http.RoundTripper
}

// Client dispatches every API request. It attaches the bearer token of the
// current session to each request and ends the session when the backend
// answers 401.
type Client struct {
	http           *resty.Client
	session        Session
	onUnauthorized func()
}

// New creates a client bound to sess.
func New(opts Options, sess Session) *Client {
	c := &Client{
		session:        sess,
		onUnauthorized: opts.OnUnauthorized,
	}

	httpClient := resty.New()
	httpClient.SetBaseURL(strings.TrimRight(opts.BaseURL, "/"))
	if opts.Timeout > 0 {
		httpClient.SetTimeout(opts.Timeout)
	}
	if opts.Transport != nil {
		httpClient.SetTransport(opts.Transport)
	}
	httpClient.SetHeader("User-Agent", UserAgent)
	httpClient.JSONMarshal = json.Marshal
	httpClient.JSONUnmarshal = json.Unmarshal

	httpClient.OnBeforeRequest(c.beforeRequest)
	httpClient.OnAfterResponse(c.afterResponse)

	c.http = httpClient
	return c
}

// NewFromConfig creates a client from the api.* configuration keys.
func NewFromConfig(sess Session, onUnauthorized func()) *Client {
	return New(Options{
		BaseURL:        config.GetString("api.base_url"),
		Timeout:        time.Duration(config.GetInt("api.timeout")) * time.Second,
		OnUnauthorized: onUnauthorized,
	}, sess)
}

// BaseURL returns the configured API base URL.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

func (c *Client) beforeRequest(_ *resty.Client, req *resty.Request) error {
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)

	if !isPublic(req.Context()) && c.session != nil {
		if token := c.session.Token(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	logger.Debug("HTTP Request", "method", req.Method, "url", req.URL, "request_id", requestID)
	return nil
}

func (c *Client) afterResponse(_ *resty.Client, resp *resty.Response) error {
	logger.Debug("HTTP Response",
		"status", resp.StatusCode(),
		"request_id", resp.Request.Header.Get(RequestIDHeader),
		"duration", resp.Time())

	if resp.StatusCode() != http.StatusUnauthorized || c.session == nil {
		return nil
	}

	token := bearerToken(resp.Request.Header.Get("Authorization"))
	if token == "" {
		return nil
	}
	if c.session.Expire(token) {
		logger.Warn("Session rejected by server, logged out", "url", resp.Request.URL)
		if c.onUnauthorized != nil {
			c.onUnauthorized()
		}
	}
	return nil
}

// Request sends one request and returns the response. Non-2xx answers come
// back as *APIError (with the response still returned), failures without a
// response as *TransportError.
func (c *Client) Request(ctx context.Context, method, path string, opts ...RequestOption) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	req := c.http.R().SetContext(ctx)
	for _, opt := range opts {
		opt(req)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}

	out := &Response{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
	}
	if !resp.IsSuccess() {
		return out, ParseError(resp.StatusCode(), resp.Body())
	}
	return out, nil
}

// Do sends a request and decodes a JSON answer into out when out is not nil.
func (c *Client) Do(ctx context.Context, method, path string, out interface{}, opts ...RequestOption) error {
	resp, err := c.Request(ctx, method, path, opts...)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.Decode(out)
}

// Get decodes the JSON answer of a GET request into out.
func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodGet, path, out, opts...)
}

// Post sends a POST request and decodes the answer into out.
func (c *Client) Post(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPost, path, out, opts...)
}

// Put sends a PUT request and decodes the answer into out.
func (c *Client) Put(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodPut, path, out, opts...)
}

// Delete sends a DELETE request and decodes the answer into out.
func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.Do(ctx, http.MethodDelete, path, out, opts...)
}

// Download returns the raw body of a GET request, unparsed.
func (c *Client) Download(ctx context.Context, path string, opts ...RequestOption) ([]byte, http.Header, error) {
	resp, err := c.Request(ctx, http.MethodGet, path, opts...)
	if err != nil {
		return nil, nil, err
	}
	return resp.Body, resp.Header, nil
}

// Response is a completed HTTP exchange.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode parses the body as JSON into v.
func (r *Response) Decode(v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// RequestOption shapes an outgoing request.
type RequestOption func(*resty.Request)

// WithQuery adds a query parameter. Empty values are skipped so optional
// filters can be passed unconditionally.
func WithQuery(key, value string) RequestOption {
	return func(r *resty.Request) {
		if value != "" {
			r.SetQueryParam(key, value)
		}
	}
}

// WithJSON sends body encoded as JSON.
func WithJSON(body interface{}) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader("Content-Type", "application/json")
		r.SetBody(body)
	}
}

// WithForm sends fields url-encoded.
func WithForm(fields map[string]string) RequestOption {
	return func(r *resty.Request) {
		r.SetFormData(fields)
	}
}

// FilePart is one file of a multipart upload.
type FilePart struct {
	Field       string
	Name        string
	ContentType string
	Reader      io.Reader
}

// WithMultipart sends fields and files as multipart/form-data.
func WithMultipart(fields map[string]string, files ...FilePart) RequestOption {
	return func(r *resty.Request) {
		r.SetMultipartFormData(fields)
		for _, f := range files {
			ct := f.ContentType
			if ct == "" {
				ct = "application/octet-stream"
			}
			r.SetMultipartField(f.Field, f.Name, ct, f.Reader)
		}
	}
}

type publicKey struct{}

// Public marks a request that must never carry the session token, such as
// the login request itself.
func Public() RequestOption {
	return func(r *resty.Request) {
		r.SetContext(context.WithValue(r.Context(), publicKey{}, true))
	}
}

func isPublic(ctx context.Context) bool {
	v, _ := ctx.Value(publicKey{}).(bool)
	return v
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}
