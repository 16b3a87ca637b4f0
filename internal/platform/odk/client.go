// Package odk is a client for the ODK Central REST and OData APIs.
package odk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	neturl "net/url"
	"strings"
	"sync"
	"time"

	"surveysync/internal/model"
	"surveysync/internal/platform"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("odk")

const (
	// sessionSkew is subtracted from a session's expiry so a token is never
	// sent in its last moments.
	sessionSkew = 30 * time.Second
	// defaultSessionTTL applies when the server omits or garbles expiresAt.
	defaultSessionTTL = time.Hour
	defaultTimeout    = 60 * time.Second
)

// Client talks to one ODK Central project. A session token is obtained on
// first use, reused until shortly before it expires, and dropped when the
// server answers 401.
type Client struct {
	baseURL    string
	projectID  int
	username   string
	password   string
	pageSize   int
	timeout    time.Duration
	httpClient *http.Client

	mu       sync.Mutex
	sessions *cache.Cache
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithCredentials sets the web user used to open sessions. Without
// credentials requests are sent unauthenticated.
func WithCredentials(username, password string) ClientOption {
	return func(c *Client) {
		c.username = username
		c.password = password
	}
}

// WithHTTPTimeout bounds each JSON request and the wait for an attachment's
// response headers. Attachment bodies are only bounded by the caller's context.
func WithHTTPTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithPageSize requests submissions in pages of n using $top. Zero fetches
// everything in one response.
func WithPageSize(n int) ClientOption {
	return func(c *Client) {
		c.pageSize = n
	}
}

// NewClient creates a client for projectID on the server at baseURL.
func NewClient(baseURL string, projectID int, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    normalizeBaseURL(baseURL),
		projectID:  projectID,
		timeout:    defaultTimeout,
		sessions:   cache.New(defaultSessionTTL, 10*time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = c.timeout
		c.httpClient = &http.Client{Transport: transport}
	}
	return c
}

// withTimeout bounds a request whose body is read in full before returning.
func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// normalizeBaseURL trims trailing slashes and makes sure the path ends in /v1.
func normalizeBaseURL(raw string) string {
	trimmed := strings.TrimRight(strings.TrimSpace(raw), "/")
	if trimmed == "" || strings.HasSuffix(trimmed, "/v1") {
		return trimmed
	}
	return trimmed + "/v1"
}

func (c *Client) formPath(formID string) string {
	return fmt.Sprintf("%s/projects/%d/forms/%s", c.baseURL, c.projectID, neturl.PathEscape(formID))
}

func (c *Client) attachmentsPath(formID, submissionID string) string {
	return fmt.Sprintf("%s/submissions/%s/attachments", c.formPath(formID), neturl.PathEscape(submissionID))
}

// odataPage is one page of an OData entity set.
type odataPage struct {
	Value    []map[string]any `json:"value"`
	NextLink string           `json:"@odata.nextLink"`
}

// FetchMatching reads the form's Submissions entity set with every nested
// structure expanded, following @odata.nextLink until the set is exhausted.
func (c *Client) FetchMatching(ctx context.Context, formID, filter string) ([]map[string]any, error) {
	ctx, span := tracer.Start(ctx, "ODK.Client.FetchMatching")
	defer span.End()
	span.SetAttributes(attribute.String("odk.form_id", formID), attribute.String("odk.filter", filter))

	query := neturl.Values{}
	query.Set("$expand", "*")
	if filter != "" {
		query.Set("$filter", filter)
	}
	if c.pageSize > 0 {
		query.Set("$top", fmt.Sprint(c.pageSize))
	}
	next := c.formPath(formID) + ".svc/Submissions?" + query.Encode()

	var records []map[string]any
	for next != "" {
		var page odataPage
		if err := c.getJSON(ctx, "fetch submissions", next, &page); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "fetch submissions failed")
			return nil, err
		}
		records = append(records, page.Value...)

		link, err := c.resolve(next, page.NextLink)
		if err != nil {
			span.RecordError(err)
			return nil, &model.TransportError{Op: "fetch submissions", URL: page.NextLink, Err: err}
		}
		next = link
	}

	span.SetAttributes(attribute.Int("odk.records", len(records)))
	return records, nil
}

// FetchAttachmentList lists the attachments the form expects for a submission.
func (c *Client) FetchAttachmentList(ctx context.Context, formID, submissionID string) ([]model.AttachmentInfo, error) {
	var list []model.AttachmentInfo
	if err := c.getJSON(ctx, "list attachments", c.attachmentsPath(formID, submissionID), &list); err != nil {
		return nil, err
	}
	return list, nil
}

// FetchAttachment opens a streamed download of one attachment. Its span stays
// open until the returned body is closed.
func (c *Client) FetchAttachment(ctx context.Context, formID, submissionID, name string) (io.ReadCloser, error) {
	ctx, span := tracer.Start(ctx, "ODK.Client.FetchAttachment")
	span.SetAttributes(attribute.String("odk.submission_id", submissionID), attribute.String("odk.attachment", name))

	url := c.attachmentsPath(formID, submissionID) + "/" + neturl.PathEscape(name)
	resp, err := c.do(ctx, "fetch attachment", http.MethodGet, url, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch attachment failed")
		span.End()
		return nil, err
	}
	return &tracedBody{ReadCloser: resp.Body, span: span}, nil
}

// tracedBody ends its span once the download is closed, recording the bytes
// read and any read error.
type tracedBody struct {
	io.ReadCloser
	span trace.Span
	n    int64
	once sync.Once
}

func (b *tracedBody) Read(p []byte) (int, error) {
	n, err := b.ReadCloser.Read(p)
	b.n += int64(n)
	if err != nil && err != io.EOF {
		b.span.RecordError(err)
		b.span.SetStatus(codes.Error, "read attachment failed")
	}
	return n, err
}

func (b *tracedBody) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(func() {
		b.span.SetAttributes(attribute.Int64("odk.bytes", b.n))
		b.span.End()
	})
	return err
}

// getJSON performs a GET and decodes the body, keeping numbers as json.Number.
func (c *Client) getJSON(ctx context.Context, op, url string, out any) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.do(ctx, op, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return &model.TransportError{Op: op, URL: url, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

// do sends an authenticated request. Any non-2xx answer becomes a
// TransportError and the body is closed; on success the caller owns it.
func (c *Client) do(ctx context.Context, op, method, url string, body []byte) (*http.Response, error) {
	token, err := c.session(ctx)
	if err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &model.TransportError{Op: op, URL: url, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &model.TransportError{Op: op, URL: url, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		if resp.StatusCode == http.StatusUnauthorized {
			c.clearSession()
		}
		return nil, &model.TransportError{
			Op:         op,
			URL:        url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s", strings.TrimSpace(string(detail))),
		}
	}
	return resp, nil
}

// session returns the cached bearer token, opening a session if needed.
func (c *Client) session(ctx context.Context) (string, error) {
	if c.username == "" {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if token, ok := c.sessions.Get(c.username); ok {
		return token.(string), nil
	}

	payload, err := json.Marshal(map[string]string{"email": c.username, "password": c.password})
	if err != nil {
		return "", fmt.Errorf("failed to encode session request: %w", err)
	}

	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	url := c.baseURL + "/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", &model.TransportError{Op: "open session", URL: url, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &model.TransportError{Op: "open session", URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &model.TransportError{Op: "open session", URL: url, StatusCode: resp.StatusCode}
	}

	var session struct {
		Token     string `json:"token"`
		ExpiresAt string `json:"expiresAt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", &model.TransportError{Op: "open session", URL: url, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if session.Token == "" {
		return "", &model.TransportError{Op: "open session", URL: url, Err: fmt.Errorf("empty session token")}
	}

	log.Printf("[ODK] Session opened for %s (expires %s)", c.username, session.ExpiresAt)
	if ttl := sessionTTL(session.ExpiresAt, time.Now()); ttl > 0 {
		c.sessions.Set(c.username, session.Token, ttl)
	}
	return session.Token, nil
}

// sessionTTL is how long a token expiring at expiresAt may be reused. Zero
// means it must not be cached at all.
func sessionTTL(expiresAt string, now time.Time) time.Duration {
	exp, err := time.Parse(time.RFC3339Nano, expiresAt)
	if err != nil {
		return defaultSessionTTL
	}
	ttl := exp.Sub(now) - sessionSkew
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func (c *Client) clearSession() {
	c.sessions.Delete(c.username)
}

// resolve turns a possibly relative nextLink into an absolute URL. Every page
// must be expanded, so $expand=* is restored when the link drops it.
func (c *Client) resolve(current, link string) (string, error) {
	if link == "" {
		return "", nil
	}
	base, err := neturl.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := neturl.Parse(link)
	if err != nil {
		return "", err
	}
	next := base.ResolveReference(ref)
	query := next.Query()
	if query.Get("$expand") == "" {
		query.Set("$expand", "*")
		next.RawQuery = query.Encode()
	}
	return next.String(), nil
}

// Ensure Client implements platform.Client
var _ platform.Client = (*Client)(nil)
