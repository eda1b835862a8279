package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"go-artists-client/internal/model"
	"go-artists-client/internal/tokenstore"
	"go-artists-client/pkg/apierror"
)

const refreshPath = "/auth/refresh"

// Authenticator is the slice of the auth gateway the pipeline needs when a
// request comes back 401.
type Authenticator interface {
	// Refresh returns (user, nil) on success, (nil, nil) when nothing could
	// be updated for a transient reason, and (nil, err) after a fatal
	// failure that already logged the session out.
	Refresh(ctx context.Context) (*model.User, error)
	Logout()
}

// Response is a completed backend reply.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

type refreshResult struct {
	user *model.User
	err  error
}

// Client wraps every outgoing catalog request: it attaches the current
// bearer token, picks the body encoding, and on a 401 coordinates a single
// shared refresh before replaying the failed request once.
//
// The coordination invariant: no matter how many requests observe a 401
// while a refresh is suspended on network I/O, at most one refresh call is
// ever in flight. Later arrivals park on the waiter queue and are drained
// exactly once with the shared outcome.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  *tokenstore.Store
	auth    Authenticator

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
}

func NewClient(baseURL string, timeout time.Duration, tokens *tokenstore.Store, auth Authenticator) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		tokens:  tokens,
		auth:    auth,
	}
}

func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodGet, path, nil, "", false)
}

func (c *Client) Delete(ctx context.Context, path string) (*Response, error) {
	return c.do(ctx, http.MethodDelete, path, nil, "", false)
}

func (c *Client) Post(ctx context.Context, path string, body any) (*Response, error) {
	raw, contentType, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPost, path, raw, contentType, false)
}

func (c *Client) Put(ctx context.Context, path string, body any) (*Response, error) {
	raw, contentType, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPut, path, raw, contentType, false)
}

func (c *Client) Patch(ctx context.Context, path string, body any) (*Response, error) {
	raw, contentType, err := encodeJSON(body)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, http.MethodPatch, path, raw, contentType, false)
}

// PostMultipart uploads a file as a multipart form. The body bypasses JSON
// encoding and carries the form's own content type.
func (c *Client) PostMultipart(ctx context.Context, path string, field string, filename string, content []byte, extra map[string]string) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if err := writer.WriteField(key, value); err != nil {
			return nil, err
		}
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	return c.do(ctx, http.MethodPost, path, buf.Bytes(), writer.FormDataContentType(), false)
}

func encodeJSON(body any) ([]byte, string, error) {
	if body == nil {
		return nil, "", nil
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, "", fmt.Errorf("encode request body: %w", err)
	}

	return raw, "application/json", nil
}

// do sends one request. The body is held as bytes so a post-refresh replay
// can resend it unchanged. retried marks a replay: a replayed request that
// 401s again is propagated, never refreshed a second time.
func (c *Client) do(ctx context.Context, method string, path string, body []byte, contentType string, retried bool) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("X-Request-ID", ulid.Make().String())

	// Never attach a token to the refresh call itself: it must stay
	// stateless with respect to the current access token.
	if path != refreshPath {
		if creds, ok := c.tokens.Load(); ok {
			req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		}
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindTransientNetwork, "request failed", err)
	}

	respBody, err := io.ReadAll(httpResp.Body)
	httpResp.Body.Close()
	if err != nil {
		return nil, apierror.Wrap(apierror.KindTransientNetwork, "reading response failed", err)
	}

	resp := &Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: respBody}

	if httpResp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(ctx, method, path, body, contentType, retried, resp)
	}

	if httpResp.StatusCode >= 400 {
		return resp, requestError(httpResp.StatusCode, respBody)
	}

	return resp, nil
}

func (c *Client) handleUnauthorized(ctx context.Context, method string, path string, body []byte, contentType string, retried bool, resp *Response) (*Response, error) {
	// A 401 from the refresh endpoint is fatal: log out, never refresh
	// again for this failure.
	if path == refreshPath {
		c.auth.Logout()
		return resp, apierror.New(apierror.KindCredential, "refresh rejected", "", resp.StatusCode)
	}

	// Each request is replayed at most once.
	if retried {
		return resp, apierror.New(apierror.KindAuthorizationExpired, "request unauthorized after token refresh", "", resp.StatusCode)
	}

	c.mu.Lock()
	if c.refreshing {
		// Someone else already started the refresh; park until it lands.
		ch := make(chan refreshResult, 1)
		c.waiters = append(c.waiters, ch)
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case result := <-ch:
			if result.err != nil {
				return nil, result.err
			}
			if result.user == nil {
				return nil, apierror.New(apierror.KindTransientNetwork, "session could not be refreshed", "", 0)
			}
			return c.do(ctx, method, path, body, contentType, true)
		}
	}

	c.refreshing = true
	c.mu.Unlock()

	user, refreshErr := c.auth.Refresh(ctx)

	c.mu.Lock()
	c.refreshing = false
	waiters := c.waiters
	c.waiters = nil
	c.mu.Unlock()

	result := refreshResult{user: user, err: refreshErr}
	for _, ch := range waiters {
		ch <- result
	}

	if refreshErr != nil {
		// Fatal: the gateway already logged out; every queued request was
		// rejected with the same error above.
		return nil, refreshErr
	}
	if user == nil {
		// Transient: the session survives, the request does not.
		slog.Warn("token refresh yielded no update, not replaying request", "path", path)
		return nil, apierror.New(apierror.KindTransientNetwork, "session could not be refreshed", "", 0)
	}

	return c.do(ctx, method, path, body, contentType, true)
}

func requestError(status int, body []byte) error {
	msg := backendMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("request failed with status %d", status)
	}

	kind := apierror.KindRequest
	if status == http.StatusForbidden {
		kind = apierror.KindCredential
	}

	return apierror.New(kind, msg, "", status)
}

func backendMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}

	if payload.Message != "" {
		return payload.Message
	}

	return payload.Error
}
