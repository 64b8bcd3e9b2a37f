package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPClient talks to a document store over a flat JSON REST surface:
//
//	GET    {base}/sessions/{key}   -> 200 document | 404 absent
//	PUT    {base}/sessions/{key}   -> create or replace
//	PATCH  {base}/sessions/{key}   -> merge: only supplied fields change
//	PUT    {base}/users/{id}       -> upsert profile
//
// The client performs no retries; the sync engine's rerun loop is the
// retry mechanism. Transport limits come from the embedded http.Client.
type HTTPClient struct {
	baseURL string
	token   string
	client  *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient builds a client for the given base URL. An empty token
// sends unauthenticated requests.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

// GetSession implements Client.
func (c *HTTPClient) GetSession(ctx context.Context, key string) (*SessionDoc, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sessionURL(key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("failed to fetch session %s: %w", key, err)
	}
	defer drain(resp.Body)

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, false, nil
	case http.StatusOK:
		var doc SessionDoc
		if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
			return nil, false, fmt.Errorf("failed to decode session %s: %w", key, err)
		}
		return &doc, true, nil
	default:
		return nil, false, fmt.Errorf("fetch session %s: unexpected status %d", key, resp.StatusCode)
	}
}

// PutSession implements Client. SyncedAt is stamped at write time.
func (c *HTTPClient) PutSession(ctx context.Context, key string, doc SessionDoc, merge bool) error {
	doc.SyncedAt = time.Now().UTC().Format(time.RFC3339)

	method := http.MethodPut
	if merge {
		method = http.MethodPatch
	}
	return c.putJSON(ctx, method, c.sessionURL(key), doc)
}

// PutUser implements Client.
func (c *HTTPClient) PutUser(ctx context.Context, id string, doc UserDoc) error {
	return c.putJSON(ctx, http.MethodPut, c.baseURL+"/users/"+url.PathEscape(id), doc)
}

func (c *HTTPClient) putJSON(ctx context.Context, method, target string, doc any) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to write document: %w", err)
	}
	defer drain(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("write %s: unexpected status %d", target, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) sessionURL(key string) string {
	return c.baseURL + "/sessions/" + url.PathEscape(key)
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

// drain reads the body to completion so the connection can be reused.
func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
