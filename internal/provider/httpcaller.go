package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// HTTPCaller is the default AuthenticatedCaller: a thin bearer-token HTTP
// client. Credential acquisition and refresh happen elsewhere; the token
// is supplied once at construction and sent verbatim on every call.
type HTTPCaller struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHTTPCaller constructs an HTTPCaller. baseURL must not have a
// trailing slash.
func NewHTTPCaller(baseURL, token string, client *http.Client) *HTTPCaller {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPCaller{baseURL: baseURL, token: token, client: client}
}

var endpointPaths = map[Endpoint]string{
	EndpointListDescriptors: "/files",
	EndpointListChanges:     "/changes",
	EndpointStartCursor:     "/changes/startPageToken",
}

func (c *HTTPCaller) Call(ctx context.Context, endpoint Endpoint, params CallParams) (*RawResult, error) {
	path, ok := endpointPaths[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %d", endpoint)
	}

	q := url.Values{}
	if params.PageToken != "" {
		q.Set("pageToken", params.PageToken)
	}
	if params.PageSize > 0 {
		q.Set("pageSize", strconv.Itoa(params.PageSize))
	}
	if params.ExcludeTrashed {
		q.Set("excludeTrashed", "true")
	}

	reqURL := c.baseURL + path
	if enc := q.Encode(); enc != "" {
		reqURL += "?" + enc
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	return &RawResult{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
	}, nil
}

var _ AuthenticatedCaller = (*HTTPCaller)(nil)
