// Package fetcher provides generic HTTP retrieval with content decoding
// for the source adapters. It classifies failures into transient and
// permanent so the retrieval orchestrator can decide what to retry; the
// fetcher itself never retries.
package fetcher

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"
)

// DefaultTimeout bounds every request unless overridden.
const DefaultTimeout = 10 * time.Second

const userAgent = "demandcast/1.0"

// HTTPError is a non-2xx response from a data portal.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("request to %s failed: %s", e.URL, e.Status)
}

// Transient reports whether the status indicates a retryable condition
// (rate limiting or a server-side failure).
func (e *HTTPError) Transient() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsTransient reports whether an error is worth retrying: timeouts,
// connection resets, rate limits and 5xx responses. Parse errors and
// client-side HTTP errors are permanent since repeating the same request
// is expected to fail identically.
func IsTransient(err error) bool {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Transient()
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// Request describes one fetch against a data portal.
type Request struct {
	URL    string
	Method string     // GET when empty
	Query  url.Values // appended to the URL
	Form   url.Values // POST form body, implies POST
	Header map[string]string
}

// Fetcher issues HTTP requests with a bounded timeout.
type Fetcher struct {
	client *http.Client
}

// New creates a fetcher. A zero timeout means DefaultTimeout.
func New(timeout time.Duration) *Fetcher {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
	}
}

// Text fetches the request and returns the response body as a string.
func (f *Fetcher) Text(ctx context.Context, req Request) (string, error) {
	body, err := f.do(ctx, req)
	if err != nil {
		return "", err
	}
	defer body.Close()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("failed to read response body: %w", err)
	}
	return string(raw), nil
}

// CSV fetches the request and decodes the body as CSV records. Rows with
// a deviating field count are tolerated since several portals emit
// ragged preamble lines.
func (f *Fetcher) CSV(ctx context.Context, req Request) ([][]string, error) {
	body, err := f.do(ctx, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	reader := csv.NewReader(body)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse CSV response: %w", err)
	}
	return records, nil
}

// JSON fetches the request, descends the given key path into the decoded
// document and unmarshals the resulting node into out. An empty key path
// unmarshals the whole document.
func (f *Fetcher) JSON(ctx context.Context, req Request, out any, keys ...string) error {
	body, err := f.do(ctx, req)
	if err != nil {
		return err
	}
	defer body.Close()

	var document any
	if err := json.NewDecoder(body).Decode(&document); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w", err)
	}

	node := document
	for _, key := range keys {
		object, ok := node.(map[string]any)
		if !ok {
			return fmt.Errorf("JSON key %q not reachable: parent is not an object", key)
		}
		node, ok = object[key]
		if !ok {
			return fmt.Errorf("JSON response is missing key %q", key)
		}
	}

	raw, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to re-encode JSON node: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode JSON node: %w", err)
	}
	return nil
}

func (f *Fetcher) do(ctx context.Context, req Request) (io.ReadCloser, error) {
	method := req.Method
	var body io.Reader
	if len(req.Form) > 0 {
		method = http.MethodPost
		body = strings.NewReader(req.Form.Encode())
	}
	if method == "" {
		method = http.MethodGet
	}

	target := req.URL
	if len(req.Query) > 0 {
		separator := "?"
		if strings.Contains(target, "?") {
			separator = "&"
		}
		target += separator + req.Query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", userAgent)
	if len(req.Form) > 0 {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, value := range req.Header {
		httpReq.Header.Set(key, value)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: req.URL}
	}
	return resp.Body, nil
}
