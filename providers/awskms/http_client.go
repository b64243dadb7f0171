package awskms

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/goliatone/go-custom-sender/core"
)

// transportHTTPClient lets the SDK send its signed requests through a
// core.TransportAdapter.
type transportHTTPClient struct {
	adapter core.TransportAdapter
	timeout time.Duration
}

func (c *transportHTTPClient) Do(req *http.Request) (*http.Response, error) {
	if c == nil || c.adapter == nil {
		return nil, fmt.Errorf("awskms: transport is not configured")
	}
	var body []byte
	if req.Body != nil {
		payload, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("awskms: read request body: %w", err)
		}
		body = payload
	}
	headers := make(map[string]string, len(req.Header))
	for key := range req.Header {
		headers[key] = req.Header.Get(key)
	}

	res, err := c.adapter.Do(req.Context(), core.TransportRequest{
		Method:   req.Method,
		URL:      req.URL.String(),
		Headers:  headers,
		Body:     body,
		Timeout:  c.timeout,
		Metadata: map[string]any{"provider_id": ProviderID, "operation": headers["X-Amz-Target"]},
	})
	if err != nil {
		return nil, err
	}

	header := make(http.Header, len(res.Headers))
	for key, value := range res.Headers {
		header.Set(key, value)
	}
	if header.Get("Content-Length") == "" {
		header.Set("Content-Length", strconv.Itoa(len(res.Body)))
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", res.StatusCode, http.StatusText(res.StatusCode)),
		StatusCode:    res.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(res.Body)),
		ContentLength: int64(len(res.Body)),
		Request:       req,
	}, nil
}
