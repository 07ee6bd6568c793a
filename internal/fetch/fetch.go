// Package fetch performs the HTTP GETs of a refresh cycle over the socket
// pool: one connection per request, returned to the pool when the body is
// closed.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"homedash/internal/fault"
	appLog "homedash/internal/log"
)

// DialFunc is the signature of netpool.Pool.DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Client issues GET requests through a bounded dialer.
type Client struct {
	http *http.Client
}

// NewClient creates a Client dialing through dial. A nil dial uses the
// default net.Dialer.
func NewClient(dial DialFunc) *Client {
	if dial == nil {
		dial = (&net.Dialer{Timeout: 10 * time.Second}).DialContext
	}
	tr := &http.Transport{
		DialContext:           dial,
		DisableKeepAlives:     true,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		Proxy:                 http.ProxyFromEnvironment,
	}
	return &Client{http: &http.Client{Transport: tr}}
}

// Header holds optional request headers. The zero value sends none.
type Header struct {
	Authorization string
}

// Open issues a GET and returns the streaming body. The caller must close
// it; closing returns the socket slot. Non-2xx answers are Transport faults.
func (c *Client) Open(ctx context.Context, url string, hdr Header) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fault.Transport("fetch: build request", err)
	}
	if hdr.Authorization != "" {
		req.Header.Set("Authorization", hdr.Authorization)
	}

	appLog.Debug("fetch start", "url", redactURL(url))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fault.Transport("fetch: "+redactURL(url), err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, fault.Transport("fetch: "+redactURL(url), fmt.Errorf("unexpected status %s", resp.Status))
	}
	return resp.Body, nil
}

// ReadLimited fetches url into a buffer of at most limit bytes. A body
// longer than limit is a ResourceExhausted fault.
func (c *Client) ReadLimited(ctx context.Context, url string, hdr Header, limit int) ([]byte, error) {
	body, err := c.Open(ctx, url, hdr)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	var buf bytes.Buffer
	buf.Grow(limit)
	n, err := io.Copy(&buf, io.LimitReader(body, int64(limit)+1))
	if err != nil {
		return nil, fault.Transport("fetch: read "+redactURL(url), err)
	}
	if n > int64(limit) {
		return nil, fault.ResourceExhausted("fetch: read "+redactURL(url),
			fmt.Errorf("body exceeds %d bytes", limit))
	}

	appLog.Debug("fetch done", "url", redactURL(url), "bytes", n)
	return buf.Bytes(), nil
}

// redactURL keeps scheme and host only, so tokens embedded in calendar or
// todo URLs never reach the log.
//
//	https://example.com/path/to/private.ics?token=abcd
//	-> https://example.com/...(redacted)
func redactURL(u string) string {
	const redactedSuffix = "/...(redacted)"

	i := -1
	for idx := 0; idx+2 < len(u); idx++ {
		if u[idx:idx+3] == "://" {
			i = idx + 3
			break
		}
	}
	if i == -1 {
		return "url://...(redacted)"
	}

	j := i
	for j < len(u) && u[j] != '/' && u[j] != '?' {
		j++
	}
	return u[:j] + redactedSuffix
}
