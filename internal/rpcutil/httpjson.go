// Package rpcutil provides the HTTP/JSON transport helpers shared by the
// node-to-node forwarding paths of the write and read coordinators and by
// the fluent client builder (component D4, spec.md §4.7/§6: "semantic,
// not wire" RPC surface realised as HTTP+JSON, the same way the teacher
// repo's node-to-coordinator protocol works).
package rpcutil

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// httpClient is shared across all RPC calls to benefit from connection
// pooling; its timeout is a last-resort backstop, since callers are
// expected to pass a context carrying the coordinator's own deadline.
var httpClient = &http.Client{Timeout: 30 * time.Second}

// PostJSON sends a JSON-encoded POST request and decodes the JSON
// response into out (ignored if nil).
func PostJSON(ctx context.Context, url string, body, out any) error {
	reqBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(reqBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// GetJSON sends a GET request and decodes the JSON response into out.
func GetJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http %s: %d", url, resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
