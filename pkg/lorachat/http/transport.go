// Package http carries the chat link through the HTTP relay served by `lorachat bridge`.
package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/exepirit/lorachat/pkg/lorachat"
)

const defaultTimeout = 2 * time.Second

var _ lorachat.Transport = &Transport{}

// Transport represents a transport mechanism over HTTP for communicating through a relay.
type Transport struct {
	// URL is the base URL of the relay.
	URL string
	// NodeID names this node's mailbox on the relay.
	NodeID string
	// Client is an HTTP client used to send requests. A zero Timeout is replaced with two seconds.
	Client http.Client

	ready atomic.Bool
}

func (ht *Transport) endpoint(path string) string {
	return ht.URL + path + "?node=" + url.QueryEscape(ht.NodeID)
}

func (ht *Transport) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, ht.endpoint(path), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Connection", "keep-alive")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	client := ht.Client
	if client.Timeout == 0 {
		client.Timeout = defaultTimeout
	}
	return client.Do(req)
}

// Initialize registers the node's mailbox with the relay.
func (ht *Transport) Initialize(ctx context.Context) error {
	response, err := ht.do(ctx, http.MethodPost, "/api/v1/nodes", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrInitFailed, err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusNoContent {
		return fmt.Errorf("%w: unexpected response status code %d", lorachat.ErrInitFailed, response.StatusCode)
	}
	ht.ready.Store(true)
	return nil
}

// Send puts a frame on the relay.
func (ht *Transport) Send(ctx context.Context, frame []byte) error {
	if !ht.ready.Load() {
		return lorachat.ErrNotInitialized
	}

	response, err := ht.do(ctx, http.MethodPut, "/api/v1/toradio", frame)
	if err != nil {
		return fmt.Errorf("%w: %w", lorachat.ErrLinkBusy, err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		ht.ready.Store(false)
		return lorachat.ErrNotInitialized
	default:
		return fmt.Errorf("%w: unexpected response status code %d", lorachat.ErrNoAck, response.StatusCode)
	}
}

// Poll retrieves the oldest frame from the node's mailbox.
func (ht *Transport) Poll(ctx context.Context) ([]byte, error) {
	if !ht.ready.Load() {
		return nil, lorachat.ErrNotInitialized
	}

	response, err := ht.do(ctx, http.MethodGet, "/api/v1/fromradio", nil)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
		return io.ReadAll(response.Body)
	case http.StatusNoContent:
		return nil, nil
	case http.StatusNotFound:
		ht.ready.Store(false)
		return nil, lorachat.ErrNotInitialized
	default:
		return nil, fmt.Errorf("unexpected response status code %d", response.StatusCode)
	}
}

func (ht *Transport) Ready() bool {
	return ht.ready.Load()
}

// Cleanup removes the mailbox from the relay on a best-effort basis.
func (ht *Transport) Cleanup() error {
	if !ht.ready.Swap(false) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	response, err := ht.do(ctx, http.MethodDelete, "/api/v1/nodes", nil)
	if err != nil {
		return err
	}
	return response.Body.Close()
}
