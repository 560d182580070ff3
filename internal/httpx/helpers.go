package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// GetJSON fetches a URL and decodes its JSON body into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, header http.Header, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL, Header: header})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", rawURL, err)
	}
	return nil
}

// PostForm submits a form-encoded POST and returns the raw body.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, header http.Header) ([]byte, error) {
	if header == nil {
		header = http.Header{}
	}
	header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		URL:    rawURL,
		Header: header,
		Body:   []byte(form.Encode()),
	})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// FetchBytes downloads a small binary payload such as cover art.
func (c *Client) FetchBytes(ctx context.Context, rawURL string) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, URL: rawURL})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}
