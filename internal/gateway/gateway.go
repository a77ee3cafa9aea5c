// Package gateway is the client for the remote image-compression API (Tinify/TinyPNG protocol).
//
// One Compress call is two round trips: the raw image is posted to the shrink
// endpoint, which answers with a reference to the processed output and its
// dimensions, then the output is downloaded from that reference. Any failure on
// the way is reported as *Error and no partial result is returned.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wb-go/wbf/config"
)

const (
	DefaultShrinkURL = "https://api.tinify.com/shrink"

	// имя пользователя фиксировано протоколом, ключ идет паролем
	basicAuthUser = "api"
	maxErrBody    = 512
)

var (
	ErrMissingAPIKey  = errors.New("compression API key is not configured")
	ErrMissingOutput  = errors.New("compression API response has no output url")
	ErrEmptyOutput    = errors.New("compression API returned empty output")
	ErrUnexpectedCode = errors.New("compression API returned non-success status")
)

// Error classifies every gateway failure. Callers treat it as "compression unavailable".
type Error struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("gateway %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Result struct {
	Data   []byte
	Width  int
	Height int
}

type shrinkResponse struct {
	Input struct {
		Size int64  `json:"size"`
		Type string `json:"type"`
	} `json:"input"`
	Output struct {
		Size   int64   `json:"size"`
		Type   string  `json:"type"`
		Width  int     `json:"width"`
		Height int     `json:"height"`
		Ratio  float64 `json:"ratio"`
		URL    string  `json:"url"`
	} `json:"output"`
}

type Client struct {
	apiKey     string
	shrinkURL  string
	httpClient *http.Client
}

func NewClient(apiKey, shrinkURL string, httpClient *http.Client) *Client {
	if shrinkURL == "" {
		shrinkURL = DefaultShrinkURL
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{apiKey: apiKey, shrinkURL: shrinkURL, httpClient: httpClient}
}

// NewFromConfig reads TINIFY_API_KEY, TINIFY_API_URL and TINIFY_TIMEOUT. An empty key is not an error here,
// every Compress call then fails with ErrMissingAPIKey.
func NewFromConfig(cfg *config.Config) (*Client, error) {
	httpClient := &http.Client{}

	if raw := cfg.GetString("TINIFY_TIMEOUT"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid TINIFY_TIMEOUT %q: %w", raw, err)
		}
		httpClient.Timeout = timeout
	}

	return NewClient(cfg.GetString("TINIFY_API_KEY"), cfg.GetString("TINIFY_API_URL"), httpClient), nil
}

func (c *Client) Compress(ctx context.Context, raw []byte) (*Result, error) {
	if c.apiKey == "" {
		return nil, &Error{Op: "auth", Err: ErrMissingAPIKey}
	}

	shrunk, err := c.shrink(ctx, raw)
	if err != nil {
		return nil, err
	}

	data, err := c.download(ctx, shrunk.Output.URL)
	if err != nil {
		return nil, err
	}

	return &Result{
		Data:   data,
		Width:  max(shrunk.Output.Width, 0),
		Height: max(shrunk.Output.Height, 0),
	}, nil
}

func (c *Client) shrink(ctx context.Context, raw []byte) (*shrinkResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.shrinkURL, bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Op: "shrink", Err: err}
	}
	req.SetBasicAuth(basicAuthUser, c.apiKey)
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "shrink", Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: "shrink", StatusCode: resp.StatusCode, Err: statusErr(resp)}
	}

	var res shrinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, &Error{Op: "shrink", StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	if res.Output.URL == "" {
		return nil, &Error{Op: "shrink", StatusCode: resp.StatusCode, Err: ErrMissingOutput}
	}

	return &res, nil
}

func (c *Client) download(ctx context.Context, outputURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, outputURL, nil)
	if err != nil {
		return nil, &Error{Op: "download", Err: err}
	}
	// ключ уходит только на тот же origin, что и shrink
	if sameOrigin(c.shrinkURL, req.URL) {
		req.SetBasicAuth(basicAuthUser, c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Op: "download", Err: err}
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{Op: "download", StatusCode: resp.StatusCode, Err: statusErr(resp)}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "download", StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}
	if len(data) == 0 {
		return nil, &Error{Op: "download", StatusCode: resp.StatusCode, Err: ErrEmptyOutput}
	}

	return data, nil
}

func sameOrigin(base string, target *url.URL) bool {
	u, err := url.Parse(base)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Scheme, target.Scheme) && strings.EqualFold(u.Host, target.Host)
}

func statusErr(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
	if len(body) == 0 {
		return fmt.Errorf("%w: %s", ErrUnexpectedCode, resp.Status)
	}
	return fmt.Errorf("%w: %s: %s", ErrUnexpectedCode, resp.Status, bytes.TrimSpace(body))
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, maxErrBody))
	_ = body.Close()
}
