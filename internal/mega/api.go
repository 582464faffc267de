package mega

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

const (
	apiMaxAttempts = 5
	apiRetryBase   = 250 * time.Millisecond
)

// Client talks to the MEGA API "cs" endpoint. It only implements the
// single anonymous command this downloader needs: resolving a public
// node handle to its size, encrypted attributes and a temporary
// download URL.
type Client struct {
	apiRoot   string
	hc        *http.Client
	seq       atomic.Int64
	retryBase time.Duration
	log       zerolog.Logger
}

// NodeMetadata is the provider's answer for one node. The download URL
// is time-limited and session-bound, so metadata is fetched fresh per
// download attempt and never cached.
type NodeMetadata struct {
	Handle        string
	Size          int64
	EncryptedAttr []byte
	DownloadURL   string
}

type getRequest struct {
	Action string `json:"a"`
	Get    int    `json:"g"`
	SSL    int    `json:"ssl"`
	Handle string `json:"p"`
}

type getResponse struct {
	Size int64  `json:"s"`
	Attr string `json:"at"`
	URL  string `json:"g"`
	Err  int    `json:"e"`
}

// retryLogger adapts zerolog to retryablehttp's LeveledLogger.
type retryLogger struct {
	log zerolog.Logger
}

func (l *retryLogger) Error(msg string, kv ...any) { l.log.Error().Fields(kv).Msg(msg) }
func (l *retryLogger) Warn(msg string, kv ...any)  { l.log.Warn().Fields(kv).Msg(msg) }
func (l *retryLogger) Info(msg string, kv ...any)  {}
func (l *retryLogger) Debug(msg string, kv ...any) {}

// NewClient builds an API client on top of the shared HTTP client
// config. Transport-level retries (timeouts, resets, 5xx) live in the
// retryablehttp wrapper; protocol-level negative codes are mapped here.
func NewClient(apiRoot string, cfg utils.HTTPClientConfig) *Client {
	logger := utils.GetLogger("mega-api")
	rc := retryablehttp.NewClient()
	rc.HTTPClient = utils.NewHTTPClient(cfg).Unwrap()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 10 * time.Second
	rc.Logger = &retryLogger{log: logger}
	return &Client{
		apiRoot:   apiRoot,
		hc:        rc.StandardClient(),
		retryBase: apiRetryBase,
		log:       logger,
	}
}

// Resolve asks the API for a node's metadata. Rate-limit codes are
// retried with exponential backoff up to apiMaxAttempts; every other
// negative code is terminal.
func (c *Client) Resolve(ctx context.Context, handle string) (*NodeMetadata, error) {
	var lastErr error
	for attempt := 0; attempt < apiMaxAttempts; attempt++ {
		if attempt > 0 {
			wait := c.retryBase << (attempt - 1)
			c.log.Debug().Str("op", "mega/api").Msgf("Retrying resolve for %s in %s (attempt %d/%d)", handle, wait, attempt+1, apiMaxAttempts)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		meta, err := c.resolveOnce(ctx, handle)
		if err == nil {
			return meta, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
		c.log.Warn().Str("op", "mega/api").Err(err).Msgf("Resolve attempt %d failed", attempt+1)
	}
	return nil, fmt.Errorf("resolve failed after %d attempts: %w", apiMaxAttempts, lastErr)
}

func (c *Client) resolveOnce(ctx context.Context, handle string) (*NodeMetadata, error) {
	body, err := json.Marshal([]getRequest{{Action: "g", Get: 1, Handle: handle}})
	if err != nil {
		return nil, fmt.Errorf("error encoding api request: %v", err)
	}
	url := fmt.Sprintf("%s/cs?id=%d", c.apiRoot, c.seq.Add(1))
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("error creating api request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "api request", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &TransportError{Op: "api request", Err: fmt.Errorf("http status %s", resp.Status)}
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "api response read", Err: err}
	}
	return decodeGetResponse(handle, buf)
}

// decodeGetResponse handles the three shapes the API answers with: a
// bare negative integer, a one-element array of negative integers, or a
// one-element array of result objects (possibly with an embedded "e"
// code).
func decodeGetResponse(handle string, buf []byte) (*NodeMetadata, error) {
	trimmed := bytes.TrimSpace(buf)
	var code int
	if err := json.Unmarshal(trimmed, &code); err == nil {
		if code < 0 {
			return nil, newAPIError(code)
		}
		return nil, &TransportError{Op: "api response", Err: fmt.Errorf("unexpected scalar response %d", code)}
	}
	var codes []int
	if err := json.Unmarshal(trimmed, &codes); err == nil && len(codes) > 0 {
		if codes[0] < 0 {
			return nil, newAPIError(codes[0])
		}
		return nil, &TransportError{Op: "api response", Err: fmt.Errorf("unexpected scalar response %d", codes[0])}
	}
	var results []getResponse
	if err := json.Unmarshal(trimmed, &results); err != nil || len(results) == 0 {
		return nil, &TransportError{Op: "api response", Err: fmt.Errorf("unrecognized response shape")}
	}
	res := results[0]
	if res.Err < 0 {
		return nil, newAPIError(res.Err)
	}
	if res.URL == "" || res.Size < 0 {
		return nil, &TransportError{Op: "api response", Err: fmt.Errorf("incomplete node metadata")}
	}
	attr, err := base64.RawURLEncoding.DecodeString(res.Attr)
	if err != nil {
		return nil, fmt.Errorf("%w: attribute blob: %v", ErrAttributeParse, err)
	}
	return &NodeMetadata{
		Handle:        handle,
		Size:          res.Size,
		EncryptedAttr: attr,
		DownloadURL:   res.URL,
	}, nil
}
