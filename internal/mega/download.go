package mega

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/bpepple/clu-comics-sub001/internal/utils"
)

const (
	chunkMaxRetries = 5
	chunkRetryBase  = 500 * time.Millisecond
	// urlRefreshLimit bounds how many times a session may re-resolve
	// its time-limited download URL after a mid-stream rejection.
	urlRefreshLimit = 2
)

// errStaleURL marks a content fetch the storage server rejected as
// unauthorized, which means the temporary URL expired. Recoverable by
// re-resolving the node, unlike other protocol errors.
var errStaleURL = errors.New("download url no longer authorized")

// Downloader runs the whole pipeline for public MEGA file links: parse
// link, derive keys, resolve metadata, decrypt attributes, then stream,
// decrypt and verify the payload.
type Downloader struct {
	client *Client
	hc     *utils.HTTPClient
	log    zerolog.Logger
	// OnProgress, when set, receives cumulative plaintext bytes
	// written against the total size.
	OnProgress func(written, total int64)
}

// Result is the outcome of a verified download.
type Result struct {
	Filename     string
	BytesWritten int64
}

// NodeInfo is a metadata-only view of a link's target, available
// without fetching content.
type NodeInfo struct {
	Handle string
	Name   string
	Size   int64
}

func NewDownloader(cfg utils.HTTPClientConfig) *Downloader {
	return &Downloader{
		client: NewClient(APIRoot, cfg),
		hc:     utils.NewHTTPClient(cfg),
		log:    utils.GetLogger("mega"),
	}
}

// SetAPIRoot overrides the canonical API host. Only tests point this
// anywhere else.
func (d *Downloader) SetAPIRoot(root string) {
	d.client.apiRoot = root
}

// Stat resolves a link to its decrypted name and size. It performs the
// same parse → resolve → decrypt-attributes steps as Download but stops
// before any content request.
func (d *Downloader) Stat(ctx context.Context, link string) (*NodeInfo, error) {
	sl, err := ParseLink(link)
	if err != nil {
		return nil, err
	}
	km, err := DeriveKeys(sl.RawKey)
	if err != nil {
		return nil, err
	}
	meta, err := d.client.Resolve(ctx, sl.Handle)
	if err != nil {
		return nil, err
	}
	attr, err := DecryptAttr(km.AttrKey[:], meta.EncryptedAttr)
	if err != nil {
		return nil, err
	}
	return &NodeInfo{Handle: sl.Handle, Name: attr.Name, Size: meta.Size}, nil
}

// Download fetches, decrypts and verifies a link's payload into sink.
// Bytes reach the sink before the final MAC check, so on error the
// caller must discard whatever was written; a nil error means the
// stream verified end to end.
func (d *Downloader) Download(ctx context.Context, link string, sink io.Writer) (*Result, error) {
	sl, err := ParseLink(link)
	if err != nil {
		return nil, err
	}
	km, err := DeriveKeys(sl.RawKey)
	if err != nil {
		return nil, err
	}
	// Rejects 16-byte legacy keys before any network traffic.
	dec, err := NewStreamDecryptor(km)
	if err != nil {
		return nil, err
	}
	meta, err := d.client.Resolve(ctx, sl.Handle)
	if err != nil {
		return nil, err
	}
	attr, err := DecryptAttr(km.AttrKey[:], meta.EncryptedAttr)
	if err != nil {
		return nil, err
	}

	s := &session{d: d, link: sl, meta: meta, dec: dec}
	if err := s.stream(ctx, sink); err != nil {
		return nil, err
	}
	if err := dec.Verify(); err != nil {
		return nil, err
	}
	d.log.Debug().Str("op", "mega/download").Msgf("Verified %d bytes for node %s", s.written, sl.Handle)
	return &Result{Filename: attr.Name, BytesWritten: s.written}, nil
}

// session owns one download attempt: the open stream, the decryptor
// state and the URL-refresh budget. It never outlives a Download call.
type session struct {
	d         *Downloader
	link      *ShareLink
	meta      *NodeMetadata
	dec       *StreamDecryptor
	written   int64
	refreshes int
}

type fetchResult struct {
	data []byte
	url  string
	err  error
}

// stream walks the chunk plan in order. The next chunk's network fetch
// overlaps with decrypting and writing the current one; processing
// order stays strictly sequential because the CTR counter and the MAC
// chain both depend on prior chunk state.
func (s *session) stream(ctx context.Context, sink io.Writer) error {
	plan := ChunkPlan(s.meta.Size)
	if len(plan) == 0 {
		return nil
	}
	pending := s.fetchAsync(ctx, plan[0])
	for i, chunk := range plan {
		var res fetchResult
		select {
		case res = <-pending:
		case <-ctx.Done():
			return ctx.Err()
		}
		if i+1 < len(plan) {
			pending = s.fetchAsync(ctx, plan[i+1])
		}
		data := res.data
		if res.err != nil {
			var err error
			data, err = s.refetchChunk(ctx, chunk, res.err, res.url)
			if err != nil {
				return err
			}
		}
		plain, err := s.dec.DecryptChunk(chunk.Offset, data)
		if err != nil {
			return err
		}
		n, err := sink.Write(plain)
		if err != nil {
			return fmt.Errorf("error writing to sink: %v", err)
		}
		s.written += int64(n)
		if s.d.OnProgress != nil {
			s.d.OnProgress(s.written, s.meta.Size)
		}
	}
	return nil
}

func (s *session) fetchAsync(ctx context.Context, chunk Chunk) <-chan fetchResult {
	ch := make(chan fetchResult, 1)
	url := s.meta.DownloadURL
	go func() {
		data, err := s.fetchChunk(ctx, url, chunk)
		ch <- fetchResult{data: data, url: url, err: err}
	}()
	return ch
}

// refetchChunk recovers from a failed chunk fetch: transport errors
// retry with growing backoff, a stale URL re-resolves the node (within
// the session's refresh budget) and retries against the fresh URL. A
// stale result from a URL that was already replaced just retries, so a
// prefetch racing a refresh does not burn refresh budget.
func (s *session) refetchChunk(ctx context.Context, chunk Chunk, cause error, usedURL string) ([]byte, error) {
	lastErr := cause
	for attempt := 0; attempt < chunkMaxRetries; attempt++ {
		switch {
		case errors.Is(lastErr, errStaleURL):
			if usedURL == s.meta.DownloadURL {
				if err := s.refreshURL(ctx); err != nil {
					return nil, err
				}
			}
		case !IsRetryable(lastErr):
			return nil, lastErr
		default:
			wait := time.Duration(attempt+1) * chunkRetryBase
			s.d.log.Warn().Str("op", "mega/download").Err(lastErr).Msgf("Retrying chunk at offset %d in %s (attempt %d/%d)", chunk.Offset, wait, attempt+1, chunkMaxRetries)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		usedURL = s.meta.DownloadURL
		data, err := s.fetchChunk(ctx, usedURL, chunk)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("chunk at offset %d failed after %d attempts: %w", chunk.Offset, chunkMaxRetries, lastErr)
}

// refreshURL re-resolves the node for a fresh download URL and resumes
// from the current chunk boundary, where the decryptor state already
// sits.
func (s *session) refreshURL(ctx context.Context) error {
	if s.refreshes >= urlRefreshLimit {
		return fmt.Errorf("download url expired %d times: %w", s.refreshes, errStaleURL)
	}
	s.refreshes++
	s.d.log.Info().Str("op", "mega/download").Msgf("Re-resolving download url for node %s (refresh %d/%d)", s.link.Handle, s.refreshes, urlRefreshLimit)
	meta, err := s.d.client.Resolve(ctx, s.link.Handle)
	if err != nil {
		return err
	}
	s.meta.DownloadURL = meta.DownloadURL
	return nil
}

// fetchChunk GETs one ciphertext chunk via a range request and reads it
// fully into memory. Chunks top out at 1 MiB, so buffering whole chunks
// keeps retry and MAC bookkeeping at clean boundaries.
func (s *session) fetchChunk(ctx context.Context, url string, chunk Chunk) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating chunk request: %v", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", chunk.Offset, chunk.Offset+chunk.Size-1))
	resp, err := s.d.hc.Do(req)
	if err != nil {
		return nil, &TransportError{Op: "chunk fetch", Err: err}
	}
	defer resp.Body.Close()
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, errStaleURL
	case 509: // bandwidth limit exceeded
		return nil, newAPIError(-17)
	default:
		return nil, &TransportError{Op: "chunk fetch", Err: fmt.Errorf("http status %s", resp.Status)}
	}
	data := make([]byte, chunk.Size)
	if _, err := io.ReadFull(resp.Body, data); err != nil {
		return nil, &TransportError{Op: "chunk read", Err: err}
	}
	return data, nil
}
