// Package transport fetches search pages and hands their bodies over as a
// sequence of raw byte chunks.
package transport

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/rubiojr/sieve/pkg/log"
)

const (
	// DefaultUserAgent mimics a desktop browser. Some engines serve a
	// different, unparseable page to unknown clients.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.3"

	// DefaultChunkSize is the read size used for response bodies.
	DefaultChunkSize = 1400

	DefaultTimeout = 30 * time.Second
)

// ErrStatus is returned when the server answers with a non 2xx status.
var ErrStatus = errors.New("unexpected response status")

// Request describes one page request.
type Request struct {
	Method      string
	URL         string
	Body        string
	ContentType string
	Headers     map[string]string
}

// ChunkSource yields a body in order. Next returns io.EOF once the body is
// exhausted.
type ChunkSource interface {
	Next() ([]byte, error)
	Close() error
}

// Fetcher opens a chunk source for a request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (ChunkSource, error)
}

// HTTPFetcher is a Fetcher backed by net/http.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	chunkSize int
}

// HTTPOptions configure an HTTPFetcher. Zero values take defaults.
type HTTPOptions struct {
	Client    *http.Client
	UserAgent string
	ChunkSize int
	Timeout   time.Duration
}

func NewHTTPFetcher(opts HTTPOptions) *HTTPFetcher {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Client == nil {
		opts.Client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	return &HTTPFetcher{
		client:    opts.Client,
		userAgent: opts.UserAgent,
		chunkSize: opts.ChunkSize,
	}
}

// Fetch sends the request and returns the (decompressed) body as chunks.
func (f *HTTPFetcher) Fetch(ctx context.Context, r Request) (ChunkSource, error) {
	l := log.ForService("transport")

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, errors.Wrapf(err, "building request for %s", r.URL)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	req.Header.Set("Accept-Encoding", "gzip, zstd")
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	l.Debugf("%s %s", method, r.URL)
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, r.URL)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_ = resp.Body.Close()
		return nil, errors.Wrapf(ErrStatus, "%s %s: %d", method, r.URL, resp.StatusCode)
	}

	src, err := newBodySource(resp.Body, resp.Header.Get("Content-Encoding"), f.chunkSize)
	if err != nil {
		_ = resp.Body.Close()
		return nil, errors.Wrapf(err, "decoding %s", r.URL)
	}
	return src, nil
}

// readerSource adapts an io.Reader to a ChunkSource.
type readerSource struct {
	r      io.Reader
	buf    []byte
	closer func() error
	done   bool
}

func newBodySource(body io.ReadCloser, encoding string, size int) (*readerSource, error) {
	src := &readerSource{r: body, buf: make([]byte, size), closer: body.Close}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
	case "gzip", "x-gzip":
		zr, err := gzip.NewReader(body)
		if err != nil {
			return nil, err
		}
		src.r = zr
		src.closer = func() error {
			_ = zr.Close()
			return body.Close()
		}
	case "zstd":
		zr, err := zstd.NewReader(body)
		if err != nil {
			return nil, err
		}
		src.r = zr
		src.closer = func() error {
			zr.Close()
			return body.Close()
		}
	default:
		return nil, errors.Newf("unsupported content encoding %q", encoding)
	}
	return src, nil
}

func (s *readerSource) Next() ([]byte, error) {
	for !s.done {
		n, err := s.r.Read(s.buf)
		if err == io.EOF {
			s.done = true
		} else if err != nil {
			return nil, err
		}
		if n > 0 {
			return append([]byte(nil), s.buf[:n]...), nil
		}
	}
	return nil, io.EOF
}

func (s *readerSource) Close() error {
	return s.closer()
}

// StaticSource serves pre-split chunks. Useful for replaying captured pages.
func StaticSource(chunks ...[]byte) ChunkSource {
	return &staticSource{chunks: chunks}
}

type staticSource struct {
	chunks [][]byte
}

func (s *staticSource) Next() ([]byte, error) {
	if len(s.chunks) == 0 {
		return nil, io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *staticSource) Close() error {
	s.chunks = nil
	return nil
}
