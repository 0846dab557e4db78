package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dvcrn/fetchbridge/internal/httpclient"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testEngine(t *testing.T) *Engine {
	t.Helper()
	tr := &http.Transport{DisableKeepAlives: true, DisableCompression: true}
	t.Cleanup(tr.CloseIdleConnections)
	return New(tr, WithProgressInterval(5*time.Millisecond), WithLogger(zerolog.Nop()))
}

func streamOptions() *Options {
	return &Options{
		StreamResponse:       true,
		HTTPTransferDecoding: true,
		MaxRedirs:            20,
	}
}

func readAll(t *testing.T, res *Result) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestRequestHeaderBlocks(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("X-B", "b")
		w.Header().Add("X-A", "1")
		w.Header().Add("X-A", "2")
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, "created")
	}))
	t.Cleanup(srv.Close)

	res, err := testEngine(t).Request(context.Background(), srv.URL, streamOptions())
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, res.StatusCode)
	assert.Equal(t, "Created", res.Reason)
	require.Len(t, res.Headers, 1, "no redirects means a single block")

	block := res.Headers[0]
	require.NotEmpty(t, block)
	assert.Equal(t, HeaderField{Name: ResultKey, Value: "HTTP/1.1 201 Created"}, block[0], "status line opens the block")
	assert.Equal(t, []string{"1", "2"}, block.Values("x-a"), "multi-value headers are kept in order")
	assert.Equal(t, []string{"b"}, block.Values("X-B"))

	names := make([]string, 0, len(block)-1)
	for _, f := range block[1:] {
		names = append(names, f.Name)
	}
	assert.True(t, sort.StringsAreSorted(names), "fields after the status line are sorted: %v", names)

	assert.Equal(t, "created", readAll(t, res))
}

func TestRequestHeaderLines(t *testing.T) {
	type echo struct {
		Host   string
		Header http.Header
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(echo{Host: r.Host, Header: r.Header})
	}))
	t.Cleanup(srv.Close)

	opts := streamOptions()
	opts.DecodeContent = true
	opts.HTTPHeader = []string{
		"X-One: 1",
		"x-one: 2",
		"X-Empty;",
		"Accept-Encoding:",
		"Host: example.test",
	}

	res, err := testEngine(t).Request(context.Background(), srv.URL, opts)
	require.NoError(t, err)

	var got echo
	require.NoError(t, json.Unmarshal([]byte(readAll(t, res)), &got))
	assert.Equal(t, "example.test", got.Host)
	assert.Equal(t, []string{"1", "2"}, got.Header["X-One"])
	assert.Equal(t, []string{""}, got.Header["X-Empty"], "a trailing semicolon sends an empty value")
	assert.NotContains(t, got.Header, "Accept-Encoding", "an empty value suppresses the header")
}

func TestRequestMalformedHeaderLine(t *testing.T) {
	opts := streamOptions()
	opts.HTTPHeader = []string{"no separator here"}

	_, err := testEngine(t).Request(context.Background(), "http://127.0.0.1:1/", opts)
	require.Error(t, err)
	assert.Equal(t, CodeBadFunctionArgument, CodeOf(err))
}

func TestRequestUpload(t *testing.T) {
	type seen struct {
		Method        string
		ContentLength int64
		Chunked       bool
		Body          string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		json.NewEncoder(w).Encode(seen{
			Method:        r.Method,
			ContentLength: r.ContentLength,
			Chunked:       len(r.TransferEncoding) > 0 && r.TransferEncoding[0] == "chunked",
			Body:          string(body),
		})
	}))
	t.Cleanup(srv.Close)

	size := int64(5)
	tests := []struct {
		name   string
		method string
		size   *int64
		want   seen
	}{
		{
			name: "explicit size",
			size: &size,
			want: seen{Method: http.MethodPut, ContentLength: 5, Body: "hello"},
		},
		{
			name: "unknown size is chunked",
			want: seen{Method: http.MethodPut, ContentLength: -1, Chunked: true, Body: "hello"},
		},
		{
			name:   "custom method",
			method: http.MethodPost,
			size:   &size,
			want:   seen{Method: http.MethodPost, ContentLength: 5, Body: "hello"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var uploaded atomic.Int64
			opts := streamOptions()
			opts.Upload = true
			opts.CustomRequest = tt.method
			opts.InFile = strings.NewReader("hello")
			opts.InFileSize = tt.size
			opts.XferInfoFunction = func(_ *Handle, _, _, _, ulnow int64) int {
				uploaded.Store(ulnow)
				return 0
			}

			res, err := testEngine(t).Request(context.Background(), srv.URL, opts)
			require.NoError(t, err)

			var got seen
			require.NoError(t, json.Unmarshal([]byte(readAll(t, res)), &got))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, int64(5), uploaded.Load(), "progress sees uploaded bytes")
		})
	}
}

func TestRequestRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/c", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/c", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "landed")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Run("follow", func(t *testing.T) {
		opts := streamOptions()
		opts.FollowLocation = true

		res, err := testEngine(t).Request(context.Background(), srv.URL+"/a", opts)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Equal(t, srv.URL+"/c", res.EffectiveURL)
		require.Len(t, res.Headers, 3, "one block per hop")
		assert.Equal(t, []string{"/b"}, res.Headers[0].Values("Location"))
		assert.Equal(t, []string{"/c"}, res.Headers[1].Values("Location"))
		assert.Empty(t, res.Headers[2].Values("Location"))
		assert.Equal(t, "landed", readAll(t, res))
	})

	t.Run("no follow", func(t *testing.T) {
		res, err := testEngine(t).Request(context.Background(), srv.URL+"/a", streamOptions())
		require.NoError(t, err)
		defer res.Body.Close()

		assert.Equal(t, http.StatusFound, res.StatusCode)
		require.Len(t, res.Headers, 1)
		assert.Equal(t, []string{"/b"}, res.Headers[0].Values("location"))
	})

	t.Run("too many", func(t *testing.T) {
		opts := streamOptions()
		opts.FollowLocation = true
		opts.MaxRedirs = 1

		_, err := testEngine(t).Request(context.Background(), srv.URL+"/a", opts)
		require.Error(t, err)
		assert.Equal(t, CodeTooManyRedirects, CodeOf(err))
	})
}

func TestRequestDecodesContent(t *testing.T) {
	const plain = "hello hello hello compressed world"

	encoders := map[string]func(io.Writer) io.WriteCloser{
		"gzip": func(w io.Writer) io.WriteCloser { return gzip.NewWriter(w) },
		"deflate": func(w io.Writer) io.WriteCloser {
			return zlib.NewWriter(w)
		},
		"zstd": func(w io.Writer) io.WriteCloser {
			enc, _ := zstd.NewWriter(w)
			return enc
		},
	}

	for name, newEncoder := range encoders {
		t.Run(name, func(t *testing.T) {
			var compressed bytes.Buffer
			enc := newEncoder(&compressed)
			_, err := io.WriteString(enc, plain)
			require.NoError(t, err)
			require.NoError(t, enc.Close())

			var acceptEncoding atomic.Value
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				acceptEncoding.Store(r.Header.Get("Accept-Encoding"))
				w.Header().Set("Content-Encoding", name)
				w.Write(compressed.Bytes())
			}))
			t.Cleanup(srv.Close)

			opts := streamOptions()
			opts.DecodeContent = true
			res, err := testEngine(t).Request(context.Background(), srv.URL, opts)
			require.NoError(t, err)
			assert.Equal(t, plain, readAll(t, res))
			assert.Equal(t, supportedEncodings, acceptEncoding.Load())
			assert.Equal(t, []string{name}, res.Headers[0].Values("Content-Encoding"), "headers are returned as received")

			res, err = testEngine(t).Request(context.Background(), srv.URL, streamOptions())
			require.NoError(t, err)
			assert.Equal(t, compressed.String(), readAll(t, res), "without decoding the body is raw")
		})
	}
}

func TestRequestCorruptContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		io.WriteString(w, "definitely not gzip")
	}))
	t.Cleanup(srv.Close)

	opts := streamOptions()
	opts.DecodeContent = true
	res, err := testEngine(t).Request(context.Background(), srv.URL, opts)
	require.NoError(t, err, "decoding errors surface on the body")
	defer res.Body.Close()

	_, err = io.ReadAll(res.Body)
	require.Error(t, err)
	assert.Equal(t, CodeBadContentEncoding, CodeOf(err))
}

func TestProgressReportsCounts(t *testing.T) {
	payload := strings.Repeat("x", 1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)

	var dltotal, dlnow atomic.Int64
	opts := streamOptions()
	opts.XferInfoFunction = func(_ *Handle, total, now, _, _ int64) int {
		dltotal.Store(total)
		dlnow.Store(now)
		return 0
	}

	res, err := testEngine(t).Request(context.Background(), srv.URL, opts)
	require.NoError(t, err)
	assert.Equal(t, payload, readAll(t, res))
	assert.Equal(t, int64(1000), dltotal.Load())
	assert.Equal(t, int64(1000), dlnow.Load(), "final chunk delivered with EOF must be reported")
}

func TestProgressCallbackAborts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "first")
		w.(http.Flusher).Flush()
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	var abort atomic.Int32
	var handles atomic.Int32
	var captured atomic.Pointer[Handle]
	opts := streamOptions()
	opts.XferInfoFunction = func(h *Handle, _, _, _, _ int64) int {
		if captured.CompareAndSwap(nil, h) {
			handles.Add(1)
		}
		return int(abort.Load())
	}

	res, err := testEngine(t).Request(context.Background(), srv.URL, opts)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Same(t, res.Body, captured.Load(), "the callback sees the body's handle")

	abort.Store(1)
	_, err = io.ReadAll(res.Body)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAbortedByCallback)
	assert.Equal(t, int32(1), handles.Load())
}

func TestProgressAbortBeforeSend(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	t.Cleanup(srv.Close)

	opts := streamOptions()
	opts.XferInfoFunction = func(*Handle, int64, int64, int64, int64) int { return 1 }

	_, err := testEngine(t).Request(context.Background(), srv.URL, opts)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAbortedByCallback)
	assert.Zero(t, hits.Load(), "nothing reaches the server")
}

func TestPauseRecv(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "hello")
	}))
	t.Cleanup(srv.Close)

	res, err := testEngine(t).Request(context.Background(), srv.URL, streamOptions())
	require.NoError(t, err)
	h, ok := res.Body.(*Handle)
	require.True(t, ok, "the body is the transfer handle")

	require.NoError(t, h.Pause(PauseRecv))
	assert.Equal(t, PauseRecv, h.Paused())

	type result struct {
		body string
		err  error
	}
	out := make(chan result, 1)
	go func() {
		b, err := io.ReadAll(h)
		out <- result{string(b), err}
	}()

	select {
	case <-out:
		t.Fatal("read completed while receive was paused")
	case <-time.After(50 * time.Millisecond):
	}

	require.NoError(t, h.Pause(PauseCont))
	select {
	case got := <-out:
		require.NoError(t, got.err)
		assert.Equal(t, "hello", got.body)
	case <-time.After(5 * time.Second):
		t.Fatal("read did not resume")
	}

	require.NoError(t, h.Close())
	assert.ErrorIs(t, h.Pause(PauseRecv), ErrBodyClosed, "a closed transfer cannot be paused")
	_, err = h.Read(make([]byte, 1))
	assert.ErrorIs(t, err, ErrBodyClosed)
}

func TestRequestRejectsOptions(t *testing.T) {
	negative := int64(-1)
	tests := []struct {
		name   string
		url    string
		modify func(*Options)
		code   Code
	}{
		{name: "buffered", url: "http://example.com", modify: func(o *Options) { o.StreamResponse = false }, code: CodeNotSupported},
		{name: "transfer encoding", url: "http://example.com", modify: func(o *Options) { o.TransferEncoding = true }, code: CodeNotSupported},
		{name: "raw framing", url: "http://example.com", modify: func(o *Options) { o.HTTPTransferDecoding = false }, code: CodeNotSupported},
		{name: "upload without input", url: "http://example.com", modify: func(o *Options) { o.Upload = true }, code: CodeBadFunctionArgument},
		{name: "negative size", url: "http://example.com", modify: func(o *Options) { o.InFileSize = &negative }, code: CodeBadFunctionArgument},
		{name: "ftp", url: "ftp://example.com/file", modify: func(*Options) {}, code: CodeUnsupportedProtocol},
		{name: "no host", url: "http:///path", modify: func(*Options) {}, code: CodeURLMalformat},
		{name: "bad url", url: "http://[::1", modify: func(*Options) {}, code: CodeURLMalformat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := streamOptions()
			tt.modify(opts)
			_, err := testEngine(t).Request(context.Background(), tt.url, opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err), "unexpected error: %v", err)
		})
	}

	_, err := testEngine(t).Request(context.Background(), "http://example.com", nil)
	assert.Equal(t, CodeBadFunctionArgument, CodeOf(err))
}

type closeTracker struct {
	io.Reader
	closed atomic.Bool
}

func (c *closeTracker) Close() error {
	c.closed.Store(true)
	return nil
}

func TestRequestClosesUploadOnRejectedURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		code Code
	}{
		{name: "ftp", url: "ftp://example.com/file", code: CodeUnsupportedProtocol},
		{name: "no host", url: "http:///path", code: CodeURLMalformat},
		{name: "bad url", url: "http://[::1", code: CodeURLMalformat},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := &closeTracker{Reader: strings.NewReader("payload")}
			opts := streamOptions()
			opts.Upload = true
			opts.InFile = in

			_, err := testEngine(t).Request(context.Background(), tt.url, opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, CodeOf(err))
			assert.True(t, in.closed.Load(), "upload body left open")
		})
	}
}

func TestRequestRedirectsThroughClientAdapter(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "landed")
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tr := &http.Transport{DisableKeepAlives: true}
	t.Cleanup(tr.CloseIdleConnections)
	client := &http.Client{
		Transport: tr,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	eng := New(httpclient.FromClient(client), WithLogger(zerolog.Nop()))

	t.Run("follow", func(t *testing.T) {
		opts := streamOptions()
		opts.FollowLocation = true

		res, err := eng.Request(context.Background(), srv.URL+"/a", opts)
		require.NoError(t, err)
		require.Len(t, res.Headers, 2)
		assert.Equal(t, []string{"/b"}, res.Headers[0].Values("Location"))
		assert.Equal(t, srv.URL+"/b", res.EffectiveURL)
		assert.Equal(t, "landed", readAll(t, res))
	})

	t.Run("manual", func(t *testing.T) {
		res, err := eng.Request(context.Background(), srv.URL+"/a", streamOptions())
		require.NoError(t, err)
		defer res.Body.Close()
		assert.Equal(t, http.StatusFound, res.StatusCode)
		require.Len(t, res.Headers, 1)
	})
}

func TestRequestCouldntConnect(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = testEngine(t).Request(context.Background(), "http://"+addr+"/", streamOptions())
	require.Error(t, err)
	assert.Equal(t, CodeCouldntConnect, CodeOf(err))
}

func TestErrorIs(t *testing.T) {
	wrapped := &Error{Code: CodeAbortedByCallback, Err: context.Canceled}
	assert.ErrorIs(t, wrapped, ErrAbortedByCallback)
	assert.ErrorIs(t, wrapped, context.Canceled)
	assert.NotErrorIs(t, &Error{Code: CodeRecvError}, ErrAbortedByCallback)
	assert.Contains(t, wrapped.Error(), "aborted by callback")
	assert.Equal(t, "code 999", Code(999).String())
}
